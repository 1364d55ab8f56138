package schema

import (
	"github.com/rislab/flight-review/internal/models"
	"github.com/rs/zerolog/log"
)

// Resolution is the concrete topic and fields selected for a logical signal.
type Resolution struct {
	Signal string
	Topic  string
	Fields []string
	// Candidate is the index of the winning candidate; 0 is the newest schema.
	Candidate int
}

// Legacy reports whether a fallback candidate was selected.
func (r Resolution) Legacy() bool {
	return r.Candidate > 0
}

// SignalMap holds the resolution of every logical signal for one recording.
// Signals without a matching candidate are absent.
type SignalMap map[string]Resolution

// Lookup returns the resolution of a signal.
func (m SignalMap) Lookup(signal string) (Resolution, bool) {
	r, ok := m[signal]
	return r, ok
}

// Enabled reports whether a derived boolean signal matched.
func (m SignalMap) Enabled(signal string) bool {
	_, ok := m[signal]
	return ok
}

// Topic returns the resolved topic name, or "" when the signal is absent.
func (m SignalMap) Topic(signal string) string {
	return m[signal].Topic
}

// Resolve resolves every alias in the default table against rec.
func Resolve(rec *models.LogRecording) SignalMap {
	return ResolveWith(Aliases, rec)
}

// ResolveWith resolves aliases against rec. For each alias the first
// candidate with a present probe topic is selected, and the signal resolves
// only when that candidate's topic is present too.
func ResolveWith(aliases []Alias, rec *models.LogRecording) SignalMap {
	present := make(map[string]struct{})
	if rec != nil {
		for _, name := range rec.TopicNames() {
			present[name] = struct{}{}
		}
	}

	out := make(SignalMap, len(aliases))
	for _, a := range aliases {
		idx, ok := firstMatch(a.Candidates, present)
		if !ok {
			log.Debug().Str("component", "schema").Str("signal", a.Name).Msg("no candidate matched")
			continue
		}
		c := a.Candidates[idx]
		if _, ok := present[c.Topic]; !ok && !a.Flag {
			log.Debug().Str("component", "schema").Str("signal", a.Name).
				Str("topic", c.Topic).Msg("selected topic not logged")
			continue
		}
		out[a.Name] = Resolution{
			Signal:    a.Name,
			Topic:     c.Topic,
			Fields:    append([]string(nil), c.Fields...),
			Candidate: idx,
		}
		if idx > 0 {
			log.Debug().Str("component", "schema").Str("signal", a.Name).
				Str("topic", c.Topic).Msg("using legacy schema")
		}
	}
	return out
}

func firstMatch(cands []Candidate, present map[string]struct{}) (int, bool) {
	for i, c := range cands {
		for _, p := range c.probes() {
			if _, ok := present[p]; ok {
				return i, true
			}
		}
	}
	return 0, false
}
