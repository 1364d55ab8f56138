// Package supplementary assembles the non-chart sections of a panel: the
// changed parameter table, logged messages and the additional data block.
package supplementary

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/rislab/flight-review/internal/models"
)

// ParameterRow is one changed parameter.
type ParameterRow struct {
	TimeS    float64 `json:"timeS" msgpack:"time_s"`
	Name     string  `json:"name" msgpack:"name"`
	OldValue float64 `json:"oldValue" msgpack:"old_value"`
	NewValue float64 `json:"newValue" msgpack:"new_value"`
}

// MessageRow is one logged text message.
type MessageRow struct {
	TimeS   float64 `json:"timeS" msgpack:"time_s"`
	Level   string  `json:"level" msgpack:"level"`
	Message string  `json:"message" msgpack:"message"`
}

// Content is the aggregated supplementary content of one recording.
type Content struct {
	ChangedParameters []ParameterRow `json:"changedParameters" msgpack:"changed_parameters"`
	Messages          []MessageRow   `json:"messages" msgpack:"messages"`
	// AdditionalHTML is empty when the recording carries no console, process
	// or performance data.
	AdditionalHTML template.HTML `json:"additionalHtml,omitempty" msgpack:"additional_html,omitempty"`
}

type block struct {
	Label string
	Text  string
}

type section struct {
	Heading string
	Blocks  []block
}

var additionalTmpl = template.Must(template.New("additional").Parse(`
<button id="show-additional-data-btn" class="btn btn-secondary" data-toggle="collapse" style="min-width:0;"
 data-target="#show-additional-data">Show additional Data</button>
<div id="show-additional-data" class="collapse">
{{- range .}}
<h5>{{.Heading}}</h5>
{{- range .Blocks}}
<p>{{if .Label}}{{.Label}}:<br/>{{end}}<pre>{{.Text}}</pre></p>
{{- end}}
{{- end}}
</div>
`))

var phases = []struct {
	key   string
	label string
}{
	{"preflight", "Pre Flight"},
	{"postflight", "Post Flight"},
}

// Aggregate collects the supplementary content of rec.
func Aggregate(rec *models.LogRecording) (Content, error) {
	var out Content
	if rec == nil {
		return out, nil
	}
	start := rec.StartTimestamp

	for _, pc := range rec.ChangedParameters {
		out.ChangedParameters = append(out.ChangedParameters, ParameterRow{
			TimeS:    relSeconds(pc.Timestamp, start),
			Name:     pc.Name,
			OldValue: pc.OldValue,
			NewValue: pc.NewValue,
		})
	}
	for _, m := range rec.LoggedMessages {
		out.Messages = append(out.Messages, MessageRow{
			TimeS:   relSeconds(m.Timestamp, start),
			Level:   m.Level,
			Message: m.Message,
		})
	}

	sections := additionalSections(rec)
	if len(sections) == 0 {
		return out, nil
	}
	var buf bytes.Buffer
	if err := additionalTmpl.Execute(&buf, sections); err != nil {
		return out, err
	}
	out.AdditionalHTML = template.HTML(buf.String())
	return out, nil
}

// additionalSections returns the non-empty console, process and performance
// counter sections. Missing info keys contribute nothing.
func additionalSections(rec *models.LogRecording) []section {
	var sections []section

	if console, ok := firstMessage(rec, "boot_console_output"); ok {
		sections = append(sections, section{
			Heading: "Console Output",
			Blocks:  []block{{Text: strings.Join(console, "")}},
		})
	}

	var top, perf []block
	for _, p := range phases {
		if lines, ok := firstMessage(rec, "perf_top_"+p.key); ok {
			top = append(top, block{Label: p.label, Text: strings.Join(lines, "\n")})
		}
		if lines, ok := firstMessage(rec, "perf_counter_"+p.key); ok {
			perf = append(perf, block{Label: p.label, Text: strings.Join(lines, "\n")})
		}
	}
	if lines, ok := firstMessage(rec, "perf_top_watchdog"); ok {
		top = append(top, block{Label: "Watchdog", Text: strings.Join(lines, "\n")})
	}
	if len(top) > 0 {
		sections = append(sections, section{Heading: "Processes", Blocks: top})
	}
	if len(perf) > 0 {
		sections = append(sections, section{Heading: "Performance Counters", Blocks: perf})
	}
	return sections
}

func firstMessage(rec *models.LogRecording, key string) ([]string, bool) {
	msgs, ok := rec.InfoMultiple[key]
	if !ok || len(msgs) == 0 {
		return nil, false
	}
	return msgs[0], true
}

func relSeconds(ts, start uint64) float64 {
	if ts < start {
		return 0
	}
	return float64(ts-start) / 1e6
}
