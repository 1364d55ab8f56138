// Package models contains domain types for the flight review backend.
package models

import "sort"

// Topic is one instance of a logged message type.
type Topic struct {
	Name       string               `json:"name" msgpack:"name"`
	MultiID    int                  `json:"multiId" msgpack:"multi_id"`
	Timestamps []uint64             `json:"timestamps" msgpack:"timestamps"` // microseconds
	Fields     map[string][]float64 `json:"fields" msgpack:"fields"`
}

// Field returns the samples of a field and whether the field exists.
func (t *Topic) Field(name string) ([]float64, bool) {
	v, ok := t.Fields[name]
	return v, ok
}

// Len returns the number of samples in the topic.
func (t *Topic) Len() int {
	return len(t.Timestamps)
}

// ParameterChange is a parameter value change logged during flight.
type ParameterChange struct {
	Timestamp uint64  `json:"timestamp" msgpack:"timestamp"`
	Name      string  `json:"name" msgpack:"name"`
	OldValue  float64 `json:"oldValue" msgpack:"old_value"`
	NewValue  float64 `json:"newValue" msgpack:"new_value"`
}

// LoggedMessage is a text message emitted by the firmware.
type LoggedMessage struct {
	Timestamp uint64 `json:"timestamp" msgpack:"timestamp"`
	Level     string `json:"level" msgpack:"level"`
	Message   string `json:"message" msgpack:"message"`
}

// LogRecording is a parsed flight log.
type LogRecording struct {
	Topics         []Topic           `json:"topics" msgpack:"topics"`
	StartTimestamp uint64            `json:"startTimestamp" msgpack:"start_timestamp"`
	LastTimestamp  uint64            `json:"lastTimestamp" msgpack:"last_timestamp"`
	Info           map[string]string `json:"info" msgpack:"info"`
	// InfoMultiple holds multi-valued info keys. Each key maps to a list of
	// messages, each message being a list of lines.
	InfoMultiple      map[string][][]string `json:"infoMultiple" msgpack:"info_multiple"`
	ChangedParameters []ParameterChange     `json:"changedParameters" msgpack:"changed_parameters"`
	InitialParameters map[string]float64    `json:"initialParameters,omitempty" msgpack:"initial_parameters,omitempty"`
	LoggedMessages    []LoggedMessage       `json:"loggedMessages" msgpack:"logged_messages"`
}

// NewLogRecording creates an empty recording.
func NewLogRecording(start, last uint64) *LogRecording {
	return &LogRecording{
		Topics:         make([]Topic, 0),
		StartTimestamp: start,
		LastTimestamp:  last,
		Info:           make(map[string]string),
		InfoMultiple:   make(map[string][][]string),
	}
}

// HasTopic reports whether any instance of the named topic is present.
func (r *LogRecording) HasTopic(name string) bool {
	if r == nil {
		return false
	}
	for i := range r.Topics {
		if r.Topics[i].Name == name {
			return true
		}
	}
	return false
}

// FindTopic returns the topic with the given name and instance, or nil.
func (r *LogRecording) FindTopic(name string, multiID int) *Topic {
	if r == nil {
		return nil
	}
	for i := range r.Topics {
		if r.Topics[i].Name == name && r.Topics[i].MultiID == multiID {
			return &r.Topics[i]
		}
	}
	return nil
}

// TopicNames returns the sorted set of distinct topic names.
func (r *LogRecording) TopicNames() []string {
	seen := make(map[string]struct{}, len(r.Topics))
	names := make([]string, 0, len(r.Topics))
	for _, t := range r.Topics {
		if _, ok := seen[t.Name]; ok {
			continue
		}
		seen[t.Name] = struct{}{}
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// IsReplay reports whether the recording was produced by a replay run.
func (r *LogRecording) IsReplay() bool {
	_, ok := r.Info["replay"]
	return ok
}

// Clone returns a deep copy of the recording.
func (r *LogRecording) Clone() *LogRecording {
	if r == nil {
		return nil
	}
	out := &LogRecording{
		Topics:            make([]Topic, len(r.Topics)),
		StartTimestamp:    r.StartTimestamp,
		LastTimestamp:     r.LastTimestamp,
		Info:              make(map[string]string, len(r.Info)),
		InfoMultiple:      make(map[string][][]string, len(r.InfoMultiple)),
		ChangedParameters: append([]ParameterChange(nil), r.ChangedParameters...),
		LoggedMessages:    append([]LoggedMessage(nil), r.LoggedMessages...),
	}
	for i, t := range r.Topics {
		ct := Topic{
			Name:       t.Name,
			MultiID:    t.MultiID,
			Timestamps: append([]uint64(nil), t.Timestamps...),
			Fields:     make(map[string][]float64, len(t.Fields)),
		}
		for k, v := range t.Fields {
			ct.Fields[k] = append([]float64(nil), v...)
		}
		out.Topics[i] = ct
	}
	for k, v := range r.Info {
		out.Info[k] = v
	}
	for k, msgs := range r.InfoMultiple {
		cp := make([][]string, len(msgs))
		for i, lines := range msgs {
			cp[i] = append([]string(nil), lines...)
		}
		out.InfoMultiple[k] = cp
	}
	if r.InitialParameters != nil {
		out.InitialParameters = make(map[string]float64, len(r.InitialParameters))
		for k, v := range r.InitialParameters {
			out.InitialParameters[k] = v
		}
	}
	return out
}

// TimeWindow is a padded time range in microseconds shared by aligned charts.
type TimeWindow struct {
	Start float64 `json:"start" msgpack:"start"`
	End   float64 `json:"end" msgpack:"end"`
}

// Duration returns End - Start.
func (w TimeWindow) Duration() float64 {
	return w.End - w.Start
}

// Contains reports whether ts lies inside the window.
func (w TimeWindow) Contains(ts float64) bool {
	return ts >= w.Start && ts <= w.End
}
