package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rislab/flight-review/internal/models"
)

// Reserved topic names of the CSV format.
const (
	csvParamTopic   = "@param"
	csvMessageTopic = "@message"
	csvInfoTopic    = "@info"
)

// CSVDecoder handles long-format CSV exports.
// Format: "timestamp,topic[instance],field,value" with timestamps in
// microseconds. Rows of the same topic instance sharing a timestamp form one
// sample. The reserved topics @param, @message and @info carry parameter
// changes, logged messages and info keys.
type CSVDecoder struct {
	names *StringIntern
}

func NewCSVDecoder() *CSVDecoder {
	return &CSVDecoder{names: GetGlobalIntern()}
}

func (d *CSVDecoder) Name() string {
	return "csv"
}

func (d *CSVDecoder) CanDecode(name string, head []byte) bool {
	if hasExt(name, ".csv") {
		return true
	}
	line, _, _ := bytes.Cut(head, []byte("\n"))
	return strings.HasPrefix(strings.TrimSpace(string(line)), "timestamp,topic,field,value")
}

type csvTopic struct {
	topic  *models.Topic
	fields []string
}

func (d *CSVDecoder) Decode(r io.Reader) (*models.LogRecording, error) {
	rec := models.NewLogRecording(0, 0)
	topics := make(map[string]*csvTopic)
	order := make([]string, 0)
	params := make(map[string]float64)
	first := true

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "timestamp,") {
			continue
		}

		parts := strings.SplitN(line, ",", 4)
		if len(parts) < 4 {
			return nil, fmt.Errorf("line %d: expected 4 columns, got %d", lineNum, len(parts))
		}
		ts, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp: %w", lineNum, err)
		}
		topicKey := strings.TrimSpace(parts[1])
		field := strings.TrimSpace(parts[2])
		raw := strings.TrimSpace(parts[3])

		if first || ts < rec.StartTimestamp {
			rec.StartTimestamp = ts
		}
		if ts > rec.LastTimestamp {
			rec.LastTimestamp = ts
		}
		first = false

		switch topicKey {
		case csvMessageTopic:
			rec.LoggedMessages = append(rec.LoggedMessages, models.LoggedMessage{Timestamp: ts, Level: field, Message: raw})
			continue
		case csvInfoTopic:
			rec.Info[field] = raw
			continue
		}

		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q", lineNum, raw)
		}

		if topicKey == csvParamTopic {
			old, seen := params[field]
			if !seen {
				rec.InitialParameters = setParam(rec.InitialParameters, field, value)
			} else {
				rec.ChangedParameters = append(rec.ChangedParameters, models.ParameterChange{
					Timestamp: ts, Name: field, OldValue: old, NewValue: value,
				})
			}
			params[field] = value
			continue
		}

		ct, ok := topics[topicKey]
		if !ok {
			name, multiID, err := splitInstance(topicKey)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			ct = &csvTopic{topic: &models.Topic{
				Name:    d.names.Intern(name),
				MultiID: multiID,
				Fields:  make(map[string][]float64),
			}}
			topics[topicKey] = ct
			order = append(order, topicKey)
		}
		ct.set(ts, d.names.Intern(field), value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, key := range order {
		rec.Topics = append(rec.Topics, *topics[key].topic)
	}
	return rec, nil
}

// set stores value for field at ts, starting a new sample when ts differs from
// the last one. Missing samples are NaN.
func (c *csvTopic) set(ts uint64, field string, value float64) {
	t := c.topic
	n := len(t.Timestamps)
	if n == 0 || t.Timestamps[n-1] != ts {
		t.Timestamps = append(t.Timestamps, ts)
		for _, f := range c.fields {
			t.Fields[f] = append(t.Fields[f], math.NaN())
		}
		n++
	}
	if _, ok := t.Fields[field]; !ok {
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = math.NaN()
		}
		t.Fields[field] = samples
		c.fields = append(c.fields, field)
	}
	t.Fields[field][n-1] = value
}

// splitInstance parses "name" or "name[3]".
func splitInstance(key string) (string, int, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, 0, nil
	}
	if !strings.HasSuffix(key, "]") {
		return "", 0, fmt.Errorf("malformed topic %q", key)
	}
	id, err := strconv.Atoi(key[open+1 : len(key)-1])
	if err != nil {
		return "", 0, fmt.Errorf("malformed topic instance %q", key)
	}
	return key[:open], id, nil
}

func setParam(m map[string]float64, name string, value float64) map[string]float64 {
	if m == nil {
		m = make(map[string]float64)
	}
	m[name] = value
	return m
}
