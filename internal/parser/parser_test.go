package parser

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rislab/flight-review/internal/models"
)

// createTestFileWithName creates a temporary file with a specific name
func createTestFileWithName(t *testing.T, name string, content []byte) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(filePath, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return filePath
}

func sampleRecording() *models.LogRecording {
	rec := models.NewLogRecording(1_000_000, 2_000_000)
	rec.Info["sys_name"] = "PX4"
	rec.Topics = append(rec.Topics,
		models.Topic{
			Name:       "vehicle_local_position",
			Timestamps: []uint64{1_000_000, 2_000_000},
			Fields:     map[string][]float64{"x": {0, 1}, "y": {0, 2}},
		},
		models.Topic{
			Name:       "battery_status",
			Timestamps: []uint64{1_500_000},
			Fields:     map[string][]float64{"voltage_v": {12.4}},
		},
	)
	rec.ChangedParameters = []models.ParameterChange{{Timestamp: 1_200_000, Name: "MC_ROLL_P", OldValue: 6.5, NewValue: 7}}
	return rec
}

func TestDecodeFile_Msgpack(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeMsgpack(&buf, sampleRecording()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := createTestFileWithName(t, "flight.frec", buf.Bytes())

	rec, name, err := NewRegistry().DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if name != "msgpack" {
		t.Errorf("Expected msgpack decoder, got %s", name)
	}
	if rec.StartTimestamp != 1_000_000 || rec.LastTimestamp != 2_000_000 {
		t.Errorf("Unexpected span %d..%d", rec.StartTimestamp, rec.LastTimestamp)
	}
	if len(rec.Topics) != 2 {
		t.Fatalf("Expected 2 topics, got %d", len(rec.Topics))
	}
	// topics come back sorted by name
	if rec.Topics[0].Name != "battery_status" {
		t.Errorf("Expected battery_status first, got %s", rec.Topics[0].Name)
	}
	if len(rec.ChangedParameters) != 1 || rec.ChangedParameters[0].NewValue != 7 {
		t.Errorf("Unexpected parameter changes: %+v", rec.ChangedParameters)
	}
}

func TestDecodeFile_JSONBySniffing(t *testing.T) {
	data, err := json.Marshal(sampleRecording())
	if err != nil {
		t.Fatal(err)
	}
	path := createTestFileWithName(t, "export.bin", append([]byte("\n  "), data...))

	rec, name, err := NewRegistry().DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if name != "json" {
		t.Errorf("Expected json decoder, got %s", name)
	}
	if rec.Info["sys_name"] != "PX4" {
		t.Errorf("Expected info to survive, got %v", rec.Info)
	}
}

func TestDecodeFile_Gzip(t *testing.T) {
	var raw bytes.Buffer
	if err := EncodeMsgpack(&raw, sampleRecording()); err != nil {
		t.Fatal(err)
	}
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write(raw.Bytes())
	zw.Close()
	path := createTestFileWithName(t, "flight.frec.gz", gz.Bytes())

	rec, name, err := NewRegistry().DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if name != "msgpack" || len(rec.Topics) != 2 {
		t.Errorf("Unexpected result: decoder=%s topics=%d", name, len(rec.Topics))
	}
}

func TestDecodeFile_Unknown(t *testing.T) {
	path := createTestFileWithName(t, "notes.txt", []byte("hello world"))
	if _, _, err := NewRegistry().DecodeFile(path); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestCSVDecoder(t *testing.T) {
	content := `timestamp,topic,field,value
# comment
1000000,vehicle_attitude,rollspeed,0.1
1000000,vehicle_attitude,pitchspeed,0.2
1100000,vehicle_attitude,rollspeed,0.3
1100000,vehicle_attitude,yawspeed,0.5
1000000,battery_status[1],voltage_v,12.1
1000000,@param,MC_ROLL_P,6.5
1500000,@param,MC_ROLL_P,7
1200000,@message,WARNING,low battery, land now
1000000,@info,sys_name,PX4
`
	rec, err := NewCSVDecoder().Decode(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if rec.StartTimestamp != 1_000_000 || rec.LastTimestamp != 1_500_000 {
		t.Errorf("Unexpected span %d..%d", rec.StartTimestamp, rec.LastTimestamp)
	}

	att := rec.FindTopic("vehicle_attitude", 0)
	if att == nil {
		t.Fatal("Expected vehicle_attitude topic")
	}
	if att.Len() != 2 {
		t.Fatalf("Expected 2 samples, got %d", att.Len())
	}
	if att.Fields["rollspeed"][1] != 0.3 {
		t.Errorf("Expected rollspeed 0.3, got %v", att.Fields["rollspeed"][1])
	}
	if !math.IsNaN(att.Fields["pitchspeed"][1]) {
		t.Error("Expected missing pitchspeed sample to be NaN")
	}
	if !math.IsNaN(att.Fields["yawspeed"][0]) || att.Fields["yawspeed"][1] != 0.5 {
		t.Errorf("Expected backfilled yawspeed, got %v", att.Fields["yawspeed"])
	}

	if rec.FindTopic("battery_status", 1) == nil {
		t.Error("Expected battery_status instance 1")
	}

	if rec.InitialParameters["MC_ROLL_P"] != 6.5 {
		t.Errorf("Expected initial MC_ROLL_P 6.5, got %v", rec.InitialParameters["MC_ROLL_P"])
	}
	if len(rec.ChangedParameters) != 1 || rec.ChangedParameters[0].OldValue != 6.5 {
		t.Errorf("Unexpected changes: %+v", rec.ChangedParameters)
	}
	if len(rec.LoggedMessages) != 1 || rec.LoggedMessages[0].Message != "low battery, land now" {
		t.Errorf("Unexpected messages: %+v", rec.LoggedMessages)
	}
	if rec.Info["sys_name"] != "PX4" {
		t.Errorf("Expected sys_name info, got %v", rec.Info)
	}
}

func TestCSVDecoder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"short row", "1000,topic,field\n"},
		{"bad timestamp", "abc,topic,field,1\n"},
		{"bad value", "1000,topic,field,nope\n"},
		{"bad instance", "1000,topic[x],field,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCSVDecoder().Decode(strings.NewReader(tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestRegistry_GetDecoderByName(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetDecoderByName("CSV"); err != nil {
		t.Errorf("Expected csv decoder: %v", err)
	}
	if _, err := r.GetDecoderByName("ulog"); err == nil {
		t.Error("Expected error for unknown decoder")
	}
	if got := strings.Join(r.Names(), ","); got != "msgpack,json,csv" {
		t.Errorf("Unexpected decoder order %s", got)
	}
}
