package schema

import "github.com/rislab/flight-review/internal/models"

// FieldRename maps a deprecated field key to its current spelling.
type FieldRename struct {
	Topic string
	From  string
	To    string
}

// LegacyRenames are applied in order.
var LegacyRenames = []FieldRename{
	{Topic: "system_power", From: "voltage5V_v", To: "voltage5v_v"},
	{Topic: "system_power", From: "voltage3V3_v", To: "sensors3v3[0]"},
	{Topic: "system_power", From: "voltage3v3_v", To: "sensors3v3[0]"},
	{Topic: "tecs_status", From: "airspeed_sp", To: "true_airspeed_sp"},
}

// Normalize returns a view of rec in which deprecated field keys carry their
// current names. rec is not modified; sample slices are shared with it.
//
// When a topic already carries the current key, the current key is kept and
// the deprecated one is dropped. When two deprecated keys map to the same
// current key, the later rename in the table wins.
func Normalize(rec *models.LogRecording) *models.LogRecording {
	return NormalizeWith(LegacyRenames, rec)
}

// NormalizeWith is Normalize with an explicit rename table.
func NormalizeWith(renames []FieldRename, rec *models.LogRecording) *models.LogRecording {
	if rec == nil {
		return nil
	}
	out := *rec
	out.Topics = make([]models.Topic, len(rec.Topics))
	copy(out.Topics, rec.Topics)

	for i := range out.Topics {
		t := &out.Topics[i]
		copied := false
		// keys filled by a rename in this pass, as opposed to logged ones
		renamed := make(map[string]bool)
		for _, rn := range renames {
			if rn.Topic != t.Name {
				continue
			}
			v, ok := t.Fields[rn.From]
			if !ok {
				continue
			}
			if !copied {
				t.Fields = copyFields(t.Fields)
				copied = true
			}
			delete(t.Fields, rn.From)
			if _, exists := t.Fields[rn.To]; !exists || renamed[rn.To] {
				t.Fields[rn.To] = v
				renamed[rn.To] = true
			}
		}
	}
	return &out
}

func copyFields(in map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
