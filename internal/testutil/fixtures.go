// fixtures.go - Recording fixtures for tests
package testutil

import (
	"github.com/rislab/flight-review/internal/models"
)

// RecordingBuilder assembles LogRecording fixtures.
type RecordingBuilder struct {
	rec *models.LogRecording
}

// NewRecording starts a recording spanning [start, last] microseconds.
func NewRecording(start, last uint64) *RecordingBuilder {
	return &RecordingBuilder{rec: models.NewLogRecording(start, last)}
}

// Topic adds a topic instance 0.
func (b *RecordingBuilder) Topic(name string, ts []uint64, fields map[string][]float64) *RecordingBuilder {
	return b.TopicInstance(name, 0, ts, fields)
}

// TopicInstance adds a topic with an explicit instance id.
func (b *RecordingBuilder) TopicInstance(name string, multiID int, ts []uint64, fields map[string][]float64) *RecordingBuilder {
	b.rec.Topics = append(b.rec.Topics, models.Topic{
		Name:       name,
		MultiID:    multiID,
		Timestamps: ts,
		Fields:     fields,
	})
	return b
}

// Info sets a single-valued info key.
func (b *RecordingBuilder) Info(key, value string) *RecordingBuilder {
	b.rec.Info[key] = value
	return b
}

// InfoMultiple appends one multi-valued info message.
func (b *RecordingBuilder) InfoMultiple(key string, lines ...string) *RecordingBuilder {
	b.rec.InfoMultiple[key] = append(b.rec.InfoMultiple[key], lines)
	return b
}

// ParamChange appends a parameter change.
func (b *RecordingBuilder) ParamChange(ts uint64, name string, oldValue, newValue float64) *RecordingBuilder {
	b.rec.ChangedParameters = append(b.rec.ChangedParameters, models.ParameterChange{
		Timestamp: ts,
		Name:      name,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
	return b
}

// Message appends a logged message.
func (b *RecordingBuilder) Message(ts uint64, level, text string) *RecordingBuilder {
	b.rec.LoggedMessages = append(b.rec.LoggedMessages, models.LoggedMessage{Timestamp: ts, Level: level, Message: text})
	return b
}

// Build returns the recording.
func (b *RecordingBuilder) Build() *models.LogRecording {
	return b.rec
}

// Timestamps returns n evenly spaced timestamps starting at start.
func Timestamps(start, step uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = start + uint64(i)*step
	}
	return out
}

// Constant returns n copies of v.
func Constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Ramp returns n values from start with increment step.
func Ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// CurrentSchemaRecording is a flight using current topic names.
func CurrentSchemaRecording() *models.LogRecording {
	ts := Timestamps(1_000_000, 100_000, 10)
	return NewRecording(1_000_000, 2_000_000).
		Topic("vehicle_local_position", ts, map[string][]float64{
			"x":       Ramp(0, 1, 10),
			"y":       Ramp(0, 2, 10),
			"ref_lat": Constant(47.39, 10),
			"ref_lon": Constant(8.54, 10),
		}).
		Topic("vehicle_local_position_setpoint", ts, map[string][]float64{
			"x": Ramp(0, 1, 10),
			"y": Ramp(0, 2, 10),
		}).
		Topic("vehicle_magnetometer", ts, map[string][]float64{
			"magnetometer_ga[0]": Constant(3, 10),
			"magnetometer_ga[1]": Constant(4, 10),
			"magnetometer_ga[2]": Constant(0, 10),
		}).
		Topic("vehicle_air_data", ts, map[string][]float64{
			"baro_alt_meter": Ramp(400, 1, 10),
		}).
		Topic("vehicle_gps_position", ts, map[string][]float64{
			"eph":             Constant(0.8, 10),
			"epv":             Constant(1.2, 10),
			"satellites_used": Constant(14, 10),
			"fix_type":        Constant(3, 10),
			"latitude_deg":    Constant(47.39, 10),
			"longitude_deg":   Ramp(8.54, 0.00001, 10),
			"altitude_msl_m":  Ramp(480, 1, 10),
		}).
		Topic("vehicle_angular_velocity", ts, map[string][]float64{
			"xyz[0]": Constant(0.1, 10),
			"xyz[1]": Constant(0.2, 10),
			"xyz[2]": Constant(0.3, 10),
		}).
		Topic("vehicle_rates_setpoint", ts, map[string][]float64{
			"roll":  Constant(0.1, 10),
			"pitch": Constant(0.2, 10),
			"yaw":   Constant(0.3, 10),
		}).
		Topic("manual_control_switches", ts, map[string][]float64{
			"kill_switch": Constant(0, 10),
			"arm_switch":  Constant(1, 10),
			"mode_slot":   Constant(2, 10),
		}).
		Topic("actuator_motors", ts, map[string][]float64{
			"control[0]": Constant(0.5, 10),
			"control[1]": Constant(0.5, 10),
			"control[2]": Constant(0.5, 10),
			"control[3]": Constant(0.5, 10),
		}).
		Topic("system_power", ts, map[string][]float64{
			"voltage5v_v":   Constant(5.0, 10),
			"sensors3v3[0]": Constant(3.3, 10),
		}).
		Topic("battery_status", ts, map[string][]float64{
			"voltage_v": Ramp(16.8, -0.01, 10),
		}).
		ParamChange(1_200_000, "MC_ROLL_P", 6.5, 7.0).
		ParamChange(1_200_000, "MC_PITCH_P", 6.5, 7.0).
		ParamChange(1_600_000, "MPC_XY_VEL_MAX", 12, 8.5).
		Message(1_100_000, "INFO", "Takeoff detected").
		Message(1_900_000, "WARNING", "Low battery <15%>").
		Info("sys_name", "PX4").
		InfoMultiple("boot_console_output", "NuttShell (NSH)\n", "nsh> <ok>\n").
		InfoMultiple("perf_top_preflight", "PID COMMAND", "0 Idle Task").
		Build()
}

// LegacySchemaRecording is a flight using pre-rename topic and field names.
func LegacySchemaRecording() *models.LogRecording {
	ts := Timestamps(0, 250_000, 5)
	return NewRecording(0, 1_000_000).
		Topic("vehicle_local_position", ts, map[string][]float64{
			"x": Ramp(0, 1, 5),
			"y": Ramp(0, 1, 5),
		}).
		Topic("sensor_combined", ts, map[string][]float64{
			"magnetometer_ga[0]": Constant(0.2, 5),
			"magnetometer_ga[1]": Constant(0.1, 5),
			"magnetometer_ga[2]": Constant(0.4, 5),
			"baro_alt_meter":     Ramp(100, 1, 5),
		}).
		Topic("vehicle_attitude", ts, map[string][]float64{
			"rollspeed":  Constant(0.1, 5),
			"pitchspeed": Constant(0.1, 5),
			"yawspeed":   Constant(0.1, 5),
		}).
		Topic("manual_control_setpoint", ts, map[string][]float64{
			"kill_switch": Constant(0, 5),
		}).
		Topic("actuator_outputs", ts, map[string][]float64{
			"output[0]": Constant(1500, 5),
		}).
		Topic("system_power", ts, map[string][]float64{
			"voltage5V_v":  Constant(5.0, 5),
			"voltage3V3_v": Constant(3.3, 5),
		}).
		Topic("tecs_status", ts, map[string][]float64{
			"airspeed_sp": Constant(15, 5),
		}).
		Build()
}
