// Package schema maps logical flight signals to the topic and field names used
// by a recording's firmware schema revision.
package schema

// Logical signal names.
const (
	SignalBaroAltitude             = "baro_altitude"
	SignalMagnetometer             = "magnetometer"
	SignalRateEstimated            = "rate_estimated"
	SignalRateGroundtruth          = "rate_groundtruth"
	SignalManualControlSwitches    = "manual_control_switches"
	SignalDynamicControlAllocation = "dynamic_control_allocation"
)

// Candidate is one schema revision's spelling of a logical signal.
type Candidate struct {
	// Probe lists topics whose presence selects this candidate. Empty means
	// the candidate's own Topic. A selected candidate whose Topic is absent
	// leaves the signal unresolved; later candidates are not tried.
	Probe  []string
	Topic  string
	Fields []string
}

func (c Candidate) probes() []string {
	if len(c.Probe) == 0 {
		return []string{c.Topic}
	}
	return c.Probe
}

// Alias is a logical signal with its candidates ordered newest schema first.
type Alias struct {
	Name       string
	Candidates []Candidate
	// Flag marks a boolean signal: a matching probe is enough and the
	// candidate's Topic need not be present.
	Flag bool
}

var (
	airDataProbe   = []string{"vehicle_air_data", "vehicle_magnetometer"}
	rateXYZ        = []string{"xyz[0]", "xyz[1]", "xyz[2]"}
	rateLegacy     = []string{"rollspeed", "pitchspeed", "yawspeed"}
	magFields      = []string{"magnetometer_ga[0]", "magnetometer_ga[1]", "magnetometer_ga[2]"}
	switchFields   = []string{"kill_switch", "arm_switch", "mode_slot", "return_switch", "offboard_switch"}
	actuatorProbes = []string{"actuator_motors", "actuator_servos"}
)

// Aliases is the resolution table for every logical signal.
var Aliases = []Alias{
	{
		Name: SignalBaroAltitude,
		Candidates: []Candidate{
			{Probe: airDataProbe, Topic: "vehicle_air_data", Fields: []string{"baro_alt_meter"}},
			{Topic: "sensor_combined", Fields: []string{"baro_alt_meter"}},
		},
	},
	{
		Name: SignalMagnetometer,
		Candidates: []Candidate{
			{Probe: airDataProbe, Topic: "vehicle_magnetometer", Fields: magFields},
			{Topic: "sensor_combined", Fields: magFields},
		},
	},
	{
		// The three rate fields change spelling together.
		Name: SignalRateEstimated,
		Candidates: []Candidate{
			{Topic: "vehicle_angular_velocity", Fields: rateXYZ},
			{Topic: "vehicle_attitude", Fields: rateLegacy},
		},
	},
	{
		Name: SignalRateGroundtruth,
		Candidates: []Candidate{
			{Probe: []string{"vehicle_angular_velocity"}, Topic: "vehicle_angular_velocity_groundtruth", Fields: rateXYZ},
			{Probe: []string{"vehicle_attitude"}, Topic: "vehicle_attitude_groundtruth", Fields: rateLegacy},
		},
	},
	{
		Name: SignalManualControlSwitches,
		Candidates: []Candidate{
			{Topic: "manual_control_switches", Fields: switchFields},
			{Topic: "manual_control_setpoint", Fields: switchFields},
		},
	},
	{
		Name: SignalDynamicControlAllocation,
		Flag: true,
		Candidates: []Candidate{
			{Probe: actuatorProbes, Topic: "actuator_motors", Fields: []string{"control[0]", "control[1]", "control[2]", "control[3]"}},
		},
	},
}
