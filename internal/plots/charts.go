package plots

import (
	"math"
	"strconv"

	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/schema"
)

const radToDeg = 180 / math.Pi

var gpsLabels = []string{
	"Horizontal position accuracy [m]",
	"Vertical position accuracy [m]",
	"Num Satellites used",
	"GPS Fix",
}

// positionChart is the local position track. The estimated track is
// required and must not be all zero; the other curves are optional.
func (b *Builder) positionChart() *Descriptor {
	c := &chart{d: &Descriptor{
		Title:       "Local Position",
		Category:    CategoryTrack,
		HeightClass: "large",
		XLabel:      "[m]",
		YLabel:      "[m]",
	}}
	if !b.addTrack(c, "vehicle_local_position", "Estimated", b.style.Colors2[0], true) {
		return nil
	}
	b.addTrack(c, "vehicle_local_position_setpoint", "Setpoint", b.style.Colors2[1], false)
	b.addTrack(c, "vehicle_local_position_groundtruth", "Groundtruth", b.style.ColorGray, false)
	if b.style.MapMode == config.MapModePlain {
		if s, ok := gpsTrack(b.primary.Rec, b.style.Colors8[len(b.style.Colors8)-1]); ok {
			c.add(s)
		}
	}
	return b.finalize(c)
}

// addTrack plots north (x) against east (y).
func (b *Builder) addTrack(c *chart, topic, label, color string, rejectAllZero bool) bool {
	if !b.primary.present() {
		return false
	}
	t := b.primary.Rec.FindTopic(topic, 0)
	if t == nil {
		return false
	}
	north, okX := t.Field("x")
	east, okY := t.Field("y")
	if !okX || !okY || !hasFinite(north) || !hasFinite(east) {
		return false
	}
	if rejectAllZero && allZero(north) && allZero(east) {
		return false
	}
	n := min(len(north), len(east))
	c.add(Series{Log: 1, Topic: topic, Field: "y,x", Label: label, Color: color, X: east[:n], Y: north[:n]})
	return true
}

func (b *Builder) magneticNormChart() *Descriptor {
	c := b.newTimeChart("Norm Magnetic Field", "small", "[Gauss]")
	colors := b.style.Colors3
	b.addMagNorm(c, 1, b.primary, "#1", colors[0])
	b.addMagNorm(c, 2, b.second, "#2", colors[2])
	return b.finalize(c)
}

func (b *Builder) addMagNorm(c *chart, logIdx int, src *Source, label, color string) {
	if !src.present() {
		return
	}
	res, ok := src.Signals.Lookup(schema.SignalMagnetometer)
	if !ok {
		return
	}
	t := src.Rec.FindTopic(res.Topic, 0)
	if t == nil {
		return
	}
	var comps [3][]float64
	for i, f := range res.Fields {
		v, ok := t.Field(f)
		if !ok {
			return
		}
		comps[i] = v
	}
	norm := Norm3(comps[0], comps[1], comps[2])
	if !hasFinite(norm) {
		return
	}
	c.add(Series{
		Log:   logIdx,
		Topic: res.Topic,
		Field: "len_mag",
		Label: label,
		Color: color,
		X:     timestamps(t, len(norm)),
		Y:     norm,
	})
}

func (b *Builder) gpsUncertaintyChart() *Descriptor {
	c := b.newTimeChart("GPS Uncertainty", "small", "")
	// accuracy values are huge without a fix
	c.d.YRange = &Range{Min: 0, Max: 40}
	fields := []string{"eph", "epv", "satellites_used", "fix_type"}
	c.addFields(1, b.primary, "vehicle_gps_position", fields, prefixed("#1", gpsLabels), everyOther(b.style.Colors8), 1)
	c.addFields(2, b.second, "vehicle_gps_position", fields, prefixed("#2", gpsLabels), everyOther(b.style.Colors8Extra), 1)
	return b.finalize(c)
}

func (b *Builder) altitudeChart() *Descriptor {
	c := b.newTimeChart("Altitude Estimate", "normal", "[m]")
	colors := b.style.Colors8
	if res, ok := b.primary.Signals.Lookup(schema.SignalBaroAltitude); ok {
		c.addFields(1, b.primary, res.Topic, res.Fields, []string{"Barometer Altitude"}, span(colors, 0, 1), 1)
	}
	if c.addFields(1, b.primary, "vehicle_gps_position", []string{"altitude_msl_m"}, []string{"GPS Altitude"}, span(colors, 1, 1), 1) == 0 {
		c.addFields(1, b.primary, "vehicle_gps_position", []string{"alt"}, []string{"GPS Altitude"}, span(colors, 1, 1), 0.001)
	}
	c.addFields(1, b.primary, "vehicle_global_position", []string{"alt"}, []string{"Fused Altitude Estimation"}, span(colors, 2, 1), 1)
	return b.finalize(c)
}

// rateChart plots one axis of the body rate. The estimate is required.
func (b *Builder) rateChart(axis string, idx int) *Descriptor {
	c := b.newTimeChart(axis+" Angular Rate", "normal", "[deg/s]")
	est, ok := b.primary.Signals.Lookup(schema.SignalRateEstimated)
	if !ok {
		return nil
	}
	colors := b.style.Colors3
	if c.addFields(1, b.primary, est.Topic, est.Fields[idx:idx+1], []string{axis + " Rate Estimated"}, span(colors, 0, 1), radToDeg) == 0 {
		return nil
	}
	sp := []string{"roll", "pitch", "yaw"}[idx]
	c.addFields(1, b.primary, "vehicle_rates_setpoint", []string{sp}, []string{axis + " Rate Setpoint"}, span(colors, 1, 1), radToDeg)
	if gt, ok := b.primary.Signals.Lookup(schema.SignalRateGroundtruth); ok {
		c.addFields(1, b.primary, gt.Topic, gt.Fields[idx:idx+1], []string{axis + " Rate Groundtruth"}, []string{b.style.ColorGray}, radToDeg)
	}
	return b.finalize(c)
}

func (b *Builder) manualSwitchesChart() *Descriptor {
	res, ok := b.primary.Signals.Lookup(schema.SignalManualControlSwitches)
	if !ok {
		return nil
	}
	c := b.newTimeChart("Manual Control Switches", "small", "")
	labels := []string{"Kill Switch", "Arm Switch", "Flight Mode Slot", "Return Switch", "Offboard Switch"}
	c.addFields(1, b.primary, res.Topic, res.Fields, labels, b.style.Colors8, 1)
	return b.finalize(c)
}

func (b *Builder) actuatorChart() *Descriptor {
	c := b.newTimeChart("Actuator Outputs", "normal", "")
	colors := b.style.Colors8
	if b.primary.Signals.Enabled(schema.SignalDynamicControlAllocation) {
		motors := indexed("control", 8)
		c.addFields(1, b.primary, "actuator_motors", motors, numbered("Motor", 8, 1), colors, 1)
		c.addFields(1, b.primary, "actuator_servos", motors, numbered("Servo", 8, 1), b.style.Colors8Extra, 1)
	} else {
		c.addFields(1, b.primary, "actuator_outputs", indexed("output", 8), numbered("Output", 8, 0), colors, 1)
	}
	return b.finalize(c)
}

func (b *Builder) airspeedChart() *Descriptor {
	c := b.newTimeChart("Airspeed", "small", "[m/s]")
	colors := b.style.Colors8
	c.addFields(1, b.primary, "airspeed_validated", []string{"true_airspeed_m_s"}, []string{"True Airspeed"}, span(colors, 0, 1), 1)
	c.addFields(1, b.primary, "tecs_status", []string{"true_airspeed_sp"}, []string{"TECS Airspeed Setpoint"}, span(colors, 1, 1), 1)
	return b.finalize(c)
}

func (b *Builder) powerChart() *Descriptor {
	c := b.newTimeChart("Power", "small", "[V]")
	colors := b.style.Colors8
	c.addFields(1, b.primary, "battery_status", []string{"voltage_v"}, []string{"Battery Voltage [V]"}, span(colors, 0, 1), 1)
	c.addFields(1, b.primary, "system_power", []string{"voltage5v_v", "sensors3v3[0]"},
		[]string{"5 V", "3.3 V Sensors"}, span(colors, 1, 2), 1)
	return b.finalize(c)
}

// span returns n colors starting at from, wrapping around the palette.
func span(colors []string, from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = colors[(from+i)%len(colors)]
	}
	return out
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func indexed(name string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = name + "[" + strconv.Itoa(i) + "]"
	}
	return out
}

func numbered(name string, n, base int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = name + " " + strconv.Itoa(i+base)
	}
	return out
}
