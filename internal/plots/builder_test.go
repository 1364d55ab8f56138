package plots_test

import (
	"math"
	"testing"

	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/plots"
	"github.com/rislab/flight-review/internal/schema"
	"github.com/rislab/flight-review/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T, primary, second *models.LogRecording, changes []models.ParameterChange) (*plots.Builder, *testutil.FakeRenderer) {
	t.Helper()
	w, err := plots.ComputeWindow(primary)
	require.NoError(t, err)
	r := testutil.NewFakeRenderer()
	var src2 *plots.Source
	if second != nil {
		src2 = plots.NewSource(schema.Normalize(second))
	}
	b := plots.NewBuilder(config.DefaultPlotStyle(), r, w, plots.NewSource(schema.Normalize(primary)), src2, changes)
	return b, r
}

func chartTitles(slots []plots.Slot) []string {
	var out []string
	for _, s := range slots {
		if s.Pending {
			out = append(out, "<pending>")
			continue
		}
		out = append(out, s.Chart.Title)
	}
	return out
}

func findChart(slots []plots.Slot, title string) *plots.Descriptor {
	for _, s := range slots {
		if s.Chart != nil && s.Chart.Title == title {
			return s.Chart
		}
	}
	return nil
}

func TestBuild_FixedOrder(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	b, _ := newBuilder(t, rec, nil, rec.ChangedParameters)

	slots := b.Build()
	assert.Equal(t, []string{
		"Local Position",
		"<pending>",
		"Norm Magnetic Field",
		"GPS Uncertainty",
		"Altitude Estimate",
		"Roll Angular Rate",
		"Pitch Angular Rate",
		"Yaw Angular Rate",
		"Manual Control Switches",
		"Actuator Outputs",
		"Power",
	}, chartTitles(slots))
}

func TestBuild_NoChangesNoPending(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	b, _ := newBuilder(t, rec, nil, nil)

	for _, s := range b.Build() {
		assert.False(t, s.Pending)
		assert.Nil(t, s.Chart.Annotation)
	}
}

func TestBuild_MissingPositionIsOmitted(t *testing.T) {
	rec := testutil.NewRecording(0, 1000).
		Topic("vehicle_magnetometer", []uint64{0, 500}, map[string][]float64{
			"magnetometer_ga[0]": {3, 3},
			"magnetometer_ga[1]": {4, 4},
			"magnetometer_ga[2]": {0, 0},
		}).
		Build()
	b, _ := newBuilder(t, rec, nil, []models.ParameterChange{{Timestamp: 100, Name: "P", NewValue: 1}})

	slots := b.Build()
	// the placeholder still sits where the position step ran
	assert.Equal(t, []string{"<pending>", "Norm Magnetic Field"}, chartTitles(slots))
}

func TestBuild_AllZeroPositionIsOmitted(t *testing.T) {
	rec := testutil.NewRecording(0, 1000).
		Topic("vehicle_local_position", []uint64{0, 500}, map[string][]float64{"x": {0, 0}, "y": {0, 0}}).
		Topic("vehicle_local_position_setpoint", []uint64{0, 500}, map[string][]float64{"x": {1, 2}, "y": {1, 2}}).
		Build()
	b, r := newBuilder(t, rec, nil, nil)

	assert.Empty(t, b.Build())
	assert.Empty(t, r.Rendered)
}

func TestBuild_PositionOptionalCurves(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	b, _ := newBuilder(t, rec, nil, nil)

	pos := findChart(b.Build(), "Local Position")
	require.NotNil(t, pos)
	assert.Equal(t, plots.CategoryTrack, pos.Category)
	assert.Nil(t, pos.XRange)

	var labels []string
	for _, s := range pos.Series {
		labels = append(labels, s.Label)
	}
	// no groundtruth topic in the fixture
	assert.Equal(t, []string{"Estimated", "Setpoint", "GPS"}, labels)
}

func TestBuild_GapOnlyRateEstimateDropsChart(t *testing.T) {
	nan := math.NaN()
	rec := testutil.NewRecording(0, 1000).
		Topic("vehicle_angular_velocity", []uint64{0, 500, 1000}, map[string][]float64{
			"xyz[0]": {nan, nan, nan},
			"xyz[1]": {0.1, nan, 0.2},
			"xyz[2]": {0.1, 0.2, 0.3},
		}).
		Build()
	b, r := newBuilder(t, rec, nil, nil)

	assert.Equal(t, []string{"Pitch Angular Rate", "Yaw Angular Rate"}, chartTitles(b.Build()))
	assert.Len(t, r.Rendered, 2)
}

func TestBuild_GapOnlyPositionIsOmitted(t *testing.T) {
	nan := math.NaN()
	rec := testutil.NewRecording(0, 1000).
		Topic("vehicle_local_position", []uint64{0, 500}, map[string][]float64{"x": {nan, nan}, "y": {nan, nan}}).
		Build()
	b, _ := newBuilder(t, rec, nil, nil)

	assert.Empty(t, b.Build())
}

func TestBuild_ShortPalettesWrap(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	w, err := plots.ComputeWindow(rec)
	require.NoError(t, err)
	style := config.DefaultPlotStyle()
	style.Colors8 = []string{"#111111"}
	style.Colors8Extra = []string{"#222222"}

	b := plots.NewBuilder(style, testutil.NewFakeRenderer(), w,
		plots.NewSource(schema.Normalize(rec)),
		plots.NewSource(schema.Normalize(testutil.CurrentSchemaRecording())), nil)

	var slots []plots.Slot
	require.NotPanics(t, func() { slots = b.Build() })

	alt := findChart(slots, "Altitude Estimate")
	require.NotNil(t, alt)
	for _, s := range alt.Series {
		assert.Equal(t, "#111111", s.Color)
	}
	gps := findChart(slots, "GPS Uncertainty")
	require.NotNil(t, gps)
	require.NotEmpty(t, gps.Secondary)
	for _, s := range gps.Secondary {
		assert.Equal(t, "#222222", s.Color)
	}
}

func TestBuild_MapOverlayOff(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	w, _ := plots.ComputeWindow(rec)
	style := config.DefaultPlotStyle()
	style.MapMode = config.MapModeOff
	b := plots.NewBuilder(style, testutil.NewFakeRenderer(), w, plots.NewSource(rec), nil, nil)

	pos := findChart(b.Build(), "Local Position")
	require.NotNil(t, pos)
	for _, s := range pos.Series {
		assert.NotEqual(t, "GPS", s.Label)
	}
}

func TestBuild_MagneticNorm(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	b, _ := newBuilder(t, rec, nil, nil)

	mag := findChart(b.Build(), "Norm Magnetic Field")
	require.NotNil(t, mag)
	require.Len(t, mag.Series, 1)
	s := mag.Series[0]
	assert.Equal(t, "len_mag", s.Field)
	assert.Equal(t, "#1", s.Label)
	assert.Equal(t, 1_000_000.0, s.X[0])
	for _, v := range s.Y {
		assert.InDelta(t, 5.0, v, 1e-12)
	}
	assert.Empty(t, mag.Secondary)
}

func TestBuild_LegacySchema(t *testing.T) {
	rec := testutil.LegacySchemaRecording()
	b, _ := newBuilder(t, rec, nil, nil)
	slots := b.Build()

	mag := findChart(slots, "Norm Magnetic Field")
	require.NotNil(t, mag)
	assert.Equal(t, "sensor_combined", mag.Series[0].Topic)

	roll := findChart(slots, "Roll Angular Rate")
	require.NotNil(t, roll)
	assert.Equal(t, "vehicle_attitude", roll.Series[0].Topic)
	assert.Equal(t, "rollspeed", roll.Series[0].Field)

	act := findChart(slots, "Actuator Outputs")
	require.NotNil(t, act)
	assert.Equal(t, "actuator_outputs", act.Series[0].Topic)

	power := findChart(slots, "Power")
	require.NotNil(t, power)
	var fields []string
	for _, s := range power.Series {
		fields = append(fields, s.Field)
	}
	assert.Equal(t, []string{"voltage5v_v", "sensors3v3[0]"}, fields)

	air := findChart(slots, "Airspeed")
	require.NotNil(t, air)
	assert.Equal(t, "true_airspeed_sp", air.Series[0].Field)

	assert.Nil(t, findChart(slots, "GPS Uncertainty"))
}

func TestBuild_DualLogOverlay(t *testing.T) {
	rec1 := testutil.CurrentSchemaRecording()
	rec2 := testutil.CurrentSchemaRecording()
	b, r := newBuilder(t, rec1, rec2, nil)
	slots := b.Build()

	for _, title := range []string{"Norm Magnetic Field", "GPS Uncertainty"} {
		d := findChart(slots, title)
		require.NotNil(t, d, title)
		require.NotEmpty(t, d.Secondary, title)

		primary := map[string]bool{}
		for _, s := range d.Series {
			assert.Equal(t, 1, s.Log)
			assert.Regexp(t, `^#1`, s.Label)
			primary[s.Color] = true
		}
		for _, s := range d.Secondary {
			assert.Equal(t, 2, s.Log)
			assert.Regexp(t, `^#2`, s.Label)
			assert.False(t, primary[s.Color], "%s: color %s used by both logs", title, s.Color)
		}
	}

	// both logs share one rendered object per chart
	assert.Len(t, r.Rendered, len(slots))
}

func TestBuild_SecondLogWithoutData(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	b, _ := newBuilder(t, rec, models.NewLogRecording(0, 0), nil)

	gps := findChart(b.Build(), "GPS Uncertainty")
	require.NotNil(t, gps)
	assert.Len(t, gps.Series, 4)
	assert.Empty(t, gps.Secondary)
	assert.Equal(t, &plots.Range{Min: 0, Max: 40}, gps.YRange)
}

func TestBuild_SharedWindowAndAnnotations(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	b, _ := newBuilder(t, rec, nil, rec.ChangedParameters)
	want, _ := plots.ComputeWindow(rec)

	for _, s := range b.Build() {
		if s.Pending || s.Chart.Category != plots.CategoryTimeSeries {
			continue
		}
		require.NotNil(t, s.Chart.XRange)
		assert.Equal(t, want, *s.Chart.XRange)
		require.NotNil(t, s.Chart.Annotation, s.Chart.Title)
		assert.Equal(t, s.Chart.ID, s.Chart.Annotation.ChartID())
		assert.Len(t, s.Chart.Annotation.Markers(), 2)
	}
}

func TestBuild_RenderFailureDropsChart(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	w, _ := plots.ComputeWindow(rec)
	r := testutil.NewFakeRenderer()
	r.FailTitles["GPS Uncertainty"] = true
	b := plots.NewBuilder(config.DefaultPlotStyle(), r, w, plots.NewSource(rec), nil, nil)

	slots := b.Build()
	assert.Nil(t, findChart(slots, "GPS Uncertainty"))
	assert.NotNil(t, findChart(slots, "Norm Magnetic Field"))
}

func TestParameterMarkers(t *testing.T) {
	changes := []models.ParameterChange{
		{Timestamp: 300, Name: "B", NewValue: 2.5},
		{Timestamp: 100, Name: "A", NewValue: 1},
		{Timestamp: 300, Name: "C", NewValue: -3},
		{Timestamp: 5000, Name: "OUT", NewValue: 1},
	}
	m := plots.ParameterMarkers(changes, models.TimeWindow{Start: 0, End: 1000})
	require.Len(t, m, 2)
	assert.Equal(t, plots.Marker{Timestamp: 100, Text: "A: 1"}, m[0])
	assert.Equal(t, plots.Marker{Timestamp: 300, Text: "B: 2.5\nC: -3"}, m[1])
}
