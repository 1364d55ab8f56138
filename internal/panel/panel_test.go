package panel

import (
	"errors"
	"testing"

	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/rislab/flight-review/internal/plots"
	"github.com/rislab/flight-review/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(items []Item) []ItemKind {
	out := make([]ItemKind, len(items))
	for i, it := range items {
		out[i] = it.Kind
	}
	return out
}

func TestCompose_NoPrimary(t *testing.T) {
	r := testutil.NewFakeRenderer()
	_, err := Compose(nil, testutil.CurrentSchemaRecording(), nil, r)
	assert.True(t, errors.Is(err, ErrNoPrimaryRecording))
	assert.Empty(t, r.Rendered, "no chart may be built")
}

func TestCompose_Malformed(t *testing.T) {
	tests := []struct {
		name string
		rec  *models.LogRecording
	}{
		{"no topics", models.NewLogRecording(0, 100)},
		{"empty span", testutil.NewRecording(100, 100).Topic("a", []uint64{100}, map[string][]float64{"v": {1}}).Build()},
		{"ragged field", testutil.NewRecording(0, 100).Topic("a", []uint64{1}, map[string][]float64{"v": {1, 2}}).Build()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutil.NewFakeRenderer()
			_, err := Compose(tt.rec, nil, nil, r)
			assert.True(t, errors.Is(err, ErrMalformedRecording), "got %v", err)
			assert.Empty(t, r.Rendered)
		})
	}
}

func TestCompose_ToggleSubstitution(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	p, err := Compose(rec, nil, config.DefaultPlotStyle(), testutil.NewFakeRenderer())
	require.NoError(t, err)

	require.NotNil(t, p.Toggle)
	assert.Equal(t, overlay.StateShown, p.Toggle.State())
	assert.Equal(t, ItemChart, p.Items[0].Kind)
	assert.Equal(t, "Local Position", p.Items[0].Chart.Title)
	assert.Equal(t, ItemToggle, p.Items[1].Kind)
	assert.Equal(t, 831, p.Items[1].Width)
	for _, it := range p.Items[2:] {
		assert.Equal(t, ItemChart, it.Kind)
	}

	// every time-series chart's annotation is registered
	var annotated int
	for _, d := range p.Charts() {
		if d.Annotation != nil {
			annotated++
		}
	}
	assert.Equal(t, annotated, len(p.Toggle.Annotations()))
	assert.Equal(t, len(p.Charts())-1, annotated)
}

func TestCompose_ReplaySuppressesParameterChanges(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	rec.Info["replay"] = "replay.ulg"

	p, err := Compose(rec, nil, nil, testutil.NewFakeRenderer())
	require.NoError(t, err)
	assert.Nil(t, p.Toggle)
	assert.NotContains(t, kinds(p.Items), ItemToggle)
	for _, d := range p.Charts() {
		assert.Nil(t, d.Annotation)
	}
}

func TestCompose_NoChangesNoToggle(t *testing.T) {
	rec := testutil.CurrentSchemaRecording()
	rec.ChangedParameters = nil

	p, err := Compose(rec, nil, nil, testutil.NewFakeRenderer())
	require.NoError(t, err)
	assert.Nil(t, p.Toggle)
	assert.NotContains(t, kinds(p.Items), ItemToggle)
}

func TestCompose_PendingDroppedWithoutAnnotatedCharts(t *testing.T) {
	rec := testutil.NewRecording(0, 1000).
		Topic("vehicle_local_position", []uint64{0, 500}, map[string][]float64{"x": {1, 2}, "y": {1, 2}}).
		ParamChange(100, "P", 0, 1).
		Build()

	p, err := Compose(rec, nil, nil, testutil.NewFakeRenderer())
	require.NoError(t, err)
	assert.Nil(t, p.Toggle)
	assert.Equal(t, []ItemKind{ItemChart}, kinds(p.Items))
}

func TestCompose_ManifestMatchesCharts(t *testing.T) {
	p, err := Compose(testutil.CurrentSchemaRecording(), testutil.LegacySchemaRecording(), nil, testutil.NewFakeRenderer())
	require.NoError(t, err)

	charts := p.Charts()
	require.Len(t, p.Manifest, len(charts))
	for i, d := range charts {
		assert.Equal(t, d.ID, p.Manifest[i].ModelID)
		assert.Equal(t, d.Title, p.Manifest[i].Title)
		assert.Equal(t, plots.Anchor(d.Title), p.Manifest[i].Fragment)
	}
}

func TestCompose_DoesNotMutateInputs(t *testing.T) {
	legacy := testutil.LegacySchemaRecording()
	current := testutil.CurrentSchemaRecording()
	legacyBefore, currentBefore := legacy.Clone(), current.Clone()

	_, err := Compose(legacy, current, nil, testutil.NewFakeRenderer())
	require.NoError(t, err)
	assert.Equal(t, legacyBefore, legacy)
	assert.Equal(t, currentBefore, current)

	power := legacy.FindTopic("system_power", 0)
	_, ok := power.Field("voltage5V_v")
	assert.True(t, ok)
}

func TestCompose_MinimalPalette(t *testing.T) {
	style := config.DefaultPlotStyle()
	style.Colors8 = style.Colors8[:config.MinColors8]
	style.Colors8Extra = style.Colors8Extra[:1]
	require.NoError(t, style.Validate())

	full, err := Compose(testutil.CurrentSchemaRecording(), testutil.LegacySchemaRecording(), nil, testutil.NewFakeRenderer())
	require.NoError(t, err)

	var p *Panel
	require.NotPanics(t, func() {
		p, err = Compose(testutil.CurrentSchemaRecording(), testutil.LegacySchemaRecording(), style, testutil.NewFakeRenderer())
	})
	require.NoError(t, err)
	assert.Equal(t, full.Manifest, p.Manifest)
}

func TestCompose_InvalidStyle(t *testing.T) {
	style := config.DefaultPlotStyle()
	style.Colors8 = []string{"#111111"}
	r := testutil.NewFakeRenderer()

	_, err := Compose(testutil.CurrentSchemaRecording(), nil, style, r)
	assert.True(t, errors.Is(err, ErrInvalidStyle))
	assert.Empty(t, r.Rendered)
}

func TestCompose_Supplementary(t *testing.T) {
	p, err := Compose(testutil.CurrentSchemaRecording(), nil, nil, testutil.NewFakeRenderer())
	require.NoError(t, err)
	assert.Len(t, p.Supplementary.ChangedParameters, 3)
	assert.NotEmpty(t, p.Supplementary.AdditionalHTML)
}

func TestCompose_ToggleFlipsAllCharts(t *testing.T) {
	p, err := Compose(testutil.CurrentSchemaRecording(), nil, nil, testutil.NewFakeRenderer())
	require.NoError(t, err)

	p.Toggle.Toggle()
	for _, d := range p.Charts() {
		if d.Annotation == nil {
			continue
		}
		assert.False(t, d.Annotation.Visible())
		assert.Equal(t, 0.0, d.Annotation.Opacity())
	}
	assert.Equal(t, overlay.LabelShow, p.Toggle.Label())
}
