package plots

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/rislab/flight-review/internal/schema"
	"github.com/rs/zerolog/log"
)

// Source is one recording together with its resolved schema.
type Source struct {
	Rec     *models.LogRecording
	Signals schema.SignalMap
}

// NewSource resolves rec's schema. rec is expected to be normalized.
func NewSource(rec *models.LogRecording) *Source {
	return &Source{Rec: rec, Signals: schema.Resolve(rec)}
}

func (s *Source) present() bool {
	return s != nil && s.Rec != nil && len(s.Rec.Topics) > 0
}

// Builder produces the chart descriptors of one rendering pass.
type Builder struct {
	style    *config.PlotStyle
	renderer Renderer
	window   models.TimeWindow
	primary  *Source
	second   *Source
	changes  []models.ParameterChange
}

// NewBuilder creates a builder for the primary source and an optional second
// source. changes are the parameter changes to annotate; nil disables them.
func NewBuilder(style *config.PlotStyle, renderer Renderer, window models.TimeWindow,
	primary, second *Source, changes []models.ParameterChange) *Builder {
	return &Builder{
		style:    style,
		renderer: renderer,
		window:   window,
		primary:  primary,
		second:   second,
		changes:  changes,
	}
}

// ShowsParameterChanges reports whether charts get parameter-change annotations.
func (b *Builder) ShowsParameterChanges() bool {
	return len(b.changes) > 0
}

// Build returns the ordered slots. A pending slot follows the position chart
// step when parameter changes are shown.
func (b *Builder) Build() []Slot {
	var slots []Slot
	appendChart := func(d *Descriptor) {
		if d != nil {
			slots = append(slots, Slot{Chart: d})
		}
	}

	appendChart(b.positionChart())
	if b.ShowsParameterChanges() {
		slots = append(slots, Slot{Pending: true})
	}

	for _, build := range []func() *Descriptor{
		b.magneticNormChart,
		b.gpsUncertaintyChart,
		b.altitudeChart,
		func() *Descriptor { return b.rateChart("Roll", 0) },
		func() *Descriptor { return b.rateChart("Pitch", 1) },
		func() *Descriptor { return b.rateChart("Yaw", 2) },
		b.manualSwitchesChart,
		b.actuatorChart,
		b.airspeedChart,
		b.powerChart,
	} {
		appendChart(build())
	}
	return slots
}

// chart accumulates series for one descriptor.
type chart struct {
	d *Descriptor
}

func (b *Builder) newTimeChart(title, heightClass, yLabel string) *chart {
	w := b.window
	return &chart{d: &Descriptor{
		Title:       title,
		Category:    CategoryTimeSeries,
		HeightClass: heightClass,
		XLabel:      "Time",
		YLabel:      yLabel,
		XRange:      &w,
	}}
}

func (c *chart) add(s Series) {
	if s.Log == 2 {
		c.d.Secondary = append(c.d.Secondary, s)
		return
	}
	c.d.Series = append(c.d.Series, s)
}

func (c *chart) hasPrimary() bool {
	return len(c.d.Series) > 0
}

// addFields adds one series per existing field of topic. It returns the
// number of series added.
func (c *chart) addFields(logIdx int, src *Source, topic string, fields, labels, colors []string, scale float64) int {
	if !src.present() {
		return 0
	}
	t := src.Rec.FindTopic(topic, 0)
	if t == nil || t.Len() == 0 {
		return 0
	}
	n := 0
	for i, f := range fields {
		y, ok := t.Field(f)
		if !ok || !hasFinite(y) {
			continue
		}
		c.add(Series{
			Log:   logIdx,
			Topic: topic,
			Field: f,
			Label: labels[i],
			Color: colors[i%len(colors)],
			X:     timestamps(t, len(y)),
			Y:     scaled(y, scale),
		})
		n++
	}
	return n
}

// finalize renders the chart, attaching parameter-change annotations to
// time-aligned charts. It returns nil when the chart has no usable data.
func (b *Builder) finalize(c *chart) *Descriptor {
	if !c.hasPrimary() {
		log.Debug().Str("component", "plots").Str("chart", c.d.Title).Msg("chart skipped: no data")
		return nil
	}
	id, err := b.renderer.Render(c.d)
	if err != nil {
		log.Warn().Str("component", "plots").Str("chart", c.d.Title).Err(err).Msg("chart skipped: render failed")
		return nil
	}
	c.d.ID = id
	if c.d.Category == CategoryTimeSeries && b.ShowsParameterChanges() {
		c.d.Annotation = overlay.NewAnnotation(id, ParameterMarkers(b.changes, b.window))
	}
	return c.d
}

// ParameterMarkers groups parameter changes inside the window by timestamp.
func ParameterMarkers(changes []models.ParameterChange, w models.TimeWindow) []Marker {
	byTime := make(map[uint64][]string)
	var order []uint64
	for _, pc := range changes {
		if !w.Contains(float64(pc.Timestamp)) {
			continue
		}
		if _, ok := byTime[pc.Timestamp]; !ok {
			order = append(order, pc.Timestamp)
		}
		byTime[pc.Timestamp] = append(byTime[pc.Timestamp], fmt.Sprintf("%s: %s", pc.Name, formatValue(pc.NewValue)))
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	markers := make([]Marker, 0, len(order))
	for _, ts := range order {
		markers = append(markers, Marker{Timestamp: float64(ts), Text: strings.Join(byTime[ts], "\n")})
	}
	return markers
}

// Marker is re-exported for callers that only import plots.
type Marker = overlay.Marker

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4g", v)
}

func timestamps(t *models.Topic, n int) []float64 {
	if n > len(t.Timestamps) {
		n = len(t.Timestamps)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(t.Timestamps[i])
	}
	return out
}

func scaled(v []float64, scale float64) []float64 {
	if scale == 1 || scale == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * scale
	}
	return out
}

// Norm3 returns the per-sample Euclidean norm of three components.
func Norm3(x, y, z []float64) []float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if len(z) < n {
		n = len(z)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Sqrt(x[i]*x[i] + y[i]*y[i] + z[i]*z[i])
	}
	return out
}

// hasFinite reports whether v holds at least one drawable sample. A field
// logged only as gaps counts as missing.
func hasFinite(v []float64) bool {
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return true
		}
	}
	return false
}

// everyOther returns colors[0], colors[2], ...
func everyOther(colors []string) []string {
	out := make([]string, 0, (len(colors)+1)/2)
	for i := 0; i < len(colors); i += 2 {
		out = append(out, colors[i])
	}
	return out
}

func prefixed(prefix string, labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = prefix + " " + l
	}
	return out
}
