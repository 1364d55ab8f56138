// Package render draws chart descriptors with go-chart.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/plots"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartRenderer registers descriptors as figures and draws them on demand, so
// a figure always reflects the current annotation visibility.
type ChartRenderer struct {
	mu      sync.RWMutex
	style   *config.PlotStyle
	figures map[string]*plots.Descriptor
	order   []string
}

// NewChartRenderer creates a renderer using style for figure sizes.
func NewChartRenderer(style *config.PlotStyle) *ChartRenderer {
	if style == nil {
		style = config.DefaultPlotStyle()
	}
	return &ChartRenderer{
		style:   style,
		figures: make(map[string]*plots.Descriptor),
	}
}

// Render implements plots.Renderer.
func (r *ChartRenderer) Render(d *plots.Descriptor) (string, error) {
	for _, s := range d.AllSeries() {
		if len(s.X) != len(s.Y) {
			return "", fmt.Errorf("series %q: %d x values for %d y values", s.Label, len(s.X), len(s.Y))
		}
		if len(s.X) == 0 {
			return "", fmt.Errorf("series %q is empty", s.Label)
		}
	}
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.figures[id] = d
	r.order = append(r.order, id)
	return id, nil
}

// Figure returns a registered descriptor.
func (r *ChartRenderer) Figure(id string) (*plots.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.figures[id]
	return d, ok
}

// Len returns the number of registered figures.
func (r *ChartRenderer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// WritePNG draws a figure as PNG.
func (r *ChartRenderer) WritePNG(id string, w io.Writer) error {
	return r.write(id, chart.PNG, w)
}

// WriteSVG draws a figure as SVG.
func (r *ChartRenderer) WriteSVG(id string, w io.Writer) error {
	return r.write(id, chart.SVG, w)
}

func (r *ChartRenderer) write(id string, rp chart.RendererProvider, w io.Writer) error {
	d, ok := r.Figure(id)
	if !ok {
		return fmt.Errorf("figure not found: %s", id)
	}
	ch := buildChart(d, r.style)
	if err := ch.Render(rp, w); err != nil {
		return fmt.Errorf("rendering %q: %w", d.Title, err)
	}
	return nil
}

// buildChart converts a descriptor into a go-chart chart.
func buildChart(d *plots.Descriptor, style *config.PlotStyle) chart.Chart {
	timeAxis := d.Category == plots.CategoryTimeSeries
	series := make([]chart.Series, 0, len(d.Series)+len(d.Secondary)+1)
	xb, yb := newBounds(), newBounds()
	for _, s := range d.AllSeries() {
		xs, ys := finitePoints(s.X, s.Y)
		if len(xs) == 0 {
			continue
		}
		if timeAxis {
			xs = toSeconds(xs)
		}
		xb.add(xs...)
		yb.add(ys...)
		series = append(series, chart.ContinuousSeries{
			Name:    s.Label,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: parseColor(s.Color, 1),
				StrokeWidth: 1.5,
			},
		})
	}

	yRange := yb.rng()
	if d.YRange != nil {
		yRange = &chart.ContinuousRange{Min: d.YRange.Min, Max: d.YRange.Max}
	}
	xRange := xb.rng()
	if timeAxis && d.XRange != nil {
		xRange = &chart.ContinuousRange{Min: d.XRange.Start / 1e6, Max: d.XRange.End / 1e6}
	}

	if a := d.Annotation; a != nil && a.Visible() {
		labels := make([]chart.Value2, 0, len(a.Markers()))
		for _, m := range a.Markers() {
			labels = append(labels, chart.Value2{XValue: m.Timestamp / 1e6, YValue: yRange.Max, Label: m.Text})
		}
		if len(labels) > 0 {
			series = append(series, chart.AnnotationSeries{
				Name:        "Parameter Changes",
				Annotations: labels,
				Style: chart.Style{
					FontColor:   parseColor(style.ColorGray, a.Opacity()),
					StrokeColor: parseColor(style.ColorGray, a.Opacity()),
					FontSize:    7,
				},
			})
		}
	}

	ch := chart.Chart{
		Title:      d.Title,
		Width:      style.Width,
		Height:     style.Height(d.HeightClass),
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: d.XLabel, Range: xRange},
		YAxis:      chart.YAxis{Name: d.YLabel, Range: yRange},
		Series:     series,
	}
	if timeAxis {
		ch.XAxis.Name = "Time [s]"
		ch.XAxis.ValueFormatter = func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return strconv.FormatFloat(f, 'f', 0, 64)
			}
			return ""
		}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

// bounds tracks the finite extent of a set of values.
type bounds struct {
	min, max float64
}

func newBounds() *bounds {
	return &bounds{min: math.Inf(1), max: math.Inf(-1)}
}

func (b *bounds) add(vs ...float64) {
	for _, v := range vs {
		b.min = math.Min(b.min, v)
		b.max = math.Max(b.max, v)
	}
}

// rng returns a drawable range. go-chart rejects zero-width ranges, so flat
// data is widened by one unit each way.
func (b *bounds) rng() *chart.ContinuousRange {
	if b.min > b.max {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if b.min == b.max {
		return &chart.ContinuousRange{Min: b.min - 1, Max: b.max + 1}
	}
	return &chart.ContinuousRange{Min: b.min, Max: b.max}
}

// finitePoints drops samples where either coordinate is NaN or infinite.
func finitePoints(x, y []float64) ([]float64, []float64) {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if i >= len(y) || !finite(x[i]) || !finite(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toSeconds(us []float64) []float64 {
	out := make([]float64, len(us))
	for i, v := range us {
		out[i] = v / 1e6
	}
	return out
}

// parseColor parses "#rrggbb" and applies opacity.
func parseColor(hex string, opacity float64) drawing.Color {
	c := drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
	c.A = uint8(opacity * 255)
	return c
}
