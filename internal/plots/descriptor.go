// Package plots builds the ordered chart descriptors of a flight review panel.
package plots

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/overlay"
)

// Category distinguishes chart shapes.
type Category string

const (
	// CategoryTrack is a 2D chart of one log's position.
	CategoryTrack Category = "track"
	// CategoryTimeSeries is a time-aligned chart that may overlay a second log.
	CategoryTimeSeries Category = "timeseries"
)

// Series is one curve of a chart.
type Series struct {
	Log   int    `json:"log" msgpack:"log"` // 1 = primary, 2 = secondary
	Topic string `json:"topic" msgpack:"topic"`
	Field string `json:"field" msgpack:"field"`
	Label string `json:"label" msgpack:"label"`
	Color string `json:"color" msgpack:"color"`

	X []float64 `json:"x" msgpack:"x"`
	Y []float64 `json:"y" msgpack:"y"`
}

// MarshalJSON writes gaps (NaN or infinite samples) as null.
func (s Series) MarshalJSON() ([]byte, error) {
	type plain Series
	return json.Marshal(struct {
		plain
		X []sample `json:"x"`
		Y []sample `json:"y"`
	}{plain(s), samples(s.X), samples(s.Y)})
}

type sample float64

func (v sample) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func samples(v []float64) []sample {
	if v == nil {
		return nil
	}
	out := make([]sample, len(v))
	for i, f := range v {
		out[i] = sample(f)
	}
	return out
}

// Range is a fixed axis range.
type Range struct {
	Min float64 `json:"min" msgpack:"min"`
	Max float64 `json:"max" msgpack:"max"`
}

// Descriptor is a logical chart handed to the renderer.
type Descriptor struct {
	// ID is the rendered object identifier assigned by the Renderer.
	ID          string   `json:"id" msgpack:"id"`
	Title       string   `json:"title" msgpack:"title"`
	Category    Category `json:"category" msgpack:"category"`
	HeightClass string   `json:"heightClass" msgpack:"height_class"`
	XLabel      string   `json:"xLabel,omitempty" msgpack:"x_label,omitempty"`
	YLabel      string   `json:"yLabel,omitempty" msgpack:"y_label,omitempty"`

	Series    []Series           `json:"series" msgpack:"series"`
	Secondary []Series           `json:"secondary,omitempty" msgpack:"secondary,omitempty"`
	XRange    *models.TimeWindow `json:"xRange,omitempty" msgpack:"x_range,omitempty"`
	YRange    *Range             `json:"yRange,omitempty" msgpack:"y_range,omitempty"`

	Annotation *overlay.Annotation `json:"-" msgpack:"-"`
}

// AllSeries returns primary then secondary series.
func (d *Descriptor) AllSeries() []Series {
	out := make([]Series, 0, len(d.Series)+len(d.Secondary))
	out = append(out, d.Series...)
	return append(out, d.Secondary...)
}

// Renderer is the external collaborator that turns descriptors into rendered
// objects. Render returns the rendered object's identifier.
type Renderer interface {
	Render(d *Descriptor) (string, error)
}

// Slot is one entry of the ordered build output. A pending slot reserves the
// position of the parameter-change control.
type Slot struct {
	Pending bool
	Chart   *Descriptor
}

// ManifestEntry is the navigation record of one chart.
type ManifestEntry struct {
	ModelID  string `json:"modelId" msgpack:"model_id"`
	Fragment string `json:"fragment" msgpack:"fragment"`
	Title    string `json:"title" msgpack:"title"`
}
