// Package panel composes the full flight review panel for one page view.
package panel

import (
	"errors"
	"fmt"
	"time"

	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/rislab/flight-review/internal/plots"
	"github.com/rislab/flight-review/internal/schema"
	"github.com/rislab/flight-review/internal/supplementary"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoPrimaryRecording is returned when no primary recording is given.
	ErrNoPrimaryRecording = errors.New("no primary recording")
	// ErrMalformedRecording is returned when the primary recording cannot
	// drive a panel.
	ErrMalformedRecording = errors.New("malformed recording")
	// ErrInvalidStyle is returned when the plot style cannot drive the charts.
	ErrInvalidStyle = errors.New("invalid plot style")
)

// ItemKind is the kind of a panel item.
type ItemKind string

const (
	ItemChart  ItemKind = "chart"
	ItemToggle ItemKind = "toggle"
)

// Item is one entry of the ordered panel.
type Item struct {
	Kind  ItemKind          `json:"kind" msgpack:"kind"`
	Chart *plots.Descriptor `json:"chart,omitempty" msgpack:"chart,omitempty"`
	// Width is the toggle control width in pixels.
	Width int `json:"width,omitempty" msgpack:"width,omitempty"`
}

// Panel is the composed output of one rendering pass.
type Panel struct {
	Items         []Item                `json:"items" msgpack:"items"`
	Manifest      []plots.ManifestEntry `json:"manifest" msgpack:"manifest"`
	Window        models.TimeWindow     `json:"window" msgpack:"window"`
	Supplementary supplementary.Content `json:"supplementary" msgpack:"supplementary"`

	// Toggle is nil when no chart carries parameter-change annotations.
	Toggle *overlay.Controller `json:"-" msgpack:"-"`
}

// Charts returns the chart descriptors in panel order.
func (p *Panel) Charts() []*plots.Descriptor {
	out := make([]*plots.Descriptor, 0, len(p.Items))
	for _, it := range p.Items {
		if it.Kind == ItemChart {
			out = append(out, it.Chart)
		}
	}
	return out
}

// Validate checks that rec can drive a panel.
func Validate(rec *models.LogRecording) error {
	if rec == nil {
		return ErrNoPrimaryRecording
	}
	if len(rec.Topics) == 0 {
		return fmt.Errorf("%w: no topics", ErrMalformedRecording)
	}
	if rec.LastTimestamp <= rec.StartTimestamp {
		return fmt.Errorf("%w: empty time span [%d, %d]", ErrMalformedRecording, rec.StartTimestamp, rec.LastTimestamp)
	}
	for _, t := range rec.Topics {
		for name, v := range t.Fields {
			if len(v) > len(t.Timestamps) {
				return fmt.Errorf("%w: %s.%s has %d samples for %d timestamps",
					ErrMalformedRecording, t.Name, name, len(v), len(t.Timestamps))
			}
		}
	}
	return nil
}

// ParameterChanges returns the changes to annotate: none for replays or when
// nothing changed.
func ParameterChanges(rec *models.LogRecording) []models.ParameterChange {
	if rec.IsReplay() || len(rec.ChangedParameters) == 0 {
		return nil
	}
	return rec.ChangedParameters
}

// Compose builds the panel of primary, optionally overlaid with secondary.
// secondary may be nil or empty. The recordings are not modified.
func Compose(primary, secondary *models.LogRecording, style *config.PlotStyle, renderer plots.Renderer) (*Panel, error) {
	if err := Validate(primary); err != nil {
		return nil, err
	}
	if style == nil {
		style = config.DefaultPlotStyle()
	}
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}
	start := time.Now()

	src1 := plots.NewSource(schema.Normalize(primary))
	var src2 *plots.Source
	if secondary != nil && len(secondary.Topics) > 0 {
		src2 = plots.NewSource(schema.Normalize(secondary))
	}

	window, err := plots.ComputeWindow(primary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecording, err)
	}

	b := plots.NewBuilder(style, renderer, window, src1, src2, ParameterChanges(primary))
	slots := b.Build()

	var annotations []*overlay.Annotation
	for _, s := range slots {
		if s.Chart != nil && s.Chart.Annotation != nil {
			annotations = append(annotations, s.Chart.Annotation)
		}
	}
	toggle := overlay.NewController(annotations...)

	p := &Panel{
		Items:  resolveSlots(slots, toggle != nil, int(float64(style.Width)*0.99)),
		Window: window,
		Toggle: toggle,
	}
	p.Manifest = plots.Manifest(p.Charts())

	content, err := supplementary.Aggregate(primary)
	if err != nil {
		log.Warn().Str("component", "panel").Err(err).Msg("supplementary content dropped")
	}
	p.Supplementary = content

	log.Info().Str("component", "panel").
		Int("charts", len(p.Manifest)).
		Bool("second_log", src2 != nil).
		Bool("param_toggle", toggle != nil).
		Dur("elapsed", time.Since(start)).
		Msg("panel composed")
	return p, nil
}

// resolveSlots replaces pending slots with the toggle control, or drops them
// when there is no control, keeping the order of the remaining items.
func resolveSlots(slots []plots.Slot, hasToggle bool, toggleWidth int) []Item {
	items := make([]Item, 0, len(slots))
	for _, s := range slots {
		if s.Pending {
			if hasToggle {
				items = append(items, Item{Kind: ItemToggle, Width: toggleWidth})
			}
			continue
		}
		items = append(items, Item{Kind: ItemChart, Chart: s.Chart})
	}
	return items
}
