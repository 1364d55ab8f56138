// Package overlay owns the parameter-change annotations drawn on charts and
// the single control that shows or hides all of them.
package overlay

import "sync"

// Marker is one labelled point on a chart's time axis.
type Marker struct {
	Timestamp float64 `json:"timestamp" msgpack:"timestamp"`
	Text      string  `json:"text" msgpack:"text"`
}

// Annotation is the set of parameter-change markers attached to one chart.
// Visible and Opacity always agree: visible charts use opacity 1, hidden ones 0.
type Annotation struct {
	mu      sync.RWMutex
	chartID string
	markers []Marker
	visible bool
	opacity float64
}

// NewAnnotation creates a shown annotation for the chart.
func NewAnnotation(chartID string, markers []Marker) *Annotation {
	return &Annotation{
		chartID: chartID,
		markers: markers,
		visible: true,
		opacity: 1,
	}
}

// ChartID returns the descriptor the annotation belongs to.
func (a *Annotation) ChartID() string {
	return a.chartID
}

// Markers returns the annotation markers.
func (a *Annotation) Markers() []Marker {
	return a.markers
}

// Visible reports the visibility flag.
func (a *Annotation) Visible() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.visible
}

// Opacity returns the text opacity. Some renderers ignore the visibility flag
// on text, so opacity is driven alongside it.
func (a *Annotation) Opacity() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.opacity
}

func (a *Annotation) setShown(shown bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visible = shown
	if shown {
		a.opacity = 1
	} else {
		a.opacity = 0
	}
}

// Snapshot is the serializable state of an annotation.
type Snapshot struct {
	ChartID string   `json:"chartId" msgpack:"chart_id"`
	Markers []Marker `json:"markers" msgpack:"markers"`
	Visible bool     `json:"visible" msgpack:"visible"`
	Opacity float64  `json:"opacity" msgpack:"opacity"`
}

// Snapshot returns a copy of the annotation state.
func (a *Annotation) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		ChartID: a.chartID,
		Markers: a.markers,
		Visible: a.visible,
		Opacity: a.opacity,
	}
}
