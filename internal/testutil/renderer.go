// renderer.go - Fake chart renderer for tests
package testutil

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rislab/flight-review/internal/plots"
)

// FakeRenderer assigns sequential ids and records rendered descriptors.
type FakeRenderer struct {
	mu       sync.Mutex
	next     int
	Rendered []*plots.Descriptor
	// FailTitles makes Render fail for the listed chart titles.
	FailTitles map[string]bool
}

// NewFakeRenderer creates a FakeRenderer.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{FailTitles: make(map[string]bool)}
}

// Render implements plots.Renderer.
func (r *FakeRenderer) Render(d *plots.Descriptor) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailTitles[d.Title] {
		return "", errors.New("render failed")
	}
	r.next++
	r.Rendered = append(r.Rendered, d)
	return fmt.Sprintf("fig-%d", r.next), nil
}
