package overlay

import "sync"

// State is the shown/hidden state of all parameter-change annotations.
type State string

const (
	StateShown  State = "shown"
	StateHidden State = "hidden"
)

// Control labels. The label always names the action, i.e. the opposite of
// the current state.
const (
	LabelHide = "Hide Parameter Changes"
	LabelShow = "Show Parameter Changes"
)

// Controller flips every registered annotation together.
type Controller struct {
	mu          sync.Mutex
	state       State
	annotations []*Annotation
}

// NewController creates a controller in the shown state. It returns nil when
// there is nothing to control.
func NewController(annotations ...*Annotation) *Controller {
	var kept []*Annotation
	for _, a := range annotations {
		if a != nil {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	c := &Controller{state: StateShown}
	for _, a := range kept {
		c.Register(a)
	}
	return c
}

// Register adds an annotation and aligns it with the current state.
func (c *Controller) Register(a *Annotation) {
	if a == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	a.setShown(c.state == StateShown)
	c.annotations = append(c.annotations, a)
}

// Toggle flips the state and every annotation, and returns the new state.
func (c *Controller) Toggle() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateShown {
		c.state = StateHidden
	} else {
		c.state = StateShown
	}
	shown := c.state == StateShown
	for _, a := range c.annotations {
		a.setShown(shown)
	}
	return c.state
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Label returns the control's label for the current state.
func (c *Controller) Label() string {
	if c.State() == StateShown {
		return LabelHide
	}
	return LabelShow
}

// Annotations returns the registered annotations.
func (c *Controller) Annotations() []*Annotation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Annotation(nil), c.annotations...)
}

// ControlState is the serializable state of the control.
type ControlState struct {
	State       State      `json:"state" msgpack:"state"`
	Label       string     `json:"label" msgpack:"label"`
	Annotations []Snapshot `json:"annotations" msgpack:"annotations"`
}

// Snapshot returns the control and annotation states.
func (c *Controller) Snapshot() ControlState {
	c.mu.Lock()
	state := c.state
	anns := append([]*Annotation(nil), c.annotations...)
	c.mu.Unlock()

	out := ControlState{State: state, Label: LabelHide, Annotations: make([]Snapshot, 0, len(anns))}
	if state == StateHidden {
		out.Label = LabelShow
	}
	for _, a := range anns {
		out.Annotations = append(out.Annotations, a.Snapshot())
	}
	return out
}
