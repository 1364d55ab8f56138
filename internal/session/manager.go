// Package session keeps composed panels alive for the page views that show them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rislab/flight-review/internal/config"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/rislab/flight-review/internal/panel"
	"github.com/rislab/flight-review/internal/render"
)

// DefaultMaxSessions limits concurrent panels to bound figure memory.
const DefaultMaxSessions = 20

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

var (
	ErrNotFound       = errors.New("session not found")
	ErrFigureNotFound = errors.New("figure not found")
	// ErrNoToggle is returned when toggling a panel without annotated charts.
	ErrNoToggle = errors.New("panel has no parameter-change control")
)

// Loader resolves file ids to recordings.
type Loader interface {
	Recording(ctx context.Context, fileID string) (*models.LogRecording, error)
}

// Manager handles active panel sessions.
type Manager struct {
	sessions    map[string]*State
	mu          sync.RWMutex
	loader      Loader
	style       *config.PlotStyle
	maxSessions int
}

// State holds the session metadata, the composed panel and its figures.
type State struct {
	Session      *models.PanelSession
	Panel        *panel.Panel
	Figures      *render.ChartRenderer
	LastAccessed time.Time
}

// NewManager creates a session manager.
func NewManager(loader Loader, style *config.PlotStyle, maxSessions int) *Manager {
	if style == nil {
		style = config.DefaultPlotStyle()
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*State),
		loader:      loader,
		style:       style,
		maxSessions: maxSessions,
	}
}

// Create composes the panel of fileID, optionally compared with compareFileID.
// A comparison recording that fails to load is skipped.
func (m *Manager) Create(ctx context.Context, fileID, compareFileID string) (*models.PanelSession, error) {
	start := time.Now()

	primary, err := m.loader.Recording(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", fileID, err)
	}

	var secondary *models.LogRecording
	if compareFileID != "" {
		secondary, err = m.loader.Recording(ctx, compareFileID)
		if err != nil {
			logger().Warn().Str("file", compareFileID).Err(err).Msg("comparison log skipped")
			secondary = nil
			compareFileID = ""
		}
	}

	figures := render.NewChartRenderer(m.style)
	p, err := panel.Compose(primary, secondary, m.style, figures)
	if err != nil {
		return nil, err
	}

	sess := models.NewPanelSession(uuid.New().String(), fileID, compareFileID)
	sess.ChartCount = len(p.Manifest)
	sess.BuildTimeMs = time.Since(start).Milliseconds()
	sess.ParamOverlays = p.Toggle != nil
	sess.OverlaysShown = p.Toggle != nil

	m.cleanupOldSessionsIfNeeded()

	m.mu.Lock()
	m.sessions[sess.ID] = &State{
		Session:      sess,
		Panel:        p,
		Figures:      figures,
		LastAccessed: time.Now(),
	}
	m.mu.Unlock()

	logger().Info().Str("session", sess.ID[:8]).Str("file", fileID).
		Int("charts", sess.ChartCount).Int64("build_ms", sess.BuildTimeMs).Msg("session created")
	snapshot := *sess
	return &snapshot, nil
}

func (m *Manager) get(id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return state, nil
}

// GetSession returns a snapshot of a session by ID.
func (m *Manager) GetSession(id string) (*models.PanelSession, bool) {
	state, err := m.get(id)
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	snapshot := *state.Session
	m.mu.RUnlock()
	if state.Panel.Toggle != nil {
		snapshot.OverlaysShown = state.Panel.Toggle.State() == overlay.StateShown
	}
	return &snapshot, true
}

// Panel returns the composed panel of a session.
func (m *Manager) Panel(id string) (*panel.Panel, bool) {
	state, err := m.get(id)
	if err != nil {
		return nil, false
	}
	return state.Panel, true
}

// WriteFigure renders one figure of a session as PNG.
func (m *Manager) WriteFigure(id, figureID string, w io.Writer) error {
	state, err := m.get(id)
	if err != nil {
		return err
	}
	if _, ok := state.Figures.Figure(figureID); !ok {
		return fmt.Errorf("%w: %s", ErrFigureNotFound, figureID)
	}
	return state.Figures.WritePNG(figureID, w)
}

// Toggle flips the parameter-change annotations of a session.
func (m *Manager) Toggle(id string) (overlay.ControlState, error) {
	state, err := m.get(id)
	if err != nil {
		return overlay.ControlState{}, err
	}
	if state.Panel.Toggle == nil {
		return overlay.ControlState{}, ErrNoToggle
	}
	state.Panel.Toggle.Toggle()
	m.TouchSession(id)
	return state.Panel.Toggle.Snapshot(), nil
}

// ToggleState returns the control state without changing it.
func (m *Manager) ToggleState(id string) (overlay.ControlState, error) {
	state, err := m.get(id)
	if err != nil {
		return overlay.ControlState{}, err
	}
	if state.Panel.Toggle == nil {
		return overlay.ControlState{}, ErrNoToggle
	}
	return state.Panel.Toggle.Snapshot(), nil
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Delete drops a session.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// DeleteForFile drops every session that shows fileID, as primary or
// comparison log.
func (m *Manager) DeleteForFile(fileID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, state := range m.sessions {
		if state.Session.FileID == fileID || state.Session.CompareFileID == fileID {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cleanupOldSessionsIfNeeded evicts the least recently used sessions so a new
// one fits under the limit.
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.maxSessions {
		return
	}

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.sessions[ids[i]].LastAccessed.Before(m.sessions[ids[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.maxSessions + 1
	for _, id := range ids[:toFree] {
		delete(m.sessions, id)
		logger().Debug().Str("session", id[:8]).Msg("evicted to stay under session limit")
	}
}

// CleanupOldSessions removes sessions not accessed within maxAge, but never
// ones accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if maxAge < SessionKeepAliveWindow {
		maxAge = SessionKeepAliveWindow
	}
	cutoff := time.Now().Add(-maxAge)

	n := 0
	for id, state := range m.sessions {
		if state.LastAccessed.Before(cutoff) {
			state.Session.Status = models.PanelStatusExpired
			delete(m.sessions, id)
			n++
			logger().Debug().Str("session", id[:8]).
				Dur("idle", time.Since(state.LastAccessed).Round(time.Second)).Msg("cleaned up aged session")
		}
	}
	return n
}
