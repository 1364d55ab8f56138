// handlers_panels.go - Panel session handlers
package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/rislab/flight-review/internal/panel"
	"github.com/rislab/flight-review/internal/session"
	"github.com/vmihailenco/msgpack/v5"
)

// PanelHandlerImpl implements the PanelHandler interface
type PanelHandlerImpl struct {
	sessionMgr SessionManager
	hub        *ToggleHub
}

// NewPanelHandler creates a new panel handler instance. hub may be nil.
func NewPanelHandler(sessionMgr SessionManager, hub *ToggleHub) PanelHandler {
	return &PanelHandlerImpl{
		sessionMgr: sessionMgr,
		hub:        hub,
	}
}

type createPanelRequest struct {
	FileID        string `json:"fileId"`
	CompareFileID string `json:"compareFileId"`
}

// panelView is the full description of a panel sent to clients.
type panelView struct {
	Session *models.PanelSession  `json:"session" msgpack:"session"`
	Panel   *panel.Panel          `json:"panel" msgpack:"panel"`
	Toggle  *overlay.ControlState `json:"toggle,omitempty" msgpack:"toggle,omitempty"`
}

// HandleCreatePanel composes the panel of a recording
func (h *PanelHandlerImpl) HandleCreatePanel(c echo.Context) error {
	var req createPanelRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	sess, err := h.sessionMgr.Create(c.Request().Context(), req.FileID, req.CompareFileID)
	if err != nil {
		return fromDomainError(err, "file", req.FileID)
	}
	return c.JSON(http.StatusCreated, sess)
}

func (h *PanelHandlerImpl) view(id string) (*panelView, error) {
	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("panel", id)
	}
	p, ok := h.sessionMgr.Panel(id)
	if !ok {
		return nil, NewNotFoundError("panel", id)
	}
	v := &panelView{Session: sess, Panel: p}
	if p.Toggle != nil {
		state := p.Toggle.Snapshot()
		v.Toggle = &state
	}
	h.sessionMgr.TouchSession(id)
	return v, nil
}

// HandleGetPanel returns the composed panel as JSON
func (h *PanelHandlerImpl) HandleGetPanel(c echo.Context) error {
	v, err := h.view(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

// HandleGetPanelMsgpack returns the composed panel in MessagePack format
func (h *PanelHandlerImpl) HandleGetPanelMsgpack(c echo.Context) error {
	v, err := h.view(c.Param("id"))
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetAdditionalHTML returns the supplementary HTML block of a panel
func (h *PanelHandlerImpl) HandleGetAdditionalHTML(c echo.Context) error {
	id := c.Param("id")
	p, ok := h.sessionMgr.Panel(id)
	if !ok {
		return NewNotFoundError("panel", id)
	}
	return c.HTML(http.StatusOK, string(p.Supplementary.AdditionalHTML))
}

// HandleGetFigure renders one chart of a panel as PNG
func (h *PanelHandlerImpl) HandleGetFigure(c echo.Context) error {
	id := c.Param("id")
	figureID := c.Param("figureId")

	var buf bytes.Buffer
	if err := h.sessionMgr.WriteFigure(id, figureID, &buf); err != nil {
		if errors.Is(err, session.ErrFigureNotFound) {
			return NewNotFoundError("figure", figureID)
		}
		return fromDomainError(err, "panel", id)
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// HandleGetToggle returns the parameter-change control state
func (h *PanelHandlerImpl) HandleGetToggle(c echo.Context) error {
	id := c.Param("id")
	state, err := h.sessionMgr.ToggleState(id)
	if err != nil {
		return fromDomainError(err, "panel", id)
	}
	return c.JSON(http.StatusOK, state)
}

// HandleToggle flips the parameter-change annotations and notifies every
// client watching the panel
func (h *PanelHandlerImpl) HandleToggle(c echo.Context) error {
	id := c.Param("id")
	state, err := h.sessionMgr.Toggle(id)
	if err != nil {
		return fromDomainError(err, "panel", id)
	}
	if h.hub != nil {
		h.hub.Broadcast(id, state)
	}
	return c.JSON(http.StatusOK, state)
}

// HandleKeepAlive keeps a panel from expiring
func (h *PanelHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessionMgr.TouchSession(id) {
		return NewNotFoundError("panel", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeletePanel drops a panel session
func (h *PanelHandlerImpl) HandleDeletePanel(c echo.Context) error {
	id := c.Param("id")
	if !h.sessionMgr.Delete(id) {
		return NewNotFoundError("panel", id)
	}
	return c.NoContent(http.StatusNoContent)
}
