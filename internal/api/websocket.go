package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/rislab/flight-review/internal/session"
	"github.com/rs/zerolog/log"
)

// WebSocket message types for the overlay protocol
const (
	// Client -> Server messages
	MsgTypeToggle = "overlay:toggle"
	MsgTypePing   = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeState     = "overlay:state"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (cl *wsClient) send(msg WSMessage) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return cl.conn.WriteJSON(msg)
}

// ToggleHub keeps every page view of a panel in sync with its
// parameter-change control.
type ToggleHub struct {
	sessions SessionManager
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
}

// NewToggleHub creates a hub over the session manager.
func NewToggleHub(sessions SessionManager) *ToggleHub {
	return &ToggleHub{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		clients: make(map[string]map[*wsClient]struct{}),
	}
}

// HandleWebSocket upgrades the connection and serves the overlay protocol for
// one panel.
func (h *ToggleHub) HandleWebSocket(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.sessions.GetSession(id); !ok {
		return NewNotFoundError("panel", id)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	client := &wsClient{conn: ws}
	h.register(id, client)
	defer h.unregister(id, client)

	logger := log.With().Str("component", "ws").Str("panel", id).Logger()
	logger.Debug().Msg("client connected")

	if state, err := h.sessions.ToggleState(id); err == nil {
		client.send(stateMessage(id, state))
	} else {
		client.send(WSMessage{Type: MsgTypeConnected, ID: id, Timestamp: time.Now().UnixMilli()})
	}

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("connection error")
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			client.send(WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()})
		case MsgTypeToggle:
			state, err := h.sessions.Toggle(id)
			if err != nil {
				code := "TOGGLE_FAILED"
				if errors.Is(err, session.ErrNoToggle) {
					code = "NO_TOGGLE"
				}
				client.send(errorMessage(err.Error(), code))
				continue
			}
			h.Broadcast(id, state)
		default:
			client.send(errorMessage("Unknown message type: "+msg.Type, "INVALID_TYPE"))
		}
	}

	logger.Debug().Msg("client disconnected")
	return nil
}

// Broadcast sends the control state to every client of a panel.
func (h *ToggleHub) Broadcast(sessionID string, state overlay.ControlState) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients[sessionID]))
	for cl := range h.clients[sessionID] {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	msg := stateMessage(sessionID, state)
	for _, cl := range clients {
		if err := cl.send(msg); err != nil {
			log.Debug().Str("component", "ws").Str("panel", sessionID).Err(err).Msg("broadcast failed")
		}
	}
}

// Clients returns the number of connected clients of a panel.
func (h *ToggleHub) Clients(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *ToggleHub) register(id string, cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[id] == nil {
		h.clients[id] = make(map[*wsClient]struct{})
	}
	h.clients[id][cl] = struct{}{}
}

func (h *ToggleHub) unregister(id string, cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[id], cl)
	if len(h.clients[id]) == 0 {
		delete(h.clients, id)
	}
}

func stateMessage(id string, state overlay.ControlState) WSMessage {
	return WSMessage{
		Type:      MsgTypeState,
		ID:        id,
		Payload:   mustJSON(state),
		Timestamp: time.Now().UnixMilli(),
	}
}

func errorMessage(message, code string) WSMessage {
	return WSMessage{
		Type:      MsgTypeError,
		Payload:   mustJSON(WSErrorResponse{Message: message, Code: code}),
		Timestamp: time.Now().UnixMilli(),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
