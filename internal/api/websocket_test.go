package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPanel(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/panels/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readState(t *testing.T, conn *websocket.Conn) overlay.ControlState {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeState, msg.Type)
	var state overlay.ControlState
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	return state
}

func TestToggleHub_SyncsClients(t *testing.T) {
	mgr, _ := newPanelFixture(t)
	sess := createSession(t, mgr, "current")
	hub := NewToggleHub(mgr)

	e := echo.New()
	e.GET("/api/panels/:id/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	defer srv.Close()

	a := dialPanel(t, srv, sess.ID)
	b := dialPanel(t, srv, sess.ID)
	assert.Equal(t, overlay.StateShown, readState(t, a).State)
	assert.Equal(t, overlay.StateShown, readState(t, b).State)
	require.Eventually(t, func() bool { return hub.Clients(sess.ID) == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, a.WriteJSON(WSMessage{Type: MsgTypeToggle}))
	assert.Equal(t, overlay.StateHidden, readState(t, a).State)
	assert.Equal(t, overlay.StateHidden, readState(t, b).State)

	require.NoError(t, b.WriteJSON(WSMessage{Type: MsgTypePing}))
	assert.Equal(t, MsgTypePong, readMessage(t, b).Type)

	require.NoError(t, b.WriteJSON(WSMessage{Type: "bogus"}))
	msg := readMessage(t, b)
	assert.Equal(t, MsgTypeError, msg.Type)
	var wsErr WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &wsErr))
	assert.Equal(t, "INVALID_TYPE", wsErr.Code)
}

func TestToggleHub_NoControl(t *testing.T) {
	mgr, _ := newPanelFixture(t)
	sess := createSession(t, mgr, "legacy")
	hub := NewToggleHub(mgr)

	e := echo.New()
	e.GET("/api/panels/:id/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn := dialPanel(t, srv, sess.ID)
	assert.Equal(t, MsgTypeConnected, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MsgTypeToggle}))
	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeError, msg.Type)
	var wsErr WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &wsErr))
	assert.Equal(t, "NO_TOGGLE", wsErr.Code)
}

func TestToggleHub_UnknownPanel(t *testing.T) {
	mgr, _ := newPanelFixture(t)
	hub := NewToggleHub(mgr)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	e.GET("/api/panels/:id/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/panels/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)
}
