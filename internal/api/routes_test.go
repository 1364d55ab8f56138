package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rislab/flight-review/internal/ingest"
	"github.com/rislab/flight-review/internal/parser"
	"github.com/rislab/flight-review/internal/session"
	"github.com/rislab/flight-review/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	store := testutil.NewMockStorage(t.TempDir())
	registry := parser.NewRegistry()
	ingestMgr := ingest.NewManager(store, registry, nil)

	e := echo.New()
	SetupMiddleware(e, false)
	handlers := NewHandlers(&Dependencies{
		Store:      store,
		SessionMgr: session.NewManager(ingestMgr, nil, 0),
		IngestMgr:  ingestMgr,
		Version:    "test",
		Decoders:   registry.Names(),
	})
	RegisterRoutes(e, handlers)
	RegisterWebSocketRoutes(e, handlers)
	return e
}

func TestRoutes_Health(t *testing.T) {
	e := newTestServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status   string   `json:"status"`
		Version  string   `json:"version"`
		Decoders []string `json:"decoders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
	assert.Equal(t, []string{"msgpack", "json", "csv"}, body.Decoders)
}

func TestRoutes_ErrorsAreJSON(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown panel", http.MethodGet, "/api/panels/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"unknown recording", http.MethodDelete, "/api/recordings/nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"panel of unknown recording", http.MethodPost, "/api/panels", `{"fileId":"nope"}`, http.StatusNotFound, "NOT_FOUND"},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound, "HTTP_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var apiErr APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}
