// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/rislab/flight-review/internal/ingest"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/overlay"
	"github.com/rislab/flight-review/internal/panel"
)

// RecordingHandler handles recording upload and management
type RecordingHandler interface {
	HandleUploadRecording(c echo.Context) error
	HandleUploadBase64(c echo.Context) error
	HandleGetRecentRecordings(c echo.Context) error
	HandleGetRecording(c echo.Context) error
	HandleDeleteRecording(c echo.Context) error
	HandleRenameRecording(c echo.Context) error
	HandleGetJob(c echo.Context) error
	HandleJobStream(c echo.Context) error
}

// PanelHandler handles panel sessions
type PanelHandler interface {
	HandleCreatePanel(c echo.Context) error
	HandleGetPanel(c echo.Context) error
	HandleGetPanelMsgpack(c echo.Context) error
	HandleGetAdditionalHTML(c echo.Context) error
	HandleGetFigure(c echo.Context) error
	HandleGetToggle(c echo.Context) error
	HandleToggle(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
	HandleDeletePanel(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionManager defines the interface for panel session management
// This allows mocking in tests
type SessionManager interface {
	Create(ctx context.Context, fileID, compareFileID string) (*models.PanelSession, error)
	GetSession(id string) (*models.PanelSession, bool)
	Panel(id string) (*panel.Panel, bool)
	WriteFigure(id, figureID string, w io.Writer) error
	Toggle(id string) (overlay.ControlState, error)
	ToggleState(id string) (overlay.ControlState, error)
	TouchSession(id string) bool
	Delete(id string) bool
	DeleteForFile(fileID string) int
}

// IngestManager defines the interface for background ingest
type IngestManager interface {
	StartJob(info *models.FileInfo) *ingest.Job
	GetJob(id string) (*ingest.Job, bool)
	Forget(ctx context.Context, fileID string) error
}
