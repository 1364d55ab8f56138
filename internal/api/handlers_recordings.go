// handlers_recordings.go - Recording upload and management handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rislab/flight-review/internal/ingest"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/storage"
	"github.com/rs/zerolog/log"
)

// RecordingHandlerImpl implements the RecordingHandler interface
type RecordingHandlerImpl struct {
	store      storage.Store
	ingest     IngestManager
	sessionMgr SessionManager
}

// NewRecordingHandler creates a new recording handler instance
func NewRecordingHandler(store storage.Store, ingestMgr IngestManager, sessionMgr SessionManager) RecordingHandler {
	return &RecordingHandlerImpl{
		store:      store,
		ingest:     ingestMgr,
		sessionMgr: sessionMgr,
	}
}

type uploadResponse struct {
	File  *models.FileInfo `json:"file"`
	JobID string           `json:"jobId,omitempty"`
}

// HandleUploadRecording accepts a multipart recording upload and starts ingest
func (h *RecordingHandlerImpl) HandleUploadRecording(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	return h.accepted(c, info)
}

// HandleUploadBase64 accepts a recording as base64 JSON
func (h *RecordingHandlerImpl) HandleUploadBase64(c echo.Context) error {
	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.Save(req.Name, bytes.NewReader(decoded))
	if err != nil {
		return NewInternalError("failed to save file", err)
	}
	return h.accepted(c, info)
}

func (h *RecordingHandlerImpl) accepted(c echo.Context, info *models.FileInfo) error {
	resp := uploadResponse{File: info}
	if h.ingest != nil {
		resp.JobID = h.ingest.StartJob(info).ID
	}
	log.Info().Str("component", "api").Str("file", info.ID).Str("name", info.Name).
		Int64("size", info.Size).Msg("recording uploaded")
	return c.JSON(http.StatusAccepted, resp)
}

// HandleGetRecentRecordings returns recently uploaded recordings
func (h *RecordingHandlerImpl) HandleGetRecentRecordings(c echo.Context) error {
	files, err := h.store.List(50)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetRecording returns metadata for a specific recording
func (h *RecordingHandlerImpl) HandleGetRecording(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return fromDomainError(err, "file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteRecording deletes a recording with its cached copy and panels
func (h *RecordingHandlerImpl) HandleDeleteRecording(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return fromDomainError(err, "file", id)
	}

	if h.ingest != nil {
		if err := h.ingest.Forget(c.Request().Context(), id); err != nil {
			log.Warn().Str("component", "api").Str("file", id).Err(err).Msg("cached copy not removed")
		}
	}
	if h.sessionMgr != nil {
		h.sessionMgr.DeleteForFile(id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameRecording updates the display name of a recording
func (h *RecordingHandlerImpl) HandleRenameRecording(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return fromDomainError(err, "file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleGetJob returns the state of an ingest job
func (h *RecordingHandlerImpl) HandleGetJob(c echo.Context) error {
	id := c.Param("jobId")
	job, ok := h.ingest.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleJobStream streams ingest progress via Server-Sent Events.
func (h *RecordingHandlerImpl) HandleJobStream(c echo.Context) error {
	jobID := c.Param("jobId")

	job, ok := h.ingest.GetJob(jobID)
	if !ok {
		return NewNotFoundError("job", jobID)
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		data, err := json.Marshal(job)
		if err == nil {
			fmt.Fprintf(c.Response(), "data: %s\n\n", data)
			c.Response().Flush()
		}
		if job.Status == ingest.StatusComplete || job.Status == ingest.StatusError {
			return nil
		}

		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
		}

		job, ok = h.ingest.GetJob(jobID)
		if !ok {
			data, _ := json.Marshal(map[string]string{"error": "job not found"})
			fmt.Fprintf(c.Response(), "data: %s\n\n", data)
			c.Response().Flush()
			return nil
		}
	}
}

// Request types

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type renameFileRequest struct {
	Name string `json:"name"`
}
