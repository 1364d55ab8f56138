// Package ingest decodes uploaded recordings in the background and caches them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/panel"
	"github.com/rislab/flight-review/internal/parser"
	"github.com/rislab/flight-review/internal/recordcache"
	"github.com/rislab/flight-review/internal/storage"
	"github.com/rs/zerolog/log"
)

// Status represents the ingest job status.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusDecoding   Status = "decoding"
	StatusValidating Status = "validating"
	StatusCaching    Status = "caching"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Job represents an async ingest job.
type Job struct {
	ID          string     `json:"id"`
	FileID      string     `json:"fileId"`
	FileName    string     `json:"fileName"`
	Decoder     string     `json:"decoder,omitempty"`
	Status      Status     `json:"status"`
	Progress    float64    `json:"progress"`
	Stage       string     `json:"stage"`
	TopicCount  int        `json:"topicCount,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Cache is the recording cache the manager writes to.
type Cache interface {
	Put(ctx context.Context, fileID string, rec *models.LogRecording) error
	Get(ctx context.Context, fileID string) (*models.LogRecording, error)
	Delete(ctx context.Context, fileID string) error
}

// Manager handles async ingest jobs.
type Manager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	store    storage.Store
	registry *parser.Registry
	cache    Cache
}

// NewManager creates a new ingest manager. cache may be nil.
func NewManager(store storage.Store, registry *parser.Registry, cache Cache) *Manager {
	if registry == nil {
		registry = parser.GetGlobalRegistry()
	}
	return &Manager{
		jobs:     make(map[string]*Job),
		store:    store,
		registry: registry,
		cache:    cache,
	}
}

// StartJob begins async ingest of a stored file.
func (m *Manager) StartJob(info *models.FileInfo) *Job {
	job := &Job{
		ID:        uuid.New().String(),
		FileID:    info.ID,
		FileName:  info.Name,
		Status:    StatusQueued,
		Stage:     "queued",
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	snapshot := *job
	m.mu.Unlock()

	go m.processJob(job)

	return &snapshot
}

// GetJob returns a snapshot of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

func (m *Manager) processJob(job *Job) {
	logger := log.With().Str("component", "ingest").Str("job", job.ID[:8]).Str("file", job.FileID).Logger()
	logger.Info().Str("name", job.FileName).Msg("ingest started")
	ctx := context.Background()

	m.setFileStatus(job.FileID, models.FileStatusDecoding, nil)
	m.updateJobStatus(job, StatusDecoding, "decoding recording")

	rec, decoder, err := m.decode(job.FileID)
	if err != nil {
		m.fail(job, fmt.Sprintf("failed to decode: %v", err))
		return
	}
	m.mu.Lock()
	job.Decoder = decoder
	job.TopicCount = len(rec.Topics)
	m.mu.Unlock()

	m.updateJobStatus(job, StatusValidating, "validating recording")
	if err := panel.Validate(rec); err != nil {
		m.fail(job, err.Error())
		return
	}

	if m.cache != nil {
		m.updateJobStatus(job, StatusCaching, "caching recording")
		if err := m.cache.Put(ctx, job.FileID, rec); err != nil {
			// the recording is still usable from the upload
			logger.Warn().Err(err).Msg("caching failed")
		}
	}

	m.setFileStatus(job.FileID, models.FileStatusReady, rec)
	m.markJobComplete(job)
	logger.Info().Str("decoder", decoder).Int("topics", len(rec.Topics)).Msg("ingest complete")
}

func (m *Manager) decode(fileID string) (*models.LogRecording, string, error) {
	path, err := m.store.GetFilePath(fileID)
	if err != nil {
		return nil, "", err
	}
	return m.registry.DecodeFile(path)
}

// Recording returns the decoded recording of a file, from the cache when
// possible. A cache miss decodes the upload and refills the cache.
func (m *Manager) Recording(ctx context.Context, fileID string) (*models.LogRecording, error) {
	if m.cache != nil {
		rec, err := m.cache.Get(ctx, fileID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, recordcache.ErrNotCached) {
			log.Warn().Str("component", "ingest").Str("file", fileID).Err(err).Msg("cache read failed")
		}
	}

	rec, _, err := m.decode(fileID)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if err := m.cache.Put(ctx, fileID, rec); err != nil {
			log.Warn().Str("component", "ingest").Str("file", fileID).Err(err).Msg("cache refill failed")
		}
	}
	return rec, nil
}

// Forget drops the cached copy of a file.
func (m *Manager) Forget(ctx context.Context, fileID string) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.Delete(ctx, fileID)
}

func (m *Manager) setFileStatus(fileID, status string, rec *models.LogRecording) {
	info, err := m.store.Get(fileID)
	if err != nil {
		return
	}
	info.Status = status
	if rec != nil {
		info.TopicCount = len(rec.TopicNames())
		info.DurationS = float64(rec.LastTimestamp-rec.StartTimestamp) / 1e6
	}
	if err := m.store.Update(info); err != nil {
		log.Warn().Str("component", "ingest").Str("file", fileID).Err(err).Msg("status update failed")
	}
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, status Status, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage

	// Decoding: 0-60%, Validating: 60-70%, Caching: 70-100%
	switch status {
	case StatusDecoding:
		job.Progress = 0
	case StatusValidating:
		job.Progress = 60
	case StatusCaching:
		job.Progress = 70
	}
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "complete"
	job.Progress = 100
	now := time.Now()
	job.CompletedAt = &now
}

func (m *Manager) fail(job *Job, errMsg string) {
	m.setFileStatus(job.FileID, models.FileStatusError, nil)

	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	log.Error().Str("component", "ingest").Str("job", job.ID[:8]).Msg(errMsg)
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}
