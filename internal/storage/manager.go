// Package storage keeps uploaded recording files on the local filesystem.
package storage

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned for unknown file ids.
var ErrNotFound = errors.New("file not found")

const indexFile = "files.json"

// Store defines the interface for file storage.
type Store interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.FileInfo, error)
	Update(info *models.FileInfo) error
	GetFilePath(id string) (string, error)
}

// Options controls how uploads are written.
type Options struct {
	// Compress stores uploads gzip-compressed. Readers unwrap gzip by magic.
	Compress bool
	Level    int
}

// LocalStore implements Store using the local filesystem. Metadata is kept in
// an index file next to the uploads.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	opts      Options
	files     map[string]*models.FileInfo
}

// NewLocalStore creates a LocalStore and loads any existing index.
func NewLocalStore(uploadDir string, opts Options) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	if opts.Level == 0 {
		opts.Level = gzip.DefaultCompression
	}

	s := &LocalStore{
		uploadDir: uploadDir,
		opts:      opts,
		files:     make(map[string]*models.FileInfo),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.uploadDir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}

	var list []*models.FileInfo
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parsing index: %w", err)
	}
	for _, info := range list {
		if _, err := os.Stat(filepath.Join(s.uploadDir, info.ID)); err != nil {
			log.Warn().Str("component", "storage").Str("file", info.ID).Msg("indexed file missing, dropped")
			continue
		}
		s.files[info.ID] = info
	}
	return nil
}

// saveIndexLocked writes the index atomically. Callers hold s.mu.
func (s *LocalStore) saveIndexLocked() error {
	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.uploadDir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(s.uploadDir, indexFile))
}

// Save saves a file to the local filesystem.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var zw *gzip.Writer
	if s.opts.Compress {
		zw, err = gzip.NewWriterLevel(f, s.opts.Level)
		if err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("creating gzip writer: %w", err)
		}
		w = zw
	}

	size, err := io.Copy(w, r)
	if err == nil && zw != nil {
		err = zw.Close()
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     models.FileStatusUploaded,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = info
	if err := s.saveIndexLocked(); err != nil {
		return nil, err
	}
	return copyInfo(info), nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyInfo(info), nil
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		list = append(list, copyInfo(info))
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.files, id)
	return s.saveIndexLocked()
}

// Rename updates the display name of a file.
func (s *LocalStore) Rename(id string, newName string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	info.Name = newName
	if err := s.saveIndexLocked(); err != nil {
		return nil, err
	}
	return copyInfo(info), nil
}

// Update replaces the stored metadata of an existing file.
func (s *LocalStore) Update(info *models.FileInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[info.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, info.ID)
	}
	s.files[info.ID] = copyInfo(info)
	return s.saveIndexLocked()
}

// GetFilePath returns the absolute path to a file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return filepath.Join(s.uploadDir, id), nil
}

func copyInfo(info *models.FileInfo) *models.FileInfo {
	c := *info
	return &c
}
