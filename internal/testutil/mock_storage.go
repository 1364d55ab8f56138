// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/storage"
)

// MockStorage implements storage.Store for testing. Files are written to a
// temp directory so decoders can read them back.
type MockStorage struct {
	files   map[string]*models.FileInfo
	tempDir string
	mu      sync.RWMutex

	// SaveErr, when set, is returned by Save.
	SaveErr error
}

// NewMockStorage creates a mock storage backed by tempDir.
func NewMockStorage(tempDir string) *MockStorage {
	return &MockStorage{
		files:   make(map[string]*models.FileInfo),
		tempDir: tempDir,
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.AddFile(generateTestID(), name, data), nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	c := *file
	return &c, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.FileInfo, 0, len(m.files))
	for _, file := range m.files {
		c := *file
		files = append(files, &c)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].UploadedAt.After(files[j].UploadedAt) })
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	os.Remove(filepath.Join(m.tempDir, id))
	delete(m.files, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	file.Name = newName
	c := *file
	return &c, nil
}

func (m *MockStorage) Update(info *models.FileInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[info.ID]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, info.ID)
	}
	c := *info
	m.files[info.ID] = &c
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.files[id]; !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return filepath.Join(m.tempDir, id), nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddFile writes the file to disk and adds it to the mock
func (m *MockStorage) AddFile(id string, name string, data []byte) *models.FileInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.WriteFile(filepath.Join(m.tempDir, id), data, 0644); err != nil {
		panic(fmt.Sprintf("failed to write test file: %v", err))
	}

	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     models.FileStatusUploaded,
	}
	m.files[id] = file
	c := *file
	return &c
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// GetFileData returns the file content
func (m *MockStorage) GetFileData(id string) ([]byte, error) {
	path, err := m.GetFilePath(id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// generateTestID generates a simple test ID
var testIDCounter int
var testIDMutex sync.Mutex

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
