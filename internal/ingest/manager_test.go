package ingest

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rislab/flight-review/internal/models"
	"github.com/rislab/flight-review/internal/parser"
	"github.com/rislab/flight-review/internal/recordcache"
	"github.com/rislab/flight-review/internal/storage"
	"github.com/rislab/flight-review/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu   sync.Mutex
	recs map[string]*models.LogRecording
	gets int
}

func newMemCache() *memCache {
	return &memCache{recs: make(map[string]*models.LogRecording)}
}

func (c *memCache) Put(_ context.Context, id string, rec *models.LogRecording) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs[id] = rec
	return nil
}

func (c *memCache) Get(_ context.Context, id string) (*models.LogRecording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	rec, ok := c.recs[id]
	if !ok {
		return nil, recordcache.ErrNotCached
	}
	return rec, nil
}

func (c *memCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.recs, id)
	return nil
}

func (c *memCache) has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.recs[id]
	return ok
}

func setup(t *testing.T) (*Manager, *storage.LocalStore, *memCache) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), storage.Options{})
	require.NoError(t, err)
	cache := newMemCache()
	return NewManager(store, parser.NewRegistry(), cache), store, cache
}

func waitDone(t *testing.T, m *Manager, id string) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		j, ok := m.GetJob(id)
		if !ok {
			return false
		}
		job = j
		return j.Status == StatusComplete || j.Status == StatusError
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func saveMsgpack(t *testing.T, store storage.Store, rec *models.LogRecording) *models.FileInfo {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, parser.EncodeMsgpack(&buf, rec))
	info, err := store.Save("flight.frec", &buf)
	require.NoError(t, err)
	return info
}

func TestIngest_Success(t *testing.T) {
	m, store, cache := setup(t)
	info := saveMsgpack(t, store, testutil.CurrentSchemaRecording())

	started := m.StartJob(info)
	assert.Equal(t, StatusQueued, started.Status)

	job := waitDone(t, m, started.ID)
	assert.Equal(t, StatusComplete, job.Status, job.Error)
	assert.Equal(t, "msgpack", job.Decoder)
	assert.Equal(t, 100.0, job.Progress)
	assert.NotNil(t, job.CompletedAt)
	assert.True(t, cache.has(info.ID))

	stored, err := store.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FileStatusReady, stored.Status)
	assert.Equal(t, 1.0, stored.DurationS)
	assert.Greater(t, stored.TopicCount, 0)
}

func TestIngest_DecodeFailure(t *testing.T) {
	m, store, _ := setup(t)
	info, err := store.Save("notes.txt", strings.NewReader("not a recording"))
	require.NoError(t, err)

	job := waitDone(t, m, m.StartJob(info).ID)
	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Error, "failed to decode")

	stored, _ := store.Get(info.ID)
	assert.Equal(t, models.FileStatusError, stored.Status)
}

func TestIngest_ValidationFailure(t *testing.T) {
	m, store, cache := setup(t)
	info, err := store.Save("empty.csv", strings.NewReader("timestamp,topic,field,value\n1000,@info,sys_name,PX4\n"))
	require.NoError(t, err)

	job := waitDone(t, m, m.StartJob(info).ID)
	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Error, "no topics")
	assert.False(t, cache.has(info.ID))
}

func TestRecording_CacheMissRefills(t *testing.T) {
	m, store, cache := setup(t)
	info := saveMsgpack(t, store, testutil.CurrentSchemaRecording())
	ctx := context.Background()

	rec, err := m.Recording(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, rec.HasTopic("vehicle_local_position"))
	assert.True(t, cache.has(info.ID))

	require.NoError(t, m.Forget(ctx, info.ID))
	assert.False(t, cache.has(info.ID))

	_, err = m.Recording(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCleanupOldJobs(t *testing.T) {
	m, store, _ := setup(t)
	info := saveMsgpack(t, store, testutil.CurrentSchemaRecording())
	job := waitDone(t, m, m.StartJob(info).ID)

	m.CleanupOldJobs(time.Hour)
	_, ok := m.GetJob(job.ID)
	assert.True(t, ok)

	m.CleanupOldJobs(0)
	_, ok = m.GetJob(job.ID)
	assert.False(t, ok)
}
