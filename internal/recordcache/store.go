// Package recordcache keeps decoded recordings in a DuckDB file so they can be
// reloaded without decoding the upload again.
package recordcache

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/rislab/flight-review/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNotCached is returned when no recording is cached for a file id.
var ErrNotCached = errors.New("recording not cached")

// Options tunes the DuckDB connection.
type Options struct {
	Threads     int
	MemoryLimit string
}

// Entry describes one cached recording.
type Entry struct {
	FileID         string    `json:"fileId"`
	StartTimestamp uint64    `json:"startTimestamp"`
	LastTimestamp  uint64    `json:"lastTimestamp"`
	TopicCount     int       `json:"topicCount"`
	CachedAt       time.Time `json:"cachedAt"`
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS recordings (
		file_id     VARCHAR PRIMARY KEY,
		start_ts    UBIGINT NOT NULL,
		last_ts     UBIGINT NOT NULL,
		topic_count INTEGER NOT NULL,
		cached_at   TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS topic_samples (
		file_id   VARCHAR NOT NULL,
		topic     VARCHAR NOT NULL,
		multi_id  INTEGER NOT NULL,
		idx       INTEGER NOT NULL,
		timestamp UBIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS field_values (
		file_id  VARCHAR NOT NULL,
		topic    VARCHAR NOT NULL,
		multi_id INTEGER NOT NULL,
		field    VARCHAR NOT NULL,
		idx      INTEGER NOT NULL,
		value    DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS info (
		file_id VARCHAR NOT NULL,
		key     VARCHAR NOT NULL,
		value   VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS info_multiple (
		file_id  VARCHAR NOT NULL,
		key      VARCHAR NOT NULL,
		msg_idx  INTEGER NOT NULL,
		line_idx INTEGER NOT NULL,
		line     VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS parameters (
		file_id VARCHAR NOT NULL,
		name    VARCHAR NOT NULL,
		value   DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS parameter_changes (
		file_id   VARCHAR NOT NULL,
		seq       INTEGER NOT NULL,
		timestamp UBIGINT NOT NULL,
		name      VARCHAR NOT NULL,
		old_value DOUBLE,
		new_value DOUBLE
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		file_id   VARCHAR NOT NULL,
		seq       INTEGER NOT NULL,
		timestamp UBIGINT NOT NULL,
		level     VARCHAR,
		message   VARCHAR
	)`,
}

// tables lists every table keyed by file_id, recordings last.
var tables = []string{
	"topic_samples", "field_values", "info", "info_multiple",
	"parameters", "parameter_changes", "messages", "recordings",
}

// Store is a DuckDB-backed recording cache.
type Store struct {
	db     *sql.DB
	dbPath string

	// writes replace whole recordings; serialize them
	mu sync.Mutex
}

// Open opens or creates the cache database at dbPath.
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.Threads <= 0 {
		opts.Threads = 2
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "512MB"
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return fmt.Errorf("%s: %w", pragma, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Info().Str("component", "recordcache").Str("path", dbPath).Msg("cache opened")
	return &Store{db: db, dbPath: dbPath}, nil
}

// Put caches rec under fileID, replacing any previous copy.
func (s *Store) Put(ctx context.Context, fileID string, rec *models.LogRecording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.deleteLocked(ctx, fileID); err != nil {
		return err
	}
	if err := s.appendSamples(ctx, fileID, rec); err != nil {
		return err
	}
	if err := s.insertMetadata(ctx, fileID, rec); err != nil {
		return err
	}

	log.Debug().Str("component", "recordcache").Str("file", fileID).
		Int("topics", len(rec.Topics)).Dur("elapsed", time.Since(start)).Msg("recording cached")
	return nil
}

// appendSamples bulk-loads topic timestamps and field values with the Appender API.
func (s *Store) appendSamples(ctx context.Context, fileID string, rec *models.LogRecording) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		samples, err := duckdb.NewAppenderFromConn(dConn, "", "topic_samples")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer samples.Close()
		values, err := duckdb.NewAppenderFromConn(dConn, "", "field_values")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer values.Close()

		for _, t := range rec.Topics {
			for i, ts := range t.Timestamps {
				if err := samples.AppendRow(fileID, t.Name, int32(t.MultiID), int32(i), ts); err != nil {
					return fmt.Errorf("appending %s sample %d: %w", t.Name, i, err)
				}
			}
			for field, vals := range t.Fields {
				for i, v := range vals {
					if err := values.AppendRow(fileID, t.Name, int32(t.MultiID), field, int32(i), v); err != nil {
						return fmt.Errorf("appending %s.%s value %d: %w", t.Name, field, i, err)
					}
				}
			}
		}

		if err := samples.Flush(); err != nil {
			return err
		}
		return values.Flush()
	})
}

func (s *Store) insertMetadata(ctx context.Context, fileID string, rec *models.LogRecording) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range rec.Info {
		if _, err := tx.ExecContext(ctx, "INSERT INTO info VALUES (?, ?, ?)", fileID, k, v); err != nil {
			return fmt.Errorf("inserting info: %w", err)
		}
	}
	for k, msgs := range rec.InfoMultiple {
		for mi, lines := range msgs {
			for li, line := range lines {
				if _, err := tx.ExecContext(ctx, "INSERT INTO info_multiple VALUES (?, ?, ?, ?, ?)",
					fileID, k, mi, li, line); err != nil {
					return fmt.Errorf("inserting info_multiple: %w", err)
				}
			}
		}
	}
	for name, v := range rec.InitialParameters {
		if _, err := tx.ExecContext(ctx, "INSERT INTO parameters VALUES (?, ?, ?)", fileID, name, v); err != nil {
			return fmt.Errorf("inserting parameter: %w", err)
		}
	}
	for i, c := range rec.ChangedParameters {
		if _, err := tx.ExecContext(ctx, "INSERT INTO parameter_changes VALUES (?, ?, ?, ?, ?, ?)",
			fileID, i, c.Timestamp, c.Name, c.OldValue, c.NewValue); err != nil {
			return fmt.Errorf("inserting parameter change: %w", err)
		}
	}
	for i, m := range rec.LoggedMessages {
		if _, err := tx.ExecContext(ctx, "INSERT INTO messages VALUES (?, ?, ?, ?, ?)",
			fileID, i, m.Timestamp, m.Level, m.Message); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	// the recordings row marks the entry complete
	if _, err := tx.ExecContext(ctx, "INSERT INTO recordings VALUES (?, ?, ?, ?, ?)",
		fileID, rec.StartTimestamp, rec.LastTimestamp, len(rec.Topics), time.Now().UTC()); err != nil {
		return fmt.Errorf("inserting recording: %w", err)
	}
	return tx.Commit()
}

// Get loads the recording cached under fileID.
func (s *Store) Get(ctx context.Context, fileID string) (*models.LogRecording, error) {
	var start, last uint64
	err := s.db.QueryRowContext(ctx, "SELECT start_ts, last_ts FROM recordings WHERE file_id = ?", fileID).
		Scan(&start, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("recording query failed: %w", err)
	}

	rec := models.NewLogRecording(start, last)
	if err := s.loadTopics(ctx, fileID, rec); err != nil {
		return nil, err
	}
	if err := s.loadMetadata(ctx, fileID, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

type topicKey struct {
	name    string
	multiID int
}

func (s *Store) loadTopics(ctx context.Context, fileID string, rec *models.LogRecording) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT topic, multi_id, timestamp FROM topic_samples WHERE file_id = ? ORDER BY topic, multi_id, idx", fileID)
	if err != nil {
		return fmt.Errorf("samples query failed: %w", err)
	}
	defer rows.Close()

	index := make(map[topicKey]int)
	for rows.Next() {
		var k topicKey
		var ts uint64
		if err := rows.Scan(&k.name, &k.multiID, &ts); err != nil {
			return err
		}
		i, ok := index[k]
		if !ok {
			i = len(rec.Topics)
			index[k] = i
			rec.Topics = append(rec.Topics, models.Topic{Name: k.name, MultiID: k.multiID, Fields: make(map[string][]float64)})
		}
		rec.Topics[i].Timestamps = append(rec.Topics[i].Timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	vrows, err := s.db.QueryContext(ctx,
		"SELECT topic, multi_id, field, value FROM field_values WHERE file_id = ? ORDER BY topic, multi_id, field, idx", fileID)
	if err != nil {
		return fmt.Errorf("values query failed: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var k topicKey
		var field string
		var v float64
		if err := vrows.Scan(&k.name, &k.multiID, &field, &v); err != nil {
			return err
		}
		i, ok := index[k]
		if !ok {
			// field rows of a topic without samples
			i = len(rec.Topics)
			index[k] = i
			rec.Topics = append(rec.Topics, models.Topic{Name: k.name, MultiID: k.multiID, Fields: make(map[string][]float64)})
		}
		rec.Topics[i].Fields[field] = append(rec.Topics[i].Fields[field], v)
	}
	return vrows.Err()
}

func (s *Store) loadMetadata(ctx context.Context, fileID string, rec *models.LogRecording) error {
	if err := s.each(ctx, "SELECT key, value FROM info WHERE file_id = ?", fileID, func(rows *sql.Rows) error {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		rec.Info[k] = v
		return nil
	}); err != nil {
		return err
	}

	if err := s.each(ctx, "SELECT key, msg_idx, line FROM info_multiple WHERE file_id = ? ORDER BY key, msg_idx, line_idx", fileID, func(rows *sql.Rows) error {
		var k, line string
		var mi int
		if err := rows.Scan(&k, &mi, &line); err != nil {
			return err
		}
		msgs := rec.InfoMultiple[k]
		for len(msgs) <= mi {
			msgs = append(msgs, nil)
		}
		msgs[mi] = append(msgs[mi], line)
		rec.InfoMultiple[k] = msgs
		return nil
	}); err != nil {
		return err
	}

	if err := s.each(ctx, "SELECT name, value FROM parameters WHERE file_id = ?", fileID, func(rows *sql.Rows) error {
		var name string
		var v float64
		if err := rows.Scan(&name, &v); err != nil {
			return err
		}
		if rec.InitialParameters == nil {
			rec.InitialParameters = make(map[string]float64)
		}
		rec.InitialParameters[name] = v
		return nil
	}); err != nil {
		return err
	}

	if err := s.each(ctx, "SELECT timestamp, name, old_value, new_value FROM parameter_changes WHERE file_id = ? ORDER BY seq", fileID, func(rows *sql.Rows) error {
		var c models.ParameterChange
		if err := rows.Scan(&c.Timestamp, &c.Name, &c.OldValue, &c.NewValue); err != nil {
			return err
		}
		rec.ChangedParameters = append(rec.ChangedParameters, c)
		return nil
	}); err != nil {
		return err
	}

	return s.each(ctx, "SELECT timestamp, level, message FROM messages WHERE file_id = ? ORDER BY seq", fileID, func(rows *sql.Rows) error {
		var m models.LoggedMessage
		if err := rows.Scan(&m.Timestamp, &m.Level, &m.Message); err != nil {
			return err
		}
		rec.LoggedMessages = append(rec.LoggedMessages, m)
		return nil
	})
}

func (s *Store) each(ctx context.Context, query, fileID string, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Has reports whether fileID is cached.
func (s *Store) Has(ctx context.Context, fileID string) bool {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recordings WHERE file_id = ?", fileID).Scan(&n)
	return err == nil && n > 0
}

// List returns all cached recordings, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT file_id, start_ts, last_ts, topic_count, cached_at FROM recordings ORDER BY cached_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.FileID, &e.StartTimestamp, &e.LastTimestamp, &e.TopicCount, &e.CachedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete drops a cached recording. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, fileID)
}

func (s *Store) deleteLocked(ctx context.Context, fileID string) error {
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE file_id = ?", fileID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database. The file is kept for the next start.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
