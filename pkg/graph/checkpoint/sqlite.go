package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id TEXT NOT NULL,
	step      TEXT NOT NULL,
	sequence  INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	data      BLOB NOT NULL,
	PRIMARY KEY (thread_id, step)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_id ON checkpoints(thread_id);
`

// SQLiteStore persists checkpoints in a SQLite file, one row per
// (thread, step). Suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a checkpoint database at path.
// Use ":memory:" for an ephemeral store. WAL mode is enabled so
// readers do not block the writer.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// guard returns ErrStoreClosed after Close. Callers hold s.mu.
func (s *SQLiteStore) guard() error {
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save implements Store. The sequence is assigned as the thread's
// current maximum plus one, so Latest always sees the newest write
// even when a step's row is overwritten.
func (s *SQLiteStore) Save(threadID, step string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	const q = `
		INSERT INTO checkpoints (thread_id, step, sequence, timestamp, data)
		VALUES (
			?, ?,
			COALESCE((SELECT MAX(sequence) FROM checkpoints WHERE thread_id = ?), 0) + 1,
			?, ?
		)
		ON CONFLICT(thread_id, step) DO UPDATE SET
			sequence = (SELECT MAX(sequence) FROM checkpoints WHERE thread_id = excluded.thread_id) + 1,
			timestamp = excluded.timestamp,
			data = excluded.data`
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(q, threadID, step, threadID, now, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(threadID, step string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM checkpoints WHERE thread_id = ? AND step = ?`,
		threadID, step).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(threadID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM checkpoints WHERE thread_id = ? ORDER BY sequence DESC LIMIT 1`,
		threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store. Results come back in sequence order.
func (s *SQLiteStore) List(threadID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.guard(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT step, sequence, timestamp, LENGTH(data)
		 FROM checkpoints WHERE thread_id = ? ORDER BY sequence`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		info := Info{ThreadID: threadID}
		var timestamp string
		if err := rows.Scan(&info.Step, &info.Sequence, &timestamp, &info.Size); err != nil {
			return nil, fmt.Errorf("scan checkpoint info: %w", err)
		}
		info.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(threadID, step string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	if _, err := s.db.Exec(
		`DELETE FROM checkpoints WHERE thread_id = ? AND step = ?`,
		threadID, step); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteThread implements Store.
func (s *SQLiteStore) DeleteThread(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}

	if _, err := s.db.Exec(
		`DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store. Closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
