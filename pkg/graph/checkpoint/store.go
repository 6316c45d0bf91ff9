// Package checkpoint provides durable turn-state snapshots keyed by
// conversation thread, so a paused or crashed turn can resume at the last
// completed step boundary.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists checkpoints for suspend/resume and crash recovery.
// Implementations must be safe for concurrent use across threads;
// writes for a single thread are expected to come from one goroutine
// at a time (the orchestrator enforces this).
type Store interface {
	// Save stores a checkpoint for a thread at a specific step.
	// Overwrites if a checkpoint for (threadID, step) already exists,
	// always advancing the thread's sequence counter.
	Save(threadID, step string, data []byte) error

	// Load retrieves the checkpoint written at a specific step.
	// Returns ErrNotFound if it doesn't exist.
	Load(threadID, step string) ([]byte, error)

	// Latest retrieves the most recently written checkpoint for a thread.
	// Returns ErrNotFound if the thread has no checkpoints.
	Latest(threadID string) ([]byte, error)

	// List returns checkpoint metadata for a thread, ordered by sequence.
	// Returns an empty slice (not an error) if the thread has none.
	List(threadID string) ([]Info, error)

	// Delete removes a specific checkpoint.
	// Returns nil if the checkpoint doesn't exist.
	Delete(threadID, step string) error

	// DeleteThread removes all checkpoints for a thread.
	// Returns nil if the thread has no checkpoints.
	DeleteThread(threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides checkpoint metadata without loading full state.
type Info struct {
	ThreadID  string
	Step      string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
