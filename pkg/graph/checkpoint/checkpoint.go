package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot of a turn's execution state.
// It contains everything needed to resume at the next step boundary.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	ThreadID  string    `json:"thread_id"`
	Step      string    `json:"step"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	State    json.RawMessage `json:"state"`
	NextStep string          `json:"next_step"`

	// PrevStep records where execution came from, for debugging.
	PrevStep string `json:"prev_step,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a checkpoint for the given step.
// State must already be JSON-serialized.
func New(threadID, step string, sequence int, state []byte, nextStep string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		ThreadID:  threadID,
		Step:      step,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextStep:  nextStep,
	}
}

// WithPrevStep sets the previous step for debugging.
func (c *Checkpoint) WithPrevStep(prev string) *Checkpoint {
	c.PrevStep = prev
	return c
}
