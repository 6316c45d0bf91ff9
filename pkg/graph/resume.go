package graph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
)

// resumeConfig holds configuration for resuming from a checkpoint.
type resumeConfig[S any] struct {
	stateOverride func(S) S
	validateState func(S) error
	runOpts       []RunOption[S]
}

// ResumeOption configures Resume behavior.
type ResumeOption[S any] func(*resumeConfig[S])

// WithStateOverride applies a transformation to the restored state
// before execution continues. Used to inject approval or denial
// outcomes into a suspended turn.
func WithStateOverride[S any](fn func(S) S) ResumeOption[S] {
	return func(c *resumeConfig[S]) {
		c.stateOverride = fn
	}
}

// WithStateValidation runs a validation function against the restored
// state (after any override). Resume fails if validation returns an error.
func WithStateValidation[S any](fn func(S) error) ResumeOption[S] {
	return func(c *resumeConfig[S]) {
		c.validateState = fn
	}
}

// WithResumeRunOptions forwards run options (observability, iteration
// limits, step listeners) to the resumed execution. The checkpoint
// store and thread ID are always taken from the Resume arguments.
func WithResumeRunOptions[S any](opts ...RunOption[S]) ResumeOption[S] {
	return func(c *resumeConfig[S]) {
		c.runOpts = append(c.runOpts, opts...)
	}
}

// Resume continues execution from the latest checkpoint for a thread.
// It loads the checkpoint, restores the state, and starts execution at
// the checkpoint's recorded next node.
//
// A run suspended at an interrupt point resumes at the withheld node
// directly, so the same interrupt does not fire again. A later
// transition into an interrupt point suspends as usual.
//
// Example:
//
//	// Turn paused awaiting tool approval
//	result, err := compiled.Resume(ctx, store, "thread-123")
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, threadID string, opts ...ResumeOption[S]) (Result[S], error) {
	var zero Result[S]

	if ctx == nil {
		return zero, ErrNilContext
	}

	cfg := resumeConfig[S]{}
	for _, opt := range opts {
		opt(&cfg)
	}

	cp, state, err := cg.loadLatest(store, threadID)
	if err != nil {
		return zero, err
	}

	if cfg.stateOverride != nil {
		state = cfg.stateOverride(state)
	}

	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return Result[S]{State: state}, fmt.Errorf("state validation failed: %w", err)
		}
	}

	startNode := cp.NextStep
	if startNode == END {
		// The previous run already finished; nothing to execute.
		return Result[S]{State: state}, nil
	}
	if !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeStep, startNode)
	}

	runCfg := defaultRunConfig[S]()
	for _, opt := range cfg.runOpts {
		opt(&runCfg)
	}
	runCfg.checkpointStore = store
	runCfg.threadID = threadID
	runCfg.sequence = cp.Sequence

	return cg.runWithObservability(ctx, state, startNode, &runCfg, true)
}

// UpdateState rewrites the latest checkpoint for a thread as if the
// given node had just executed and produced the updated state. The
// next node is derived from asStep's outgoing edge (or router), so a
// subsequent Resume continues past asStep.
//
// This is how a denied tool request is recorded: the agent injects
// denial results as the tool node's output, and the turn resumes at
// the node that follows it.
func (cg *CompiledGraph[S]) UpdateState(ctx Context, store checkpoint.Store, threadID, asStep string, update func(S) S) error {
	if ctx == nil {
		return ErrNilContext
	}
	if !cg.HasNode(asStep) {
		return fmt.Errorf("%w: %s", ErrInvalidResumeStep, asStep)
	}

	cp, state, err := cg.loadLatest(store, threadID)
	if err != nil {
		return err
	}

	if update != nil {
		state = update(state)
	}

	next, err := cg.nextNode(ctx, state, asStep)
	if err != nil {
		return err
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return &CheckpointError{Step: asStep, Op: "serialize", Err: err}
	}

	updated := checkpoint.New(threadID, asStep, cp.Sequence+1, stateBytes, next).
		WithPrevStep(cp.Step)
	data, err := updated.Marshal()
	if err != nil {
		return &CheckpointError{Step: asStep, Op: "marshal", Err: err}
	}

	if err := store.Save(threadID, asStep, data); err != nil {
		return &CheckpointError{Step: asStep, Op: "save", Err: err}
	}

	return nil
}

// LatestState returns the restored state from a thread's latest
// checkpoint along with the node that would execute next (END if the
// previous run completed).
func (cg *CompiledGraph[S]) LatestState(store checkpoint.Store, threadID string) (S, string, error) {
	cp, state, err := cg.loadLatest(store, threadID)
	if err != nil {
		var zero S
		return zero, "", err
	}
	return state, cp.NextStep, nil
}

// loadLatest fetches and decodes the latest checkpoint for a thread.
func (cg *CompiledGraph[S]) loadLatest(store checkpoint.Store, threadID string) (*checkpoint.Checkpoint, S, error) {
	var zero S

	data, err := store.Latest(threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadID)
		}
		return nil, zero, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cp.Version != checkpoint.Version {
		return nil, zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	return cp, state, nil
}
