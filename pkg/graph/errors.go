// Package graph provides a checkpointable graph execution engine for
// conversational agent turns. A graph is built from named nodes joined
// by simple or conditional edges, compiled into an immutable form, and
// executed step by step with optional persistence after every step.
package graph

import (
	"errors"
	"fmt"
)

// Build and compile failures.
var (
	ErrNoEntryPoint      = errors.New("entry point not set")
	ErrEntryNotFound     = errors.New("entry point node not found")
	ErrNodeNotFound      = errors.New("node not found")
	ErrNoPathToEnd       = errors.New("no path to END from entry")
	ErrInterruptNotFound = errors.New("interrupt node not found")
)

// Execution failures.
var (
	ErrMaxIterations        = errors.New("exceeded maximum iterations")
	ErrNilContext           = errors.New("context cannot be nil")
	ErrInvalidRouterResult  = errors.New("router returned empty string")
	ErrRouterTargetNotFound = errors.New("router returned unknown node")
)

// Checkpoint and resume failures.
var (
	ErrThreadIDRequired          = errors.New("thread ID required for checkpointing")
	ErrDeserializeState          = errors.New("failed to deserialize state")
	ErrNoCheckpoints             = errors.New("no checkpoints found for thread")
	ErrInvalidResumeStep         = errors.New("invalid resume step")
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// CheckpointError reports a failed checkpoint operation. Op is one of
// "save", "serialize", or "marshal"; Step names the node being
// checkpointed.
type CheckpointError struct {
	Step string
	Op   string
	Err  error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at step %s: %v", e.Op, e.Step, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError attributes a failure to the node that produced it.
type NodeError struct {
	NodeID string
	Op     string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a recovered panic from a node, including the
// stack at the panic site.
type PanicError struct {
	NodeID string
	Value  any
	Stack  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError reports context cancellation between nodes. State
// holds the last completed state; type-assert it to recover.
type CancellationError struct {
	NodeID string
	State  any
	Cause  error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError reports a conditional edge whose router misbehaved.
// Returned is the router's raw return value.
type RouterError struct {
	FromNode string
	Returned string
	Err      error
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError reports a run that hit the iteration bound.
// LastNodeID is the node that would have executed next, and State the
// state at termination.
type MaxIterationsError struct {
	Max        int
	LastNodeID string
	State      any
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxIterations so errors.Is matches.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}
