package graph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
)

// Context provides execution context to nodes.
// It extends context.Context with engine services and metadata.
//
// Context is immutable after creation. The executor creates derived
// contexts for each node with an updated StepID and enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with thread and step context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// Checkpointer returns the checkpoint store, or nil if not configured.
	// Nodes should check for nil before using.
	Checkpointer() checkpoint.Store

	// ThreadID returns the conversation thread this execution belongs to.
	// Auto-generated if not configured.
	ThreadID() string

	// StepID returns the node currently being executed.
	// Empty string before execution starts.
	StepID() string
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger       *slog.Logger
	checkpointer checkpoint.Store
	threadID     string
	stepID       string
}

func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

func (c *executionContext) Checkpointer() checkpoint.Store {
	return c.checkpointer
}

func (c *executionContext) ThreadID() string {
	return c.threadID
}

func (c *executionContext) StepID() string {
	return c.stepID
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger is enriched with thread_id and step during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCheckpointer sets the checkpoint store for the context.
func WithCheckpointer(store checkpoint.Store) ContextOption {
	return func(c *executionContext) {
		c.checkpointer = store
	}
}

// WithContextThreadID sets the thread identifier for the context.
// If not set, a UUID is auto-generated. This is used for logging and
// tracing. For checkpointing, use WithThreadID() as a RunOption.
func WithContextThreadID(id string) ContextOption {
	return func(c *executionContext) {
		c.threadID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// engine services and metadata.
//
// Example:
//
//	ctx := graph.NewContext(context.Background(),
//	    graph.WithLogger(myLogger),
//	    graph.WithContextThreadID("thread-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:  ctx,
		logger:   slog.Default(),
		threadID: uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withStepID returns a new context with the given step ID set.
// Used internally by the executor to enrich the context per-node.
func (c *executionContext) withStepID(stepID string) *executionContext {
	return &executionContext{
		Context:      c.Context,
		logger:       c.logger.With("thread_id", c.threadID, "step", stepID),
		checkpointer: c.checkpointer,
		threadID:     c.threadID,
		stepID:       stepID,
	}
}
