package graph

import (
	"log/slog"

	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
	"github.com/randalmurphal/expenseagent/pkg/observability"
)

// runConfig holds configuration for graph execution.
type runConfig[S any] struct {
	maxIterations int

	// Checkpointing
	checkpointStore        checkpoint.Store
	threadID               string
	sequence               int
	checkpointFailureFatal bool

	// Observability
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool

	// Streaming
	listener StepListener[S]
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig[S any]() runConfig[S] {
	return runConfig[S]{
		maxIterations: 1000,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption[S any] func(*runConfig[S])

// WithMaxIterations sets the maximum number of node executions.
// Default: 1000
//
// This prevents infinite loops from hanging forever. If a graph
// exceeds this limit, Run returns a MaxIterationsError.
func WithMaxIterations[S any](n int) RunOption[S] {
	return func(c *runConfig[S]) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithCheckpointStore enables checkpointing to the given store.
// A thread ID must also be provided via WithThreadID.
//
// When enabled, state is checkpointed after every successful node
// execution, keyed by (thread, node). Checkpoint failures are logged
// and ignored unless WithCheckpointFailureFatal is set, except for
// the checkpoint written at an interrupt point, which must succeed
// before the pause is reported.
func WithCheckpointStore[S any](store checkpoint.Store) RunOption[S] {
	return func(c *runConfig[S]) {
		c.checkpointStore = store
	}
}

// WithThreadID sets the thread identifier used for checkpoint keys.
// Required when a checkpoint store is configured.
func WithThreadID[S any](id string) RunOption[S] {
	return func(c *runConfig[S]) {
		c.threadID = id
	}
}

// WithCheckpointFailureFatal makes any checkpoint save failure abort
// the run with a CheckpointError instead of logging and continuing.
func WithCheckpointFailureFatal[S any]() RunOption[S] {
	return func(c *runConfig[S]) {
		c.checkpointFailureFatal = true
	}
}

// WithRunLogger sets the logger used for execution lifecycle events.
func WithRunLogger[S any](logger *slog.Logger) RunOption[S] {
	return func(c *runConfig[S]) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder for step and checkpoint metrics.
func WithMetrics[S any](m observability.MetricsRecorder) RunOption[S] {
	return func(c *runConfig[S]) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables span creation via the given span manager.
func WithTracing[S any](sm observability.SpanManager) RunOption[S] {
	return func(c *runConfig[S]) {
		if sm != nil {
			c.spans = sm
			c.tracingEnabled = true
		}
	}
}

// WithStepListener registers a callback invoked after each node
// completes, with the node ID and the state it produced. Useful for
// streaming intermediate progress to a UI.
func WithStepListener[S any](fn StepListener[S]) RunOption[S] {
	return func(c *runConfig[S]) {
		c.listener = fn
	}
}
