package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/expenseagent/pkg/observability"
)

// Call is one tool invocation requested by the model.
type Call struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is the outcome of one tool call. Failures are surfaced to the
// model as content with IsError set, never as Go errors, so one bad
// call does not abort the batch.
type Result struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Executor runs tool calls against a registry with per-call timeouts,
// panic recovery, and metrics.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorTimeout bounds each individual tool call.
func WithExecutorTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithExecutorLogger attaches a logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithExecutorMetrics attaches a metrics recorder.
func WithExecutorMetrics(m observability.MetricsRecorder) ExecutorOption {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry: registry,
		timeout:  30 * time.Second,
		metrics:  observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs each call in order and returns exactly one result per
// call, preserving order. Unknown tools, handler errors, timeouts, and
// panics all become error results.
func (e *Executor) Execute(ctx context.Context, calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.executeOne(ctx, call))
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, call Call) Result {
	handler, ok := e.registry.Get(call.Name)
	if !ok {
		e.metrics.RecordToolCall(ctx, call.Name, 0, true)
		return Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("unknown tool %q", call.Name),
			IsError: true,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	content, err := runHandler(callCtx, handler, call.Args)
	duration := time.Since(start)
	e.metrics.RecordToolCall(ctx, call.Name, duration, err != nil)

	if err != nil {
		if e.logger != nil {
			e.logger.Warn("tool call failed",
				slog.String("tool", call.Name),
				slog.String("call_id", call.ID),
				slog.String("error", err.Error()),
			)
		}
		return Result{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("tool %s failed: %v", call.Name, err),
			IsError: true,
		}
	}

	if e.logger != nil {
		e.logger.Debug("tool call completed",
			slog.String("tool", call.Name),
			slog.String("call_id", call.ID),
			slog.Duration("duration", duration),
		)
	}
	return Result{CallID: call.ID, Name: call.Name, Content: content}
}

// runHandler isolates handler panics so a misbehaving tool cannot take
// down the turn.
func runHandler(ctx context.Context, h Handler, args map[string]any) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			content = ""
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return h(ctx, args)
}
