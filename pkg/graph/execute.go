package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
	"github.com/randalmurphal/expenseagent/pkg/observability"
)

// Result is the outcome of a Run or Resume call.
type Result[S any] struct {
	// State is the state after the last executed node.
	State S

	// Interrupted is true if the run suspended at an interrupt point
	// instead of reaching END. The pre-interrupt state has been
	// checkpointed; use Resume to continue.
	Interrupted bool

	// PendingStep is the node that was withheld when Interrupted is true.
	PendingStep string

	// Steps is the number of nodes executed in this call.
	Steps int
}

// Run executes the graph with the given initial state.
//
// On success, returns the state after the last node executed before END,
// or an interrupted Result if execution reached an interrupt point.
// On error, the returned Result carries the state at the point of failure.
//
// Execution flow:
//  1. Start at the entry point node
//  2. Check for cancellation
//  3. Execute the current node
//  4. Determine the next node (via simple or conditional edge)
//  5. Checkpoint the state (if a store is configured)
//  6. Suspend if the next node is an interrupt point
//  7. Repeat until END is reached or an error occurs
//
// An interrupt is only reported after its checkpoint has been durably
// saved, so a suspended run can always be resumed.
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption[S]) (Result[S], error) {
	if ctx == nil {
		return Result[S]{State: state}, ErrNilContext
	}

	cfg := defaultRunConfig[S]()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.checkpointStore != nil && cfg.threadID == "" {
		return Result[S]{State: state}, ErrThreadIDRequired
	}

	return cg.runWithObservability(ctx, state, cg.entryPoint, &cfg, false)
}

// runWithObservability wraps the execution loop with turn-level logging,
// metrics, and tracing.
func (cg *CompiledGraph[S]) runWithObservability(ctx Context, state S, startNode string, cfg *runConfig[S], resumed bool) (result Result[S], runErr error) {
	threadID := cfg.threadID
	if threadID == "" {
		threadID = ctx.ThreadID()
	}

	startTime := time.Now()
	observability.LogTurnStart(cfg.logger, threadID, resumed)

	var execCtx context.Context = ctx
	var turnSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, turnSpan = cfg.spans.StartTurnSpan(ctx, threadID)
		defer func() {
			cfg.spans.EndSpanWithError(turnSpan, runErr)
		}()
	}

	result, runErr = cg.runFrom(execCtx, ctx, state, startNode, cfg)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	switch {
	case runErr != nil:
		lastStep := ""
		switch e := runErr.(type) {
		case *NodeError:
			lastStep = e.NodeID
		case *MaxIterationsError:
			lastStep = e.LastNodeID
		case *CancellationError:
			lastStep = e.NodeID
		case *PanicError:
			lastStep = e.NodeID
		case *CheckpointError:
			lastStep = e.Step
		}
		cfg.metrics.RecordTurn(ctx, "error", duration)
		observability.LogTurnError(cfg.logger, threadID, runErr, durationMs, lastStep)
	case result.Interrupted:
		cfg.metrics.RecordTurn(ctx, "paused", duration)
		observability.LogTurnPaused(cfg.logger, threadID, []string{result.PendingStep})
	default:
		cfg.metrics.RecordTurn(ctx, "final", duration)
		observability.LogTurnComplete(cfg.logger, threadID, durationMs, result.Steps)
	}

	return result, runErr
}

// runFrom is the core execution loop.
// tracingCtx carries span context; gctx is the engine Context.
func (cg *CompiledGraph[S]) runFrom(tracingCtx context.Context, gctx Context, state S, startNode string, cfg *runConfig[S]) (Result[S], error) {
	current := startNode
	prevNode := ""
	iterations := 0
	steps := 0

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return Result[S]{State: state, Steps: steps}, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		// Check for cancellation before executing node
		select {
		case <-gctx.Done():
			return Result[S]{State: state, Steps: steps}, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  gctx.Err(),
			}
		default:
		}

		observability.LogStepStart(cfg.logger, current)

		stepTracingCtx := tracingCtx
		var stepSpan trace.Span
		if cfg.tracingEnabled {
			stepTracingCtx, stepSpan = cfg.spans.StartStepSpan(tracingCtx, current)
		}

		stepStart := time.Now()

		var nodeErr error
		state, nodeErr = cg.executeNode(gctx, current, state)

		stepDuration := time.Since(stepStart)
		cfg.metrics.RecordStepExecution(stepTracingCtx, current, stepDuration, nodeErr)

		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(stepSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogStepError(cfg.logger, current, nodeErr)
			return Result[S]{State: state, Steps: steps}, nodeErr
		}
		observability.LogStepComplete(cfg.logger, current, float64(stepDuration.Milliseconds()))
		steps++

		// Determine next node
		next, err := cg.nextNode(gctx, state, current)
		if err != nil {
			return Result[S]{State: state, Steps: steps}, err
		}

		interrupting := next != END && cg.interruptBefore[next]

		// Checkpoint after successful node execution. The checkpoint at
		// an interrupt point must be durable before the pause is reported.
		if cfg.checkpointStore != nil {
			if err := cg.saveCheckpoint(gctx, cfg, current, prevNode, state, next, interrupting); err != nil {
				return Result[S]{State: state, Steps: steps}, err
			}
		}

		if cfg.listener != nil {
			cfg.listener(current, state)
		}

		if interrupting {
			return Result[S]{
				State:       state,
				Interrupted: true,
				PendingStep: next,
				Steps:       steps,
			}, nil
		}

		prevNode = current
		current = next
	}

	return Result[S]{State: state, Steps: steps}, nil
}

// saveCheckpoint persists the current state after node execution.
// Failures are logged and swallowed unless fatal is requested or the
// save guards an interrupt point.
func (cg *CompiledGraph[S]) saveCheckpoint(ctx Context, cfg *runConfig[S], nodeID, prevNodeID string, state S, nextNode string, interrupting bool) error {
	fatal := cfg.checkpointFailureFatal || interrupting

	stateBytes, err := json.Marshal(state)
	if err != nil {
		if fatal {
			return &CheckpointError{Step: nodeID, Op: "serialize", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "serialize", err)
		return nil
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.threadID, nodeID, cfg.sequence, stateBytes, nextNode).
		WithPrevStep(prevNodeID)

	data, err := cp.Marshal()
	if err != nil {
		if fatal {
			return &CheckpointError{Step: nodeID, Op: "marshal", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "marshal", err)
		return nil
	}

	if err := cfg.checkpointStore.Save(cfg.threadID, nodeID, data); err != nil {
		if fatal {
			return &CheckpointError{Step: nodeID, Op: "save", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, "save", err)
		return nil
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(cfg.logger, nodeID, sizeBytes)
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(sizeBytes))

	return nil
}

// executeNode executes a single node with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		// This shouldn't happen if compilation was successful
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	// Create node-specific context with enriched logger
	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withStepID(nodeID)
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode determines the next node to execute.
// Checks conditional edges first, then simple edges.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.getRouter(current); exists {
		routerCtx := ctx
		if ec, ok := ctx.(*executionContext); ok {
			routerCtx = ec.withStepID(current)
		}

		next := router(routerCtx, state)

		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if next != END {
			if _, exists := cg.getNode(next); !exists {
				return "", &RouterError{
					FromNode: current,
					Returned: next,
					Err:      ErrRouterTargetNotFound,
				}
			}
		}

		return next, nil
	}

	edges := cg.getEdges(current)
	if len(edges) == 0 {
		// No outgoing edges - this shouldn't happen if compilation was successful
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}

	// Simple edges are single-target; take the first one.
	return edges[0], nil
}
