package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
)

// linearGraph builds a -> b -> c -> END.
func linearGraph(t *testing.T) *CompiledGraph[flowState] {
	t.Helper()
	compiled, err := New[flowState]().
		AddNode("a", traceNode("a")).
		AddNode("b", traceNode("b")).
		AddNode("c", traceNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)
	return compiled
}

func TestRun_Linear(t *testing.T) {
	compiled := linearGraph(t)

	result, err := compiled.Run(NewContext(context.Background()), flowState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.State.Trace)
	assert.Equal(t, 3, result.Steps)
	assert.False(t, result.Interrupted)
}

func TestRun_NilContext(t *testing.T) {
	compiled := linearGraph(t)

	_, err := compiled.Run(nil, flowState{})
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRun_ConditionalRouting(t *testing.T) {
	compiled, err := New[flowState]().
		AddNode("inc", func(ctx Context, s flowState) (flowState, error) {
			s.Value++
			s.Trace = append(s.Trace, "inc")
			return s, nil
		}).
		AddNode("done", traceNode("done")).
		AddConditionalEdge("inc", func(ctx Context, s flowState) string {
			if s.Value >= 3 {
				return "done"
			}
			return "inc"
		}).
		AddEdge("done", END).
		SetEntry("inc").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(NewContext(context.Background()), flowState{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.State.Value)
	assert.Equal(t, []string{"inc", "inc", "inc", "done"}, result.State.Trace)
}

func TestRun_MaxIterations(t *testing.T) {
	compiled, err := New[flowState]().
		AddNode("loop", traceNode("loop")).
		AddConditionalEdge("loop", func(ctx Context, s flowState) string { return "loop" }).
		SetEntry("loop").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background()), flowState{},
		WithMaxIterations[flowState](5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxIterations)

	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 5, maxErr.Max)
	assert.Equal(t, "loop", maxErr.LastNodeID)
}

func TestRun_Cancellation(t *testing.T) {
	compiled := linearGraph(t)

	stdCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := compiled.Run(NewContext(stdCtx), flowState{})
	require.Error(t, err)

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "a", cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NodeError(t *testing.T) {
	boom := errors.New("boom")
	compiled, err := New[flowState]().
		AddNode("a", traceNode("a")).
		AddNode("fail", func(ctx Context, s flowState) (flowState, error) {
			return s, boom
		}).
		AddEdge("a", "fail").
		AddEdge("fail", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(NewContext(context.Background()), flowState{})
	require.Error(t, err)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "fail", nodeErr.NodeID)
	assert.ErrorIs(t, err, boom)

	// State at the point of failure is preserved.
	assert.Equal(t, []string{"a"}, result.State.Trace)
}

func TestRun_PanicRecovery(t *testing.T) {
	compiled, err := New[flowState]().
		AddNode("panicky", func(ctx Context, s flowState) (flowState, error) {
			panic("something broke")
		}).
		AddEdge("panicky", END).
		SetEntry("panicky").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background()), flowState{})
	require.Error(t, err)

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "panicky", panicErr.NodeID)
	assert.Equal(t, "something broke", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestRun_RouterEmptyResult(t *testing.T) {
	compiled, err := New[flowState]().
		AddNode("a", traceNode("a")).
		AddConditionalEdge("a", func(ctx Context, s flowState) string { return "" }).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background()), flowState{})
	assert.ErrorIs(t, err, ErrInvalidRouterResult)
}

func TestRun_RouterUnknownTarget(t *testing.T) {
	compiled, err := New[flowState]().
		AddNode("a", traceNode("a")).
		AddConditionalEdge("a", func(ctx Context, s flowState) string { return "ghost" }).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(context.Background()), flowState{})
	require.Error(t, err)

	var routerErr *RouterError
	require.ErrorAs(t, err, &routerErr)
	assert.Equal(t, "a", routerErr.FromNode)
	assert.Equal(t, "ghost", routerErr.Returned)
	assert.ErrorIs(t, err, ErrRouterTargetNotFound)
}

func TestRun_CheckpointRequiresThreadID(t *testing.T) {
	compiled := linearGraph(t)
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	_, err := compiled.Run(NewContext(context.Background()), flowState{},
		WithCheckpointStore[flowState](store))
	assert.ErrorIs(t, err, ErrThreadIDRequired)
}

func TestRun_CheckpointsEveryStep(t *testing.T) {
	compiled := linearGraph(t)
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	_, err := compiled.Run(NewContext(context.Background()), flowState{},
		WithCheckpointStore[flowState](store),
		WithThreadID[flowState]("thread-1"))
	require.NoError(t, err)

	infos, err := store.List("thread-1")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "a", infos[0].Step)
	assert.Equal(t, "c", infos[2].Step)

	// The latest checkpoint records END as the next step.
	data, err := store.Latest("thread-1")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "c", cp.Step)
	assert.Equal(t, END, cp.NextStep)
	assert.Equal(t, "b", cp.PrevStep)
}

func TestRun_InterruptPausesBeforeNode(t *testing.T) {
	compiled, err := New[flowState]().
		AddNode("a", traceNode("a")).
		AddNode("b", traceNode("b")).
		AddNode("c", traceNode("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetInterruptBefore("c").
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	store := checkpoint.NewMemoryStore()
	defer store.Close()

	result, err := compiled.Run(NewContext(context.Background()), flowState{},
		WithCheckpointStore[flowState](store),
		WithThreadID[flowState]("thread-1"))
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	assert.Equal(t, "c", result.PendingStep)
	assert.Equal(t, []string{"a", "b"}, result.State.Trace)
	assert.Equal(t, 2, result.Steps)

	// The pause is only reported after its checkpoint is durable.
	data, err := store.Latest("thread-1")
	require.NoError(t, err)
	cp, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "b", cp.Step)
	assert.Equal(t, "c", cp.NextStep)
}

func TestRun_InterruptCheckpointFailureIsFatal(t *testing.T) {
	compiled, err := New[flowState]().
		AddNode("a", traceNode("a")).
		AddNode("b", traceNode("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetInterruptBefore("b").
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Close()) // every Save will fail

	_, err = compiled.Run(NewContext(context.Background()), flowState{},
		WithCheckpointStore[flowState](store),
		WithThreadID[flowState]("thread-1"))
	require.Error(t, err)

	var cpErr *CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, "a", cpErr.Step)
	assert.Equal(t, "save", cpErr.Op)
}

func TestRun_CheckpointFailureNonFatalByDefault(t *testing.T) {
	compiled := linearGraph(t)
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Close()) // every Save will fail

	result, err := compiled.Run(NewContext(context.Background()), flowState{},
		WithCheckpointStore[flowState](store),
		WithThreadID[flowState]("thread-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.State.Trace)
}

func TestRun_CheckpointFailureFatalOption(t *testing.T) {
	compiled := linearGraph(t)
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Close())

	_, err := compiled.Run(NewContext(context.Background()), flowState{},
		WithCheckpointStore[flowState](store),
		WithThreadID[flowState]("thread-1"),
		WithCheckpointFailureFatal[flowState]())
	require.Error(t, err)

	var cpErr *CheckpointError
	assert.ErrorAs(t, err, &cpErr)
}

func TestRun_StepListener(t *testing.T) {
	compiled := linearGraph(t)

	var seen []string
	result, err := compiled.Run(NewContext(context.Background()), flowState{},
		WithStepListener[flowState](func(step string, s flowState) {
			seen = append(seen, fmt.Sprintf("%s:%d", step, len(s.Trace)))
		}))
	require.NoError(t, err)
	require.Equal(t, 3, result.Steps)
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, seen)
}

func TestRun_NodeContextEnriched(t *testing.T) {
	var sawStep string
	var sawThread string
	compiled, err := New[flowState]().
		AddNode("a", func(ctx Context, s flowState) (flowState, error) {
			sawStep = ctx.StepID()
			sawThread = ctx.ThreadID()
			return s, nil
		}).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	ctx := NewContext(context.Background(), WithContextThreadID("thread-42"))
	_, err = compiled.Run(ctx, flowState{})
	require.NoError(t, err)
	assert.Equal(t, "a", sawStep)
	assert.Equal(t, "thread-42", sawThread)
}
