package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/randalmurphal/expenseagent/pkg/graph"
	"github.com/randalmurphal/expenseagent/pkg/graph/checkpoint"
	"github.com/randalmurphal/expenseagent/pkg/observability"
	"github.com/randalmurphal/expenseagent/pkg/tools"
)

// denialMessage is injected as the result of every denied tool call.
const denialMessage = "User denied execution. Ask for next steps."

var (
	// ErrThreadBusy means another execution is in flight for the thread.
	ErrThreadBusy = errors.New("thread is busy with another execution")
	// ErrApprovalPending means the thread has a suspended turn awaiting
	// approval; Send is refused until it is approved or denied.
	ErrApprovalPending = errors.New("thread has a pending tool approval")
	// ErrNoPendingApproval means Approve or Deny was called on a thread
	// with nothing suspended.
	ErrNoPendingApproval = errors.New("thread has no pending tool approval")
)

// TurnResult is what one Send, Approve, or Deny call produced.
type TurnResult struct {
	// ThreadID is the conversation this result belongs to.
	ThreadID string
	// Reply is the assistant's message, empty while Paused.
	Reply string
	// Paused is true when the turn suspended awaiting tool approval.
	Paused bool
	// PendingCalls are the tool calls awaiting approval when Paused.
	PendingCalls []tools.Call
}

// Agent runs conversation turns over the compiled graph with durable
// per-thread checkpoints and human approval of tool execution.
type Agent struct {
	compiled *graph.CompiledGraph[TurnState]
	store    checkpoint.Store
	deps     Dependencies

	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	tracing  bool
	observer func(threadID, step string)

	mu      sync.Mutex
	threads map[string]*threadLock
}

// threadLock guards one thread's execution. refs counts the goroutines
// holding a reference so the map entry can be dropped once idle.
type threadLock struct {
	sync.Mutex
	refs int
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithAgentLogger sets the logger for turn lifecycle events.
func WithAgentLogger(logger *slog.Logger) AgentOption {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithAgentMetrics sets the metrics recorder.
func WithAgentMetrics(m observability.MetricsRecorder) AgentOption {
	return func(a *Agent) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithStepObserver registers a callback invoked as each step of a turn
// completes. Useful for streaming progress to a UI.
func WithStepObserver(fn func(threadID, step string)) AgentOption {
	return func(a *Agent) {
		a.observer = fn
	}
}

// WithAgentTracing enables span creation for turns and steps.
func WithAgentTracing(sm observability.SpanManager) AgentOption {
	return func(a *Agent) {
		if sm != nil {
			a.spans = sm
			a.tracing = true
		}
	}
}

// New builds the turn graph from deps and returns an agent that
// checkpoints every thread into store.
func New(deps Dependencies, store checkpoint.Store, opts ...AgentOption) (*Agent, error) {
	compiled, err := BuildGraph(deps)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		compiled: compiled,
		store:    store,
		deps:     deps,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		threads:  make(map[string]*threadLock),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// acquire takes the thread lock without blocking. At most one
// execution runs per thread; concurrent callers get ErrThreadBusy.
// Idle threads leave nothing behind: the map entry is removed when the
// last referencing goroutine lets go.
func (a *Agent) acquire(threadID string) (release func(), err error) {
	a.mu.Lock()
	lock, ok := a.threads[threadID]
	if !ok {
		lock = &threadLock{}
		a.threads[threadID] = lock
	}
	lock.refs++
	a.mu.Unlock()

	if !lock.TryLock() {
		a.unref(threadID, lock)
		return nil, ErrThreadBusy
	}
	return func() {
		lock.Unlock()
		a.unref(threadID, lock)
	}, nil
}

// unref drops one reference to a thread lock, evicting the map entry
// once nobody holds it.
func (a *Agent) unref(threadID string, lock *threadLock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(a.threads, threadID)
	}
}

// runOptions assembles the per-execution graph options.
func (a *Agent) runOptions(threadID string) []graph.RunOption[TurnState] {
	opts := []graph.RunOption[TurnState]{
		graph.WithCheckpointStore[TurnState](a.store),
		graph.WithThreadID[TurnState](threadID),
		// Checkpoint loss would break approve/deny, so any save failure
		// aborts the turn.
		graph.WithCheckpointFailureFatal[TurnState](),
		graph.WithRunLogger[TurnState](a.logger),
		graph.WithMetrics[TurnState](a.metrics),
	}
	if a.tracing {
		opts = append(opts, graph.WithTracing[TurnState](a.spans))
	}
	if a.observer != nil {
		opts = append(opts, graph.WithStepListener[TurnState](func(step string, _ TurnState) {
			a.observer(threadID, step)
		}))
	}
	return opts
}

// executionContext builds the graph context for a thread.
func (a *Agent) executionContext(ctx context.Context, threadID string) graph.Context {
	opts := []graph.ContextOption{
		graph.WithContextThreadID(threadID),
		graph.WithCheckpointer(a.store),
	}
	if a.logger != nil {
		opts = append(opts, graph.WithLogger(a.logger))
	}
	return graph.NewContext(ctx, opts...)
}

// Send runs one conversation turn. The turn either completes with a
// reply or pauses awaiting approval of the tool calls it wants to run.
//
// A thread with a suspended turn refuses new messages until the
// pending tools are approved or denied.
func (a *Agent) Send(ctx context.Context, threadID, text string) (TurnResult, error) {
	release, err := a.acquire(threadID)
	if err != nil {
		return TurnResult{ThreadID: threadID}, err
	}
	defer release()

	state, nextStep, err := a.compiled.LatestState(a.store, threadID)
	switch {
	case errors.Is(err, graph.ErrNoCheckpoints):
		state = TurnState{WebSearchEnabled: a.deps.Settings.WebSearchEnabled}
	case err != nil:
		return TurnResult{ThreadID: threadID}, err
	case nextStep != graph.END:
		return TurnResult{ThreadID: threadID}, ErrApprovalPending
	}

	state = state.beginTurn(text)

	result, err := a.compiled.Run(a.executionContext(ctx, threadID), state, a.runOptions(threadID)...)
	if err != nil {
		return TurnResult{ThreadID: threadID}, err
	}
	return a.turnResult(threadID, result), nil
}

// Approve resumes a suspended turn, executing the pending tool calls.
func (a *Agent) Approve(ctx context.Context, threadID string) (TurnResult, error) {
	release, err := a.acquire(threadID)
	if err != nil {
		return TurnResult{ThreadID: threadID}, err
	}
	defer release()

	if err := a.requirePendingTools(threadID); err != nil {
		return TurnResult{ThreadID: threadID}, err
	}

	result, err := a.compiled.Resume(a.executionContext(ctx, threadID), a.store, threadID,
		graph.WithResumeRunOptions[TurnState](a.runOptions(threadID)...))
	if err != nil {
		return TurnResult{ThreadID: threadID}, err
	}
	return a.turnResult(threadID, result), nil
}

// Deny declines the pending tool calls. A synthetic result is recorded
// for each call as if the tools step had run, and the turn resumes at
// the answer step so the assistant can ask for direction. An empty
// substitute uses the standard denial message.
func (a *Agent) Deny(ctx context.Context, threadID, substitute string) (TurnResult, error) {
	release, err := a.acquire(threadID)
	if err != nil {
		return TurnResult{ThreadID: threadID}, err
	}
	defer release()

	if err := a.requirePendingTools(threadID); err != nil {
		return TurnResult{ThreadID: threadID}, err
	}

	content := substitute
	if content == "" {
		content = denialMessage
	}

	gctx := a.executionContext(ctx, threadID)
	err = a.compiled.UpdateState(gctx, a.store, threadID, StepTools, func(state TurnState) TurnState {
		history := cloneHistory(state.History)
		for _, call := range state.PendingToolCalls() {
			history = append(history, ChatMessage{
				Origin:     OriginTool,
				ToolCallID: call.ID,
				Content:    content,
			})
		}
		state.History = history
		state.ToolRounds++
		return state
	})
	if err != nil {
		return TurnResult{ThreadID: threadID}, err
	}

	result, err := a.compiled.Resume(gctx, a.store, threadID,
		graph.WithResumeRunOptions[TurnState](a.runOptions(threadID)...))
	if err != nil {
		return TurnResult{ThreadID: threadID}, err
	}
	return a.turnResult(threadID, result), nil
}

// requirePendingTools verifies the thread is suspended before tools.
func (a *Agent) requirePendingTools(threadID string) error {
	_, nextStep, err := a.compiled.LatestState(a.store, threadID)
	if errors.Is(err, graph.ErrNoCheckpoints) {
		return ErrNoPendingApproval
	}
	if err != nil {
		return err
	}
	if nextStep != StepTools {
		return ErrNoPendingApproval
	}
	return nil
}

// Pending returns the tool calls awaiting approval for a thread, or
// nil when nothing is suspended.
func (a *Agent) Pending(threadID string) ([]tools.Call, error) {
	state, nextStep, err := a.compiled.LatestState(a.store, threadID)
	if errors.Is(err, graph.ErrNoCheckpoints) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if nextStep != StepTools {
		return nil, nil
	}
	return state.PendingToolCalls(), nil
}

// History returns the conversation history for a thread. A thread with
// no checkpoints has an empty history.
func (a *Agent) History(threadID string) ([]ChatMessage, error) {
	state, _, err := a.compiled.LatestState(a.store, threadID)
	if errors.Is(err, graph.ErrNoCheckpoints) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state.History, nil
}

// LastReply returns the reply delivered by the thread's most recent
// completed turn. Reading it is idempotent: a redelivered turn reports
// the same reply because it lives in the checkpointed state.
func (a *Agent) LastReply(threadID string) (string, error) {
	state, _, err := a.compiled.LatestState(a.store, threadID)
	if err != nil {
		return "", err
	}
	return state.FinalReply, nil
}

// turnResult shapes a graph result for callers.
func (a *Agent) turnResult(threadID string, result graph.Result[TurnState]) TurnResult {
	tr := TurnResult{
		ThreadID: threadID,
		Paused:   result.Interrupted,
	}
	if result.Interrupted {
		tr.PendingCalls = result.State.PendingToolCalls()
	} else {
		tr.Reply = result.State.FinalReply
	}
	return tr
}
