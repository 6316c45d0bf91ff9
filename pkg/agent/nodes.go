package agent

import (
	"context"
	"errors"
	"time"

	"github.com/randalmurphal/expenseagent/pkg/config"
	"github.com/randalmurphal/expenseagent/pkg/graph"
	"github.com/randalmurphal/expenseagent/pkg/knowledge"
	"github.com/randalmurphal/expenseagent/pkg/llm"
	"github.com/randalmurphal/expenseagent/pkg/observability"
	"github.com/randalmurphal/expenseagent/pkg/tools"
	"github.com/randalmurphal/expenseagent/pkg/websearch"
)

// Step names in the turn graph.
const (
	StepRouter    = "router"
	StepRetrieval = "retrieval"
	StepWeb       = "web"
	StepAnswer    = "answer"
	StepTools     = "tools"
)

// Canned assistant messages for degraded outcomes.
const (
	// webDisabledReason marks a forced web->retrieval redirect.
	webDisabledReason = "Web search was disabled by user"
	// safeFallbackReply is delivered when the answer completion fails.
	// Tool effects may already be committed by then, so the turn
	// finishes with this text instead of an error.
	safeFallbackReply = "Action completed successfully, but I had trouble generating a summary. Your records are updated!"
	// silentAfterToolsReply covers a model that returns nothing after a
	// tool round.
	silentAfterToolsReply = "I've processed that for you. Everything looks good!"
	// silentDefaultReply covers a model that returns nothing at all.
	silentDefaultReply = "I'm here to help. What would you like to do with your expenses?"
)

// DecisionClient produces the typed routing and sufficiency decisions.
// *llm.StructuredClient implements it.
type DecisionClient interface {
	DecideRoute(ctx context.Context, messages []llm.Message) (llm.RouteDecision, error)
	JudgeSufficiency(ctx context.Context, messages []llm.Message) (llm.SufficiencyVerdict, error)
}

// Dependencies are the external capabilities the turn graph runs on.
type Dependencies struct {
	Completer llm.Client
	Decider   DecisionClient
	Retriever knowledge.Retriever
	Searcher  websearch.Searcher
	Executor  *tools.Executor
	Registry  *tools.Registry
	Settings  config.Settings

	// Now supplies the current time for prompts. Defaults to time.Now.
	Now func() time.Time
}

// nodes carries the dependencies into the step implementations.
type nodes struct {
	deps   Dependencies
	window *Window
}

// BuildGraph compiles the turn graph:
//
//	router -> retrieval -> web -> answer <-> tools
//
// with conditional transitions and an interrupt point before tools so
// a human can approve or deny execution.
func BuildGraph(deps Dependencies) (*graph.CompiledGraph[TurnState], error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	n := &nodes{
		deps:   deps,
		window: NewWindow(deps.Settings.HistoryBudget),
	}

	g := graph.New[TurnState]().
		AddNode(StepRouter, n.router).
		AddNode(StepRetrieval, n.retrieval).
		AddNode(StepWeb, n.web).
		AddNode(StepAnswer, n.answer).
		AddNode(StepTools, n.tools).
		SetEntry(StepRouter).
		AddConditionalEdge(StepRouter, n.afterRouter).
		AddConditionalEdge(StepRetrieval, n.afterContext).
		AddEdge(StepWeb, StepAnswer).
		AddConditionalEdge(StepAnswer, n.afterAnswer).
		AddEdge(StepTools, StepAnswer).
		SetInterruptBefore(StepTools)

	return g.Compile()
}

// router decides where the turn goes. A web decision on a thread with
// web search disabled is redirected to retrieval, never honored.
func (n *nodes) router(ctx graph.Context, state TurnState) (TurnState, error) {
	dctx, cancel := context.WithTimeout(ctx, n.deps.Settings.DecisionTimeout)
	defer cancel()

	decision, err := n.deps.Decider.DecideRoute(dctx, routerMessages(state, n.deps.Now()))
	if err != nil {
		// Decode failures are fatal: a turn must not proceed on a
		// guessed route.
		return state, err
	}

	route := Route(decision.Route)
	if route == RouteWeb && !state.WebSearchEnabled {
		state.Override = &RouteOverride{From: RouteWeb, To: RouteRetrieval, Reason: webDisabledReason}
		state.History = append(cloneHistory(state.History),
			ChatMessage{Origin: OriginSystem, Content: webDisabledReason})
		observability.LogRouteOverride(ctx.Logger(), string(RouteWeb), string(RouteRetrieval), webDisabledReason)
		route = RouteRetrieval
	}

	if route == RouteEnd {
		reply := decision.Reply
		if reply == "" {
			reply = silentDefaultReply
		}
		state.FinalReply = reply
		state.History = append(cloneHistory(state.History),
			ChatMessage{Origin: OriginAssistant, Content: reply})
	}

	state.Route = route
	return state, nil
}

func (n *nodes) afterRouter(_ graph.Context, state TurnState) string {
	switch state.Route {
	case RouteRetrieval:
		return StepRetrieval
	case RouteWeb:
		return StepWeb
	case RouteAnswer:
		return StepAnswer
	case RouteEnd:
		return graph.END
	default:
		return StepAnswer
	}
}

// retrieval searches the knowledge base and judges whether the result
// suffices. Retrieval failures are recoverable: the turn reroutes with
// a diagnostic entry instead of failing.
func (n *nodes) retrieval(ctx graph.Context, state TurnState) (TurnState, error) {
	question := state.LastUserMessage()

	sctx, cancel := context.WithTimeout(ctx, n.deps.Settings.SearchTimeout)
	result, err := n.deps.Retriever.Search(sctx, question)
	cancel()

	if err != nil {
		var tagged *knowledge.Error
		if errors.As(err, &tagged) {
			ctx.Logger().Warn("knowledge retrieval failed", "error", err)
			state.History = append(cloneHistory(state.History),
				ChatMessage{Origin: OriginSystem, Content: "Knowledge base lookup failed; continuing without local context."})
			state.Route = n.contextFallback(state)
			return state, nil
		}
		return state, err
	}

	if result == "" {
		state.Route = n.contextFallback(state)
		return state, nil
	}
	state.Retrieved = result

	dctx, cancel := context.WithTimeout(ctx, n.deps.Settings.DecisionTimeout)
	defer cancel()
	verdict, err := n.deps.Decider.JudgeSufficiency(dctx, judgeMessages(question, result))
	if err != nil {
		return state, err
	}

	if verdict.Sufficient || !state.WebSearchEnabled {
		state.Route = RouteAnswer
	} else {
		state.Route = RouteWeb
	}
	return state, nil
}

// contextFallback picks where to go when retrieval produced nothing.
func (n *nodes) contextFallback(state TurnState) Route {
	if state.WebSearchEnabled {
		return RouteWeb
	}
	return RouteAnswer
}

func (n *nodes) afterContext(_ graph.Context, state TurnState) string {
	if state.Route == RouteWeb {
		return StepWeb
	}
	return StepAnswer
}

// web searches the open web for context. It never runs its search on a
// thread with web search disabled, and search failures are recoverable.
func (n *nodes) web(ctx graph.Context, state TurnState) (TurnState, error) {
	if !state.WebSearchEnabled {
		state.WebContext = webDisabledReason
		state.History = append(cloneHistory(state.History),
			ChatMessage{Origin: OriginSystem, Content: webDisabledReason})
		return state, nil
	}

	sctx, cancel := context.WithTimeout(ctx, n.deps.Settings.SearchTimeout)
	defer cancel()

	result, err := n.deps.Searcher.Search(sctx, state.LastUserMessage())
	if err != nil {
		var tagged *websearch.Error
		if errors.As(err, &tagged) {
			ctx.Logger().Warn("web search failed", "error", err)
			state.History = append(cloneHistory(state.History),
				ChatMessage{Origin: OriginSystem, Content: "Web search failed; continuing without web context."})
			return state, nil
		}
		return state, err
	}

	state.WebContext = result
	return state, nil
}

// answer produces the turn's reply, offering the expense tools unless
// the tool-round cap is reached. Three outcomes: a text reply, a tool
// request (which suspends for approval), or a degraded canned reply.
func (n *nodes) answer(ctx graph.Context, state TurnState) (TurnState, error) {
	window := n.window.Derive(state.History)

	req := llm.CompletionRequest{
		Messages:    answerMessages(state, window, n.deps.Now()),
		MaxTokens:   n.deps.Settings.MaxTokens,
		Temperature: n.deps.Settings.Temperature,
	}

	// Past the round cap the model must answer in text.
	withholdTools := state.ToolRounds >= n.deps.Settings.MaxToolRounds
	if !withholdTools {
		req.Tools = n.deps.Registry.Definitions()
		req.ToolChoice = llm.ToolChoiceAuto
	}

	actx, cancel := context.WithTimeout(ctx, n.deps.Settings.AnswerTimeout)
	defer cancel()

	resp, err := n.deps.Completer.Complete(actx, req)
	if err != nil {
		// Tool effects may already be committed by the time the summary
		// is generated, so a completion failure here never fails the
		// turn. The fixed fallback stands in for the reply.
		ctx.Logger().Warn("answer completion failed", "error", err)
		state.FinalReply = safeFallbackReply
		state.History = append(cloneHistory(state.History),
			ChatMessage{Origin: OriginAssistant, Content: safeFallbackReply})
		return state, nil
	}

	if len(resp.ToolCalls) > 0 && !withholdTools {
		calls := make([]tools.Call, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			calls = append(calls, tools.Call{ID: tc.ID, Name: tc.Name, Args: tc.Args})
		}
		state.History = append(cloneHistory(state.History),
			ChatMessage{Origin: OriginAssistant, Content: resp.Content, ToolCalls: calls})
		return state, nil
	}

	reply := resp.Content
	if reply == "" {
		if state.toolResultsSinceLastHuman() {
			reply = silentAfterToolsReply
		} else {
			reply = silentDefaultReply
		}
	}
	state.FinalReply = reply
	state.History = append(cloneHistory(state.History),
		ChatMessage{Origin: OriginAssistant, Content: reply})
	return state, nil
}

func (n *nodes) afterAnswer(_ graph.Context, state TurnState) string {
	if len(state.PendingToolCalls()) > 0 {
		return StepTools
	}
	return graph.END
}

// tools executes the pending tool calls and records one result entry
// per call. Failures come back as error-content results, so this step
// itself only fails on engine-level problems.
func (n *nodes) tools(ctx graph.Context, state TurnState) (TurnState, error) {
	calls := state.PendingToolCalls()
	results := n.deps.Executor.Execute(ctx, calls)

	history := cloneHistory(state.History)
	for _, r := range results {
		history = append(history, ChatMessage{
			Origin:     OriginTool,
			ToolCallID: r.CallID,
			Content:    r.Content,
		})
	}
	state.History = history
	state.ToolRounds++
	return state, nil
}
