// Package benchmarks measures engine overhead with turn-shaped graphs
// and conversation-sized state.
package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/expenseagent/pkg/agent"
	"github.com/randalmurphal/expenseagent/pkg/graph"
)

// noopStep does minimal work to isolate framework overhead.
func noopStep(_ graph.Context, s agent.TurnState) (agent.TurnState, error) {
	return s, nil
}

// conversationState builds a realistic checkpoint payload: a few turns
// of chat history with tool traffic.
func conversationState() agent.TurnState {
	return agent.TurnState{
		WebSearchEnabled: true,
		Retrieved:        "Meals under $50 need no receipt. Mileage is reimbursed at the standard rate.",
		History: []agent.ChatMessage{
			{Origin: agent.OriginHuman, Content: "add a $15 lunch to food"},
			{Origin: agent.OriginAssistant, Content: "Added $15 to food."},
			{Origin: agent.OriginHuman, Content: "what did I spend this month?"},
			{Origin: agent.OriginTool, ToolCallID: "call-1", Content: `{"month":"2026-08","total_spent":155.49,"count":3}`},
			{Origin: agent.OriginAssistant, Content: "You spent $155.49 across 3 expenses this month."},
			{Origin: agent.OriginHuman, Content: "do I need a receipt for a $20 coffee run?"},
		},
	}
}

// buildTurnGraph mirrors the shape of the agent's turn graph with noop
// steps: a router fanning out to context steps that converge on answer.
func buildTurnGraph() *graph.Graph[agent.TurnState] {
	route := func(_ graph.Context, s agent.TurnState) string {
		switch s.Route {
		case agent.RouteRetrieval:
			return "retrieval"
		case agent.RouteWeb:
			return "web"
		default:
			return "answer"
		}
	}

	return graph.New[agent.TurnState]().
		AddNode("router", noopStep).
		AddNode("retrieval", noopStep).
		AddNode("web", noopStep).
		AddNode("answer", noopStep).
		AddConditionalEdge("router", route).
		AddEdge("retrieval", "answer").
		AddEdge("web", "answer").
		AddEdge("answer", graph.END).
		SetEntry("router")
}

func mustCompile(b *testing.B, g *graph.Graph[agent.TurnState]) *graph.CompiledGraph[agent.TurnState] {
	b.Helper()
	compiled, err := g.Compile()
	if err != nil {
		b.Fatal(err)
	}
	return compiled
}

func BenchmarkBuildTurnGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buildTurnGraph()
	}
}

func BenchmarkCompileTurnGraph(b *testing.B) {
	g := buildTurnGraph()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.Compile()
	}
}

func BenchmarkRun_DirectAnswer(b *testing.B) {
	compiled := mustCompile(b, buildTurnGraph())
	ctx := graph.NewContext(context.Background())
	state := conversationState()
	state.Route = agent.RouteAnswer

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, state)
	}
}

func BenchmarkRun_RetrievalPath(b *testing.B) {
	compiled := mustCompile(b, buildTurnGraph())
	ctx := graph.NewContext(context.Background())
	state := conversationState()
	state.Route = agent.RouteRetrieval

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = compiled.Run(ctx, state)
	}
}

func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for i := 0; i < b.N; i++ {
		graph.NewContext(bg)
	}
}
