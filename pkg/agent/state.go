// Package agent wires the routing graph, the language model, the
// knowledge base, web search, and the expense tools into a
// conversational expense-tracking agent with human approval of tool
// execution.
package agent

import "github.com/randalmurphal/expenseagent/pkg/tools"

// Origin identifies the author of a conversation entry.
type Origin string

const (
	OriginHuman     Origin = "human"
	OriginAssistant Origin = "assistant"
	OriginTool      Origin = "tool"
	OriginSystem    Origin = "system"
)

// Route names the major steps a turn can move through.
type Route string

const (
	RouteRetrieval Route = "retrieval"
	RouteWeb       Route = "web"
	RouteAnswer    Route = "answer"
	RouteEnd       Route = "end"
)

// ChatMessage is one entry in the conversation history.
type ChatMessage struct {
	Origin  Origin `json:"origin"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []tools.Call `json:"tool_calls,omitempty"`
	// ToolCallID links a tool message back to the call that produced it.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// RouteOverride records a forced rerouting decision so the turn keeps
// a diagnostic trail of why it did not follow the model's choice.
type RouteOverride struct {
	From   Route  `json:"from"`
	To     Route  `json:"to"`
	Reason string `json:"reason"`
}

// TurnState is the full state of one conversation thread. It is the
// unit of checkpointing: everything needed to resume a suspended turn
// must round-trip through JSON.
type TurnState struct {
	// History is the append-only conversation record. Steps read it and
	// append to it; none of them rewrite earlier entries.
	History []ChatMessage `json:"history"`

	// WebSearchEnabled gates the web step for this thread.
	WebSearchEnabled bool `json:"web_search_enabled"`

	// Per-turn working fields, reset when a new user message arrives.

	// Route is where the turn goes next, written by the step that just
	// ran and read by its conditional edge.
	Route Route `json:"route,omitempty"`
	// Retrieved is the knowledge-base context gathered this turn.
	Retrieved string `json:"retrieved,omitempty"`
	// WebContext is the web-search context gathered this turn.
	WebContext string `json:"web_context,omitempty"`
	// Override is set when the router's choice was forcibly redirected.
	Override *RouteOverride `json:"override,omitempty"`
	// ToolRounds counts answer->tools cycles this turn.
	ToolRounds int `json:"tool_rounds,omitempty"`
	// FinalReply is the assistant text delivered for this turn. It stays
	// in the checkpoint so a redelivered turn reports the same reply.
	FinalReply string `json:"final_reply,omitempty"`
}

// beginTurn appends the user's message and clears per-turn fields.
// History and WebSearchEnabled carry across turns.
func (s TurnState) beginTurn(text string) TurnState {
	s.History = append(cloneHistory(s.History), ChatMessage{Origin: OriginHuman, Content: text})
	s.Route = ""
	s.Retrieved = ""
	s.WebContext = ""
	s.Override = nil
	s.ToolRounds = 0
	s.FinalReply = ""
	return s
}

// cloneHistory copies the slice header and backing entries so state
// transforms never alias a checkpointed slice.
func cloneHistory(history []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(history))
	copy(out, history)
	return out
}

// LastUserMessage returns the most recent human entry, or "".
func (s TurnState) LastUserMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Origin == OriginHuman {
			return s.History[i].Content
		}
	}
	return ""
}

// PendingToolCalls returns the tool calls requested by the latest
// assistant message, if no tool results follow it yet.
func (s TurnState) PendingToolCalls() []tools.Call {
	for i := len(s.History) - 1; i >= 0; i-- {
		switch s.History[i].Origin {
		case OriginTool:
			return nil
		case OriginAssistant:
			return s.History[i].ToolCalls
		}
	}
	return nil
}

// toolResultsSinceLastHuman reports whether any tool executed in the
// current turn. Used to decide whether an answer failure can fall back
// to a canned confirmation without losing information.
func (s TurnState) toolResultsSinceLastHuman() bool {
	for i := len(s.History) - 1; i >= 0; i-- {
		switch s.History[i].Origin {
		case OriginHuman:
			return false
		case OriginTool:
			return true
		}
	}
	return false
}
