// Package llm wraps the Anthropic API behind a small completion
// interface plus a structured-decision client that decodes forced
// tool calls into typed values.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a completion request.
type Message struct {
	Role    Role
	Content string
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Property describes one field of a tool's input schema.
type Property struct {
	Type        string
	Description string
	Enum        []string
}

// Schema is a JSON-schema object definition for tool inputs.
type Schema struct {
	Properties map[string]Property
	Required   []string
}

// Tool is a callable tool definition offered to the model.
type Tool struct {
	Name        string
	Description string
	InputSchema Schema
}

// ToolChoice controls how the model may use the offered tools.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to call a tool.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceAny forces the model to call at least one tool.
	ToolChoiceAny ToolChoice = "any"
)

// CompletionRequest is a single model invocation.
type CompletionRequest struct {
	Messages    []Message
	Tools       []Tool
	ToolChoice  ToolChoice
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
}

// Client is the completion capability used by the agent.
type Client interface {
	// Complete sends a completion request and returns the model's reply.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ModelName returns the configured model identifier.
	ModelName() string
}
