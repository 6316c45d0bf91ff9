package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Route values produced by the routing decision.
const (
	RouteRetrieval = "retrieval"
	RouteWeb       = "web"
	RouteAnswer    = "answer"
	RouteEnd       = "end"
)

// RouteDecision is the router's choice of the next major step.
type RouteDecision struct {
	// Route is one of RouteRetrieval, RouteWeb, RouteAnswer, RouteEnd.
	Route string `json:"route"`
	// Reply is a direct assistant reply, populated only when Route is RouteEnd.
	Reply string `json:"reply,omitempty"`
}

// SufficiencyVerdict is the judge's call on whether retrieved context
// suffices to answer without further search.
type SufficiencyVerdict struct {
	Sufficient bool `json:"sufficient"`
}

const (
	routeSchemaName       = "route_decision"
	sufficiencySchemaName = "sufficiency_verdict"
)

// StructuredClient produces typed decisions by forcing the model to
// call a single schema-bearing tool and decoding its arguments.
//
// All failures (backend, missing tool call, malformed arguments,
// out-of-enumeration values) surface as *DecodeError so callers can
// distinguish a broken decision from a valid negative one.
type StructuredClient struct {
	client      Client
	maxTokens   int
	temperature float64
}

// NewStructuredClient wraps a completion client for structured decisions.
func NewStructuredClient(client Client, maxTokens int, temperature float64) *StructuredClient {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &StructuredClient{
		client:      client,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// decide runs a completion that must call the given tool, then decodes
// the tool arguments into out.
func (s *StructuredClient) decide(ctx context.Context, tool Tool, messages []Message, out any) error {
	resp, err := s.client.Complete(ctx, CompletionRequest{
		Messages:    messages,
		Tools:       []Tool{tool},
		ToolChoice:  ToolChoiceAny,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return &DecodeError{Schema: tool.Name, Err: err}
	}

	var call *ToolCall
	for i := range resp.ToolCalls {
		if resp.ToolCalls[i].Name == tool.Name {
			call = &resp.ToolCalls[i]
			break
		}
	}
	if call == nil {
		return &DecodeError{Schema: tool.Name, Err: fmt.Errorf("model returned no %s tool call", tool.Name)}
	}

	raw, err := json.Marshal(call.Args)
	if err != nil {
		return &DecodeError{Schema: tool.Name, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{Schema: tool.Name, Err: err}
	}
	return nil
}

// DecideRoute asks the model to pick the next step for a turn.
// The returned route is guaranteed to be one of the four route values.
func (s *StructuredClient) DecideRoute(ctx context.Context, messages []Message) (RouteDecision, error) {
	tool := Tool{
		Name:        routeSchemaName,
		Description: "Record the routing decision for the user's message.",
		InputSchema: Schema{
			Properties: map[string]Property{
				"route": {
					Type:        "string",
					Description: "Next step for this message.",
					Enum:        []string{RouteRetrieval, RouteWeb, RouteAnswer, RouteEnd},
				},
				"reply": {
					Type:        "string",
					Description: "Direct reply to the user, only when route is 'end'.",
				},
			},
			Required: []string{"route"},
		},
	}

	var decision RouteDecision
	if err := s.decide(ctx, tool, messages, &decision); err != nil {
		return RouteDecision{}, err
	}

	switch decision.Route {
	case RouteRetrieval, RouteWeb, RouteAnswer, RouteEnd:
	default:
		return RouteDecision{}, &DecodeError{
			Schema: routeSchemaName,
			Err:    fmt.Errorf("route %q is not in the allowed set", decision.Route),
		}
	}

	return decision, nil
}

// JudgeSufficiency asks the model whether the retrieved context is
// enough to answer the question without searching further.
func (s *StructuredClient) JudgeSufficiency(ctx context.Context, messages []Message) (SufficiencyVerdict, error) {
	tool := Tool{
		Name:        sufficiencySchemaName,
		Description: "Record whether the retrieved context fully answers the question.",
		InputSchema: Schema{
			Properties: map[string]Property{
				"sufficient": {
					Type:        "boolean",
					Description: "True if the context fully answers the question.",
				},
			},
			Required: []string{"sufficient"},
		},
	}

	var verdict SufficiencyVerdict
	if err := s.decide(ctx, tool, messages, &verdict); err != nil {
		return SufficiencyVerdict{}, err
	}
	return verdict, nil
}
