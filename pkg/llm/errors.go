package llm

import "fmt"

// DecodeError indicates a structured decision could not be produced:
// either the backend call failed or its output did not decode into
// the requested schema. Callers branch on this type, never on message
// content, so a failed decode is always distinguishable from a valid
// negative decision.
type DecodeError struct {
	// Schema is the decision schema that was requested
	// (e.g., "route_decision", "sufficiency_verdict").
	Schema string
	// Err is the underlying failure.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Schema, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
