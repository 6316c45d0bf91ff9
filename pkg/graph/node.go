package graph

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// The state parameter is passed by value. Nodes should modify and return
// a new state value, not rely on pointer mutation.
//
// Example:
//
//	func mark(ctx graph.Context, s TurnState) (TurnState, error) {
//	    s.Route = "answer"
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on runtime state.
//
// The router should return a valid node ID or graph.END.
// Returning an empty string or an unknown node ID will cause a runtime error.
type RouterFunc[S any] func(ctx Context, state S) string

// StepListener receives a notification after each node completes.
// It is called with the node ID and the state produced by that node,
// after the corresponding checkpoint (if any) has been persisted.
// Listeners must not block; they run on the execution goroutine.
type StepListener[S any] func(step string, state S)
