package graph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is the mutable builder. Chain AddNode, AddEdge,
// AddConditionalEdge, SetEntry, and SetInterruptBefore, then Compile()
// into an immutable CompiledGraph.
//
// Building is single-goroutine; only the compiled form is safe to
// share. Structural mistakes that can be caught at build time (bad
// IDs, nil functions, duplicates) panic immediately, while wiring
// mistakes (dangling edges, missing entry) are reported by Compile.
//
// Example:
//
//	g := graph.New[TurnState]().
//	    AddNode("router", routerNode).
//	    AddNode("answer", answerNode).
//	    AddEdge("router", "answer").
//	    AddEdge("answer", graph.END).
//	    SetEntry("router")
//
//	compiled, err := g.Compile()
type Graph[S any] struct {
	mu               sync.RWMutex
	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string
	interruptBefore  []string
}

// New creates an empty builder for state type S.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]NodeFunc[S]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
	}
}

// AddNode registers a named node. Panics on an empty, reserved, or
// whitespace-bearing ID, a nil function, or a duplicate registration.
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	switch {
	case id == "":
		panic("graph: node ID cannot be empty")
	case strings.EqualFold(id, "end") || strings.EqualFold(id, END):
		panic("graph: node ID cannot be reserved word 'END'")
	case strings.ContainsAny(id, " \t\n\r"):
		panic("graph: node ID cannot contain whitespace")
	case fn == nil:
		panic("graph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("graph: duplicate node ID: %s", id))
	}
	g.nodes[id] = fn
	return g
}

// AddEdge wires an unconditional transition. The target may be a node
// ID or graph.END. Endpoints are validated at Compile time so edges
// can be declared in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge wires a runtime-decided transition: after the
// node runs, the router inspects state and names the next node (or
// graph.END). An unknown or empty return is a runtime error.
//
// A conditional edge takes precedence over any simple edges on the
// same node.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S]) *Graph[S] {
	if router == nil {
		panic("graph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.conditionalEdges[from] = router
	return g
}

// SetEntry names the node execution starts at. Validated at Compile.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// SetInterruptBefore marks nodes as interrupt points. When execution
// is about to transition into one of these nodes, the run suspends:
// the pre-transition state is checkpointed and Run returns a Result
// with Interrupted set and PendingStep naming the withheld node.
//
// Resume() restarts execution at the pending node directly, so a
// resumed run does not re-trigger the same interrupt.
//
// Node existence is validated at Compile() time.
func (g *Graph[S]) SetInterruptBefore(ids ...string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.interruptBefore = append(g.interruptBefore, ids...)
	return g
}
