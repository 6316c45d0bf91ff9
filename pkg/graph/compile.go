package graph

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the wiring and freezes the builder into a runnable
// CompiledGraph. All validation problems are collected and joined into
// one error rather than failing on the first.
//
// A graph compiles when the entry point is set and exists, every edge
// endpoint names a real node (or END as a target), every interrupt
// point names a real node, and END is reachable from the entry.
// Unreachable nodes are tolerated with a warning.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	errs := g.validate()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	reachable := g.reachable()
	for id := range g.nodes {
		if !reachable[id] {
			slog.Warn("node is unreachable from entry", "node_id", id)
		}
	}

	return g.freeze(), nil
}

func (g *Graph[S]) validate() []error {
	var errs []error

	entryOK := false
	switch {
	case g.entryPoint == "":
		errs = append(errs, ErrNoEntryPoint)
	case !g.hasNode(g.entryPoint):
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	default:
		entryOK = true
	}

	for from, targets := range g.edges {
		if from != END && !g.hasNode(from) && !g.hasRouter(from) {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range targets {
			if to != END && !g.hasNode(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}
	for from := range g.conditionalEdges {
		if !g.hasNode(from) {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
	}

	for _, id := range g.interruptBefore {
		if !g.hasNode(id) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInterruptNotFound, id))
		}
	}

	if entryOK && !g.endReachable() {
		errs = append(errs, ErrNoPathToEnd)
	}

	return errs
}

func (g *Graph[S]) hasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph[S]) hasRouter(id string) bool {
	_, ok := g.conditionalEdges[id]
	return ok
}

// endReachable reports whether the entry has some path to END. A node
// with a router counts as reaching END directly, since the router may
// return it at runtime.
func (g *Graph[S]) endReachable() bool {
	reaches := map[string]bool{END: true}
	for from := range g.conditionalEdges {
		reaches[from] = true
	}

	// Propagate backwards over simple edges until stable.
	for changed := true; changed; {
		changed = false
		for from, targets := range g.edges {
			if reaches[from] {
				continue
			}
			for _, to := range targets {
				if reaches[to] {
					reaches[from] = true
					changed = true
					break
				}
			}
		}
	}

	return reaches[g.entryPoint]
}

// reachable returns the nodes reachable from the entry point. Any node
// holding a router taints the whole graph reachable, because a router
// may name any node at runtime.
func (g *Graph[S]) reachable() map[string]bool {
	seen := make(map[string]bool, len(g.nodes))
	if g.entryPoint == "" || !g.hasNode(g.entryPoint) {
		return seen
	}

	stack := []string{g.entryPoint}
	seen[g.entryPoint] = true
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if g.hasRouter(current) {
			for id := range g.nodes {
				if !seen[id] {
					seen[id] = true
					stack = append(stack, id)
				}
			}
			continue
		}
		for _, to := range g.edges[current] {
			if to != END && !seen[to] {
				seen[to] = true
				stack = append(stack, to)
			}
		}
	}
	return seen
}

// freeze copies the builder state into an immutable CompiledGraph.
func (g *Graph[S]) freeze() *CompiledGraph[S] {
	cg := &CompiledGraph[S]{
		entryPoint:       g.entryPoint,
		nodes:            make(map[string]NodeFunc[S], len(g.nodes)),
		edges:            make(map[string][]string, len(g.edges)),
		conditionalEdges: make(map[string]RouterFunc[S], len(g.conditionalEdges)),
		predecessors:     make(map[string][]string),
		interruptBefore:  make(map[string]bool, len(g.interruptBefore)),
	}

	for id, fn := range g.nodes {
		cg.nodes[id] = fn
	}
	for from, router := range g.conditionalEdges {
		cg.conditionalEdges[from] = router
	}
	for _, id := range g.interruptBefore {
		cg.interruptBefore[id] = true
	}
	for from, targets := range g.edges {
		copied := make([]string, len(targets))
		copy(copied, targets)
		cg.edges[from] = copied
		for _, to := range copied {
			if to != END {
				cg.predecessors[to] = append(cg.predecessors[to], from)
			}
		}
	}

	return cg
}
