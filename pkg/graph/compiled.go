package graph

// CompiledGraph is the immutable, runnable form of a Graph. Compile()
// produces it; after that the structure never changes, so a single
// CompiledGraph can serve concurrent Run calls.
//
// The introspection methods exist for debugging and for callers that
// want to render or verify the wiring.
type CompiledGraph[S any] struct {
	entryPoint string

	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]

	// predecessors is derived from edges at compile time.
	predecessors map[string][]string

	// interruptBefore marks nodes the executor suspends in front of.
	interruptBefore map[string]bool
}

// EntryPoint returns the node ID execution starts at.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns every node identifier, in no particular order.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	return ids
}

// HasNode reports whether the graph contains the given node.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, ok := cg.nodes[id]
	return ok
}

// Successors returns the simple-edge targets of a node. Conditional
// targets are runtime-determined and not included. END has none.
func (cg *CompiledGraph[S]) Successors(id string) []string {
	if id == END {
		return nil
	}
	return cg.edges[id]
}

// Predecessors returns the nodes with a simple edge into the given
// node. The entry node and unknown nodes have none.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional reports whether the node routes via a router function.
func (cg *CompiledGraph[S]) IsConditional(id string) bool {
	_, ok := cg.conditionalEdges[id]
	return ok
}

// IsInterruptPoint reports whether execution suspends before this node.
func (cg *CompiledGraph[S]) IsInterruptPoint(id string) bool {
	return cg.interruptBefore[id]
}

func (cg *CompiledGraph[S]) getNode(id string) (NodeFunc[S], bool) {
	fn, ok := cg.nodes[id]
	return fn, ok
}

func (cg *CompiledGraph[S]) getRouter(id string) (RouterFunc[S], bool) {
	router, ok := cg.conditionalEdges[id]
	return router, ok
}

func (cg *CompiledGraph[S]) getEdges(id string) []string {
	return cg.edges[id]
}
