package graph

// Node is a unique (function name, source module) pair with the number of
// times it was the sampled function of a stack.
type Node struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Source    string `json:"source"`
	CallCount int    `json:"call_count"`
}

// EdgeKey identifies the directed caller -> called relationship.
type EdgeKey struct {
	Caller string
	Called string
}

// Edge aggregates the calls observed along an EdgeKey and the parameter
// lists captured with them, one list per parameterized sample.
type Edge struct {
	CallCount int
	Params    [][]string
}

// DeltaEdge is the contribution of a single stack to an edge.
type DeltaEdge struct {
	CallCount int
	Param     []string
}

// Delta is the graph contribution of one parsed stack sample.
type Delta struct {
	Nodes map[string]*Node
	Edges map[EdgeKey]*DeltaEdge
}

// NewDelta returns an empty delta.
func NewDelta() *Delta {
	return &Delta{
		Nodes: make(map[string]*Node),
		Edges: make(map[EdgeKey]*DeltaEdge),
	}
}

// Empty reports whether the delta carries neither nodes nor edges.
func (d *Delta) Empty() bool {
	return d == nil || (len(d.Nodes) == 0 && len(d.Edges) == 0)
}

// Snapshot is a consistent copy of the whole graph state.
type Snapshot struct {
	Nodes    map[string]Node
	Edges    map[EdgeKey]Edge
	Yellow   int
	Red      int
	MaxCount int
	Expanded []string
}
