// Package graph aggregates parsed stack samples into a call graph.
//
// A CallGraph has a single owner per mutation: every method takes the same
// lock, and Merge (or MergeAndInitColors, which also refreshes the color
// thresholds) applies a whole delta under one acquisition, so concurrent
// readers never observe a half-merged stack.
package graph

import (
	"math"
	"slices"
	"sync"
)

type CallGraph struct {
	mu sync.RWMutex

	nodes map[string]*Node
	edges map[EdgeKey]*Edge

	yellow int
	red    int

	expanded []string
}

func NewCallGraph() *CallGraph {
	return &CallGraph{
		nodes: make(map[string]*Node),
		edges: make(map[EdgeKey]*Edge),
	}
}

// LoadNodes adds the call counts of nodes to the existing entries, inserting
// the unknown ones.
func (g *CallGraph) LoadNodes(nodes map[string]*Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.loadNodes(nodes)
}

// LoadEdges sums the call counts of edges into the existing entries and
// appends their non-empty parameter lists, inserting the unknown ones.
func (g *CallGraph) LoadEdges(edges map[EdgeKey]*DeltaEdge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.loadEdges(edges)
}

// Merge loads the edges and the nodes of d atomically. Merging the same
// delta twice counts it twice.
func (g *CallGraph) Merge(d *Delta) {
	if d.Empty() {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.loadEdges(d.Edges)
	g.loadNodes(d.Nodes)
}

// MergeAndInitColors merges d and recomputes the color thresholds under one
// lock acquisition, so readers never see counts and thresholds out of step.
func (g *CallGraph) MergeAndInitColors(d *Delta) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !d.Empty() {
		g.loadEdges(d.Edges)
		g.loadNodes(d.Nodes)
	}
	g.initColors()
}

func (g *CallGraph) loadNodes(nodes map[string]*Node) {
	for id, n := range nodes {
		if n == nil {
			continue
		}
		if existing, ok := g.nodes[id]; ok {
			existing.CallCount += n.CallCount
			continue
		}
		node := *n
		node.ID = id
		g.nodes[id] = &node
	}
}

func (g *CallGraph) loadEdges(edges map[EdgeKey]*DeltaEdge) {
	for key, e := range edges {
		if e == nil {
			continue
		}
		existing, ok := g.edges[key]
		if !ok {
			existing = &Edge{Params: [][]string{}}
			g.edges[key] = existing
		}
		existing.CallCount += e.CallCount
		if len(e.Param) > 0 {
			existing.Params = append(existing.Params, slices.Clone(e.Param))
		}
	}
}

// Clear drops nodes, edges and color thresholds. The expanded elements are a
// view concern and survive.
func (g *CallGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*Node)
	g.edges = make(map[EdgeKey]*Edge)
	g.yellow = 0
	g.red = 0
}

// MaxCount returns the highest node call count, 0 for an empty graph.
func (g *CallGraph) MaxCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.maxCount()
}

func (g *CallGraph) maxCount() int {
	var m int
	for _, n := range g.nodes {
		m = max(m, n.CallCount)
	}

	return m
}

// InitColors derives the thresholds from the maximum call count:
// yellow = round(max/3), red = 2*yellow.
func (g *CallGraph) InitColors() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.initColors()
}

func (g *CallGraph) initColors() {
	g.yellow = int(math.Round(float64(g.maxCount()) / 3))
	g.red = g.yellow * 2
}

func (g *CallGraph) SetColors(yellow, red int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.yellow = yellow
	g.red = red
}

func (g *CallGraph) Yellow() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.yellow
}

func (g *CallGraph) Red() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.red
}

// ElementClicked toggles id in the expanded elements, keeping the order in
// which the elements were expanded.
func (g *CallGraph) ElementClicked(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if i := slices.Index(g.expanded, id); i >= 0 {
		g.expanded = slices.Delete(g.expanded, i, i+1)
		return
	}
	g.expanded = append(g.expanded, id)
}

func (g *CallGraph) ExpandedElements() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Clone(g.expanded)
}

// Nodes returns a copy of the nodes keyed by id.
func (g *CallGraph) Nodes() map[string]Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.copyNodes()
}

// Edges returns a copy of the edges.
func (g *CallGraph) Edges() map[EdgeKey]Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.copyEdges()
}

// Snapshot returns nodes, edges, thresholds and expanded elements as of a
// single point in time.
func (g *CallGraph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return &Snapshot{
		Nodes:    g.copyNodes(),
		Edges:    g.copyEdges(),
		Yellow:   g.yellow,
		Red:      g.red,
		MaxCount: g.maxCount(),
		Expanded: slices.Clone(g.expanded),
	}
}

func (g *CallGraph) copyNodes() map[string]Node {
	nodes := make(map[string]Node, len(g.nodes))
	for id, n := range g.nodes {
		nodes[id] = *n
	}

	return nodes
}

func (g *CallGraph) copyEdges() map[EdgeKey]Edge {
	edges := make(map[EdgeKey]Edge, len(g.edges))
	for key, e := range g.edges {
		params := make([][]string, 0, len(e.Params))
		for _, p := range e.Params {
			params = append(params, slices.Clone(p))
		}
		edges[key] = Edge{CallCount: e.CallCount, Params: params}
	}

	return edges
}
