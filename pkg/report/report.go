// Package report renders a call graph snapshot for humans and tools.
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/maxgio92/tracegraph/pkg/graph"
)

// MultipleParamsLabel is the label of an edge that captured more than one
// parameter list.
const MultipleParamsLabel = "..."

const (
	ColorNone   = "grey"
	ColorGreen  = "green"
	ColorYellow = "orange"
	ColorRed    = "red"
)

type NodeReport struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source"`
	Count  int    `json:"count"`
	Color  string `json:"color"`
	Info   string `json:"info"`
}

type EdgeReport struct {
	Caller     string     `json:"caller"`
	Called     string     `json:"called"`
	CallerName string     `json:"caller_name"`
	CalledName string     `json:"called_name"`
	CallCount  int        `json:"call_count"`
	Params     [][]string `json:"params"`
	Label      string     `json:"label"`
	Color      string     `json:"color"`
	Info       string     `json:"info"`
}

type GraphReport struct {
	Session string       `json:"session,omitempty"`
	Stacks  uint64       `json:"stacks"`
	Yellow  int          `json:"yellow"`
	Red     int          `json:"red"`
	Nodes   []NodeReport `json:"nodes"`
	Edges   []EdgeReport `json:"edges"`
}

type GraphReportOption func(*GraphReport)

func WithReportSession(session string) GraphReportOption {
	return func(r *GraphReport) {
		r.Session = session
	}
}

func WithReportStacks(stacks uint64) GraphReportOption {
	return func(r *GraphReport) {
		r.Stacks = stacks
	}
}

// NewGraphReport builds the report of snapshot. Nodes are sorted by name,
// source and id, edges by caller then called name.
func NewGraphReport(snapshot *graph.Snapshot, opts ...GraphReportOption) *GraphReport {
	report := &GraphReport{
		Yellow: snapshot.Yellow,
		Red:    snapshot.Red,
		Nodes:  make([]NodeReport, 0, len(snapshot.Nodes)),
		Edges:  make([]EdgeReport, 0, len(snapshot.Edges)),
	}
	for _, opt := range opts {
		opt(report)
	}

	for key, e := range snapshot.Edges {
		caller, called := snapshot.Nodes[key.Caller], snapshot.Nodes[key.Called]
		report.Edges = append(report.Edges, EdgeReport{
			Caller:     key.Caller,
			Called:     key.Called,
			CallerName: caller.Name,
			CalledName: called.Name,
			CallCount:  e.CallCount,
			Params:     e.Params,
			Label:      Label(e.Params),
			Color:      Color(e.CallCount, snapshot.Yellow, snapshot.Red),
			Info:       edgeInfo(e),
		})
	}
	slices.SortFunc(report.Edges, func(a, b EdgeReport) int {
		return cmp.Or(
			cmp.Compare(a.CallerName, b.CallerName),
			cmp.Compare(a.CalledName, b.CalledName),
			cmp.Compare(a.Caller, b.Caller),
			cmp.Compare(a.Called, b.Called),
		)
	})

	for id, n := range snapshot.Nodes {
		report.Nodes = append(report.Nodes, NodeReport{
			ID:     id,
			Name:   n.Name,
			Source: n.Source,
			Count:  n.CallCount,
			Color:  Color(n.CallCount, snapshot.Yellow, snapshot.Red),
			Info:   nodeInfo(id, n, report.Edges),
		})
	}
	slices.SortFunc(report.Nodes, func(a, b NodeReport) int {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.ID, b.ID),
		)
	})

	return report
}

// Label is the short form of the parameters captured on an edge: empty
// without parameters, the single list joined by commas, or
// MultipleParamsLabel.
func Label(params [][]string) string {
	switch len(params) {
	case 0:
		return ""
	case 1:
		return strings.Join(params[0], ", ")
	default:
		return MultipleParamsLabel
	}
}

// Color classifies a call count against the yellow and red lower bounds.
// Elements never called are not colored.
func Color(count, yellow, red int) string {
	switch {
	case count <= 0:
		return ColorNone
	case count >= red:
		return ColorRed
	case count >= yellow:
		return ColorYellow
	default:
		return ColorGreen
	}
}

func nodeInfo(id string, n graph.Node, edges []EdgeReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nSource: %s\nCalled %d times", n.Name, n.Source, n.CallCount)

	var params []string
	for _, e := range edges {
		if e.Called != id {
			continue
		}
		for _, p := range e.Params {
			params = append(params, strings.Join(p, ", "))
		}
	}
	writeParams(&b, params)

	return b.String()
}

func edgeInfo(e graph.Edge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Call made %d times", e.CallCount)

	params := make([]string, 0, len(e.Params))
	for _, p := range e.Params {
		params = append(params, strings.Join(p, ", "))
	}
	writeParams(&b, params)

	return b.String()
}

func writeParams(b *strings.Builder, params []string) {
	if len(params) == 0 {
		return
	}
	b.WriteString("\nWith parameters:\n")
	b.WriteString(strings.Join(params, "\n"))
}

func (r *GraphReport) WriteReport(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// WriteDOT writes the graph in the Graphviz DOT language.
func (r *GraphReport) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph tracegraph {\n")
	b.WriteString("  node [shape=box];\n")
	for _, n := range r.Nodes {
		fmt.Fprintf(&b, "  %q [label=%q, tooltip=%q, color=%s, fontcolor=%s];\n",
			n.ID, n.Name, n.Info, n.Color, n.Color)
	}
	for _, e := range r.Edges {
		fmt.Fprintf(&b, "  %q -> %q [label=%q, tooltip=%q, color=%s];\n",
			e.Caller, e.Called, e.Label, e.Info, e.Color)
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText writes one line per node and per edge.
func (r *GraphReport) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Nodes (%d):\n", len(r.Nodes))
	for _, n := range r.Nodes {
		fmt.Fprintf(&b, "  %-32s %-24s %6d\n", n.Name, n.Source, n.Count)
	}
	fmt.Fprintf(&b, "Edges (%d):\n", len(r.Edges))
	for _, e := range r.Edges {
		line := fmt.Sprintf("  %s -> %s %d", e.CallerName, e.CalledName, e.CallCount)
		if e.Label != "" {
			line += fmt.Sprintf(" (%s)", e.Label)
		}
		b.WriteString(line + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
