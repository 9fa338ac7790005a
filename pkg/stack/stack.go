// Package stack turns the text of one bcc trace stack sample into a graph
// delta.
//
// A sample looks like this, innermost frame first:
//
//	PID     TID     COMM            FUNC             -
//	19613   19613   test_applicatio func2            3
//	        func2+0x0 [test_application]
//	        func6+0x9 [test_application]
//	        main+0x14 [test_application]
//
// The header line is optional, the summary line is mandatory and carries the
// captured parameters past its four fixed fields.
package stack

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/maxgio92/tracegraph/pkg/graph"
)

var (
	headerPattern = regexp.MustCompile(`^PID\s+TID\s+COMM\s+FUNC`)

	// A frame is "<symbol>+0x<offset> [<module>]". The symbol is taken
	// verbatim up to the last offset marker so that qualified names such as
	// runtime.main or Foo::bar(int const&) survive.
	framePattern = regexp.MustCompile(`^(.+)\+0x[0-9a-fA-F]+\s+\[(.+)\]$`)
)

// summaryFields is the number of fixed fields of a summary line: PID, TID,
// COMM and FUNC.
const summaryFields = 4

// Parse returns the nodes and edges contributed by one stack sample.
//
// The first matched frame is the sampled function and its node gets one
// call. Consecutive frames link caller to called; only the edge into the
// sampled function is counted and carries the parameters, the others are
// recorded with zero calls to keep the ancestry connected. Lines that are not
// frames are ignored. Parse never fails and never touches shared state.
func Parse(lines []string) *graph.Delta {
	delta := graph.NewDelta()

	if len(lines) > 0 && headerPattern.MatchString(lines[0]) {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return delta
	}

	params := Params(lines[0])

	var (
		calledID string
		traced   = true
	)
	for _, line := range lines[1:] {
		f, ok := parseFrame(line)
		if !ok {
			continue
		}

		node, ok := delta.Nodes[f.id]
		if !ok {
			node = &graph.Node{ID: f.id, Name: f.name, Source: f.source}
			delta.Nodes[f.id] = node
		}
		if calledID == "" {
			node.CallCount++
		}

		if calledID != "" {
			key := graph.EdgeKey{Caller: f.id, Called: calledID}
			edge, ok := delta.Edges[key]
			if !ok {
				edge = &graph.DeltaEdge{Param: params}
				delta.Edges[key] = edge
			}
			if traced {
				edge.CallCount++
			}
			params = nil
			traced = false
		}
		calledID = f.id
	}

	return delta
}

// Params extracts the parameter tokens trailing the fixed fields of a
// summary line. It returns nil when there are none or the line is not a
// summary line.
func Params(summary string) []string {
	fields := strings.Fields(strings.TrimRight(summary, "\r"))
	if len(fields) <= summaryFields {
		return nil
	}
	for _, f := range fields[:2] {
		if _, err := strconv.Atoi(f); err != nil {
			return nil
		}
	}

	params := make([]string, 0, len(fields)-summaryFields)
	for _, f := range fields[summaryFields:] {
		params = append(params, unquote(f))
	}

	return params
}

// unquote strips the bytes literal wrapping (b'...') the tracer uses for
// string arguments.
func unquote(token string) string {
	if len(token) >= 3 && strings.HasPrefix(token, "b'") && strings.HasSuffix(token, "'") {
		return token[2 : len(token)-1]
	}

	return strings.Trim(token, "'")
}
