package stack_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/tracegraph/internal/utils"
	"github.com/maxgio92/tracegraph/pkg/graph"
	"github.com/maxgio92/tracegraph/pkg/stack"
)

func node(name, source string, count int) *graph.Node {
	return &graph.Node{ID: utils.NodeID(name, source), Name: name, Source: source, CallCount: count}
}

func key(caller, called *graph.Node) graph.EdgeKey {
	return graph.EdgeKey{Caller: caller.ID, Called: called.ID}
}

func TestParseEmpty(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"nil stack", nil},
		{"empty stack", []string{}},
		{"header only", []string{"PID    TID    COMM         FUNC             "}},
		{"no frames", []string{"no calls"}},
		{"summary without frames", []string{"19059  19059  app func1", "-14", "b'[unknown]'"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := stack.Parse(tt.lines)
			require.NotNil(t, delta)
			require.Empty(t, delta.Nodes)
			require.Empty(t, delta.Edges)
			require.True(t, delta.Empty())
		})
	}
}

func TestParseSingleFrame(t *testing.T) {
	delta := stack.Parse([]string{
		"19059  19059  dummy_source1 func1",
		"-14",
		"b'func1+0x0 [dummy_source1]'",
	})

	func1 := node("func1", "dummy_source1", 1)
	require.Equal(t, map[string]*graph.Node{func1.ID: func1}, delta.Nodes)
	require.Empty(t, delta.Edges)
}

func TestParseWithoutParams(t *testing.T) {
	delta := stack.Parse([]string{
		"19059  19059  dummy_source1 func1",
		"-14",
		"b'func1+0x0 [dummy_source1]'",
		"b'func2+0x26 [dummy_source1]'",
		"b'func3+0x17 [dummy_source2]'",
		"b'[unknown]'",
	})

	func1 := node("func1", "dummy_source1", 1)
	func2 := node("func2", "dummy_source1", 0)
	func3 := node("func3", "dummy_source2", 0)

	require.Equal(t, map[string]*graph.Node{
		func1.ID: func1,
		func2.ID: func2,
		func3.ID: func3,
	}, delta.Nodes)
	require.Equal(t, map[graph.EdgeKey]*graph.DeltaEdge{
		key(func2, func1): {CallCount: 1},
		key(func3, func2): {CallCount: 0},
	}, delta.Edges)
}

func TestParseWithParams(t *testing.T) {
	delta := stack.Parse([]string{
		"19059  19059  dummy_source1 func1        b'param1' b'param2'",
		"-14",
		"b'func1+0x0 [dummy_source1]'",
		"b'func2+0x26 [dummy_source1]'",
		"b'func3+0x17 [dummy_source2]'",
	})

	func1 := node("func1", "dummy_source1", 1)
	func2 := node("func2", "dummy_source1", 0)
	func3 := node("func3", "dummy_source2", 0)

	require.Equal(t, map[graph.EdgeKey]*graph.DeltaEdge{
		key(func2, func1): {CallCount: 1, Param: []string{"param1", "param2"}},
		key(func3, func2): {CallCount: 0},
	}, delta.Edges)
}

func TestParseWithHeader(t *testing.T) {
	delta := stack.Parse([]string{
		"PID    TID    COMM         FUNC             ",
		"19059  19059  dummy_source1 func1        ",
		"        -14",
		"        func1+0x0 [dummy_source1]",
		"        func2+0x26 [dummy_source1]",
		"        func3+0x17 [dummy_source2]",
		"        [unknown]",
	})

	func1 := node("func1", "dummy_source1", 1)
	func2 := node("func2", "dummy_source1", 0)
	func3 := node("func3", "dummy_source2", 0)

	require.Len(t, delta.Nodes, 3)
	require.Equal(t, func1, delta.Nodes[func1.ID])
	require.Equal(t, func2, delta.Nodes[func2.ID])
	require.Equal(t, func3, delta.Nodes[func3.ID])
	require.Equal(t, map[graph.EdgeKey]*graph.DeltaEdge{
		key(func2, func1): {CallCount: 1},
		key(func3, func2): {CallCount: 0},
	}, delta.Edges)
}

func TestParseSkipsForeignLines(t *testing.T) {
	delta := stack.Parse([]string{
		"4242   4242   app          func1",
		"        func1+0x0 [app]",
		"garbage in the middle",
		"        [unknown]",
		"        main+0x14 [app]",
	})

	func1 := node("func1", "app", 1)
	mainNode := node("main", "app", 0)

	require.Len(t, delta.Nodes, 2)
	require.Equal(t, map[graph.EdgeKey]*graph.DeltaEdge{
		key(mainNode, func1): {CallCount: 1},
	}, delta.Edges)
}

func TestParseRecursion(t *testing.T) {
	delta := stack.Parse([]string{
		"4242   4242   app          fact  3",
		"        fact+0x0 [app]",
		"        fact+0x20 [app]",
		"        fact+0x20 [app]",
		"        main+0x14 [app]",
	})

	fact := node("fact", "app", 1)
	mainNode := node("main", "app", 0)

	require.Equal(t, map[string]*graph.Node{fact.ID: fact, mainNode.ID: mainNode}, delta.Nodes)
	require.Equal(t, map[graph.EdgeKey]*graph.DeltaEdge{
		key(fact, fact):     {CallCount: 1, Param: []string{"3"}},
		key(mainNode, fact): {CallCount: 0},
	}, delta.Edges)
}

func TestParseQualifiedNames(t *testing.T) {
	delta := stack.Parse([]string{
		"1 1 app f",
		"        main.main+0x10 [app]",
		"        runtime.main+0x20 [app]",
		"        Foo::bar(int const&)+0x1f [app]",
		"        baz+0x2 [app]",
	})

	mainMain := node("main.main", "app", 1)
	runtimeMain := node("runtime.main", "app", 0)
	fooBar := node("Foo::bar(int const&)", "app", 0)
	baz := node("baz", "app", 0)

	require.Equal(t, map[string]*graph.Node{
		mainMain.ID:    mainMain,
		runtimeMain.ID: runtimeMain,
		fooBar.ID:      fooBar,
		baz.ID:         baz,
	}, delta.Nodes)
	require.Equal(t, map[graph.EdgeKey]*graph.DeltaEdge{
		key(runtimeMain, mainMain): {CallCount: 1},
		key(fooBar, runtimeMain):   {CallCount: 0},
		key(baz, fooBar):           {CallCount: 0},
	}, delta.Edges)
}

func TestParseFrameSymbols(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		symbol string
		source string
	}{
		{"plain", "        func1+0x0 [app]", "func1", "app"},
		{"bytes literal", "b'func1+0x0 [app]'", "func1", "app"},
		{"go package path", "\tgithub.com/x/y.(*T).Run+0x1a4 [/usr/bin/y]", "github.com/x/y.(*T).Run", "/usr/bin/y"},
		{"c++ operator", "  operator+=(int)+0x8 [libfoo.so]", "operator+=(int)", "libfoo.so"},
		{"trailing carriage return", "  main+0x14 [app]\r", "main", "app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta := stack.Parse([]string{"1 1 app f", tt.line})
			want := node(tt.symbol, tt.source, 1)
			require.Equal(t, map[string]*graph.Node{want.ID: want}, delta.Nodes)
		})
	}
}

func TestParseIsPure(t *testing.T) {
	lines := []string{
		"19059  19059  app func1 b'x'",
		"        func1+0x0 [app]",
		"        func2+0x26 [app]",
	}
	orig := append([]string(nil), lines...)

	first := stack.Parse(lines)
	second := stack.Parse(lines)

	require.Equal(t, first, second)
	require.Equal(t, orig, lines, "Parse must not consume its input")
}

func TestParams(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		want    []string
	}{
		{"no params", "19059  19059  app func1", nil},
		{"trailing spaces", "19059  19059  app func1        ", nil},
		{"bytes literals", "19059 19059 app func1 b'param1' b'param2'", []string{"param1", "param2"}},
		{"plain tokens", "19059 19059 app func2 3\r", []string{"3"}},
		{"quoted", "1 1 app f 'x'", []string{"x"}},
		{"leading b kept", "1 1 app f bob", []string{"bob"}},
		{"not a summary", "-14", nil},
		{"non numeric pid", "PID TID COMM FUNC extra", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, stack.Params(tt.summary))
		})
	}
}

func TestSplitStacks(t *testing.T) {
	stacks := stack.SplitStacks("a\nb\n\nc\n")

	require.Equal(t, [][]string{{"a", "b"}, {"c", ""}}, stacks)
	require.Equal(t, [][]string{{""}}, stack.SplitStacks(""))
}
