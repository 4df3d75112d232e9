package graph

import (
	"fmt"
	"reflect"
	"testing"
)

func TestNew_RegistersEdgeEndpoints(t *testing.T) {
	g := New([]string{"a.py"}, map[string][]string{
		"a.py":     {"pkg/b.py"},
		"./c.py":   {"a.py"},
		`pkg\d.py`: nil,
	})

	want := []string{"a.py", "c.py", "pkg/b.py", "pkg/d.py"}
	if got := g.Nodes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Nodes() = %v, want %v", got, want)
	}
	for _, e := range g.Edges() {
		if !g.HasNode(e.From) || !g.HasNode(e.To) {
			t.Errorf("edge %v has an endpoint outside the node set", e)
		}
	}
}

func TestFanInOut_SumsMatchEdgeCount(t *testing.T) {
	g := New(nil, map[string][]string{
		"a.py": {"b.py", "b.py", "c.py"},
		"b.py": {"c.py"},
		"c.py": {"a.py"},
		"d.py": {"d.py"},
	})

	totalIn, totalOut := 0, 0
	for _, f := range g.FanInOut() {
		totalIn += f.In
		totalOut += f.Out
	}
	if totalIn != g.EdgeCount() || totalOut != g.EdgeCount() {
		t.Fatalf("fan sums in=%d out=%d, edges=%d", totalIn, totalOut, g.EdgeCount())
	}
	if g.EdgeCount() != 6 {
		t.Errorf("expected duplicate edges to be kept, got %d edges", g.EdgeCount())
	}
}

func TestTwoNodeCycle(t *testing.T) {
	g := New([]string{"a.py", "b.py", "c.py"}, map[string][]string{
		"a.py": {"b.py"},
		"b.py": {"a.py"},
	})

	fan := g.FanInOut()
	if fan["a.py"] != (Fan{In: 1, Out: 1}) {
		t.Errorf("fan(a) = %+v, want (1,1)", fan["a.py"])
	}
	if fan["c.py"] != (Fan{}) {
		t.Errorf("fan(c) = %+v, want (0,0)", fan["c.py"])
	}

	cycles := g.FindCycles()
	if len(cycles) < 1 {
		t.Fatalf("expected at least one cycle")
	}
	c := cycles[0]
	ok := reflect.DeepEqual(c, []string{"a.py", "b.py"}) || reflect.DeepEqual(c, []string{"b.py", "a.py"})
	if !ok {
		t.Errorf("unexpected cycle %v", c)
	}

	s := Summarize(g)
	if s.CyclesCount < 1 || s.Nodes != 3 || s.Edges != 2 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.MaxDegree != 2 {
		t.Errorf("MaxDegree = %d, want 2", s.MaxDegree)
	}
}

func TestFindCycles_SelfEdge(t *testing.T) {
	g := New(nil, map[string][]string{"a": {"a"}})
	cycles := g.FindCycles()
	if len(cycles) != 1 || !reflect.DeepEqual(cycles[0], []string{"a"}) {
		t.Fatalf("FindCycles() = %v, want [[a]]", cycles)
	}
}

func TestFindCycles_ClosesViaEdges(t *testing.T) {
	g := New(nil, map[string][]string{
		"a": {"b"},
		"b": {"c", "d"},
		"c": {"a"},
		"d": {"b", "e"},
		"e": nil,
	})

	cycles := g.FindCycles()
	if len(cycles) == 0 {
		t.Fatal("expected cycles")
	}
	adj := g.Adjacency()
	hasEdge := func(src, dst string) bool {
		for _, n := range adj[src] {
			if n == dst {
				return true
			}
		}
		return false
	}
	for _, c := range cycles {
		for i, n := range c {
			if !g.HasNode(n) {
				t.Fatalf("cycle %v contains unknown node %q", c, n)
			}
			next := c[(i+1)%len(c)]
			if !hasEdge(n, next) {
				t.Errorf("cycle %v: missing edge %s -> %s", c, n, next)
			}
		}
	}
}

func TestFindCycles_NoCycles(t *testing.T) {
	g := New(nil, map[string][]string{"a": {"b"}, "b": {"c"}})
	if cycles := g.FindCycles(); len(cycles) != 0 {
		t.Fatalf("expected no cycles, got %v", cycles)
	}
}

func TestLayers(t *testing.T) {
	tests := []struct {
		name  string
		edges map[string][]string
		want  map[string]int
	}{
		{
			name:  "chain",
			edges: map[string][]string{"a": {"b"}, "b": {"c"}, "c": nil},
			want:  map[string]int{"a": 2, "b": 1, "c": 0},
		},
		{
			name:  "diamond",
			edges: map[string][]string{"top": {"l", "r"}, "l": {"base"}, "r": {"mid"}, "mid": {"base"}},
			want:  map[string]int{"top": 3, "l": 1, "r": 2, "mid": 1, "base": 0},
		},
		{
			name:  "cycle falls back to max layer",
			edges: map[string][]string{"a": {"b"}, "b": {"a", "c"}, "c": {"d"}},
			want:  map[string]int{"a": 1, "b": 1, "c": 1, "d": 0},
		},
		{
			name:  "pure cycle",
			edges: map[string][]string{"a": {"b"}, "b": {"a"}},
			want:  map[string]int{"a": 0, "b": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(nil, tt.edges).Layers()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Layers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayers_AboveSuccessors(t *testing.T) {
	g := New(nil, map[string][]string{
		"cli.py":     {"core.py", "util.py"},
		"core.py":    {"util.py", "models.py"},
		"models.py":  {"util.py"},
		"util.py":    nil,
		"report.py":  {"models.py"},
		"planner.py": {"report.py", "core.py"},
	})
	layers := g.Layers()
	adj := g.Adjacency()
	for n, dsts := range adj {
		if len(dsts) == 0 && layers[n] != 0 {
			t.Errorf("leaf %s has layer %d", n, layers[n])
		}
		for _, d := range dsts {
			if layers[n] < layers[d]+1 {
				t.Errorf("layer(%s)=%d not above layer(%s)=%d", n, layers[n], d, layers[d])
			}
		}
	}
}

func TestMetrics(t *testing.T) {
	g := New(nil, map[string][]string{"a": {"b"}, "b": nil})
	m := g.Metrics()
	want := map[string]NodeMetrics{
		"a": {Name: "a", FanIn: 0, FanOut: 1, Layer: 1},
		"b": {Name: "b", FanIn: 1, FanOut: 0, Layer: 0},
	}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("Metrics() = %v, want %v", m, want)
	}

	g.AddEdge("b", "c")
	if got := g.Metrics()["a"].Layer; got != 2 {
		t.Errorf("metrics not recomputed after mutation, layer(a) = %d", got)
	}
}

func TestEmptyGraph(t *testing.T) {
	g := New(nil, nil)
	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Fatal("expected empty graph")
	}
	if g.MaxDegree() != 0 {
		t.Errorf("MaxDegree() = %d", g.MaxDegree())
	}
	if len(g.FindCycles()) != 0 || len(g.Layers()) != 0 {
		t.Error("expected no cycles and no layers")
	}
}

func TestUndirected(t *testing.T) {
	g := New(nil, map[string][]string{"a": {"b", "b"}, "b": {"a"}, "c": {"a"}})
	u := g.Undirected()
	want := map[string][]string{
		"a": {"b", "c"},
		"b": {"a"},
		"c": {"a"},
	}
	if !reflect.DeepEqual(u, want) {
		t.Fatalf("Undirected() = %v, want %v", u, want)
	}
}

func TestFindImportChain(t *testing.T) {
	g := New(nil, map[string][]string{
		"a": {"b", "x"},
		"b": {"c"},
		"x": {"y"},
		"y": {"c"},
	})

	chain, ok := g.FindImportChain("a", "c")
	if !ok {
		t.Fatal("expected a chain")
	}
	if !reflect.DeepEqual(chain, []string{"a", "b", "c"}) {
		t.Errorf("chain = %v", chain)
	}

	if _, ok := g.FindImportChain("c", "a"); ok {
		t.Error("expected no reverse chain")
	}
	if _, ok := g.FindImportChain("a", "missing"); ok {
		t.Error("expected no chain to unknown node")
	}
}

func chainGraph(n int) *Graph {
	edges := make(map[string][]string, n)
	for i := 0; i < n; i++ {
		edges[fmt.Sprintf("m%d.py", i)] = []string{fmt.Sprintf("m%d.py", (i+1)%n)}
	}
	return New(nil, edges)
}

func TestFindCycles_LongRing(t *testing.T) {
	g := chainGraph(2000)
	cycles := g.FindCycles()
	if len(cycles) != 1 || len(cycles[0]) != 2000 {
		t.Fatalf("expected a single ring of 2000, got %d cycles", len(cycles))
	}
}
