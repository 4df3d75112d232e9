package smells

import (
	"fmt"
	"testing"

	"archgraph/internal/engine/graph"
)

func TestDetect_Cycle(t *testing.T) {
	g := graph.New([]string{"c.py"}, map[string][]string{
		"a.py": {"b.py"},
		"b.py": {"a.py"},
	})
	got := NewDetector().Detect(g)
	if len(got) != 1 {
		t.Fatalf("expected one smell, got %+v", got)
	}
	s := got[0]
	if s.Type != TypeCyclicDependency || len(s.Nodes) != 2 {
		t.Fatalf("unexpected smell %+v", s)
	}
	// length 2 * (1 + avg fan-in 1)
	if s.Severity != 4 {
		t.Errorf("severity = %v, want 4", s.Severity)
	}
}

func TestDetect_BottleneckAndHub(t *testing.T) {
	edges := map[string][]string{}
	for i := 0; i < 6; i++ {
		src := fmt.Sprintf("user%d.py", i)
		edges[src] = []string{"shared.py"}
	}
	edges["fanout.py"] = []string{"x1.py", "x2.py", "x3.py", "x4.py", "x5.py", "x6.py"}
	g := graph.New(nil, edges)

	got := NewDetector().Detect(g)
	counts := Counts(got)
	if counts[TypeBottleneck] != 1 || counts[TypeHub] != 1 {
		t.Fatalf("unexpected smell counts %v (%+v)", counts, got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Severity < got[i].Severity {
			t.Fatalf("smells not sorted by severity: %+v", got)
		}
	}
	for _, s := range got {
		switch s.Type {
		case TypeBottleneck:
			if s.Nodes[0] != "shared.py" {
				t.Errorf("bottleneck on %v", s.Nodes)
			}
		case TypeHub:
			if s.Nodes[0] != "fanout.py" {
				t.Errorf("hub on %v", s.Nodes)
			}
		}
	}
}

func TestDetect_GodModuleExemptSuffix(t *testing.T) {
	edges := map[string][]string{}
	for i := 0; i < 20; i++ {
		edges[fmt.Sprintf("m%02d.py", i)] = []string{fmt.Sprintf("m%02d.py", (i+1)%20)}
	}
	hubDeps := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		hubDeps = append(hubDeps, fmt.Sprintf("m%02d.py", i))
	}
	edges["core_api.py"] = hubDeps
	edges["core.py"] = hubDeps

	got := NewDetector().Detect(buildGraph(edges))
	gods := 0
	for _, s := range got {
		if s.Type == TypeGodModule {
			gods++
			if s.Nodes[0] != "core.py" {
				t.Errorf("unexpected god module %v", s.Nodes)
			}
		}
	}
	if gods != 1 {
		t.Fatalf("expected exactly one god module, got %d", gods)
	}
}

func buildGraph(edges map[string][]string) *graph.Graph {
	return graph.New(nil, edges)
}

func TestDetect_EmptyGraph(t *testing.T) {
	if got := NewDetector().Detect(graph.New(nil, nil)); len(got) != 0 {
		t.Fatalf("expected no smells, got %+v", got)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		severity float64
		want     string
	}{
		{0, "low"},
		{4.9, "low"},
		{5, "medium"},
		{12, "high"},
		{25, "critical"},
	}
	for _, tt := range tests {
		if got := Level(tt.severity); got != tt.want {
			t.Errorf("Level(%v) = %s, want %s", tt.severity, got, tt.want)
		}
	}
}
