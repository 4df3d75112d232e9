package history

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"archgraph/internal/engine/graph"
	"archgraph/internal/engine/smells"
)

type staticVersion string

func (v staticVersion) Version(string) (string, bool) {
	return string(v), v != ""
}

func newTestTracker(t *testing.T, root string) *Tracker {
	t.Helper()
	store := openTestStoreAt(t, filepath.Join(root, ".archgraph", "history.db"))
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewTracker(store, TrackerOptions{
		ProjectRoot: root,
		Versions:    staticVersion("0.9.0"),
		Clock: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
		RunID: func() string { return "run" },
	})
}

func TestTracker_TrendAndRegressions(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, TrackerOptions{ProjectRoot: t.TempDir()})
	ctx := context.Background()

	deps := []int{2, 3, 5}
	smellTotals := []int{0, 0, 1}
	for i := range deps {
		counts := map[string]int{}
		if smellTotals[i] > 0 {
			counts["hub"] = smellTotals[i]
		}
		appendPoint(t, store, Point{Modules: 3, Dependencies: deps[i], TotalSmells: smellTotals[i], SmellCounts: counts})
	}

	trend, err := tracker.Trend(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if trend.Complexity != Increasing || trend.Smells != Increasing {
		t.Fatalf("unexpected trend %+v", trend)
	}

	regs, err := tracker.DetectRegressions(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(regs, "\n")
	if !strings.Contains(joined, "Total smells increased: 0 → 1") {
		t.Errorf("expected total smell regression, got %v", regs)
	}
	if !strings.Contains(joined, "hub increased: 0 → 1") {
		t.Errorf("expected per-type regression, got %v", regs)
	}

	// window 2 only sees the last pair
	trend, err = tracker.Trend(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if trend.Complexity != Increasing || trend.Smells != Increasing {
		t.Errorf("unexpected windowed trend %+v", trend)
	}
}

func TestTracker_TrendUnknownWithFewPoints(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, TrackerOptions{})
	ctx := context.Background()

	trend, err := tracker.Trend(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if trend.Complexity != Unknown || trend.Smells != Unknown {
		t.Fatalf("expected unknown trend, got %+v", trend)
	}

	appendPoint(t, store, Point{Dependencies: 4})
	trend, _ = tracker.Trend(ctx, 5)
	if trend.Complexity != Unknown {
		t.Fatalf("expected unknown trend with one point, got %+v", trend)
	}
	regs, _ := tracker.DetectRegressions(ctx, 5)
	if len(regs) != 0 {
		t.Errorf("expected no regressions, got %v", regs)
	}
}

func TestTracker_Append(t *testing.T) {
	root := t.TempDir()
	tracker := newTestTracker(t, root)
	ctx := context.Background()

	g := graph.New([]string{"c.py"}, map[string][]string{"a.py": {"b.py"}, "b.py": {"a.py"}})
	found := smells.NewDetector().Detect(g)

	first, err := tracker.Append(ctx, g, found, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Modules != 3 || first.Dependencies != 2 || first.Cycles != 1 || first.MaxDegree != 2 {
		t.Errorf("unexpected counts %+v", first)
	}
	if first.TotalSmells != 1 || first.SmellCounts[smells.TypeCyclicDependency] != 1 {
		t.Errorf("unexpected smells %+v", first.SmellCounts)
	}
	if first.Version != "0.9.0" || first.RunID != "run" || first.GitCommit != "" {
		t.Errorf("unexpected metadata %+v", first)
	}
	if first.Maturity != MaturityInsufficientData {
		t.Errorf("maturity = %s", first.Maturity)
	}
	if first.RiskScore < 0 || first.RiskScore > 100 {
		t.Errorf("risk out of range: %v", first.RiskScore)
	}

	acyclic := graph.New([]string{"c.py"}, map[string][]string{"a.py": {"b.py"}})
	summary := graph.Summarize(acyclic)
	second, err := tracker.Append(ctx, acyclic, nil, &summary)
	if err != nil {
		t.Fatal(err)
	}
	if second.Maturity != MaturityHigh {
		t.Errorf("expected high maturity after removing the cycle, got %s", second.Maturity)
	}
	if second.RiskScore >= first.RiskScore {
		t.Errorf("expected lower risk, got %v then %v", first.RiskScore, second.RiskScore)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Errorf("timestamps not increasing")
	}

	pts, err := tracker.Points(ctx)
	if err != nil || len(pts) != 2 {
		t.Fatalf("expected 2 points, got %d (err=%v)", len(pts), err)
	}
}

func TestTracker_AppendRecoversCorruptHistory(t *testing.T) {
	root := t.TempDir()
	dbPath := filepath.Join(root, ".archgraph", "history.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbPath, bytes.Repeat([]byte("garbage!"), 1024), 0o644); err != nil {
		t.Fatal(err)
	}

	tracker := newTestTracker(t, root)
	g := graph.New(nil, map[string][]string{"a.py": {"b.py"}})
	if _, err := tracker.Append(context.Background(), g, nil, nil); err != nil {
		t.Fatalf("append after corruption: %v", err)
	}
	pts, _ := tracker.Points(context.Background())
	if len(pts) != 1 {
		t.Fatalf("expected fresh history with one point, got %d", len(pts))
	}
}

func TestTracker_EvolutionReport(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, TrackerOptions{})
	ctx := context.Background()

	report, err := tracker.EvolutionReport(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if report != "No architecture history yet." {
		t.Fatalf("unexpected empty report %q", report)
	}

	appendPoint(t, store, Point{Modules: 4, Dependencies: 4, Cycles: 1, MaxDegree: 2, RiskScore: 40, Version: "1.0.0"})
	appendPoint(t, store, Point{Modules: 5, Dependencies: 7, Cycles: 2, MaxDegree: 5, TotalSmells: 2,
		SmellCounts: map[string]int{"god_module": 2}, RiskScore: 62.5, Version: "1.1.0", GitCommit: "abcdef012345"})

	report, err = tracker.EvolutionReport(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"ARCHITECTURE EVOLUTION ANALYSIS",
		"Version: 1.1.0",
		"Git: abcdef012345",
		"Risk score: [██████░░░░] 62.5/100",
		"- Dependencies: 4 → 7 (Δ 3)",
		"- god_module: 0 → 2 (Δ 2)",
		"Trend:",
		"- System complexity: increasing",
		"Potential regressions:",
		"- Cycles increased: 1 → 2",
		"- Centralization increased significantly (max degree 2 → 5)",
		"Maturity (dynamic): low",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestTracker_ExportJSON(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, TrackerOptions{})
	appendPoint(t, store, Point{Modules: 2, SmellCounts: map[string]int{"hub": 1}, TotalSmells: 1})

	var buf bytes.Buffer
	if err := tracker.ExportJSON(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	var doc Export
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.SchemaVersion != SchemaVersion || len(doc.History) != 1 || doc.History[0].SmellCounts["hub"] != 1 {
		t.Fatalf("unexpected export %+v", doc)
	}
}

func TestRiskScore(t *testing.T) {
	base := RiskInput{Modules: 10, Dependencies: 15}
	prev := RiskScore(base)
	if prev != 15 {
		t.Fatalf("density-only score = %v, want 15", prev)
	}

	for n := 1; n <= 20; n++ {
		in := base
		in.SmellCounts = map[string]int{"god_module": n, "hub": n / 2}
		score := RiskScore(in)
		if score < prev {
			t.Fatalf("score decreased with more smells: %v -> %v", prev, score)
		}
		prev = score
	}

	worst := RiskScore(RiskInput{
		Modules: 1, Dependencies: 100, Cycles: 50,
		SmellCounts: map[string]int{"god_module": 100},
		Trend:       Trend{Complexity: Increasing, Smells: Increasing},
	})
	if worst != 100 {
		t.Errorf("expected clamp to 100, got %v", worst)
	}
	if got := RiskScore(RiskInput{Trend: Trend{Smells: Decreasing}}); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}
