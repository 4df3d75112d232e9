package cli

import (
	coreapp "archgraph/internal/core/app"
	"archgraph/internal/core/config"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

const testSelfMap = `{
  "modules": [{"path": "cli.py"}, {"path": "project_graph.py"}, {"path": "memory.py"}, {"path": "tests/test_cli.py"}],
  "dependencies": {
    "cli.py": ["project_graph"],
    "project_graph.py": ["memory"],
    "memory.py": ["project_graph"],
    "tests/test_cli.py": ["cli"]
  }
}`

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"pyproject.toml": "[project]\nname = \"demo\"\nversion = \"0.3.1\"\n",
		"self_map.json":  testSelfMap,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	chdir(t, root)
	return root
}

func TestApplyModeOptions_RejectsCombinedModes(t *testing.T) {
	opts := &cliOptions{trace: true, queryModules: true, args: []string{"a", "b"}}
	err := applyModeOptions(opts, config.Default(), "/work")
	if err == nil || !strings.Contains(err.Error(), "cannot be combined") {
		t.Fatalf("expected combine error, got %v", err)
	}
}

func TestApplyModeOptions_TraceRequiresTwoArgs(t *testing.T) {
	opts := &cliOptions{trace: true, args: []string{"only-one"}}
	err := applyModeOptions(opts, config.Default(), "/work")
	if err == nil || !strings.Contains(err.Error(), "requires two module arguments") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyModeOptions_PositionalSelfMap(t *testing.T) {
	cfg := config.Default()
	opts := &cliOptions{args: []string{"build/self_map.json"}, window: 9, centers: 2}

	if err := applyModeOptions(opts, cfg, "/work"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Paths.SelfMap != filepath.Join("/work", "build", "self_map.json") {
		t.Fatalf("unexpected self map: %q", cfg.Paths.SelfMap)
	}
	if cfg.History.Window != 9 || cfg.Topology.Centers != 2 {
		t.Fatalf("flag overrides not applied: window=%d centers=%d", cfg.History.Window, cfg.Topology.Centers)
	}

	opts = &cliOptions{selfMap: "a.json", args: []string{"b.json"}}
	if err := applyModeOptions(opts, config.Default(), "/work"); err == nil {
		t.Fatal("expected error for --selfmap plus positional path")
	}
}

func TestApplyModeOptions_HistoryModesRequireHistory(t *testing.T) {
	cfg := config.Default()
	disabled := false
	cfg.History.Enabled = &disabled

	for _, opts := range []*cliOptions{{historyReport: true}, {historyJSON: "-"}, {queryTrends: true}} {
		if err := applyModeOptions(opts, cfg, "/work"); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2026-02-03")
	if err != nil || !got.Equal(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date-only: %v %v", got, err)
	}
	got, err = parseSince("2026-02-03T10:00:00+02:00")
	if err != nil || got.Hour() != 8 {
		t.Fatalf("rfc3339: %v %v", got, err)
	}
	if got, err := parseSince(""); err != nil || !got.IsZero() {
		t.Fatalf("empty: %v %v", got, err)
	}
	if _, err := parseSince("yesterday"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseQueryTrace(t *testing.T) {
	from, to, err := parseQueryTrace(" cli.py : memory.py ")
	if err != nil || from != "cli.py" || to != "memory.py" {
		t.Fatalf("unexpected parse: %q %q %v", from, to, err)
	}
	if _, _, err := parseQueryTrace("cli.py"); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, path, err := loadConfig("", dir)
	if err != nil || path != "" || cfg.Topology.Centers != 3 {
		t.Fatalf("expected defaults, got %+v %q %v", cfg, path, err)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.toml"), dir); err == nil {
		t.Fatal("expected error for explicit missing config")
	}

	want := filepath.Join(dir, "archgraph.toml")
	if err := os.WriteFile(want, []byte("[topology]\ncenters = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, path, err = loadConfig("", dir)
	if err != nil || path != want || cfg.Topology.Centers != 5 {
		t.Fatalf("expected discovered config, got %+v %q %v", cfg.Topology, path, err)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	root := setupProject(t)
	ctx := context.Background()

	var out, errOut bytes.Buffer
	if code := run(ctx, []string{"-json"}, &out, &errOut); code != 0 {
		t.Fatalf("analysis exit %d: %s", code, errOut.String())
	}
	var report struct {
		Summary struct {
			Nodes       int `json:"nodes"`
			CyclesCount int `json:"cycles_count"`
		} `json:"summary"`
		History *struct {
			Point struct {
				Version string `json:"version"`
			} `json:"point"`
		} `json:"history"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out.String())
	}
	if report.Summary.Nodes != 4 || report.Summary.CyclesCount != 1 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
	if report.History == nil || report.History.Point.Version != "0.3.1" {
		t.Fatalf("expected history point with version, got %+v", report.History)
	}
	if _, err := os.Stat(filepath.Join(root, ".archgraph", "history.db")); err != nil {
		t.Fatalf("history db not created: %v", err)
	}

	out.Reset()
	if code := run(ctx, []string{"-history-report"}, &out, &errOut); code != 0 {
		t.Fatalf("history report exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "ARCHITECTURE EVOLUTION ANALYSIS") {
		t.Fatalf("unexpected history report:\n%s", out.String())
	}

	out.Reset()
	if code := run(ctx, []string{"-query", "SELECT modules WHERE role = 'tests'"}, &out, &errOut); code != 0 {
		t.Fatalf("query exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "tests/test_cli.py role=tests") {
		t.Fatalf("unexpected query output:\n%s", out.String())
	}

	out.Reset()
	if code := run(ctx, []string{"-trace", "tests/test_cli.py", "memory.py"}, &out, &errOut); code != 0 {
		t.Fatalf("trace exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "-> memory.py") {
		t.Fatalf("unexpected trace output:\n%s", out.String())
	}

	if code := run(ctx, []string{"-trace", "memory.py", "cli.py"}, io.Discard, io.Discard); code != 1 {
		t.Fatalf("expected failing trace, got exit %d", code)
	}
}

func TestRun_MissingSelfMap(t *testing.T) {
	chdir(t, t.TempDir())
	if code := run(context.Background(), []string{"-no-history"}, io.Discard, io.Discard); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if code := run(context.Background(), []string{"-version"}, &out, io.Discard); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.HasPrefix(out.String(), "archgraph v") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestObservabilityServer(t *testing.T) {
	root := setupProject(t)
	cfg := config.Default()
	a, err := coreapp.NewWithDependencies(cfg, config.ResolvedPaths{
		ProjectRoot: root,
		SelfMapPath: filepath.Join(root, "self_map.json"),
	}, coreapp.Dependencies{})
	if err != nil {
		t.Fatal(err)
	}

	srv := NewObservabilityServer("127.0.0.1:0", coreapp.NewHealthService(a))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status coreapp.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Components["self_map"] != "ok" {
		t.Fatalf("unexpected health: %+v", status)
	}

	metrics, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer metrics.Body.Close()
	body, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(body), "archgraph_graph_nodes_total") {
		t.Fatal("metrics endpoint does not expose archgraph gauges")
	}
}

func TestApplyModeOptions_DiagramFlags(t *testing.T) {
	tests := []struct {
		name string
		opts cliOptions
		want string
	}{
		{"unknown format", cliOptions{diagram: "svg"}, "unknown diagram format"},
		{"with json", cliOptions{diagram: "dot", jsonOutput: true}, "cannot be combined"},
		{"with query", cliOptions{diagram: "dot", queryModules: true}, "only be combined"},
		{"out without diagram", cliOptions{diagramOut: "g.dot"}, "require --diagram"},
		{"out and inject", cliOptions{diagram: "dot", diagramOut: "g.dot", injectMD: "README.md"}, "cannot be combined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := applyModeOptions(&opts, config.Default(), "/work")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	ok := cliOptions{diagram: "mermaid", watch: true}
	if err := applyModeOptions(&ok, config.Default(), "/work"); err != nil {
		t.Fatalf("diagram with watch should be allowed: %v", err)
	}
}

func TestRun_Diagram(t *testing.T) {
	root := setupProject(t)
	ctx := context.Background()

	var out, errOut bytes.Buffer
	if code := run(ctx, []string{"-no-history", "-diagram", "mermaid"}, &out, &errOut); code != 0 {
		t.Fatalf("diagram exit %d: %s", code, errOut.String())
	}
	if !strings.HasPrefix(out.String(), "flowchart LR\n") || !strings.Contains(out.String(), "tests_test_cli_py --> cli_py") {
		t.Fatalf("unexpected mermaid output:\n%s", out.String())
	}

	doc := filepath.Join(root, "ARCHITECTURE.md")
	if err := os.WriteFile(doc, []byte("# Arch\n<!-- archgraph:architecture:start -->\n<!-- archgraph:architecture:end -->\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if code := run(ctx, []string{"-no-history", "-diagram", "dot", "-inject-markdown", doc}, &out, &errOut); code != 0 {
		t.Fatalf("inject exit %d: %s", code, errOut.String())
	}
	if out.Len() != 0 {
		t.Fatalf("inject mode should not print the diagram, got:\n%s", out.String())
	}
	data, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "```dot\ndigraph architecture {") {
		t.Fatalf("diagram not injected:\n%s", data)
	}
}

func TestRun_CompressedHistoryExport(t *testing.T) {
	root := setupProject(t)
	ctx := context.Background()

	if code := run(ctx, []string{"-json"}, io.Discard, io.Discard); code != 0 {
		t.Fatalf("analysis exit %d", code)
	}
	target := filepath.Join(root, "out", "history.json.zst")
	var errOut bytes.Buffer
	if code := run(ctx, []string{"-history-json", target}, io.Discard, &errOut); code != 0 {
		t.Fatalf("export exit %d: %s", code, errOut.String())
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll(raw, nil)
	if err != nil {
		t.Fatalf("export is not zstd: %v", err)
	}
	var export struct {
		SchemaVersion int               `json:"schema_version"`
		History       []json.RawMessage `json:"history"`
	}
	if err := json.Unmarshal(plain, &export); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(export.History) != 1 {
		t.Fatalf("expected one history point, got %d", len(export.History))
	}
}

func TestRun_YAML(t *testing.T) {
	setupProject(t)
	var out bytes.Buffer
	if code := run(context.Background(), []string{"-no-history", "-yaml"}, &out, io.Discard); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(out.String(), "cycles_count: 1") {
		t.Fatalf("unexpected yaml output:\n%s", out.String())
	}
	if code := run(context.Background(), []string{"-json", "-yaml"}, io.Discard, io.Discard); code != 1 {
		t.Fatalf("expected exit 1 for --json with --yaml, got %d", code)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
