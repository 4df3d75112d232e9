package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_DefaultLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "pyproject.toml"), []byte("[project]\nname = \"demo\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ResolvePaths(Default(), sub)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, got.ProjectRoot)
	}
	if got.HistoryPath != filepath.Join(root, ".archgraph", "history.db") {
		t.Fatalf("unexpected history path: %q", got.HistoryPath)
	}
	if got.SelfMapPath != filepath.Join(root, "self_map.json") {
		t.Fatalf("unexpected self-map path: %q", got.SelfMapPath)
	}
}

func TestResolvePaths_AbsoluteOverrides(t *testing.T) {
	root := t.TempDir()
	state := filepath.Join(root, "state")
	cfg := Default()
	cfg.Paths.ProjectRoot = root
	cfg.Paths.StateDir = state
	cfg.Paths.SelfMap = "maps/current.json"
	cfg.History.File = "arch.db"

	got, err := ResolvePaths(cfg, "/elsewhere")
	if err != nil {
		t.Fatal(err)
	}
	if got.StateDir != state {
		t.Fatalf("unexpected state dir: %q", got.StateDir)
	}
	if got.HistoryPath != filepath.Join(state, "arch.db") {
		t.Fatalf("unexpected history path: %q", got.HistoryPath)
	}
	if got.SelfMapPath != filepath.Join(root, "maps", "current.json") {
		t.Fatalf("unexpected self-map path: %q", got.SelfMapPath)
	}
}

func TestResolvePaths_RequiresCwd(t *testing.T) {
	if _, err := ResolvePaths(Default(), " "); err == nil {
		t.Fatal("expected error for empty cwd")
	}
}
