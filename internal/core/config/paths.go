package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	ProjectRoot string
	StateDir    string
	HistoryPath string
	SelfMapPath string
}

// ResolvePaths makes every configured path absolute. Without an explicit
// project root, the root is detected from the self-map location and cwd.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		candidates := []string{cwd}
		if sm := strings.TrimSpace(cfg.Paths.SelfMap); filepath.IsAbs(sm) {
			candidates = append([]string{sm}, candidates...)
		}
		root, err := DetectProjectRoot(candidates)
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	stateDir := ResolveRelative(projectRoot, cfg.Paths.StateDir)
	historyPath := ResolveRelative(stateDir, cfg.History.File)
	selfMapPath := ResolveRelative(projectRoot, cfg.Paths.SelfMap)

	return ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		StateDir:    stateDir,
		HistoryPath: historyPath,
		SelfMapPath: selfMapPath,
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// projectMarkers identify a project root, nearest first.
var projectMarkers = []string{
	".git",
	"pyproject.toml",
	"go.mod",
	"Cargo.toml",
	"package.json",
	"archgraph.toml",
	".archgraph",
}

// DetectProjectRoot walks up from each candidate until a directory holding a
// project marker is found, falling back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range projectMarkers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
