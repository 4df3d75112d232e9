package app

import (
	"archgraph/internal/core/config"
	"archgraph/internal/core/errors"
	"archgraph/internal/core/ports"
	"archgraph/internal/data/history"
	"archgraph/internal/engine/graph"
	"archgraph/internal/engine/semantic"
	"archgraph/internal/engine/smells"
	"archgraph/internal/engine/topology"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Dependencies are the collaborators an App may be given instead of the
// defaults built from config.
type Dependencies struct {
	Detector ports.SmellDetector
	History  ports.HistoryTracker
	Clock    func() time.Time
}

// App runs analysis passes over the self-map of one project.
type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	classifier *semantic.Classifier
	clusterer  topology.Clusterer
	detector   ports.SmellDetector
	history    ports.HistoryTracker
	store      *history.Store
	now        func() time.Time

	graphs config.Cache[*graph.Graph]

	analyzeMu sync.Mutex
	lastMu    sync.RWMutex
	last      *ports.AnalysisReport
}

var _ ports.AnalysisService = (*App)(nil)

// New builds an App with the built-in smell detector and, when history is
// enabled, a SQLite-backed tracker at the resolved history path.
func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	deps := Dependencies{}
	var store *history.Store
	if cfg != nil && cfg.History.IsEnabled() {
		s, err := history.Open(paths.HistoryPath, history.Options{BusyTimeout: cfg.History.BusyTimeout})
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, paths.HistoryPath)
		}
		store = s
		deps.History = history.NewTracker(s, history.TrackerOptions{
			ProjectRoot: paths.ProjectRoot,
			Window:      cfg.History.Window,
			Versions:    history.FileVersionSource{Files: cfg.History.VersionFiles},
		})
	}

	a, err := NewWithDependencies(cfg, paths, deps)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	a.store = store
	return a, nil
}

// NewWithDependencies builds an App around caller-supplied collaborators. A
// nil Detector falls back to the built-in one unless smells are disabled; a
// nil History disables history.
func NewWithDependencies(cfg *config.Config, paths config.ResolvedPaths, deps Dependencies) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}

	overrides := make([]semantic.Override, 0, len(cfg.Semantic.Overrides))
	for _, o := range cfg.Semantic.Overrides {
		overrides = append(overrides, semantic.Override{Pattern: o.Pattern, Role: semantic.Role(o.Role)})
	}
	classifier, err := semantic.NewClassifier(overrides)
	if err != nil {
		return nil, err
	}

	detector := deps.Detector
	if detector == nil && cfg.Smells.IsEnabled() {
		detector = &smells.Detector{
			MinOutlierDegree: cfg.Smells.MinOutlierDegree,
			ExemptSuffixes:   cfg.Smells.ExemptSuffixes,
		}
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &App{
		Config:     cfg,
		Paths:      paths,
		classifier: classifier,
		clusterer:  topology.Clusterer{MaxDepth: cfg.Topology.MaxDepth},
		detector:   detector,
		history:    deps.History,
		now:        now,
	}, nil
}

// HistoryEnabled reports whether analysis passes are recorded.
func (a *App) HistoryEnabled() bool {
	return a.history != nil
}

// LastReport returns the most recent successful analysis, if any.
func (a *App) LastReport() (ports.AnalysisReport, bool) {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	if a.last == nil {
		return ports.AnalysisReport{}, false
	}
	return *a.last, true
}

func (a *App) setLast(r ports.AnalysisReport) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	a.last = &r
}

func (a *App) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("failed to close history store", "path", a.store.Path(), "error", err)
		return fmt.Errorf("close history store: %w", err)
	}
	return nil
}
