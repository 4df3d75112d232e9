package app

import (
	"archgraph/internal/core/errors"
	"archgraph/internal/core/ports"
	"archgraph/internal/engine/graph"
	"archgraph/internal/engine/semantic"
	"archgraph/internal/engine/smells"
	"archgraph/internal/engine/topology"
	"archgraph/internal/shared/observability"
	"context"
	stdErrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Analyze loads the self-map, runs every derived computation in parallel over
// the resulting graph and records the pass in history.
func (a *App) Analyze(ctx context.Context, req ports.AnalyzeRequest) (ports.AnalysisReport, error) {
	a.analyzeMu.Lock()
	defer a.analyzeMu.Unlock()

	path := a.selfMapPath(req.SelfMapPath)
	ctx, span := observability.StartSpan(ctx, "app.Analyze", attribute.String("self_map", path))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.AnalysisReport{}, err
	}

	start := time.Now()
	g, err := a.loadGraph(ctx, path)
	if err != nil {
		observability.RecordError(span, err)
		return ports.AnalysisReport{}, err
	}
	span.SetAttributes(attribute.Int("graph.nodes", g.NodeCount()), attribute.Int("graph.edges", g.EdgeCount()))

	report := ports.AnalysisReport{
		Source:      path,
		GeneratedAt: a.now().UTC(),
	}

	var wg sync.WaitGroup
	run := func(task string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, taskSpan := observability.StartSpan(ctx, "analysis."+task)
			defer taskSpan.End()
			taskStart := time.Now()
			fn()
			observability.AnalysisDuration.WithLabelValues(task).Observe(time.Since(taskStart).Seconds())
		}()
	}

	run("summary", func() {
		report.Summary = graph.Summarize(g)
	})
	run("layers", func() {
		report.Layers = g.Layers()
	})
	run("semantic", func() {
		roles := a.classifier.Classify(g)
		violations := semantic.DetectViolations(g, roles)
		report.Roles = roles
		report.Violations = violations
		report.SemanticText = semantic.Summary(roles, violations, a.Config.Semantic.ViolationLimit)
	})
	run("topology", func() {
		centers := topology.ChooseCenters(g, a.Config.Topology.Centers)
		clusters := a.clusterer.Cluster(g, centers)
		subsystems := make([]ports.Subsystem, 0, len(centers))
		for _, c := range centers {
			subsystems = append(subsystems, ports.Subsystem{Center: c, Members: clusters[c]})
		}
		report.Centers = centers
		report.Subsystems = subsystems
		report.TopologyText = topology.Summary(centers, clusters, a.Config.Topology.MemberLimit)
	})
	if a.detector != nil {
		run("smells", func() {
			report.Smells = a.detector.Detect(g)
		})
	}
	wg.Wait()

	if report.Smells == nil {
		report.Smells = []smells.Smell{}
	}
	if report.Violations == nil {
		report.Violations = []semantic.Violation{}
	}

	observability.GraphNodes.Set(float64(report.Summary.Nodes))
	observability.GraphEdges.Set(float64(report.Summary.Edges))
	observability.GraphCycles.Set(float64(report.Summary.CyclesCount))
	observability.LayerViolations.Set(float64(len(report.Violations)))

	if a.history != nil && !req.SkipHistory {
		report.History = a.recordHistory(ctx, g, report)
	}

	report.Duration = time.Since(start)
	observability.AnalysisDuration.WithLabelValues("total").Observe(report.Duration.Seconds())
	slog.Info("analysis complete",
		"self_map", path,
		"modules", report.Summary.Nodes,
		"dependencies", report.Summary.Edges,
		"cycles", report.Summary.CyclesCount,
		"violations", len(report.Violations),
		"smells", len(report.Smells),
		"duration", report.Duration,
	)

	a.setLast(report)
	return report, nil
}

// recordHistory appends the pass and reads back the windowed trend. Failures
// are logged and leave the history section empty.
func (a *App) recordHistory(ctx context.Context, g *graph.Graph, report ports.AnalysisReport) *ports.HistoryResult {
	ctx, span := observability.StartSpan(ctx, "analysis.history")
	defer span.End()

	summary := report.Summary
	point, err := a.history.Append(ctx, g, report.Smells, &summary)
	if err != nil {
		observability.RecordError(span, err)
		slog.Warn("failed to record history", "error", err)
		return nil
	}

	window := a.Config.History.Window
	result := &ports.HistoryResult{Point: point}
	if result.Trend, err = a.history.Trend(ctx, window); err != nil {
		slog.Warn("failed to compute trend", "error", err)
	}
	if result.Regressions, err = a.history.DetectRegressions(ctx, window); err != nil {
		slog.Warn("failed to detect regressions", "error", err)
	}
	if result.Report, err = a.history.EvolutionReport(ctx, window); err != nil {
		slog.Warn("failed to render evolution report", "error", err)
	}
	if result.Regressions == nil {
		result.Regressions = []string{}
	}
	return result
}

func (a *App) selfMapPath(override string) string {
	if p := strings.TrimSpace(override); p != "" {
		return p
	}
	return a.Paths.SelfMapPath
}

// loadGraph returns the graph for path, rebuilding it only when the file
// changed since the previous call.
func (a *App) loadGraph(ctx context.Context, path string) (*graph.Graph, error) {
	_, span := observability.StartSpan(ctx, "analysis.load")
	defer span.End()

	g, hit, err := a.graphs.Get(path, func(p string) (*graph.Graph, error) {
		sm, err := graph.LoadSelfMap(p)
		if err != nil {
			return nil, err
		}
		return graph.FromSelfMap(sm), nil
	})
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			err = errors.Wrap(err, errors.CodeNotFound, "self-map not found")
		}
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	slog.Debug("self-map loaded", "path", path, "cached", hit)
	return g, nil
}

// TraceImportChain returns the shortest dependency path between two modules of
// the configured self-map.
func (a *App) TraceImportChain(ctx context.Context, from, to string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err := a.loadGraph(ctx, a.Paths.SelfMapPath)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{from, to} {
		if !g.HasNode(name) {
			return nil, errors.AddContext(errors.New(errors.CodeNotFound, "module not found"), errors.CtxNode, name)
		}
	}
	chain, ok := g.FindImportChain(from, to)
	if !ok {
		err := errors.AddContext(errors.New(errors.CodeNotFound, "no import chain found"), "from", from)
		return nil, errors.AddContext(err, "to", to)
	}
	return chain, nil
}

// Graph returns the graph of the configured self-map.
func (a *App) Graph(ctx context.Context) (*graph.Graph, error) {
	return a.loadGraph(ctx, a.Paths.SelfMapPath)
}

func (a *App) EvolutionReport(ctx context.Context) (string, error) {
	if a.history == nil {
		return "", errors.New(errors.CodeNotSupported, "history is disabled")
	}
	return a.history.EvolutionReport(ctx, a.Config.History.Window)
}

func (a *App) ExportHistory(ctx context.Context, w io.Writer) error {
	if a.history == nil {
		return errors.New(errors.CodeNotSupported, "history is disabled")
	}
	return a.history.ExportJSON(ctx, w)
}
