package cli

import (
	coreapp "archgraph/internal/core/app"
	"archgraph/internal/core/config"
	"archgraph/internal/core/errors"
	"archgraph/internal/core/ports"
	"archgraph/internal/data/query"
	"archgraph/internal/shared/observability"
	"archgraph/internal/shared/util"
	uireport "archgraph/internal/ui/report"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "archgraph v%s\n", versionString)
		return 0
	}

	level := configureLogging(stderr, opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return 1
	}

	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	config.ApplyEnvOverrides(cfg)

	if err := applyModeOptions(&opts, cfg, cwd); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	if !opts.verbose {
		if l, err := config.ParseLevel(cfg.Logging.Level); err == nil {
			level.Set(l)
		}
	}
	slog.Debug("configuration loaded", "path", cfgPath)

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve runtime paths", "error", err)
		return 1
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: versionString,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		SampleRate:     cfg.Observability.SampleRate,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	a, err := coreapp.New(cfg, paths)
	if err != nil {
		slog.Error("failed to initialize analyzer", "error", err)
		return 1
	}
	defer a.Close()

	if cfg.Observability.Enabled {
		srv := NewObservabilityServer(cfg.Observability.Address, coreapp.NewHealthService(a))
		if err := srv.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	if handled, code := runSingleCommand(ctx, a, opts, stdout, stderr); handled {
		return code
	}
	if handled, code := runQueryCommand(ctx, a, opts, stdout, stderr); handled {
		return code
	}

	report, err := a.Analyze(ctx, ports.AnalyzeRequest{SkipHistory: opts.noHistory})
	if err != nil {
		slog.Error("analysis failed", "error", err)
		return 1
	}
	if err := emitReport(ctx, a, report, opts, stdout); err != nil {
		slog.Error("failed to write report", "error", err)
		return 1
	}

	if !opts.watch {
		return 0
	}
	err = a.Watch(ctx, func(r ports.AnalysisReport, err error) {
		if err != nil {
			slog.Error("re-analysis failed", "error", err)
			return
		}
		if err := emitReport(ctx, a, r, opts, stdout); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	})
	if err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}
	return 0
}

func printReport(w io.Writer, report ports.AnalysisReport, opts cliOptions) error {
	switch {
	case opts.jsonOutput:
		return coreapp.RenderJSON(w, report)
	case opts.yamlOutput:
		return coreapp.RenderYAML(w, report)
	default:
		return coreapp.RenderText(w, report)
	}
}

// emitReport prints the report, or the requested diagram in its place.
func emitReport(ctx context.Context, a *coreapp.App, report ports.AnalysisReport, opts cliOptions, stdout io.Writer) error {
	if opts.diagram == "" {
		return printReport(stdout, report, opts)
	}

	g, err := a.Graph(ctx)
	if err != nil {
		return err
	}
	out, err := uireport.Render(opts.diagram, g, report)
	if err != nil {
		return err
	}

	switch {
	case opts.injectMD != "":
		format := strings.ToLower(strings.TrimSpace(opts.diagram))
		if err := uireport.InjectDiagram(opts.injectMD, opts.injectMarker, uireport.Fence(format, out)); err != nil {
			return err
		}
		slog.Info("diagram injected", "path", opts.injectMD, "marker", opts.injectMarker)
		return nil
	case opts.diagramOut != "" && opts.diagramOut != "-":
		if err := util.WriteFileWithDirs(opts.diagramOut, []byte(out), 0o644); err != nil {
			return err
		}
		slog.Info("diagram written", "path", opts.diagramOut)
		return nil
	default:
		_, err := io.WriteString(stdout, out)
		return err
	}
}

func runSingleCommand(ctx context.Context, analysis ports.AnalysisService, opts cliOptions, stdout, stderr io.Writer) (bool, int) {
	if opts.trace {
		chain, err := analysis.TraceImportChain(ctx, opts.args[0], opts.args[1])
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return true, 1
		}
		fmt.Fprintf(stdout, "Import chain: %s -> %s\n\n", opts.args[0], opts.args[1])
		fmt.Fprintln(stdout, strings.Join(chain, "\n  -> "))
		return true, 0
	}

	if opts.historyReport {
		out, err := analysis.EvolutionReport(ctx)
		if err != nil {
			fmt.Fprintln(stderr, err.Error())
			return true, 1
		}
		fmt.Fprint(stdout, out)
		return true, 0
	}

	if opts.historyJSON != "" {
		var buf bytes.Buffer
		if err := analysis.ExportHistory(ctx, &buf); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return true, 1
		}
		if opts.historyJSON == "-" {
			_, _ = stdout.Write(buf.Bytes())
			return true, 0
		}
		data := buf.Bytes()
		if strings.HasSuffix(opts.historyJSON, ".zst") {
			compressed, err := compressZstd(data)
			if err != nil {
				slog.Error("failed to compress history export", "error", err)
				return true, 1
			}
			data = compressed
		}
		if err := util.WriteFileWithDirs(opts.historyJSON, data, 0o644); err != nil {
			slog.Error("failed to write history export", "path", opts.historyJSON, "error", err)
			return true, 1
		}
		slog.Info("history exported", "path", opts.historyJSON)
		return true, 0
	}

	return false, 0
}

func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func runQueryCommand(ctx context.Context, a *coreapp.App, opts cliOptions, stdout, stderr io.Writer) (bool, int) {
	if !opts.queryModules && opts.queryModule == "" && opts.queryTrace == "" && opts.queryCQL == "" && !opts.queryTrends {
		return false, 0
	}

	svc, err := a.QueryService(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return true, 1
	}

	fail := func(err error) (bool, int) {
		fmt.Fprintln(stderr, err.Error())
		return true, 1
	}
	emit := func(v any, text func()) (bool, int) {
		if opts.jsonOutput {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(v); err != nil {
				return fail(err)
			}
			return true, 0
		}
		text()
		return true, 0
	}

	switch {
	case opts.queryModule != "":
		details, err := svc.ModuleDetails(ctx, strings.TrimSpace(opts.queryModule))
		if err != nil {
			return fail(err)
		}
		return emit(details, func() {
			fmt.Fprintf(stdout, "Module: %s\n", details.Name)
			fmt.Fprintf(stdout, "Role: %s, Layer: %d, FanIn: %d, FanOut: %d, InCycle: %t\n",
				details.Role, details.Layer, details.ReverseDependencyCount, details.DependencyCount, details.InCycle)
			printList(stdout, "Dependencies", details.Dependencies)
			printList(stdout, "Imported by", details.ReverseDependencies)
		})
	case opts.queryTrace != "":
		from, to, err := parseQueryTrace(opts.queryTrace)
		if err != nil {
			return fail(err)
		}
		trace, err := svc.DependencyTrace(ctx, from, to, opts.queryLimit)
		if err != nil {
			return fail(err)
		}
		return emit(trace, func() {
			fmt.Fprintf(stdout, "Trace depth=%d: %s\n", trace.Depth, strings.Join(trace.Path, " -> "))
		})
	case opts.queryTrends:
		since, err := parseSince(opts.since)
		if err != nil {
			return fail(err)
		}
		slice, err := svc.TrendSlice(ctx, since, opts.queryLimit)
		if err != nil {
			return fail(err)
		}
		return emit(slice, func() {
			fmt.Fprintf(stdout, "Trend slice: scans=%d since=%s until=%s\n", slice.ScanCount, slice.Since, slice.Until)
			for _, p := range slice.Points {
				fmt.Fprintf(stdout, "  %s modules=%d deps=%d cycles=%d smells=%d risk=%.1f\n",
					p.Timestamp.Format(time.RFC3339), p.Modules, p.Dependencies, p.Cycles, p.TotalSmells, p.RiskScore)
			}
		})
	case opts.queryCQL != "":
		rows, err := svc.ExecuteCQL(ctx, opts.queryCQL, opts.queryLimit)
		if err != nil {
			return fail(err)
		}
		return emit(rows, func() { printModules(stdout, rows) })
	default:
		rows, err := svc.ListModules(ctx, strings.TrimSpace(opts.queryFilter), opts.queryLimit)
		if err != nil {
			return fail(err)
		}
		return emit(rows, func() { printModules(stdout, rows) })
	}
}

func printModules(w io.Writer, rows []query.ModuleSummary) {
	fmt.Fprintf(w, "Modules (%d):\n", len(rows))
	for _, m := range rows {
		fmt.Fprintf(w, "  %s role=%s layer=%d fan_in=%d fan_out=%d\n",
			m.Name, m.Role, m.Layer, m.ReverseDependencyCount, m.DependencyCount)
	}
}

func printList(w io.Writer, title string, items []string) {
	fmt.Fprintf(w, "%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

// loadConfig loads an explicit config path, or the first default candidate
// that exists. Without any file the built-in defaults are used.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	candidates, err := discoverDefaultConfig(cwd)
	if err != nil {
		return nil, "", err
	}
	for _, candidate := range candidates {
		cfg, loadErr := config.Load(candidate)
		if loadErr == nil {
			return cfg, candidate, nil
		}
		if errors.IsCode(loadErr, errors.CodeNotFound) {
			continue
		}
		return nil, "", loadErr
	}
	return config.Default(), "", nil
}

func discoverDefaultConfig(cwd string) ([]string, error) {
	if strings.TrimSpace(cwd) == "" {
		return nil, fmt.Errorf("cwd must not be empty")
	}
	return []string{
		filepath.Join(cwd, "archgraph.toml"),
		filepath.Join(cwd, ".archgraph", "config.toml"),
	}, nil
}

func applyModeOptions(opts *cliOptions, cfg *config.Config, cwd string) error {
	modeCount := 0
	if opts.trace {
		modeCount++
	}
	if opts.historyReport || opts.historyJSON != "" {
		modeCount++
	}
	if opts.queryModules || opts.queryModule != "" || opts.queryTrace != "" || opts.queryCQL != "" || opts.queryTrends {
		modeCount++
	}
	if opts.watch {
		modeCount++
	}
	if opts.jsonOutput && opts.yamlOutput {
		return fmt.Errorf("--json and --yaml cannot be combined")
	}
	if modeCount > 1 {
		return fmt.Errorf("--trace, --watch, --history-* and --query-* modes cannot be combined")
	}

	if opts.diagram != "" {
		if modeCount > 0 && !opts.watch {
			return fmt.Errorf("--diagram can only be combined with analysis or --watch")
		}
		if opts.jsonOutput || opts.yamlOutput {
			return fmt.Errorf("--diagram cannot be combined with --json or --yaml")
		}
		if opts.diagramOut != "" && opts.injectMD != "" {
			return fmt.Errorf("--diagram-out and --inject-markdown cannot be combined")
		}
		if err := uireport.CheckFormat(opts.diagram); err != nil {
			return err
		}
	} else if opts.diagramOut != "" || opts.injectMD != "" {
		return fmt.Errorf("--diagram-out and --inject-markdown require --diagram")
	}

	if opts.trace {
		if len(opts.args) != 2 {
			return fmt.Errorf("trace mode requires two module arguments: archgraph --trace <from> <to>")
		}
	} else if len(opts.args) > 1 {
		return fmt.Errorf("expected at most one positional self-map path, got %d", len(opts.args))
	} else if len(opts.args) == 1 {
		if opts.selfMap != "" {
			return fmt.Errorf("--selfmap and a positional self-map path cannot be combined")
		}
		opts.selfMap = opts.args[0]
	}

	if opts.selfMap != "" {
		cfg.Paths.SelfMap = config.ResolveRelative(cwd, opts.selfMap)
	}
	if opts.root != "" {
		cfg.Paths.ProjectRoot = config.ResolveRelative(cwd, opts.root)
	}
	if opts.window < 0 || opts.centers < 0 || opts.queryLimit < 0 {
		return fmt.Errorf("--window, --centers and --query-limit must not be negative")
	}
	if opts.window > 0 {
		cfg.History.Window = opts.window
	}
	if opts.centers > 0 {
		cfg.Topology.Centers = opts.centers
	}

	if opts.queryTrace != "" {
		if _, _, err := parseQueryTrace(opts.queryTrace); err != nil {
			return err
		}
	}
	if _, err := parseSince(opts.since); err != nil {
		return err
	}

	needsHistory := opts.historyReport || opts.historyJSON != "" || opts.queryTrends
	if needsHistory && !cfg.History.IsEnabled() {
		return fmt.Errorf("--history-report, --history-json and --query-trends require history.enabled")
	}
	return nil
}

func parseSince(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, nil
	}

	rfc3339, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return rfc3339.UTC(), nil
	}

	dateOnly, err := time.Parse("2006-01-02", raw)
	if err == nil {
		return dateOnly.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("--since must be RFC3339 or YYYY-MM-DD, got %q", value)
}

func parseQueryTrace(raw string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("--query-trace must be formatted as <from>:<to>")
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// configureLogging installs a text logger on w. The returned level is adjusted
// once the config is loaded.
func configureLogging(w io.Writer, verbose bool) *slog.LevelVar {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	if verbose {
		level.Set(slog.LevelDebug)
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return level
}
