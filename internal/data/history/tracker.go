// Package history records analysis snapshots per project and derives trends,
// regressions and a risk score from them.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"archgraph/internal/engine/graph"
	"archgraph/internal/engine/smells"
	"archgraph/internal/shared/observability"

	"github.com/google/uuid"
)

// DefaultWindow is the number of trailing points trends look at.
const DefaultWindow = 5

// TrackerOptions configures a Tracker. Zero values pick defaults.
type TrackerOptions struct {
	ProjectRoot string
	Window      int
	Versions    VersionSource
	Clock       func() time.Time
	RunID       func() string
}

// Tracker is the append-only history of one project root.
type Tracker struct {
	store    *Store
	root     string
	window   int
	versions VersionSource
	now      func() time.Time
	runID    func() string
}

func NewTracker(store *Store, opts TrackerOptions) *Tracker {
	t := &Tracker{
		store:    store,
		root:     opts.ProjectRoot,
		window:   opts.Window,
		versions: opts.Versions,
		now:      opts.Clock,
		runID:    opts.RunID,
	}
	if t.window <= 0 {
		t.window = DefaultWindow
	}
	if t.versions == nil {
		t.versions = FileVersionSource{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.runID == nil {
		t.runID = func() string { return uuid.NewString() }
	}
	return t
}

// Window is the default trend window.
func (t *Tracker) Window() int {
	return t.window
}

// Append records the current analysis. summary may be nil, in which case it is
// computed from g. Missing version or git metadata is left empty.
func (t *Tracker) Append(ctx context.Context, g *graph.Graph, found []smells.Smell, summary *graph.Summary) (Point, error) {
	if summary == nil {
		s := graph.Summarize(g)
		summary = &s
	}

	counts := smells.Counts(found)
	version, _ := t.versions.Version(t.root)
	commit, _ := ReadGitCommit(t.root)

	p, err := t.store.Append(ctx, func(prev []Point) (Point, error) {
		p := Point{
			Timestamp:    t.now().UTC(),
			RunID:        t.runID(),
			Modules:      summary.Nodes,
			Dependencies: summary.Edges,
			Cycles:       summary.CyclesCount,
			MaxDegree:    summary.MaxDegree,
			TotalSmells:  len(found),
			SmellCounts:  counts,
			Version:      version,
			GitCommit:    commit,
		}
		series := append(append([]Point(nil), prev...), p)
		trend := trendOf(windowOf(series, t.window))
		p.Maturity = maturityOf(trend, p)
		p.RiskScore = RiskScore(RiskInput{
			Modules:      p.Modules,
			Dependencies: p.Dependencies,
			Cycles:       p.Cycles,
			SmellCounts:  p.SmellCounts,
			Trend:        trend,
		})
		return p, nil
	})
	if err != nil {
		return Point{}, err
	}

	observability.HistoryAppendsTotal.Inc()
	observability.HistoryRiskScore.Set(p.RiskScore)
	slog.Debug("history point appended", "seq", p.Seq, "risk", p.RiskScore, "maturity", p.Maturity)
	return p, nil
}

// Points returns the full history in append order.
func (t *Tracker) Points(ctx context.Context) ([]Point, error) {
	return t.store.Load(ctx)
}

// Trend compares the first and last point of the trailing window.
// A non-positive window uses the tracker default.
func (t *Tracker) Trend(ctx context.Context, window int) (Trend, error) {
	pts, err := t.windowPoints(ctx, window)
	if err != nil {
		return Trend{}, err
	}
	return trendOf(pts), nil
}

// DetectRegressions diffs consecutive points of the trailing window.
func (t *Tracker) DetectRegressions(ctx context.Context, window int) ([]string, error) {
	pts, err := t.windowPoints(ctx, window)
	if err != nil {
		return nil, err
	}
	return regressionsOf(pts), nil
}

// EvolutionReport renders the trailing window as text.
func (t *Tracker) EvolutionReport(ctx context.Context, window int) (string, error) {
	pts, err := t.windowPoints(ctx, window)
	if err != nil {
		return "", err
	}
	return renderReport(pts), nil
}

// ExportJSON writes the whole history as an indented JSON document.
func (t *Tracker) ExportJSON(ctx context.Context, w io.Writer) error {
	pts, err := t.store.Load(ctx)
	if err != nil {
		return err
	}
	if pts == nil {
		pts = []Point{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Export{SchemaVersion: SchemaVersion, History: pts}); err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return nil
}

func (t *Tracker) windowPoints(ctx context.Context, window int) ([]Point, error) {
	if window <= 0 {
		window = t.window
	}
	pts, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return windowOf(pts, window), nil
}

func direction(first, last int) Direction {
	switch {
	case last > first:
		return Increasing
	case last < first:
		return Decreasing
	default:
		return Stable
	}
}

// trendOf uses the dependency count as the complexity series.
func trendOf(pts []Point) Trend {
	if len(pts) < 2 {
		return Trend{Complexity: Unknown, Smells: Unknown, Centralization: Unknown}
	}
	first, last := pts[0], pts[len(pts)-1]
	return Trend{
		Complexity:     direction(first.Dependencies, last.Dependencies),
		Smells:         direction(first.TotalSmells, last.TotalSmells),
		Centralization: direction(first.MaxDegree, last.MaxDegree),
	}
}

func regressionsOf(pts []Point) []string {
	notes := []string{}
	for i := 1; i < len(pts); i++ {
		prev, curr := pts[i-1], pts[i]
		if curr.Cycles > prev.Cycles {
			notes = append(notes, fmt.Sprintf("Cycles increased: %d → %d", prev.Cycles, curr.Cycles))
		}
		if curr.TotalSmells > prev.TotalSmells {
			notes = append(notes, fmt.Sprintf("Total smells increased: %d → %d", prev.TotalSmells, curr.TotalSmells))
		}
		for _, typ := range smellTypes(prev, curr) {
			if p, c := prev.SmellCounts[typ], curr.SmellCounts[typ]; c > p {
				notes = append(notes, fmt.Sprintf("%s increased: %d → %d", typ, p, c))
			}
		}
		if prev.MaxDegree >= 2 && float64(curr.MaxDegree) > float64(prev.MaxDegree)*1.5 {
			notes = append(notes, fmt.Sprintf("Centralization increased significantly (max degree %d → %d)", prev.MaxDegree, curr.MaxDegree))
		}
	}
	return notes
}

func smellTypes(pts ...Point) []string {
	set := make(map[string]struct{})
	for _, p := range pts {
		for typ := range p.SmellCounts {
			set[typ] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for typ := range set {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

func maturityOf(trend Trend, newest Point) string {
	if trend.Complexity == Unknown {
		return MaturityInsufficientData
	}
	noCycles := newest.Cycles == 0
	switch {
	case noCycles && trend.Smells == Decreasing && trend.Centralization != Increasing:
		return MaturityHigh
	case noCycles && trend.Smells == Stable && trend.Centralization != Increasing:
		return MaturityMedium
	case !noCycles || trend.Smells == Increasing:
		return MaturityLow
	default:
		return MaturityMediumLow
	}
}
