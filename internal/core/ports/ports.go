package ports

import (
	"archgraph/internal/data/history"
	"archgraph/internal/engine/graph"
	"archgraph/internal/engine/semantic"
	"archgraph/internal/engine/smells"
	"context"
	"io"
	"time"
)

// SmellDetector finds architecture smells in a dependency graph.
type SmellDetector interface {
	Detect(g *graph.Graph) []smells.Smell
}

// HistoryTracker persists analysis points and derives trends from them.
type HistoryTracker interface {
	Append(ctx context.Context, g *graph.Graph, found []smells.Smell, summary *graph.Summary) (history.Point, error)
	Points(ctx context.Context) ([]history.Point, error)
	Trend(ctx context.Context, window int) (history.Trend, error)
	DetectRegressions(ctx context.Context, window int) ([]string, error)
	EvolutionReport(ctx context.Context, window int) (string, error)
	ExportJSON(ctx context.Context, w io.Writer) error
}

// AnalyzeRequest selects the self-map to analyze. An empty SelfMapPath uses the
// configured one.
type AnalyzeRequest struct {
	SelfMapPath string
	// SkipHistory analyzes without appending a history point.
	SkipHistory bool
}

// Subsystem is one topology cluster.
type Subsystem struct {
	Center  string   `json:"center"`
	Members []string `json:"members"`
}

// HistoryResult is the history section of a report.
type HistoryResult struct {
	Point       history.Point `json:"point"`
	Trend       history.Trend `json:"trend"`
	Regressions []string      `json:"regressions"`
	Report      string        `json:"-"`
}

// AnalysisReport is the result of one analysis pass over a self-map.
type AnalysisReport struct {
	Source      string                   `json:"source"`
	GeneratedAt time.Time                `json:"generated_at"`
	Duration    time.Duration            `json:"duration_ns"`
	Summary     graph.Summary            `json:"summary"`
	Layers      map[string]int           `json:"layers"`
	Roles       map[string]semantic.Role `json:"roles"`
	Violations  []semantic.Violation     `json:"violations"`
	Centers     []string                 `json:"centers"`
	Subsystems  []Subsystem              `json:"subsystems"`
	Smells      []smells.Smell           `json:"smells"`
	History     *HistoryResult           `json:"history,omitempty"`

	// Rendered text sections.
	SemanticText string `json:"-"`
	TopologyText string `json:"-"`
}

// Clusters returns the subsystems keyed by center.
func (r AnalysisReport) Clusters() map[string][]string {
	out := make(map[string][]string, len(r.Subsystems))
	for _, s := range r.Subsystems {
		out[s.Center] = s.Members
	}
	return out
}

// AnalysisService is the driving port used by the CLI and the watcher.
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalysisReport, error)
	TraceImportChain(ctx context.Context, from, to string) ([]string, error)
	EvolutionReport(ctx context.Context) (string, error)
	ExportHistory(ctx context.Context, w io.Writer) error
}
