package query

import (
	"archgraph/internal/core/errors"
	"archgraph/internal/data/history"
	"archgraph/internal/engine/graph"
	"archgraph/internal/engine/semantic"
	"archgraph/internal/shared/util"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type pointReader interface {
	Points(ctx context.Context) ([]history.Point, error)
}

// Service answers read-only questions about one analyzed graph.
type Service struct {
	graph   *graph.Graph
	roles   map[string]semantic.Role
	layers  map[string]int
	fan     map[string]graph.Fan
	history pointReader
}

// NewService snapshots the derived per-node data of g. roles may be nil, in
// which case the built-in heuristics are used. h may be nil.
func NewService(g *graph.Graph, roles map[string]semantic.Role, h pointReader) *Service {
	if roles == nil {
		roles = semantic.Classify(g)
	}
	return &Service{
		graph:   g,
		roles:   roles,
		layers:  g.Layers(),
		fan:     g.FanInOut(),
		history: h,
	}
}

func (s *Service) summary(name string) ModuleSummary {
	role, ok := s.roles[name]
	if !ok {
		role = semantic.RoleOther
	}
	return ModuleSummary{
		Name:                   name,
		Role:                   role,
		Layer:                  s.layers[name],
		DependencyCount:        s.fan[name].Out,
		ReverseDependencyCount: s.fan[name].In,
	}
}

// ListModules returns modules whose name contains filter, sorted by name.
func (s *Service) ListModules(ctx context.Context, filter string, limit int) ([]ModuleSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filter = strings.ToLower(strings.TrimSpace(filter))
	rows := make([]ModuleSummary, 0, s.graph.NodeCount())
	for _, name := range s.graph.Nodes() {
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		rows = append(rows, s.summary(name))
	}

	if limit > 0 && len(rows) > limit {
		return rows[:limit], nil
	}
	return rows, nil
}

// ModuleDetails looks a module up by path. The path is normalized the same way
// graph nodes are, so "./a.py" and `pkg\a.py` find "a.py" and "pkg/a.py".
func (s *Service) ModuleDetails(ctx context.Context, moduleName string) (ModuleDetails, error) {
	if err := ctx.Err(); err != nil {
		return ModuleDetails{}, err
	}
	moduleName = util.NormalizePath(moduleName)
	if moduleName == "" || !s.graph.HasNode(moduleName) {
		return ModuleDetails{}, errors.AddContext(errors.New(errors.CodeNotFound, "module not found"), errors.CtxNode, moduleName)
	}

	deps := uniqueSorted(s.graph.Successors(moduleName))

	reverseSet := make(map[string]bool)
	for _, e := range s.graph.Edges() {
		if e.To == moduleName {
			reverseSet[e.From] = true
		}
	}
	reverse := make([]string, 0, len(reverseSet))
	for from := range reverseSet {
		reverse = append(reverse, from)
	}
	sort.Strings(reverse)

	inCycle := false
	for _, cycle := range s.graph.FindCycles() {
		for _, member := range cycle {
			if member == moduleName {
				inCycle = true
			}
		}
	}

	return ModuleDetails{
		ModuleSummary:       s.summary(moduleName),
		Dependencies:        deps,
		ReverseDependencies: reverse,
		InCycle:             inCycle,
	}, nil
}

func (s *Service) DependencyTrace(ctx context.Context, from, to string, maxDepth int) (TraceResult, error) {
	if err := ctx.Err(); err != nil {
		return TraceResult{}, err
	}
	from, to = util.NormalizePath(from), util.NormalizePath(to)
	for _, name := range []string{from, to} {
		if name == "" || !s.graph.HasNode(name) {
			return TraceResult{}, errors.AddContext(errors.New(errors.CodeNotFound, "module not found"), errors.CtxNode, name)
		}
	}

	path, ok := s.graph.FindImportChain(from, to)
	if !ok {
		return TraceResult{}, errors.New(errors.CodeNotFound, fmt.Sprintf("no path from %s to %s", from, to))
	}
	depth := len(path) - 1
	if maxDepth > 0 && depth > maxDepth {
		return TraceResult{}, errors.New(errors.CodeValidationError, fmt.Sprintf("trace depth %d exceeds max_depth %d", depth, maxDepth))
	}

	return TraceResult{
		From:  from,
		To:    to,
		Path:  path,
		Depth: depth,
	}, nil
}

// ExecuteCQL runs a `SELECT modules [WHERE ...]` query.
func (s *Service) ExecuteCQL(ctx context.Context, raw string, limit int) ([]ModuleSummary, error) {
	q, err := ParseCQL(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "parse query")
	}
	rows, err := s.ListModules(ctx, "", 0)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, row := range rows {
		match, err := q.Match(row)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, "evaluate query")
		}
		if match {
			out = append(out, row)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TrendSlice returns history points recorded at or after since, newest limit
// points at most.
func (s *Service) TrendSlice(ctx context.Context, since time.Time, limit int) (TrendSlice, error) {
	if err := ctx.Err(); err != nil {
		return TrendSlice{}, err
	}
	if s.history == nil {
		return TrendSlice{}, errors.New(errors.CodeNotSupported, "history store unavailable")
	}

	all, err := s.history.Points(ctx)
	if err != nil {
		return TrendSlice{}, err
	}
	points := make([]history.Point, 0, len(all))
	for _, p := range all {
		if !since.IsZero() && p.Timestamp.Before(since) {
			continue
		}
		points = append(points, p)
	}

	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}

	out := TrendSlice{
		ScanCount: len(points),
		Points:    points,
	}
	if len(points) > 0 {
		out.Since = points[0].Timestamp.Format(time.RFC3339)
		out.Until = points[len(points)-1].Timestamp.Format(time.RFC3339)
	}
	return out, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
