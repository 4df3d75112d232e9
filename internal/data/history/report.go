package history

import (
	"fmt"
	"strings"
)

var maturityNotes = map[string]string{
	MaturityHigh:   "Interpretation: architecture is growing or stabilizing with decreasing structural issues. Focus can shift from firefighting to guided evolution.",
	MaturityMedium: "Interpretation: architecture is stable but still centralized. Monitor hubs and bottlenecks to avoid future rigidity.",
	MaturityLow:    "Interpretation: structural issues are accumulating. Prioritize breaking emerging bottlenecks and reducing smell growth.",
}

func renderReport(pts []Point) string {
	if len(pts) == 0 {
		return "No architecture history yet."
	}
	trend := trendOf(pts)
	regressions := regressionsOf(pts)
	oldest, newest := pts[0], pts[len(pts)-1]

	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("ARCHITECTURE EVOLUTION ANALYSIS")
	add("")
	if newest.Version != "" {
		add("Version: %s", newest.Version)
	}
	if newest.GitCommit != "" {
		add("Git: %s", newest.GitCommit)
	}
	add("Risk score: %s", riskBar(newest.RiskScore))
	add("")

	if len(pts) >= 2 {
		add("Diff metrics (window):")
		delta := func(label string, o, n int) {
			add("- %s: %d → %d (Δ %d)", label, o, n, n-o)
		}
		delta("Modules", oldest.Modules, newest.Modules)
		delta("Dependencies", oldest.Dependencies, newest.Dependencies)
		delta("Cycles", oldest.Cycles, newest.Cycles)
		delta("Total smells", oldest.TotalSmells, newest.TotalSmells)
		delta("Max degree", oldest.MaxDegree, newest.MaxDegree)
		add("- Risk score: %s → %s (Δ %s)", formatScore(oldest.RiskScore), formatScore(newest.RiskScore), formatScore(newest.RiskScore-oldest.RiskScore))
		add("")

		add("Smell history (window):")
		types := smellTypes(oldest, newest)
		if len(types) == 0 {
			add("- no smells recorded in history window")
		}
		for _, typ := range types {
			o, n := oldest.SmellCounts[typ], newest.SmellCounts[typ]
			add("- %s: %d → %d (Δ %d)", typ, o, n, n-o)
		}
		add("")
	}

	add("Trend:")
	add("- System complexity: %s", trend.Complexity)
	add("- Centralization: %s", trend.Centralization)
	add("- Smell count: %s", trend.Smells)
	add("")

	add("Potential regressions:")
	if len(regressions) == 0 {
		add("- none detected over the observed window")
	}
	for _, r := range regressions {
		add("- %s", r)
	}
	add("")

	maturity := maturityOf(trend, newest)
	add("Maturity (dynamic): %s", maturity)
	if note, ok := maturityNotes[maturity]; ok {
		add("%s", note)
	}
	return strings.Join(lines, "\n")
}
