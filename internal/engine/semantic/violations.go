package semantic

import (
	"fmt"
	"sort"
	"strings"

	"archgraph/internal/engine/graph"
)

// Rule names a layer-violation rule.
type Rule string

const (
	// RuleTestDependency: a non-test module depends on a test module.
	RuleTestDependency Rule = "test_dependency"
	// RuleInfrastructureUpward: infrastructure depends on orchestration or analytics.
	RuleInfrastructureUpward Rule = "infrastructure_upward"
	// RuleAnalyticsOrchestration: analytics depends on orchestration.
	RuleAnalyticsOrchestration Rule = "analytics_orchestration"
)

// Violation is a suspicious src -> dst edge between roles.
type Violation struct {
	Src     string `json:"src"`
	SrcRole Role   `json:"src_role"`
	Dst     string `json:"dst"`
	DstRole Role   `json:"dst_role"`
	Rule    Rule   `json:"rule"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s (%s) -> %s (%s)", v.Src, v.SrcRole, v.Dst, v.DstRole)
}

// DetectViolations checks every edge against each rule independently, so an
// edge can be reported once per rule it breaks. Nodes missing from roles are
// treated as other.
func DetectViolations(g *graph.Graph, roles map[string]Role) []Violation {
	roleOf := func(n string) Role {
		if r, ok := roles[n]; ok {
			return r
		}
		return RoleOther
	}

	var out []Violation
	for _, e := range g.Edges() {
		src, dst := roleOf(e.From), roleOf(e.To)
		add := func(rule Rule) {
			out = append(out, Violation{Src: e.From, SrcRole: src, Dst: e.To, DstRole: dst, Rule: rule})
		}

		if dst == RoleTests && src != RoleTests {
			add(RuleTestDependency)
		}
		if src == RoleInfrastructure && (dst == RoleOrchestration || dst == RoleAnalytics) {
			add(RuleInfrastructureUpward)
		}
		if src == RoleAnalytics && dst == RoleOrchestration {
			add(RuleAnalyticsOrchestration)
		}
	}
	return out
}

// RoleCounts tallies nodes per role.
func RoleCounts(roles map[string]Role) map[Role]int {
	counts := make(map[Role]int)
	for _, r := range roles {
		counts[r]++
	}
	return counts
}

// Summary renders the role distribution and the first limit violations.
// A non-positive limit defaults to 10.
func Summary(roles map[string]Role, violations []Violation, limit int) string {
	if limit <= 0 {
		limit = 10
	}
	counts := RoleCounts(roles)
	names := make([]string, 0, len(counts))
	for r := range counts {
		names = append(names, string(r))
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("SEMANTIC ARCHITECTURE (heuristic)\n\n")
	b.WriteString("Roles distribution:\n")
	for _, r := range names {
		fmt.Fprintf(&b, "- %s: %d modules\n", r, counts[Role(r)])
	}
	b.WriteString("\nPotential layer violations:\n")
	if len(violations) == 0 {
		b.WriteString("- none detected (under current heuristics)")
		return b.String()
	}
	shown := violations
	if len(shown) > limit {
		shown = shown[:limit]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, v := range shown {
		lines = append(lines, "- "+v.String())
	}
	if rest := len(violations) - len(shown); rest > 0 {
		lines = append(lines, fmt.Sprintf("- ... and %d more", rest))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}
