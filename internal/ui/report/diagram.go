// Package report renders analysis results as diagrams for documentation.
package report

import (
	"archgraph/internal/core/errors"
	"archgraph/internal/core/ports"
	"archgraph/internal/engine/graph"
	"archgraph/internal/engine/semantic"
	"archgraph/internal/shared/util"
	"fmt"
	"sort"
	"strings"
)

const (
	FormatMermaid = "mermaid"
	FormatDOT     = "dot"
)

var roleColors = map[semantic.Role]string{
	semantic.RoleOrchestration:  "#cfe2ff",
	semantic.RoleAnalytics:      "#d1e7dd",
	semantic.RoleInfrastructure: "#fff3cd",
	semantic.RoleTests:          "#e2e3e5",
	semantic.RoleOther:          "#ffffff",
}

// Render draws g in the given format using the roles, subsystems, cycles and
// violations of report.
func Render(format string, g *graph.Graph, report ports.AnalysisReport) (string, error) {
	if err := CheckFormat(format); err != nil {
		return "", err
	}
	if normalizeFormat(format) == FormatDOT {
		return DOT(g, report), nil
	}
	return Mermaid(g, report), nil
}

// CheckFormat rejects diagram formats Render does not know.
func CheckFormat(format string) error {
	switch normalizeFormat(format) {
	case FormatMermaid, FormatDOT:
		return nil
	default:
		return errors.New(errors.CodeValidationError, fmt.Sprintf("unknown diagram format %q (want mermaid or dot)", format))
	}
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

// Mermaid renders a flowchart with one subgraph per subsystem.
func Mermaid(g *graph.Graph, report ports.AnalysisReport) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	nodes := g.Nodes()
	ids := makeIDs(nodes)
	placed := make(map[string]bool, len(nodes))

	for i, s := range report.Subsystems {
		fmt.Fprintf(&b, "  subgraph sub_%d[\"%s\"]\n", i+1, escapeLabel(s.Center))
		for _, m := range s.Members {
			if placed[m] || !g.HasNode(m) {
				continue
			}
			placed[m] = true
			fmt.Fprintf(&b, "    %s[\"%s\"]\n", ids[m], escapeLabel(m))
		}
		b.WriteString("  end\n")
	}
	for _, n := range nodes {
		if !placed[n] {
			fmt.Fprintf(&b, "  %s[\"%s\"]\n", ids[n], escapeLabel(n))
		}
	}

	cycles := cycleEdgeSet(report.Summary.Cycles)
	violations := violationEdgeSet(report.Violations)
	var cycleLinks []int
	for i, e := range g.Edges() {
		key := edgeKey(e.From, e.To)
		switch {
		case violations[key] != "":
			fmt.Fprintf(&b, "  %s -. %s .-> %s\n", ids[e.From], violations[key], ids[e.To])
		default:
			fmt.Fprintf(&b, "  %s --> %s\n", ids[e.From], ids[e.To])
		}
		if cycles[key] {
			cycleLinks = append(cycleLinks, i)
		}
	}

	for _, role := range sortedRoles(report.Roles) {
		fmt.Fprintf(&b, "  classDef %s fill:%s,stroke:#333333\n", role, roleColor(role))
	}
	for _, role := range sortedRoles(report.Roles) {
		var members []string
		for _, n := range nodes {
			if report.Roles[n] == role {
				members = append(members, ids[n])
			}
		}
		fmt.Fprintf(&b, "  class %s %s\n", strings.Join(members, ","), role)
	}
	if len(cycleLinks) > 0 {
		parts := make([]string, len(cycleLinks))
		for i, idx := range cycleLinks {
			parts[i] = fmt.Sprint(idx)
		}
		fmt.Fprintf(&b, "  linkStyle %s stroke:#d62728,stroke-width:3px\n", strings.Join(parts, ","))
	}
	return b.String()
}

// DOT renders a Graphviz digraph with one cluster per subsystem.
func DOT(g *graph.Graph, report ports.AnalysisReport) string {
	var b strings.Builder
	b.WriteString("digraph architecture {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=8];\n\n")

	inCycle := make(map[string]bool)
	for _, c := range report.Summary.Cycles {
		for _, n := range c {
			inCycle[n] = true
		}
	}
	writeNode := func(indent, n string) {
		color := "darkslategrey"
		width := "1.0"
		if inCycle[n] {
			color, width = "red", "2.0"
		}
		fmt.Fprintf(&b, "%s\"%s\" [fillcolor=\"%s\", color=\"%s\", penwidth=%s];\n",
			indent, escapeLabel(n), roleColor(report.Roles[n]), color, width)
	}

	placed := make(map[string]bool)
	for i, s := range report.Subsystems {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", i+1)
		fmt.Fprintf(&b, "    label=\"%s\";\n", escapeLabel(s.Center))
		b.WriteString("    style=dashed;\n")
		for _, m := range s.Members {
			if placed[m] || !g.HasNode(m) {
				continue
			}
			placed[m] = true
			writeNode("    ", m)
		}
		b.WriteString("  }\n")
	}
	for _, n := range g.Nodes() {
		if !placed[n] {
			writeNode("  ", n)
		}
	}
	b.WriteString("\n")

	cycles := cycleEdgeSet(report.Summary.Cycles)
	violations := violationEdgeSet(report.Violations)
	for _, e := range g.Edges() {
		key := edgeKey(e.From, e.To)
		attrs := "color=\"forestgreen\""
		switch {
		case cycles[key]:
			attrs = "color=\"red\", penwidth=3.0, label=\"CYCLE\""
		case violations[key] != "":
			attrs = fmt.Sprintf("color=\"darkorange\", style=dashed, label=\"%s\"", violations[key])
		}
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\" [%s];\n", escapeLabel(e.From), escapeLabel(e.To), attrs)
	}
	b.WriteString("}\n")
	return b.String()
}

func roleColor(r semantic.Role) string {
	if c, ok := roleColors[r]; ok {
		return c
	}
	return roleColors[semantic.RoleOther]
}

func sortedRoles(roles map[string]semantic.Role) []semantic.Role {
	set := make(map[string]bool, len(roles))
	for _, r := range roles {
		set[string(r)] = true
	}
	names := util.SortedStringKeys(set)
	out := make([]semantic.Role, len(names))
	for i, n := range names {
		out[i] = semantic.Role(n)
	}
	return out
}

func edgeKey(from, to string) string {
	return from + "\x00" + to
}

func cycleEdgeSet(cycles [][]string) map[string]bool {
	out := make(map[string]bool)
	for _, c := range cycles {
		for i := range c {
			out[edgeKey(c[i], c[(i+1)%len(c)])] = true
		}
	}
	return out
}

func violationEdgeSet(violations []semantic.Violation) map[string]string {
	out := make(map[string]string, len(violations))
	for _, v := range violations {
		key := edgeKey(v.Src, v.Dst)
		if prev := out[key]; prev != "" {
			out[key] = prev + "+" + string(v.Rule)
			continue
		}
		out[key] = string(v.Rule)
	}
	return out
}

func makeIDs(names []string) map[string]string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	ids := make(map[string]string, len(sorted))
	used := make(map[string]int, len(sorted))
	for _, name := range sorted {
		base := sanitizeID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}
