package app

import (
	"archgraph/internal/core/ports"
	"archgraph/internal/engine/smells"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, r ports.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderYAML writes the report as YAML. Keys match the JSON field names and
// are sorted.
func RenderYAML(w io.Writer, r ports.AnalysisReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// RenderText writes the human-readable report.
func RenderText(w io.Writer, r ports.AnalysisReport) error {
	var b strings.Builder

	s := r.Summary
	b.WriteString("ARCHITECTURE SUMMARY\n")
	fmt.Fprintf(&b, "Self-map: %s\n", r.Source)
	fmt.Fprintf(&b, "Modules: %d\n", s.Nodes)
	fmt.Fprintf(&b, "Dependencies: %d\n", s.Edges)
	fmt.Fprintf(&b, "Cycles: %d\n", s.CyclesCount)
	for _, cycle := range s.Cycles {
		fmt.Fprintf(&b, "  - %s\n", formatCycle(cycle))
	}
	fmt.Fprintf(&b, "Max degree: %d\n", s.MaxDegree)
	fmt.Fprintf(&b, "Layers: %d\n", layerCount(r.Layers))
	b.WriteString("\n")

	b.WriteString(strings.TrimRight(r.SemanticText, "\n"))
	b.WriteString("\n\n")
	b.WriteString(strings.TrimRight(r.TopologyText, "\n"))
	b.WriteString("\n\n")

	b.WriteString("ARCHITECTURE SMELLS\n")
	if len(r.Smells) == 0 {
		b.WriteString("- none detected\n")
	}
	for _, sm := range r.Smells {
		fmt.Fprintf(&b, "- [%s] %s (severity %.1f): %s\n", smells.Level(sm.Severity), sm.Type, sm.Severity, strings.Join(sm.Nodes, ", "))
	}

	if r.History != nil && r.History.Report != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(r.History.Report, "\n"))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(append(append([]string(nil), cycle...), cycle[0]), " -> ")
}

func layerCount(layers map[string]int) int {
	if len(layers) == 0 {
		return 0
	}
	top := 0
	for _, l := range layers {
		if l > top {
			top = l
		}
	}
	return top + 1
}
