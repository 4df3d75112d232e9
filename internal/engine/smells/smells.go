// Package smells flags structural anti-patterns in the dependency graph.
package smells

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"archgraph/internal/engine/graph"
)

const (
	TypeCyclicDependency = "cyclic_dependency"
	TypeGodModule        = "god_module"
	TypeBottleneck       = "bottleneck"
	TypeHub              = "hub"
)

// Smell is a single finding. Nodes are the graph nodes involved.
type Smell struct {
	Type        string   `json:"type"`
	Nodes       []string `json:"nodes"`
	Severity    float64  `json:"severity"`
	Description string   `json:"description"`
}

// Detector runs the built-in degree and cycle heuristics.
type Detector struct {
	// MinOutlierDegree is the floor for bottleneck fan-in and hub fan-out.
	// Non-positive means 3.
	MinOutlierDegree int
	// ExemptSuffixes names nodes never reported as god modules or bottlenecks.
	ExemptSuffixes []string
}

// NewDetector returns a detector with the default thresholds.
func NewDetector() *Detector {
	return &Detector{MinOutlierDegree: 3, ExemptSuffixes: []string{"_api.py"}}
}

// Detect returns every smell ordered by severity, highest first.
func (d *Detector) Detect(g *graph.Graph) []Smell {
	fan := g.FanInOut()
	nodes := g.Nodes()

	var out []Smell
	out = append(out, d.cycleSmells(g, fan)...)
	out = append(out, d.godModules(nodes, fan)...)
	out = append(out, d.bottlenecks(nodes, fan)...)
	out = append(out, d.hubs(nodes, fan)...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity > out[j].Severity
	})
	return out
}

func (d *Detector) minDegree() float64 {
	if d.MinOutlierDegree <= 0 {
		return 3
	}
	return float64(d.MinOutlierDegree)
}

func (d *Detector) exempt(node string) bool {
	for _, suffix := range d.ExemptSuffixes {
		if suffix != "" && strings.HasSuffix(node, suffix) {
			return true
		}
	}
	return false
}

func (d *Detector) cycleSmells(g *graph.Graph, fan map[string]graph.Fan) []Smell {
	var out []Smell
	for _, cycle := range g.FindCycles() {
		if len(cycle) == 0 {
			continue
		}
		total := 0
		for _, n := range cycle {
			total += fan[n].In
		}
		avg := float64(total) / float64(len(cycle))
		out = append(out, Smell{
			Type:        TypeCyclicDependency,
			Nodes:       cycle,
			Severity:    float64(len(cycle)) * (1 + avg),
			Description: fmt.Sprintf("Cycle of length %d with avg fan-in %.2f", len(cycle), avg),
		})
	}
	return out
}

func (d *Detector) godModules(nodes []string, fan map[string]graph.Fan) []Smell {
	degrees := make([]float64, len(nodes))
	for i, n := range nodes {
		degrees[i] = float64(fan[n].Degree())
	}
	mu, sigma := stats(degrees)
	if sigma == 0 {
		return nil
	}
	threshold := mu + 2*sigma

	var out []Smell
	for _, n := range nodes {
		if d.exempt(n) {
			continue
		}
		deg := fan[n].Degree()
		if float64(deg) > threshold {
			out = append(out, Smell{
				Type:        TypeGodModule,
				Nodes:       []string{n},
				Severity:    float64(deg),
				Description: fmt.Sprintf("High total degree %d (fan-in + fan-out), threshold %.2f", deg, threshold),
			})
		}
	}
	return out
}

func (d *Detector) bottlenecks(nodes []string, fan map[string]graph.Fan) []Smell {
	ins := make([]float64, len(nodes))
	for i, n := range nodes {
		ins[i] = float64(fan[n].In)
	}
	mu, sigma := stats(ins)
	threshold := math.Max(d.minDegree(), mu+2*sigma)

	var out []Smell
	for _, n := range nodes {
		if d.exempt(n) {
			continue
		}
		f := fan[n]
		if float64(f.In) >= threshold && f.Out <= 1 {
			out = append(out, Smell{
				Type:        TypeBottleneck,
				Nodes:       []string{n},
				Severity:    float64(f.In),
				Description: fmt.Sprintf("High fan-in %d with low fan-out %d", f.In, f.Out),
			})
		}
	}
	return out
}

func (d *Detector) hubs(nodes []string, fan map[string]graph.Fan) []Smell {
	outs := make([]float64, len(nodes))
	for i, n := range nodes {
		outs[i] = float64(fan[n].Out)
	}
	mu, sigma := stats(outs)
	threshold := math.Max(d.minDegree(), mu+2*sigma)

	var out []Smell
	for _, n := range nodes {
		f := fan[n]
		if float64(f.Out) >= threshold && f.In <= 1 {
			out = append(out, Smell{
				Type:        TypeHub,
				Nodes:       []string{n},
				Severity:    float64(f.Out),
				Description: fmt.Sprintf("High fan-out %d with low fan-in %d", f.Out, f.In),
			})
		}
	}
	return out
}

// stats returns the mean and population standard deviation.
func stats(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if len(values) == 1 {
		return mean, 0
	}
	sq := 0.0
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// Counts tallies smells per type.
func Counts(list []Smell) map[string]int {
	counts := make(map[string]int)
	for _, s := range list {
		counts[s.Type]++
	}
	return counts
}

// Level maps a numeric severity to low, medium, high or critical.
func Level(severity float64) string {
	switch {
	case severity < 5:
		return "low"
	case severity < 12:
		return "medium"
	case severity < 20:
		return "high"
	default:
		return "critical"
	}
}
