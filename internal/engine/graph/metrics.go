package graph

// Fan is the (fan-in, fan-out) pair of a node.
type Fan struct {
	In  int `json:"fan_in"`
	Out int `json:"fan_out"`
}

// Degree is fan-in plus fan-out.
func (f Fan) Degree() int {
	return f.In + f.Out
}

// NodeMetrics is derived per call and never cached across graph mutations.
type NodeMetrics struct {
	Name   string `json:"name"`
	FanIn  int    `json:"fan_in"`
	FanOut int    `json:"fan_out"`
	Layer  int    `json:"layer"`
}

// Summary is the compact structural overview of a graph.
type Summary struct {
	Nodes       int                    `json:"nodes"`
	Edges       int                    `json:"edges"`
	CyclesCount int                    `json:"cycles_count"`
	Cycles      [][]string             `json:"cycles"`
	MaxDegree   int                    `json:"max_degree"`
	Metrics     map[string]NodeMetrics `json:"metrics"`
}

// FanInOut counts incoming and outgoing edges per node, duplicates included.
func (g *Graph) FanInOut() map[string]Fan {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.fanInOutLocked()
}

func (g *Graph) fanInOutLocked() map[string]Fan {
	fan := make(map[string]Fan, len(g.nodes))
	for n := range g.nodes {
		fan[n] = Fan{Out: len(g.edges[n])}
	}
	for _, dsts := range g.edges {
		for _, dst := range dsts {
			f := fan[dst]
			f.In++
			fan[dst] = f
		}
	}
	return fan
}

// Metrics combines fan-in/fan-out with the heuristic layer of each node.
func (g *Graph) Metrics() map[string]NodeMetrics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	fan := g.fanInOutLocked()
	layers := g.layersLocked()
	res := make(map[string]NodeMetrics, len(g.nodes))
	for n := range g.nodes {
		res[n] = NodeMetrics{
			Name:   n,
			FanIn:  fan[n].In,
			FanOut: fan[n].Out,
			Layer:  layers[n],
		}
	}
	return res
}

// MaxDegree is the largest fan-in + fan-out over all nodes, 0 for an empty graph.
func (g *Graph) MaxDegree() int {
	best := 0
	for _, f := range g.FanInOut() {
		if d := f.Degree(); d > best {
			best = d
		}
	}
	return best
}

// Summarize computes node/edge counts, cycles and per-node metrics in one pass.
func Summarize(g *Graph) Summary {
	cycles := g.FindCycles()
	metrics := g.Metrics()
	maxDegree := 0
	for _, m := range metrics {
		if d := m.FanIn + m.FanOut; d > maxDegree {
			maxDegree = d
		}
	}
	return Summary{
		Nodes:       g.NodeCount(),
		Edges:       g.EdgeCount(),
		CyclesCount: len(cycles),
		Cycles:      cycles,
		MaxDegree:   maxDegree,
		Metrics:     metrics,
	}
}
