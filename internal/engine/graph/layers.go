package graph

// Layers assigns each node its distance from the leaves: a node without
// successors is layer 0, and a node whose successors are all resolved sits one
// layer above the highest of them. Resolution is iterated until nothing changes
// or 2*|nodes| rounds have run. Nodes still unresolved (cycle members and
// anything depending on them) fall back to the highest layer seen, or 0.
func (g *Graph) Layers() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.layersLocked()
}

func (g *Graph) layersLocked() map[string]int {
	nodes := g.sortedNodesLocked()
	layers := make(map[string]int, len(nodes))

	for _, n := range nodes {
		if len(g.edges[n]) == 0 {
			layers[n] = 0
		}
	}

	maxRounds := 2 * len(nodes)
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, n := range nodes {
			if _, done := layers[n]; done {
				continue
			}
			best, ok := 0, true
			for _, dst := range g.edges[n] {
				l, resolved := layers[dst]
				if !resolved {
					ok = false
					break
				}
				if l > best {
					best = l
				}
			}
			if ok {
				layers[n] = best + 1
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if len(layers) == len(nodes) {
		return layers
	}

	fallback := 0
	for _, l := range layers {
		if l > fallback {
			fallback = l
		}
	}
	for _, n := range nodes {
		if _, done := layers[n]; !done {
			layers[n] = fallback
		}
	}
	return layers
}
