// Package graph holds the module dependency graph and the structural metrics derived from it.
package graph

import (
	"archgraph/internal/shared/util"
	"sort"
	"sync"
)

// Graph is a directed dependency graph over project files.
//
// Nodes are normalized forward-slash paths. Edges are project-only dependencies
// (src imports dst) kept as a non-unique adjacency list: duplicate edges are
// retained and counted by fan-in/fan-out.
type Graph struct {
	mu sync.RWMutex

	nodes map[string]struct{}
	// src -> [dst, ...] in insertion order
	edges map[string][]string
}

// Edge is a single src -> dst dependency.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// New builds a graph from an explicit node list and edge map. Every path is
// normalized; edge endpoints missing from nodes are registered as nodes.
func New(nodes []string, edges map[string][]string) *Graph {
	g := &Graph{
		nodes: make(map[string]struct{}, len(nodes)),
		edges: make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		g.addNodeLocked(n)
	}
	// Sorted sources keep adjacency construction independent of map order.
	for _, src := range util.SortedStringKeys(edges) {
		from := g.addNodeLocked(src)
		if from == "" {
			continue
		}
		for _, dst := range edges[src] {
			to := g.addNodeLocked(dst)
			if to == "" {
				continue
			}
			g.edges[from] = append(g.edges[from], to)
		}
	}
	return g
}

// AddNode registers a node. Empty paths are ignored.
func (g *Graph) AddNode(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNodeLocked(name)
}

// AddEdge appends src -> dst, registering both endpoints.
func (g *Graph) AddEdge(src, dst string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	from := g.addNodeLocked(src)
	to := g.addNodeLocked(dst)
	if from == "" || to == "" {
		return
	}
	g.edges[from] = append(g.edges[from], to)
}

func (g *Graph) addNodeLocked(name string) string {
	n := util.NormalizePath(name)
	if n == "" {
		return ""
	}
	if _, ok := g.nodes[n]; !ok {
		g.nodes[n] = struct{}{}
		g.edges[n] = nil
	}
	return n
}

// HasNode reports whether name (after normalization) is a node.
func (g *Graph) HasNode(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[util.NormalizePath(name)]
	return ok
}

// Nodes returns all nodes in lexicographic order.
func (g *Graph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sortedNodesLocked()
}

func (g *Graph) sortedNodesLocked() []string {
	return util.SortedStringKeys(g.nodes)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges, duplicates included.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgeCountLocked()
}

func (g *Graph) edgeCountLocked() int {
	total := 0
	for _, dsts := range g.edges {
		total += len(dsts)
	}
	return total
}

// Successors returns a copy of the outgoing adjacency list of name.
func (g *Graph) Successors(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[util.NormalizePath(name)]...)
}

// Edges returns every edge, grouped by source in lexicographic order and in
// insertion order within a source.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Edge, 0, g.edgeCountLocked())
	for _, src := range g.sortedNodesLocked() {
		for _, dst := range g.edges[src] {
			out = append(out, Edge{From: src, To: dst})
		}
	}
	return out
}

// Adjacency returns a deep copy of the src -> [dst] map. Every node is a key.
func (g *Graph) Adjacency() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	res := make(map[string][]string, len(g.edges))
	for src, dsts := range g.edges {
		res[src] = append([]string(nil), dsts...)
	}
	return res
}

// Undirected returns the symmetric neighbor view with duplicate edges collapsed.
// Neighbor lists are sorted.
func (g *Graph) Undirected() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sets := make(map[string]map[string]struct{}, len(g.nodes))
	for n := range g.nodes {
		sets[n] = make(map[string]struct{})
	}
	for src, dsts := range g.edges {
		for _, dst := range dsts {
			sets[src][dst] = struct{}{}
			sets[dst][src] = struct{}{}
		}
	}

	res := make(map[string][]string, len(sets))
	for n, set := range sets {
		neighbors := make([]string, 0, len(set))
		for m := range set {
			neighbors = append(neighbors, m)
		}
		sort.Strings(neighbors)
		res[n] = neighbors
	}
	return res
}
