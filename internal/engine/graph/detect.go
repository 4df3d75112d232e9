package graph

import (
	"archgraph/internal/shared/util"
	"sort"
	"strings"
)

// FindCycles enumerates cycles with a depth-first search that tracks visited
// nodes and the nodes on the current recursion stack. Reaching an on-stack node
// yields the stack slice from that node's first occurrence to the top.
//
// Cycles are deduplicated by exact sequence only: the same cycle reached from a
// different entry point may be reported again as a rotation.
func (g *Graph) FindCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var cycles [][]string
	seen := make(map[string]bool)
	visited := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool)

	for _, n := range g.sortedNodesLocked() {
		if !visited[n] {
			g.findCycles(n, visited, onStack, nil, seen, &cycles)
		}
	}
	return cycles
}

func (g *Graph) findCycles(curr string, visited, onStack map[string]bool, stack []string, seen map[string]bool, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	stack = append(stack, curr)

	for _, next := range g.edges[curr] {
		if !visited[next] {
			g.findCycles(next, visited, onStack, stack, seen, cycles)
			continue
		}
		if !onStack[next] {
			continue
		}
		start := -1
		for i, n := range stack {
			if n == next {
				start = i
				break
			}
		}
		if start == -1 {
			continue
		}
		cycle := make([]string, len(stack)-start)
		copy(cycle, stack[start:])
		key := strings.Join(cycle, "\x00")
		if !seen[key] {
			seen[key] = true
			*cycles = append(*cycles, cycle)
		}
	}

	onStack[curr] = false
}

// FindImportChain returns the shortest directed dependency chain from -> to.
func (g *Graph) FindImportChain(from, to string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	from = util.NormalizePath(from)
	to = util.NormalizePath(to)
	if _, ok := g.nodes[from]; !ok {
		return nil, false
	}
	if _, ok := g.nodes[to]; !ok {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}

	queue := []string{from}
	visited := map[string]bool{from: true}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		neighbors := append([]string(nil), g.edges[curr]...)
		sort.Strings(neighbors)

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = curr

			if next == to {
				path := []string{to}
				for node := to; node != from; {
					p, ok := prev[node]
					if !ok {
						return nil, false
					}
					path = append(path, p)
					node = p
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}

			queue = append(queue, next)
		}
	}

	return nil, false
}
