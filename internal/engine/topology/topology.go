// Package topology groups modules into subsystems around a few central nodes.
package topology

import (
	"fmt"
	"sort"
	"strings"

	"archgraph/internal/engine/graph"
	"archgraph/internal/shared/util"
)

// DefaultMemberLimit is how many members Summary lists per subsystem.
const DefaultMemberLimit = 10

// ChooseCenters returns up to topN nodes ranked by fan-in + fan-out descending,
// ties broken by path ascending.
func ChooseCenters(g *graph.Graph, topN int) []string {
	if topN <= 0 {
		return nil
	}
	fan := g.FanInOut()
	nodes := util.SortedStringKeys(fan)
	sort.SliceStable(nodes, func(i, j int) bool {
		return fan[nodes[i]].Degree() > fan[nodes[j]].Degree()
	})
	if len(nodes) > topN {
		nodes = nodes[:topN]
	}
	return nodes
}

// Clusterer assigns nodes to the closest center by undirected BFS distance.
type Clusterer struct {
	// MaxDepth caps every search at this many hops. Zero or negative means no
	// cap, so every node connected to a center is clustered.
	MaxDepth int
}

// Cluster searches without a depth cap.
func Cluster(g *graph.Graph, centers []string) map[string][]string {
	return Clusterer{}.Cluster(g, centers)
}

// Cluster maps every center to the nodes closest to it, the center included.
// Equal distances go to the earlier center. Once a center reaches a node,
// searches from later centers stop at that distance. Nodes no center reaches
// are left out; unknown centers get an empty cluster. Member lists are sorted.
func (c Clusterer) Cluster(g *graph.Graph, centers []string) map[string][]string {
	ceiling := -1
	if c.MaxDepth > 0 {
		ceiling = c.MaxDepth
	}

	undirected := g.Undirected()
	clusters := make(map[string][]string, len(centers))
	for _, center := range centers {
		clusters[center] = []string{}
	}

	for _, node := range g.Nodes() {
		bestCenter := ""
		bestDist := -1
		for _, center := range centers {
			bound := ceiling
			if bestDist >= 0 {
				bound = bestDist
			}
			dist, ok := bfsDistance(undirected, util.NormalizePath(center), node, bound)
			if !ok {
				continue
			}
			if bestDist < 0 || dist < bestDist {
				bestDist = dist
				bestCenter = center
			}
		}
		if bestDist >= 0 {
			clusters[bestCenter] = append(clusters[bestCenter], node)
		}
	}
	return clusters
}

// bfsDistance returns the hop count from start to target, never expanding past
// maxDepth. A negative maxDepth searches the whole component.
func bfsDistance(undirected map[string][]string, start, target string, maxDepth int) (int, bool) {
	if _, ok := undirected[start]; !ok {
		return 0, false
	}
	if start == target {
		return 0, true
	}

	type item struct {
		node string
		dist int
	}
	queue := []item{{start, 0}}
	visited := map[string]bool{start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth >= 0 && cur.dist >= maxDepth {
			continue
		}
		for _, next := range undirected[cur.node] {
			if visited[next] {
				continue
			}
			if next == target {
				return cur.dist + 1, true
			}
			visited[next] = true
			queue = append(queue, item{next, cur.dist + 1})
		}
	}
	return 0, false
}

// Summary renders each non-empty subsystem in centers order, listing at most
// limit members (DefaultMemberLimit when non-positive).
func Summary(centers []string, clusters map[string][]string, limit int) string {
	if limit <= 0 {
		limit = DefaultMemberLimit
	}
	normCenters := make(map[string]string, len(centers))
	for _, c := range centers {
		normCenters[c] = util.NormalizePath(c)
	}

	var b strings.Builder
	b.WriteString("SYSTEM TOPOLOGY (heuristic clusters)\n\n")
	for _, center := range centers {
		members := append([]string(nil), clusters[center]...)
		if len(members) == 0 {
			continue
		}
		sort.Strings(members)
		fmt.Fprintf(&b, "Subsystem around %s:\n", center)
		shown := members
		if len(shown) > limit {
			shown = shown[:limit]
		}
		for _, m := range shown {
			if m == normCenters[center] {
				fmt.Fprintf(&b, "  * %s (center)\n", m)
			} else {
				fmt.Fprintf(&b, "  - %s\n", m)
			}
		}
		if rest := len(members) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "  ... and %d more\n", rest)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
