// Package grouping clusters OCR word boxes into bubble-shaped regions.
package grouping

import (
	"fmt"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/geometry"
)

// VerticalRatio is how much larger the y variance of member centers must be
// than the x variance for a cluster to read vertically.
const VerticalRatio = 1.3

// components returns the connected components of adjacency. Traversal is
// breadth-first from the lowest unvisited index, so component order and the
// member order inside each component are deterministic.
func components(adjacency [][]int) [][]int {
	seen := make([]bool, len(adjacency))
	var comps [][]int
	for start := range adjacency {
		if seen[start] {
			continue
		}
		queue := []int{start}
		seen[start] = true
		var comp []int
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			comp = append(comp, node)
			for _, next := range adjacency[node] {
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

func orientationOf(centers []geometry.Point, members []int) internal.Orientation {
	xs := make([]float64, len(members))
	ys := make([]float64, len(members))
	for k, i := range members {
		xs[k] = centers[i].X
		ys[k] = centers[i].Y
	}
	if geometry.Variance(ys) > VerticalRatio*geometry.Variance(xs) {
		return internal.Vertical
	}
	return internal.Horizontal
}

// buildClusters turns adjacency components into provisional groups g_0, g_1, ...
func buildClusters(boxes []geometry.BBox, centers []geometry.Point, adjacency [][]int) []internal.WordGroup {
	comps := components(adjacency)
	groups := make([]internal.WordGroup, 0, len(comps))
	for n, comp := range comps {
		bbox := boxes[comp[0]]
		for _, i := range comp[1:] {
			bbox = bbox.Union(boxes[i])
		}
		groups = append(groups, internal.WordGroup{
			ID:          fmt.Sprintf("g_%d", n),
			BBox:        bbox,
			WordIdx:     comp,
			Orientation: orientationOf(centers, comp),
		})
	}
	return groups
}
