package grouping

import (
	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/geometry"
)

// GroupWords clusters words into bubble regions. Every word index appears in
// exactly one returned group; group ids are g_0, g_1, ... in (y0, x0) order
// of the first cluster that opened them.
func GroupWords(words []internal.OCRWord) []internal.WordGroup {
	if len(words) == 0 {
		return []internal.WordGroup{}
	}

	boxes := make([]geometry.BBox, len(words))
	centers := make([]geometry.Point, len(words))
	heights := make([]float64, len(words))
	for i, w := range words {
		boxes[i] = w.Box()
		centers[i] = boxes[i].Center()
		heights[i] = boxes[i].Height()
	}

	radius := geometry.Radius(heights)
	adjacency := geometry.Neighbors(centers, radius)
	clusters := buildClusters(boxes, centers, adjacency)
	return mergeAdjacent(clusters, radius)
}
