package grouping

import (
	"fmt"
	"math"
	"sort"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/geometry"
)

const (
	// MinMergeDistance is the floor of the merge threshold in pixels.
	MinMergeDistance = 12.0

	// MergeRadiusFactor scales the neighbor radius into the merge threshold.
	MergeRadiusFactor = 0.6
)

// MergeThreshold returns the box gap under which two clusters are fused.
func MergeThreshold(radius float64) float64 {
	return math.Max(MinMergeDistance, radius*MergeRadiusFactor)
}

// mergeAdjacent fuses clusters of the same orientation whose boxes are close.
// Each cluster joins the first accumulated group it is close to, in
// (y0, x0) order; it is not matched against the closest one.
func mergeAdjacent(groups []internal.WordGroup, radius float64) []internal.WordGroup {
	threshold := MergeThreshold(radius)

	sorted := make([]internal.WordGroup, len(groups))
	copy(sorted, groups)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox.Y0 != sorted[j].BBox.Y0 {
			return sorted[i].BBox.Y0 < sorted[j].BBox.Y0
		}
		return sorted[i].BBox.X0 < sorted[j].BBox.X0
	})

	var merged []internal.WordGroup
	for _, g := range sorted {
		target := -1
		for i := range merged {
			if merged[i].Orientation != g.Orientation {
				continue
			}
			if geometry.Close(merged[i].BBox, g.BBox, threshold) {
				target = i
				break
			}
		}
		if target < 0 {
			g.WordIdx = append([]int(nil), g.WordIdx...)
			merged = append(merged, g)
			continue
		}
		merged[target].WordIdx = append(merged[target].WordIdx, g.WordIdx...)
		merged[target].BBox = merged[target].BBox.Union(g.BBox)
	}

	for i := range merged {
		merged[i].ID = fmt.Sprintf("g_%d", i)
		merged[i].WordIdx = dedupeSorted(merged[i].WordIdx)
	}
	return merged
}

func dedupeSorted(idx []int) []int {
	sort.Ints(idx)
	out := idx[:0]
	for i, v := range idx {
		if i > 0 && v == idx[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}
