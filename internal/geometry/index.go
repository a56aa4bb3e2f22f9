package geometry

import "sort"

// QuadTreeThreshold is the point count from which Neighbors uses the
// QuadTree instead of a pairwise scan.
const QuadTreeThreshold = 32

const quadTreeCapacity = 8

// Neighbors returns, for every point, the indices of the other points whose
// distance is at most radius. Lists are sorted ascending and never contain
// the point itself.
func Neighbors(points []Point, radius float64) [][]int {
	if len(points) < QuadTreeThreshold {
		return neighborsNaive(points, radius)
	}
	return neighborsQuadTree(points, radius)
}

// within is the single adjacency predicate shared by both strategies.
func within(a, b Point, radiusSq float64) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx+dy*dy <= radiusSq
}

func neighborsNaive(points []Point, radius float64) [][]int {
	radiusSq := radius * radius
	adjacency := make([][]int, len(points))
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if within(points[i], points[j], radiusSq) {
				adjacency[i] = append(adjacency[i], j)
				adjacency[j] = append(adjacency[j], i)
			}
		}
	}
	return adjacency
}

func neighborsQuadTree(points []Point, radius float64) [][]int {
	adjacency := make([][]int, len(points))
	if len(points) == 0 {
		return adjacency
	}

	bounds := BBox{X0: points[0].X, Y0: points[0].Y, X1: points[0].X, Y1: points[0].Y}
	for _, p := range points[1:] {
		bounds = bounds.Union(BBox{X0: p.X, Y0: p.Y, X1: p.X, Y1: p.Y})
	}

	tree := NewQuadTree(bounds, quadTreeCapacity)
	for i, p := range points {
		tree.Insert(p, i)
	}

	radiusSq := radius * radius
	for i, p := range points {
		window := BBox{X0: p.X - radius, Y0: p.Y - radius, X1: p.X + radius, Y1: p.Y + radius}
		for _, j := range tree.Query(window) {
			if j != i && within(p, points[j], radiusSq) {
				adjacency[i] = append(adjacency[i], j)
			}
		}
		sort.Ints(adjacency[i])
	}
	return adjacency
}
