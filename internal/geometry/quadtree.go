package geometry

// QuadTree implements a spatial index for points.
type QuadTree struct {
	Bounds   BBox
	Capacity int
	Points   []PointData
	Nodes    []*QuadTree
}

type PointData struct {
	Point Point
	Index int
}

func NewQuadTree(bounds BBox, capacity int) *QuadTree {
	if capacity < 1 {
		capacity = 1
	}
	return &QuadTree{
		Bounds:   bounds,
		Capacity: capacity,
		Points:   make([]PointData, 0, capacity),
	}
}

// Insert stores p under index. Points outside Bounds are rejected.
func (qt *QuadTree) Insert(p Point, index int) bool {
	if !containsPoint(qt.Bounds, p) {
		return false
	}

	if qt.Nodes == nil {
		// Coincident points cannot be separated by subdividing; keep them here
		// once the node is too small to split further.
		if len(qt.Points) < qt.Capacity || qt.tooSmall() {
			qt.Points = append(qt.Points, PointData{Point: p, Index: index})
			return true
		}
		qt.subdivide()
		oldPoints := qt.Points
		qt.Points = make([]PointData, 0, qt.Capacity)
		for _, old := range oldPoints {
			qt.insertChild(old.Point, old.Index)
		}
	}

	qt.insertChild(p, index)
	return true
}

func (qt *QuadTree) insertChild(p Point, index int) {
	for _, node := range qt.Nodes {
		if node.Insert(p, index) {
			return
		}
	}
	// Boundary rounding; keep it on this node rather than losing it.
	qt.Points = append(qt.Points, PointData{Point: p, Index: index})
}

func (qt *QuadTree) tooSmall() bool {
	return qt.Bounds.X1-qt.Bounds.X0 < 1e-6 && qt.Bounds.Y1-qt.Bounds.Y0 < 1e-6
}

func (qt *QuadTree) subdivide() {
	xMid := (qt.Bounds.X0 + qt.Bounds.X1) / 2
	yMid := (qt.Bounds.Y0 + qt.Bounds.Y1) / 2

	qt.Nodes = []*QuadTree{
		NewQuadTree(BBox{X0: qt.Bounds.X0, Y0: qt.Bounds.Y0, X1: xMid, Y1: yMid}, qt.Capacity), // Top-Left
		NewQuadTree(BBox{X0: xMid, Y0: qt.Bounds.Y0, X1: qt.Bounds.X1, Y1: yMid}, qt.Capacity), // Top-Right
		NewQuadTree(BBox{X0: qt.Bounds.X0, Y0: yMid, X1: xMid, Y1: qt.Bounds.Y1}, qt.Capacity), // Bottom-Left
		NewQuadTree(BBox{X0: xMid, Y0: yMid, X1: qt.Bounds.X1, Y1: qt.Bounds.Y1}, qt.Capacity), // Bottom-Right
	}
}

// Query returns the indices of all points inside rangeRect, edges included.
func (qt *QuadTree) Query(rangeRect BBox) []int {
	var found []int
	if !intersects(qt.Bounds, rangeRect) {
		return found
	}

	for _, p := range qt.Points {
		if containsPoint(rangeRect, p.Point) {
			found = append(found, p.Index)
		}
	}

	for _, node := range qt.Nodes {
		found = append(found, node.Query(rangeRect)...)
	}
	return found
}

func intersects(r1, r2 BBox) bool {
	return !(r2.X0 > r1.X1 || r2.X1 < r1.X0 || r2.Y0 > r1.Y1 || r2.Y1 < r1.Y0)
}

func containsPoint(r BBox, p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}
