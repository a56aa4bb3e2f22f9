// Package geometry holds the pixel-space primitives used to group OCR words:
// points, axis-aligned boxes, the neighbor radius and the neighbor index.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultWordHeight is assumed when there are no word boxes to measure.
	DefaultWordHeight = 20.0

	// RadiusFactor scales the median word height into the neighbor radius.
	RadiusFactor = 1.4

	// DefaultRadius is the radius used for an empty word list.
	DefaultRadius = DefaultWordHeight * RadiusFactor
)

// Point is a pixel-space coordinate. It is encoded as a two-element JSON
// array, matching the polygon format produced by the OCR collaborator.
type Point struct {
	X float64
	Y float64
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var xy []float64
	if err := json.Unmarshal(data, &xy); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	if len(xy) != 2 {
		return fmt.Errorf("point: expected 2 coordinates, got %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// BBox is an axis-aligned box with X0 <= X1 and Y0 <= Y1.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// BoxFromPolygon returns the tightest box around the polygon vertices.
func BoxFromPolygon(poly []Point) BBox {
	if len(poly) == 0 {
		return BBox{}
	}
	b := BBox{X0: poly[0].X, Y0: poly[0].Y, X1: poly[0].X, Y1: poly[0].Y}
	for _, p := range poly[1:] {
		b.X0 = math.Min(b.X0, p.X)
		b.Y0 = math.Min(b.Y0, p.Y)
		b.X1 = math.Max(b.X1, p.X)
		b.Y1 = math.Max(b.Y1, p.Y)
	}
	return b
}

func (b BBox) Center() Point {
	return Point{X: (b.X0 + b.X1) / 2, Y: (b.Y0 + b.Y1) / 2}
}

func (b BBox) Width() float64 {
	return b.X1 - b.X0
}

// Height never drops below 1 so degenerate boxes still contribute to the radius.
func (b BBox) Height() float64 {
	return math.Max(1, b.Y1-b.Y0)
}

// Union returns the smallest box enclosing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// axisGap is the empty distance between two intervals, 0 when they overlap.
func axisGap(a0, a1, b0, b1 float64) float64 {
	if a1 < b0 {
		return b0 - a1
	}
	if b1 < a0 {
		return a0 - b1
	}
	return 0
}

// Close reports whether two boxes overlap on both axes or the Euclidean
// length of their axis gaps is within threshold.
func Close(a, b BBox, threshold float64) bool {
	gapX := axisGap(a.X0, a.X1, b.X0, b.X1)
	gapY := axisGap(a.Y0, a.Y1, b.Y0, b.Y1)
	if gapX == 0 && gapY == 0 {
		return true
	}
	return math.Hypot(gapX, gapY) <= threshold
}

// Median returns the median of values, averaging the two middle values for
// even counts. values is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Radius derives the neighbor radius from word box heights.
func Radius(heights []float64) float64 {
	if len(heights) == 0 {
		return DefaultRadius
	}
	return Median(heights) * RadiusFactor
}

// Variance is the population variance of values.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var acc float64
	for _, v := range values {
		acc += (v - mean) * (v - mean)
	}
	return acc / float64(len(values))
}
