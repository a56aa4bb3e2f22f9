// Package sequence orders groups into page reading order and assembles the
// source text of each group from its words.
package sequence

import (
	"math"
	"sort"
	"strings"

	"github.com/valpere/bubbletran/internal"
)

const (
	// MinColumnTolerance is the smallest x distance, in pixels, at which a
	// group still joins an existing column.
	MinColumnTolerance = 64.0

	// ColumnWidthFactor scales a group's width into its column tolerance.
	ColumnWidthFactor = 1.5
)

type column struct {
	centerX   float64
	tolerance float64
	count     int
	members   []internal.WordGroup
}

func (c *column) add(g internal.WordGroup, tolerance float64) {
	c.count++
	c.centerX += (g.BBox.Center().X - c.centerX) / float64(c.count)
	c.tolerance = math.Max(c.tolerance, tolerance)
	c.members = append(c.members, g)
}

func toleranceOf(g internal.WordGroup) float64 {
	return math.Max(ColumnWidthFactor*g.BBox.Width(), MinColumnTolerance)
}

// OrderGroups returns groups in column-major reading order: columns left to
// right, groups inside a column top to bottom. The input is not modified.
func OrderGroups(groups []internal.WordGroup) []internal.WordGroup {
	if len(groups) == 0 {
		return []internal.WordGroup{}
	}

	byX := make([]internal.WordGroup, len(groups))
	copy(byX, groups)
	sort.SliceStable(byX, func(i, j int) bool {
		return byX[i].BBox.Center().X < byX[j].BBox.Center().X
	})

	var columns []*column
	for _, g := range byX {
		cx := g.BBox.Center().X
		var target *column
		for _, c := range columns {
			if math.Abs(cx-c.centerX) <= c.tolerance {
				target = c
				break
			}
		}
		if target == nil {
			target = &column{}
			columns = append(columns, target)
		}
		target.add(g, toleranceOf(g))
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].centerX < columns[j].centerX
	})

	ordered := make([]internal.WordGroup, 0, len(groups))
	for _, c := range columns {
		sort.SliceStable(c.members, func(i, j int) bool {
			return c.members[i].BBox.Center().Y < c.members[j].BBox.Center().Y
		})
		ordered = append(ordered, c.members...)
	}
	return ordered
}

type wordPos struct {
	text       string
	avgX, avgY float64
	minX, minY float64
}

func positionOf(w internal.OCRWord) wordPos {
	p := wordPos{text: w.Text, minX: w.Poly[0].X, minY: w.Poly[0].Y}
	for _, v := range w.Poly {
		p.avgX += v.X
		p.avgY += v.Y
		p.minX = math.Min(p.minX, v.X)
		p.minY = math.Min(p.minY, v.Y)
	}
	p.avgX /= float64(len(w.Poly))
	p.avgY /= float64(len(w.Poly))
	return p
}

// AssembleText joins the group's words in reading order. Vertical groups
// read right to left then top to bottom, horizontal groups top to bottom
// then left to right. Indices outside words are skipped.
func AssembleText(g internal.WordGroup, words []internal.OCRWord) string {
	members := make([]wordPos, 0, len(g.WordIdx))
	for _, i := range g.WordIdx {
		if i < 0 || i >= len(words) {
			continue
		}
		members = append(members, positionOf(words[i]))
	}

	if g.Orientation == internal.Vertical {
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].avgX != members[j].avgX {
				return members[i].avgX > members[j].avgX
			}
			return members[i].avgY > members[j].avgY
		})
	} else {
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].minY != members[j].minY {
				return members[i].minY < members[j].minY
			}
			return members[i].minX < members[j].minX
		})
	}

	texts := make([]string, len(members))
	for i, m := range members {
		texts[i] = m.text
	}
	return strings.Join(texts, " ")
}

// Assemble fills SourceText for every group in place.
func Assemble(groups []internal.WordGroup, words []internal.OCRWord) {
	for i := range groups {
		groups[i].SourceText = AssembleText(groups[i], words)
	}
}
