// Package visibility keeps each team's reduced-resolution fog-of-war grid
// and the bounded orphan-cell erosion that runs on it every frame.
package visibility

import (
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/logic/mathx"
)

type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Direction names a neighbour relative to a cell. DirNone excludes nothing.
type Direction int

const (
	DirNone Direction = iota
	DirNorth
	DirNorthEast
	DirEast
	DirSouthEast
	DirSouth
	DirSouthWest
	DirWest
	DirNorthWest
)

var dirOffsets = [...]Cell{
	DirNone:      {0, 0},
	DirNorth:     {0, -1},
	DirNorthEast: {1, -1},
	DirEast:      {1, 0},
	DirSouthEast: {1, 1},
	DirSouth:     {0, 1},
	DirSouthWest: {-1, 1},
	DirWest:      {-1, 0},
	DirNorthWest: {-1, -1},
}

var neighbourDirs = [8]Direction{
	DirEast, DirWest, DirSouth, DirNorth,
	DirSouthEast, DirSouthWest, DirNorthWest, DirNorthEast,
}

func (d Direction) Offset() Cell { return dirOffsets[d] }

func (d Direction) Opposite() Direction {
	if d == DirNone {
		return DirNone
	}
	return Direction((int(d)-1+4)%8 + 1)
}

func (d Direction) diagonal() bool {
	o := dirOffsets[d]
	return o.X != 0 && o.Y != 0
}

// Layer is one team's unseen grid. Cell (x, y) covers scene pixels
// [x*Scale.X, (x+1)*Scale.X) horizontally.
type Layer struct {
	Width    int
	Height   int
	CellSize int
	Scale    geom.Vec
	WrapX    bool
	WrapY    bool

	unseen []bool
}

func newLayer(w, h, cellSize int, bounds geom.Bounds) *Layer {
	l := &Layer{
		Width:    w,
		Height:   h,
		CellSize: cellSize,
		Scale:    geom.Vec{X: bounds.Width / float64(w), Y: bounds.Height / float64(h)},
		WrapX:    bounds.WrapX,
		WrapY:    bounds.WrapY,
		unseen:   make([]bool, w*h),
	}
	for i := range l.unseen {
		l.unseen[i] = true
	}
	return l
}

// wrap folds c onto the grid per the wrap flags; ok is false when c stays
// outside on a non-wrapping axis.
func (l *Layer) wrap(c Cell) (Cell, bool) {
	if l.WrapX {
		c.X = mathx.Mod(c.X, l.Width)
	}
	if l.WrapY {
		c.Y = mathx.Mod(c.Y, l.Height)
	}
	return c, c.X >= 0 && c.X < l.Width && c.Y >= 0 && c.Y < l.Height
}

// Unseen reports the cell state. Cells off a non-wrapping edge count as
// unseen.
func (l *Layer) Unseen(c Cell) bool {
	c, ok := l.wrap(c)
	if !ok {
		return true
	}
	return l.unseen[c.Y*l.Width+c.X]
}

func (l *Layer) set(c Cell, unseen bool) bool {
	c, ok := l.wrap(c)
	if !ok {
		return false
	}
	l.unseen[c.Y*l.Width+c.X] = unseen
	return true
}

// CellFor maps a scene pixel to its cell.
func (l *Layer) CellFor(bounds geom.Bounds, p geom.Vec) Cell {
	p = bounds.WrapPosition(p)
	return Cell{X: mathx.FloorInt(p.X / l.Scale.X), Y: mathx.FloorInt(p.Y / l.Scale.Y)}
}

// fill sets every cell of the inclusive range, wrapping or clipping at the
// edges.
func (l *Layer) fill(x0, y0, x1, y1 int, unseen bool) int {
	if l.WrapX && x1-x0 >= l.Width {
		x1 = x0 + l.Width - 1
	}
	if l.WrapY && y1-y0 >= l.Height {
		y1 = y0 + l.Height - 1
	}
	n := 0
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if l.set(Cell{X: x, Y: y}, unseen) {
				n++
			}
		}
	}
	return n
}

// cellRange converts a scene rect to an inclusive cell range.
func (l *Layer) cellRange(r geom.Box) (x0, y0, x1, y1 int) {
	r = r.Unflip()
	x0 = mathx.FloorInt(r.Corner.X / l.Scale.X)
	y0 = mathx.FloorInt(r.Corner.Y / l.Scale.Y)
	x1 = mathx.CeilInt((r.Corner.X+r.Width)/l.Scale.X) - 1
	y1 = mathx.CeilInt((r.Corner.Y+r.Height)/l.Scale.Y) - 1
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return
}

func (l *Layer) UnseenCount() int {
	n := 0
	for _, u := range l.unseen {
		if u {
			n++
		}
	}
	return n
}

// Cells returns a copy of the raw grid, row-major.
func (l *Layer) Cells() []bool { return append([]bool(nil), l.unseen...) }
