// Package area implements named multi-box scene regions with wrap-aware
// containment and edge queries.
package area

import (
	"math"

	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/simrand"
)

// MetaBase is the reserved area that collects footprints of bought
// structures.
const MetaBase = "MetaBase"

type Area struct {
	Name  string     `json:"name"`
	Boxes []geom.Box `json:"boxes"`
}

func New(name string, boxes ...geom.Box) Area {
	a := Area{Name: name}
	for _, b := range boxes {
		a.Boxes = append(a.Boxes, b.Unflip())
	}
	return a
}

func (a Area) Clone() Area {
	out := Area{Name: a.Name}
	if len(a.Boxes) > 0 {
		out.Boxes = append([]geom.Box(nil), a.Boxes...)
	}
	return out
}

// AddBox appends b unless it is degenerate.
func (a *Area) AddBox(b geom.Box) bool {
	if b.IsEmpty() {
		return false
	}
	a.Boxes = append(a.Boxes, b.Unflip())
	return true
}

func (a *Area) RemoveBox(b geom.Box) bool {
	b = b.Unflip()
	for i, x := range a.Boxes {
		if x == b {
			a.Boxes = append(a.Boxes[:i], a.Boxes[i+1:]...)
			return true
		}
	}
	return false
}

func (a Area) HasNoArea() bool {
	for _, b := range a.Boxes {
		if !b.IsEmpty() {
			return false
		}
	}
	return true
}

// IsInside tests p against every box and its seam copies.
func (a Area) IsInside(bounds geom.Bounds, p geom.Vec) bool {
	_, ok := a.BoxContaining(bounds, p)
	return ok
}

func (a Area) IsInsideX(bounds geom.Bounds, x float64) bool {
	return a.isInsideAxis(bounds, geom.AxisX, x)
}

func (a Area) IsInsideY(bounds geom.Bounds, y float64) bool {
	return a.isInsideAxis(bounds, geom.AxisY, y)
}

func (a Area) isInsideAxis(bounds geom.Bounds, axis geom.Axis, f float64) bool {
	f = bounds.WrapAxis(axis, f)
	for _, b := range a.Boxes {
		for _, w := range bounds.WrapBox(b) {
			if w.ContainsAxis(axis, f) {
				return true
			}
		}
	}
	return false
}

// BoxContaining returns the stored (unwrapped) box that covers p.
func (a Area) BoxContaining(bounds geom.Bounds, p geom.Vec) (geom.Box, bool) {
	i := a.boxIndex(bounds, p)
	if i < 0 {
		return geom.Box{}, false
	}
	return a.Boxes[i], true
}

func (a *Area) RemoveBoxContaining(bounds geom.Bounds, p geom.Vec) (geom.Box, bool) {
	i := a.boxIndex(bounds, p)
	if i < 0 {
		return geom.Box{}, false
	}
	b := a.Boxes[i]
	a.Boxes = append(a.Boxes[:i], a.Boxes[i+1:]...)
	return b, true
}

func (a Area) boxIndex(bounds geom.Bounds, p geom.Vec) int {
	p = bounds.WrapPosition(p)
	for i, b := range a.Boxes {
		for _, w := range bounds.WrapBox(b) {
			if w.Contains(p) {
				return i
			}
		}
	}
	return -1
}

const noEdgeFound = 10000000

// MoveCoordinateInside shifts p along one axis onto the nearest box edge
// when p is outside every box on that axis. direction 0 accepts either
// sign; a nonzero direction prefers moves of that sign and falls back to
// the overall nearest edge. Reports false when p did not need moving.
func (a Area) MoveCoordinateInside(bounds geom.Bounds, p geom.Vec, axis geom.Axis, direction int) (geom.Vec, bool) {
	if a.HasNoArea() || a.isInsideAxis(bounds, axis, p.Axis(axis)) {
		return p, false
	}
	from := p.Axis(axis)
	shortest := float64(noEdgeFound)
	constrained := float64(noEdgeFound)
	for _, b := range a.Boxes {
		for _, w := range bounds.WrapBox(b) {
			lo, hi := w.Edges(axis)
			// Boxes are half-open, so corner+width is already outside;
			// the far target is the last pixel inside.
			for _, edge := range [2]float64{lo, math.Max(lo, hi-1)} {
				d := bounds.ShortestDistanceAxis(axis, from, edge, direction)
				if math.Abs(d) < math.Abs(shortest) {
					shortest = d
				}
				if direction == 0 || (direction > 0) == (d > 0) {
					if math.Abs(d) < math.Abs(constrained) {
						constrained = d
					}
				}
			}
		}
	}
	move := constrained
	if move == noEdgeFound {
		move = shortest
	}
	if move == noEdgeFound {
		return p, false
	}
	out := p.WithAxis(axis, from+move)
	return bounds.ForceBounds(out), true
}

// CenterPoint is the area-weighted centre of all boxes.
func (a Area) CenterPoint() geom.Vec {
	if len(a.Boxes) == 1 {
		return a.Boxes[0].Center()
	}
	var sum geom.Vec
	var total float64
	for _, b := range a.Boxes {
		w := b.Area()
		sum = sum.Add(b.Center().Scale(w))
		total += w
	}
	if total == 0 {
		return geom.Vec{}
	}
	return sum.Scale(1 / total)
}

// RandomPoint picks a random box, then a random whole-pixel point inside it.
func (a Area) RandomPoint(rng simrand.Random) geom.Vec {
	if len(a.Boxes) == 0 {
		return geom.Vec{}
	}
	b := a.Boxes[rng.RandomInt(0, len(a.Boxes)-1)].Unflip()
	x := b.Corner.X
	y := b.Corner.Y
	if w := int(b.Width); w > 1 {
		x += float64(rng.RandomInt(0, w-1))
	}
	if h := int(b.Height); h > 1 {
		y += float64(rng.RandomInt(0, h-1))
	}
	return geom.Vec{X: x, Y: y}
}
