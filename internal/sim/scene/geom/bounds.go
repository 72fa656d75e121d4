package geom

import (
	"math"

	"scenecraft.ai/internal/sim/scene/logic/mathx"
)

// Bounds is the scene's pixel extent and per-axis wrap rule.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	WrapX  bool    `json:"wrap_x"`
	WrapY  bool    `json:"wrap_y"`
}

func (b Bounds) size(a Axis) float64 {
	if a == AxisX {
		return b.Width
	}
	return b.Height
}

func (b Bounds) Wraps(a Axis) bool {
	if a == AxisX {
		return b.WrapX
	}
	return b.WrapY
}

// WrapPosition folds p into range on the wrapping axes only.
func (b Bounds) WrapPosition(p Vec) Vec {
	if b.WrapX && b.Width > 0 {
		p.X = mathx.ModFloat(p.X, b.Width)
	}
	if b.WrapY && b.Height > 0 {
		p.Y = mathx.ModFloat(p.Y, b.Height)
	}
	return p
}

// WrapAxis folds a single coordinate when the axis wraps.
func (b Bounds) WrapAxis(a Axis, f float64) float64 {
	if b.Wraps(a) && b.size(a) > 0 {
		return mathx.ModFloat(f, b.size(a))
	}
	return f
}

// ForceBounds wraps on wrapping axes and clamps to the last pixel elsewhere.
func (b Bounds) ForceBounds(p Vec) Vec {
	p = b.WrapPosition(p)
	if !b.WrapX {
		p.X = clamp(p.X, 0, math.Max(0, b.Width-1))
	}
	if !b.WrapY {
		p.Y = clamp(p.Y, 0, math.Max(0, b.Height-1))
	}
	return p
}

// IsWithin reports whether p is in the addressable range without wrapping.
func (b Bounds) IsWithin(p Vec) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// WrapBox returns the unflipped box followed by every seam copy that could
// overlap the addressable range.
func (b Bounds) WrapBox(box Box) []Box {
	box = box.Unflip()
	out := []Box{box}
	var xs, ys []float64
	xs = append(xs, 0)
	ys = append(ys, 0)
	if b.WrapX && b.Width > 0 {
		if box.Corner.X < 0 {
			xs = append(xs, b.Width)
		}
		if box.Corner.X+box.Width >= b.Width {
			xs = append(xs, -b.Width)
		}
	}
	if b.WrapY && b.Height > 0 {
		if box.Corner.Y < 0 {
			ys = append(ys, b.Height)
		}
		if box.Corner.Y+box.Height >= b.Height {
			ys = append(ys, -b.Height)
		}
	}
	for _, dy := range ys {
		for _, dx := range xs {
			if dx == 0 && dy == 0 {
				continue
			}
			out = append(out, box.Translate(Vec{X: dx, Y: dy}))
		}
	}
	return out
}

// ShortestDistance is the signed offset from a to b taking the shorter way
// around on wrapping axes.
func (b Bounds) ShortestDistance(a, c Vec) Vec {
	return Vec{
		X: b.ShortestDistanceAxis(AxisX, a.X, c.X, 0),
		Y: b.ShortestDistanceAxis(AxisY, a.Y, c.Y, 0),
	}
}

func (b Bounds) ShortestDistanceX(a, c float64, direction int) float64 {
	return b.ShortestDistanceAxis(AxisX, a, c, direction)
}

func (b Bounds) ShortestDistanceY(a, c float64, direction int) float64 {
	return b.ShortestDistanceAxis(AxisY, a, c, direction)
}

// ShortestDistanceAxis returns c-a on one axis. On a wrapping axis the
// shorter way around is taken, and a nonzero direction forces the result
// to that sign by going the long way if needed.
func (b Bounds) ShortestDistanceAxis(a Axis, from, to float64, direction int) float64 {
	d := to - from
	size := b.size(a)
	if !b.Wraps(a) || size <= 0 {
		return d
	}
	if d > size/2 {
		d -= size
	} else if d < -size/2 {
		d += size
	}
	if direction > 0 && d < 0 {
		d += size
	} else if direction < 0 && d > 0 {
		d -= size
	}
	return d
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
