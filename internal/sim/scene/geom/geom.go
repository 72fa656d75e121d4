// Package geom holds the scene's 2D vector and box math, including the
// edge-wrapping (toroidal) rules shared by every scene subsystem.
package geom

import "math"

type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func V(x, y float64) Vec { return Vec{X: x, Y: y} }

func (v Vec) Add(o Vec) Vec       { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec       { return Vec{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec) Scale(f float64) Vec { return Vec{X: v.X * f, Y: v.Y * f} }
func (v Vec) Magnitude() float64  { return math.Hypot(v.X, v.Y) }
func (v Vec) IsZero() bool        { return v.X == 0 && v.Y == 0 }
func (v Vec) Axis(a Axis) float64 { return [2]float64{v.X, v.Y}[a] }
func (v Vec) WithAxis(a Axis, f float64) Vec {
	if a == AxisX {
		v.X = f
	} else {
		v.Y = f
	}
	return v
}

type Axis int

const (
	AxisX Axis = iota
	AxisY
)

// Box is an axis-aligned rectangle anchored at Corner. Width or Height may
// be negative until Unflip is applied.
type Box struct {
	Corner Vec     `json:"corner"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewBox returns an unflipped box.
func NewBox(x, y, w, h float64) Box {
	return Box{Corner: Vec{X: x, Y: y}, Width: w, Height: h}.Unflip()
}

// BoxFromCorners builds an unflipped box spanning two opposite corners.
func BoxFromCorners(a, b Vec) Box {
	return NewBox(a.X, a.Y, b.X-a.X, b.Y-a.Y)
}

func (b Box) Unflip() Box {
	if b.Width < 0 {
		b.Corner.X += b.Width
		b.Width = -b.Width
	}
	if b.Height < 0 {
		b.Corner.Y += b.Height
		b.Height = -b.Height
	}
	return b
}

func (b Box) IsEmpty() bool { return b.Width == 0 || b.Height == 0 }

func (b Box) Area() float64 { return math.Abs(b.Width * b.Height) }

func (b Box) Center() Vec {
	u := b.Unflip()
	return Vec{X: u.Corner.X + u.Width/2, Y: u.Corner.Y + u.Height/2}
}

func (b Box) Max() Vec {
	u := b.Unflip()
	return Vec{X: u.Corner.X + u.Width, Y: u.Corner.Y + u.Height}
}

// Contains uses half-open bounds: the corner is inside, the far edges are not.
func (b Box) Contains(p Vec) bool {
	return !b.IsEmpty() && b.ContainsX(p.X) && b.ContainsY(p.Y)
}

func (b Box) ContainsX(x float64) bool {
	u := b.Unflip()
	return u.Width != 0 && x >= u.Corner.X && x < u.Corner.X+u.Width
}

func (b Box) ContainsY(y float64) bool {
	u := b.Unflip()
	return u.Height != 0 && y >= u.Corner.Y && y < u.Corner.Y+u.Height
}

func (b Box) ContainsAxis(a Axis, f float64) bool {
	if a == AxisX {
		return b.ContainsX(f)
	}
	return b.ContainsY(f)
}

// Edges returns the low and high edge coordinates on an axis.
func (b Box) Edges(a Axis) (float64, float64) {
	u := b.Unflip()
	if a == AxisX {
		return u.Corner.X, u.Corner.X + u.Width
	}
	return u.Corner.Y, u.Corner.Y + u.Height
}

func (b Box) Intersects(o Box) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	bm, om := b.Max(), o.Max()
	bu, ou := b.Unflip(), o.Unflip()
	return bu.Corner.X < om.X && ou.Corner.X < bm.X &&
		bu.Corner.Y < om.Y && ou.Corner.Y < bm.Y
}

// Expand grows the box outward by d on every side.
func (b Box) Expand(d float64) Box {
	u := b.Unflip()
	return Box{Corner: Vec{X: u.Corner.X - d, Y: u.Corner.Y - d}, Width: u.Width + 2*d, Height: u.Height + 2*d}
}

func (b Box) Translate(v Vec) Box {
	b.Corner = b.Corner.Add(v)
	return b
}
