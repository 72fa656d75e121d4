// Package terrain is the scene's material grid: one palette index per
// pixel, with a dirty-region list for incremental consumers.
package terrain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/logic/mathx"
	"scenecraft.ai/internal/sim/scene/placed"
)

// OutOfBounds is reported for pixels off a non-wrapping edge.
var OutOfBounds = catalogs.MaterialDef{ID: "OUT_OF_BOUNDS", Integrity: math.MaxFloat64}

// MaxPixels caps the grid allocation.
const MaxPixels = 64 << 20

type Rect struct {
	Box      geom.Box `json:"box"`
	Material string   `json:"material"`
}

// Sprinkle scatters a material over air with a per-pixel permille chance.
type Sprinkle struct {
	Material string `json:"material"`
	Permille int    `json:"permille"`
}

type Spec struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	WrapX     bool       `json:"wrap_x"`
	WrapY     bool       `json:"wrap_y"`
	Fill      string     `json:"fill,omitempty"`
	Seed      int64      `json:"seed,omitempty"`
	Sprinkles []Sprinkle `json:"sprinkles,omitempty"`
	Rects     []Rect     `json:"rects,omitempty"`
}

type Grid struct {
	spec  Spec
	mats  *catalogs.MaterialCatalog
	cells []uint16
	dirty []geom.Box
}

func New(spec Spec, mats *catalogs.MaterialCatalog) *Grid {
	return &Grid{spec: spec, mats: mats}
}

// Load allocates the grid and paints the fill, sprinkles and rects in
// that order.
func (g *Grid) Load() error {
	w, h := g.spec.Width, g.spec.Height
	if w <= 0 || h <= 0 {
		return fmt.Errorf("terrain: bad size %dx%d", w, h)
	}
	if w*h > MaxPixels {
		return fmt.Errorf("terrain: %dx%d exceeds %d pixels", w, h, MaxPixels)
	}
	fill := g.spec.Fill
	if fill == "" {
		fill = "AIR"
	}
	fillIdx, err := g.index(fill)
	if err != nil {
		return err
	}
	cells := make([]uint16, w*h)
	for i := range cells {
		cells[i] = fillIdx
	}

	air, _ := g.index("AIR")
	for si, s := range g.spec.Sprinkles {
		idx, err := g.index(s.Material)
		if err != nil {
			return err
		}
		pm := uint64(mathx.ClampInt(s.Permille, 0, 1000))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := x + y*w
				if cells[i] == air && mathx.Hash2(g.spec.Seed+int64(si)*101, x, y)%1000 < pm {
					cells[i] = idx
				}
			}
		}
	}
	g.cells = cells
	g.dirty = nil

	for _, r := range g.spec.Rects {
		if err := g.paint(r.Box, r.Material, false); err != nil {
			g.cells = nil
			return err
		}
	}
	return nil
}

func (g *Grid) Loaded() bool { return g.cells != nil }

func (g *Grid) Bounds() geom.Bounds {
	return geom.Bounds{
		Width:  float64(g.spec.Width),
		Height: float64(g.spec.Height),
		WrapX:  g.spec.WrapX,
		WrapY:  g.spec.WrapY,
	}
}

func (g *Grid) index(material string) (uint16, error) {
	if g.mats == nil {
		return 0, fmt.Errorf("terrain: no material catalog")
	}
	idx, ok := g.mats.Index[material]
	if !ok {
		return 0, fmt.Errorf("terrain: unknown material %q", material)
	}
	return idx, nil
}

func (g *Grid) cell(x, y int) (int, bool) {
	w, h := g.spec.Width, g.spec.Height
	if g.spec.WrapX {
		x = mathx.Mod(x, w)
	}
	if g.spec.WrapY {
		y = mathx.Mod(y, h)
	}
	if x < 0 || y < 0 || x >= w || y >= h || g.cells == nil {
		return 0, false
	}
	return x + y*w, true
}

// MaterialAt wraps on wrapping axes and reports OutOfBounds elsewhere.
func (g *Grid) MaterialAt(x, y int) catalogs.MaterialDef {
	i, ok := g.cell(x, y)
	if !ok {
		return OutOfBounds
	}
	id := g.mats.Palette[g.cells[i]]
	return g.mats.Defs[id]
}

// Fill paints material over box and records it as dirty.
func (g *Grid) Fill(box geom.Box, material string) error {
	return g.paint(box, material, true)
}

// ApplyObject stamps a terrain object's footprint.
func (g *Grid) ApplyObject(o *placed.Object) error {
	box, ok := o.FootprintBox()
	if !ok || o.Kind != placed.KindTerrainObject {
		return fmt.Errorf("terrain: %s %q has no footprint", o.Kind, o.Preset)
	}
	return g.paint(box, o.Footprint.Material, true)
}

func (g *Grid) paint(box geom.Box, material string, markDirty bool) error {
	if g.cells == nil {
		return fmt.Errorf("terrain: not loaded")
	}
	idx, err := g.index(material)
	if err != nil {
		return err
	}
	box = box.Unflip()
	if box.IsEmpty() {
		return nil
	}
	for _, b := range g.Bounds().WrapBox(box) {
		x0 := mathx.ClampInt(mathx.FloorInt(b.Corner.X), 0, g.spec.Width)
		y0 := mathx.ClampInt(mathx.FloorInt(b.Corner.Y), 0, g.spec.Height)
		x1 := mathx.ClampInt(mathx.CeilInt(b.Corner.X+b.Width), 0, g.spec.Width)
		y1 := mathx.ClampInt(mathx.CeilInt(b.Corner.Y+b.Height), 0, g.spec.Height)
		for y := y0; y < y1; y++ {
			row := y * g.spec.Width
			for x := x0; x < x1; x++ {
				g.cells[row+x] = idx
			}
		}
	}
	if markDirty {
		g.dirty = append(g.dirty, box)
	}
	return nil
}

// DirtyRegions returns the boxes changed since the last clear.
func (g *Grid) DirtyRegions() []geom.Box { return append([]geom.Box(nil), g.dirty...) }

func (g *Grid) ClearDirtyRegions() { g.dirty = nil }

// Cells returns a copy of the palette indices, row-major.
func (g *Grid) Cells() []uint16 { return append([]uint16(nil), g.cells...) }

// Restore replaces the grid contents with saved cells.
func (g *Grid) Restore(cells []uint16) error {
	if len(cells) != g.spec.Width*g.spec.Height {
		return fmt.Errorf("terrain: restore %d cells into %dx%d", len(cells), g.spec.Width, g.spec.Height)
	}
	for _, c := range cells {
		if int(c) >= len(g.mats.Palette) {
			return fmt.Errorf("terrain: palette index %d out of range", c)
		}
	}
	g.cells = append([]uint16(nil), cells...)
	g.dirty = nil
	return nil
}

func (g *Grid) Spec() Spec { return g.spec }

// Palette names the material of each cell value.
func (g *Grid) Palette() []string { return append([]string(nil), g.mats.Palette...) }

// Digest hashes the raw cells.
func (g *Grid) Digest() [32]byte {
	h := sha256.New()
	var tmp [2]byte
	for _, v := range g.cells {
		binary.LittleEndian.PutUint16(tmp[:], v)
		h.Write(tmp[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
