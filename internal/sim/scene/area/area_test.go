package area

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/scene/fault"
	"scenecraft.ai/internal/sim/scene/geom"
)

type seqRandom struct{ vals []int }

func (s *seqRandom) RandomInt(low, high int) int {
	if len(s.vals) == 0 {
		return low
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func TestHasNoArea(t *testing.T) {
	if !New("empty").HasNoArea() {
		t.Fatalf("empty area must have no area")
	}
	if !New("flat", geom.NewBox(0, 0, 0, 10), geom.NewBox(5, 5, 10, 0)).HasNoArea() {
		t.Fatalf("all-degenerate area must have no area")
	}
	if New("ok", geom.NewBox(0, 0, 0, 10), geom.NewBox(0, 0, 1, 1)).HasNoArea() {
		t.Fatalf("one real box is enough")
	}
}

func TestAddBoxRejectsDegenerate(t *testing.T) {
	var a Area
	if a.AddBox(geom.NewBox(0, 0, 0, 5)) {
		t.Fatalf("degenerate box accepted")
	}
	if !a.AddBox(geom.NewBox(10, 10, -5, -5)) {
		t.Fatalf("flipped box rejected")
	}
	if a.Boxes[0].Corner != geom.V(5, 5) {
		t.Fatalf("box not unflipped: %+v", a.Boxes[0])
	}
}

func TestPointInsideNonWrapping(t *testing.T) {
	r := NewRegistry(geom.Bounds{Width: 100, Height: 100}, zerolog.Nop())
	r.Upsert(New("Zone", geom.NewBox(0, 0, 10, 10), geom.NewBox(20, 20, 5, 5)))
	cases := []struct {
		p    geom.Vec
		want bool
	}{
		{geom.V(0, 0), true},
		{geom.V(9.5, 9.5), true},
		{geom.V(10, 5), false},
		{geom.V(22, 24), true},
		{geom.V(25, 22), false},
		{geom.V(105, 5), false},
	}
	for _, c := range cases {
		if got := r.PointInside("Zone", c.p); got != c.want {
			t.Fatalf("PointInside(%v)=%v want %v", c.p, got, c.want)
		}
	}
	if r.PointInside("Missing", geom.V(1, 1)) {
		t.Fatalf("unknown area must report false")
	}
}

func TestPointInsideWrapsX(t *testing.T) {
	r := NewRegistry(geom.Bounds{Width: 100, Height: 100, WrapX: true}, zerolog.Nop())
	r.Upsert(New("Zone", geom.NewBox(0, 0, 10, 10)))
	if !r.PointInside("Zone", geom.V(105, 5)) {
		t.Fatalf("(105,5) should wrap into Zone")
	}
	if r.PointInside("Zone", geom.V(50, 5)) {
		t.Fatalf("(50,5) is outside Zone")
	}
	for x := -150.0; x < 250; x += 7 {
		if r.PointInside("Zone", geom.V(x, 5)) != r.PointInside("Zone", geom.V(x+100, 5)) {
			t.Fatalf("x=%v and x+W disagree", x)
		}
	}
}

func TestPointInsideSeamBox(t *testing.T) {
	r := NewRegistry(geom.Bounds{Width: 100, Height: 100, WrapX: true}, zerolog.Nop())
	r.Upsert(New("Seam", geom.NewBox(95, 0, 10, 10)))
	if !r.PointInside("Seam", geom.V(2, 5)) {
		t.Fatalf("box crossing the seam should cover x=2")
	}
	b, name, ok := r.BoxContaining(geom.V(2, 5))
	if !ok || name != "Seam" || b.Corner.X != 95 {
		t.Fatalf("BoxContaining should return the stored box: %+v %q %v", b, name, ok)
	}
}

func TestUpsertDeepCopiesAndReplaces(t *testing.T) {
	r := NewRegistry(geom.Bounds{Width: 100, Height: 100}, zerolog.Nop())
	a := New("A", geom.NewBox(0, 0, 10, 10))
	r.Upsert(a)
	r.Upsert(New("B", geom.NewBox(50, 50, 10, 10)))
	a.Boxes[0] = geom.NewBox(80, 80, 1, 1)
	if !r.PointInside("A", geom.V(5, 5)) {
		t.Fatalf("registry aliased caller's boxes")
	}
	r.Upsert(New("A", geom.NewBox(30, 30, 10, 10)))
	if r.PointInside("A", geom.V(5, 5)) || !r.PointInside("A", geom.V(35, 35)) {
		t.Fatalf("upsert did not replace")
	}
	if names := r.Names(); len(names) != 2 || names[0] != "A" || names[1] != "B" {
		t.Fatalf("replacement must keep position: %v", names)
	}
}

func TestGetAndRemoveMiss(t *testing.T) {
	r := NewRegistry(geom.Bounds{Width: 10, Height: 10}, zerolog.Nop())
	if _, err := r.Get("nope"); !errors.Is(err, fault.ErrLookupMiss) {
		t.Fatalf("expected lookup miss, got %v", err)
	}
	if r.Remove("nope") {
		t.Fatalf("remove of unknown should be false")
	}
	r.Upsert(New("x"))
	r.Upsert(New("y"))
	r.Upsert(New("z"))
	if !r.Remove("x") || r.Has("x") {
		t.Fatalf("remove failed")
	}
	if _, err := r.Get("z"); err != nil {
		t.Fatalf("index not rebuilt after remove: %v", err)
	}
}

func TestRemoveBoxContaining(t *testing.T) {
	r := NewRegistry(geom.Bounds{Width: 100, Height: 100}, zerolog.Nop())
	r.Upsert(New("A", geom.NewBox(0, 0, 10, 10), geom.NewBox(20, 0, 10, 10)))
	b, _, ok := r.RemoveBoxContaining(geom.V(25, 5))
	if !ok || b.Corner.X != 20 {
		t.Fatalf("wrong box removed: %+v %v", b, ok)
	}
	if r.PointInside("A", geom.V(25, 5)) {
		t.Fatalf("box still present")
	}
	if _, _, ok := r.RemoveBoxContaining(geom.V(50, 50)); ok {
		t.Fatalf("nothing should be removed")
	}
}

func TestMoveCoordinateInside(t *testing.T) {
	zone := New("Zone", geom.NewBox(0, 0, 10, 10))
	flat := geom.Bounds{Width: 100, Height: 100}
	wrap := geom.Bounds{Width: 100, Height: 100, WrapX: true}

	if _, moved := zone.MoveCoordinateInside(flat, geom.V(5, 50), geom.AxisX, 0); moved {
		t.Fatalf("x already inside; must not move")
	}
	p, moved := zone.MoveCoordinateInside(flat, geom.V(50, 50), geom.AxisX, 0)
	if !moved || p.X != 9 || p.Y != 50 {
		t.Fatalf("nearest edge: %v %v", p, moved)
	}
	if !zone.IsInsideX(flat, p.X) || zone.IsInsideX(flat, 10) {
		t.Fatalf("far edge target must be the last pixel inside the half-open box")
	}
	p, _ = zone.MoveCoordinateInside(flat, geom.V(50, 50), geom.AxisX, 1)
	if p.X != 9 {
		t.Fatalf("no edge to the right on a flat scene; falls back to nearest: %v", p)
	}
	p, _ = zone.MoveCoordinateInside(wrap, geom.V(50, 50), geom.AxisX, 1)
	if p.X != 0 {
		t.Fatalf("moving right should wrap around to x=0: %v", p)
	}
	p, _ = zone.MoveCoordinateInside(wrap, geom.V(95, 50), geom.AxisX, 0)
	if p.X != 0 {
		t.Fatalf("seam is nearer than the far edge: %v", p)
	}
	if !zone.IsInsideX(wrap, p.X) {
		t.Fatalf("result must be inside")
	}
}

func TestCenterAndRandomPoint(t *testing.T) {
	a := New("A", geom.NewBox(0, 0, 10, 10), geom.NewBox(10, 0, 30, 10))
	c := a.CenterPoint()
	if c.X != 20 || c.Y != 5 {
		t.Fatalf("area-weighted center: %v", c)
	}
	p := a.RandomPoint(&seqRandom{vals: []int{1, 4, 7}})
	if p != geom.V(14, 7) {
		t.Fatalf("random point: %v", p)
	}
	if !a.IsInside(geom.Bounds{Width: 100, Height: 100}, p) {
		t.Fatalf("random point outside area")
	}
}
