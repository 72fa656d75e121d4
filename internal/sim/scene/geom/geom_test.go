package geom

import "testing"

func TestBoxUnflipAndContains(t *testing.T) {
	b := NewBox(10, 10, -10, -5)
	if b.Corner != V(0, 5) || b.Width != 10 || b.Height != 5 {
		t.Fatalf("unflip: %+v", b)
	}
	if !b.Contains(V(0, 5)) {
		t.Fatalf("corner must be inside")
	}
	if b.Contains(V(10, 6)) || b.Contains(V(5, 10)) {
		t.Fatalf("far edges must be outside")
	}
	if NewBox(0, 0, 0, 10).Contains(V(0, 0)) {
		t.Fatalf("degenerate box contains nothing")
	}
}

func TestWrapBoxCopies(t *testing.T) {
	bounds := Bounds{Width: 100, Height: 50, WrapX: true}
	boxes := bounds.WrapBox(NewBox(-5, 0, 10, 10))
	if len(boxes) != 2 {
		t.Fatalf("expected original + one copy, got %d", len(boxes))
	}
	if boxes[1].Corner.X != 95 {
		t.Fatalf("copy corner: %v", boxes[1].Corner)
	}
	boxes = bounds.WrapBox(NewBox(95, 0, 10, 10))
	if len(boxes) != 2 || boxes[1].Corner.X != -5 {
		t.Fatalf("far seam copy: %+v", boxes)
	}
	if got := bounds.WrapBox(NewBox(10, 0, 10, 10)); len(got) != 1 {
		t.Fatalf("interior box should not be copied: %+v", got)
	}
}

func TestShortestDistanceAxis(t *testing.T) {
	b := Bounds{Width: 100, Height: 100, WrapX: true}
	if d := b.ShortestDistanceX(95, 5, 0); d != 10 {
		t.Fatalf("across seam: %v", d)
	}
	if d := b.ShortestDistanceX(5, 95, 0); d != -10 {
		t.Fatalf("across seam back: %v", d)
	}
	if d := b.ShortestDistanceX(5, 95, 1); d != 90 {
		t.Fatalf("forced positive: %v", d)
	}
	if d := b.ShortestDistanceX(95, 5, -1); d != -90 {
		t.Fatalf("forced negative: %v", d)
	}
	if d := b.ShortestDistanceY(95, 5, 0); d != -90 {
		t.Fatalf("non-wrapping axis: %v", d)
	}
}

func TestForceBounds(t *testing.T) {
	b := Bounds{Width: 100, Height: 100, WrapX: true}
	p := b.ForceBounds(V(-10, 250))
	if p.X != 90 || p.Y != 99 {
		t.Fatalf("force bounds: %v", p)
	}
}
