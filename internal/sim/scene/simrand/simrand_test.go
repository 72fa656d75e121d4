package simrand

import "testing"

func TestRandomIntRangeAndDeterminism(t *testing.T) {
	a, b := New(7), New(7)
	for i := 0; i < 1000; i++ {
		x := a.RandomInt(1, 0xFFFF)
		if x < 1 || x > 0xFFFF {
			t.Fatalf("out of range: %d", x)
		}
		if y := b.RandomInt(1, 0xFFFF); x != y {
			t.Fatalf("same seed diverged at %d: %d vs %d", i, x, y)
		}
	}
	if got := a.RandomInt(5, 5); got != 5 {
		t.Fatalf("degenerate range: %d", got)
	}
}
