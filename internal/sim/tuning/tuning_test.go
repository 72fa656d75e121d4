package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte("tick_rate_hz: 10\npathing:\n  node_size: 16\nbrain_hideouts: [Bunker Brain]\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 10 || tu.TickDuration() != 100*time.Millisecond {
		t.Fatalf("tick rate=%d duration=%v", tu.TickRateHz, tu.TickDuration())
	}
	if tu.Pathing.NodeSize != 16 || tu.Pathing.FullRecomputeSimSeconds != 120 {
		t.Fatalf("pathing=%+v", tu.Pathing)
	}
	if len(tu.Hideouts) != 1 || tu.Hideouts[0] != "Bunker Brain" {
		t.Fatalf("hideouts=%v", tu.Hideouts)
	}
	if tu.UnseenCellSizes()[3] != 20 {
		t.Fatalf("unseen cell sizes=%v", tu.UnseenCellSizes())
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Tuning)
	}{
		{"tick rate", func(t *Tuning) { t.TickRateHz = 0 }},
		{"node size", func(t *Tuning) { t.Pathing.NodeSize = -1 }},
		{"partial interval", func(t *Tuning) { t.Pathing.PartialRecomputeRealSeconds = 0 }},
		{"budget", func(t *Tuning) { t.Pathing.PartialNodeBudget = 0 }},
		{"brain group", func(t *Tuning) { t.BrainGroup = "Heads" }},
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tc := range cases {
		tu := Defaults()
		tc.mut(&tu)
		if err := tu.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
