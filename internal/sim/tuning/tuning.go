// Package tuning loads the simulation knobs from tuning.yaml.
package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	// UnseenCellSize is the fog cell size in pixels for teams that do not
	// set their own; zero disables fog.
	UnseenCellSize     int `yaml:"unseen_cell_size"`
	MaxVisibilityCells int `yaml:"max_visibility_cells"`

	Pathing Pathing `yaml:"pathing"`

	BuildRoundEveryTicks int `yaml:"build_round_every_ticks"`
	SnapshotEveryTicks   int `yaml:"snapshot_every_ticks"`

	BrainGroup   string   `yaml:"brain_group"`
	MetaBaseArea string   `yaml:"meta_base_area"`
	Hideouts     []string `yaml:"brain_hideouts"`
}

type Pathing struct {
	NodeSize int `yaml:"node_size"`
	// FullRecomputeSimSeconds counts simulated time.
	FullRecomputeSimSeconds int `yaml:"full_recompute_sim_seconds"`
	// PartialRecomputeRealSeconds counts wall time.
	PartialRecomputeRealSeconds int `yaml:"partial_recompute_real_seconds"`
	PartialNodeBudget           int `yaml:"partial_node_budget"`
	MaxDirtyRegions             int `yaml:"max_dirty_regions"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         20,
		UnseenCellSize:     20,
		MaxVisibilityCells: 4 << 20,
		Pathing: Pathing{
			NodeSize:                    20,
			FullRecomputeSimSeconds:     120,
			PartialRecomputeRealSeconds: 10,
			PartialNodeBudget:           100,
			MaxDirtyRegions:             1000,
		},
		BuildRoundEveryTicks: 200,
		SnapshotEveryTicks:   3000,
		BrainGroup:           placed.BrainGroup,
		MetaBaseArea:         "MetaBase",
		Hideouts:             []string{"Brain Hideout", "Infantry Brain"},
	}
}

// Load reads path over Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be positive")
	case t.UnseenCellSize < 0:
		return fmt.Errorf("unseen_cell_size must not be negative")
	case t.Pathing.NodeSize <= 0:
		return fmt.Errorf("pathing.node_size must be positive")
	case t.Pathing.FullRecomputeSimSeconds <= 0 || t.Pathing.PartialRecomputeRealSeconds <= 0:
		return fmt.Errorf("pathing recompute intervals must be positive")
	case t.Pathing.PartialNodeBudget <= 0 || t.Pathing.MaxDirtyRegions <= 0:
		return fmt.Errorf("pathing budgets must be positive")
	case t.BuildRoundEveryTicks < 0 || t.SnapshotEveryTicks < 0:
		return fmt.Errorf("intervals must not be negative")
	case t.BrainGroup != placed.BrainGroup:
		return fmt.Errorf("brain_group %q is not supported, only %q", t.BrainGroup, placed.BrainGroup)
	}
	return nil
}

// TickDuration is simulated time per tick.
func (t Tuning) TickDuration() time.Duration {
	return time.Second / time.Duration(t.TickRateHz)
}

// UnseenCellSizes gives every team the default fog cell size.
func (t Tuning) UnseenCellSizes() [roster.MaxTeams]int {
	var out [roster.MaxTeams]int
	for i := range out {
		out[i] = t.UnseenCellSize
	}
	return out
}
