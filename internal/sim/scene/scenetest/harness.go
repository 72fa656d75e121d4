// Package scenetest drives small scenes through their exported API with a
// fake World, a settable clock and scripted randomness.
package scenetest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/simrand"
	"scenecraft.ai/internal/sim/scene/terrain"
)

// Catalogs is a compact content set: a few materials, soldiers, a brain,
// an item, a particle, a door and a bunker stamp.
func Catalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.FromDefs(
		[]catalogs.MaterialDef{
			{ID: "AIR"},
			{ID: "DIRT", Integrity: 5},
			{ID: "ROCK", Integrity: 100},
			{ID: "CONCRETE", Integrity: 200},
			{ID: "DOOR", Integrity: 100, Door: true},
		},
		[]catalogs.PresetDef{
			{Name: "Soldier", Class: "AHuman", Kind: catalogs.KindActor, Module: "Coalition", GoldValue: 50, Health: 100},
			{Name: "Brain Unit", Class: "AHuman", Kind: catalogs.KindActor, GoldValue: 200, Groups: []string{placed.BrainGroup}},
			{Name: "Grenade", Class: "TDExplosive", Kind: catalogs.KindItem, GoldValue: 10},
			{Name: "Smoke", Class: "MOSParticle", Kind: catalogs.KindParticle},
			{Name: "Door", Class: "ADoor", Kind: catalogs.KindActor, Door: true},
			{Name: "Bunker", Class: "TerrainObject", Kind: catalogs.KindTerrainObject, GoldValue: 40,
				Footprint: &catalogs.Footprint{Width: 20, Height: 20, Material: "CONCRETE"}},
		},
		[]catalogs.LoadoutDef{
			{Name: "Squad", Cargo: []string{"Soldier", "Grenade"}},
			{Name: "Supply", Cargo: []string{"Grenade"}},
			{Name: "Brain Drop", Groups: []string{placed.BrainGroup}, Cargo: []string{"Brain Unit"}},
			{Name: "Infantry Brain", Groups: []string{placed.BrainGroup}, Cargo: []string{"Brain Unit"}},
			{Name: "Brain Hideout", Groups: []string{placed.BrainGroup}, Cargo: []string{"Brain Unit"}},
		},
	)
	if err != nil {
		t.Fatalf("FromDefs: %v", err)
	}
	return c
}

// World records every hand-off.
type World struct {
	Actors    []*placed.Object
	Items     []*placed.Object
	Particles []*placed.Object
}

func (w *World) AddActor(o *placed.Object)    { w.Actors = append(w.Actors, o) }
func (w *World) AddItem(o *placed.Object)     { w.Items = append(w.Items, o) }
func (w *World) AddParticle(o *placed.Object) { w.Particles = append(w.Particles, o) }

// TakeBrain gives back the first brain actor on team.
func (w *World) TakeBrain(team int) (*placed.Object, bool) {
	for i, o := range w.Actors {
		if o.IsBrain() && o.Team == team {
			w.Actors = append(w.Actors[:i], w.Actors[i+1:]...)
			return o, true
		}
	}
	return nil, false
}

// Brains returns the brain actors handed to the world.
func (w *World) Brains() []*placed.Object {
	var out []*placed.Object
	for _, o := range w.Actors {
		if o.IsBrain() {
			out = append(out, o)
		}
	}
	return out
}

type Clock struct{ T time.Time }

func (c *Clock) Now() time.Time          { return c.T }
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// Random replays Script, each value clamped into the requested range,
// then falls back to a seeded generator.
type Random struct {
	Script []int
	Calls  int

	fallback *simrand.PCG
}

func NewRandom(seed uint64, script ...int) *Random {
	return &Random{Script: script, fallback: simrand.New(seed)}
}

func (r *Random) RandomInt(low, high int) int {
	r.Calls++
	if len(r.Script) == 0 {
		return r.fallback.RandomInt(low, high)
	}
	v := r.Script[0]
	r.Script = r.Script[1:]
	if v < low {
		return low
	}
	if high > low && v > high {
		return high
	}
	return v
}

type Harness struct {
	T       *testing.T
	Cats    *catalogs.Catalogs
	Terrain *terrain.Grid
	World   *World
	Clock   *Clock
	Random  *Random
	S       *scene.Scene
}

// NewHarness builds an unloaded scene over a fresh terrain.
func NewHarness(t *testing.T, cfg scene.Config, spec terrain.Spec) *Harness {
	t.Helper()
	cats := Catalogs(t)
	h := &Harness{
		T:       t,
		Cats:    cats,
		Terrain: terrain.New(spec, &cats.Materials),
		World:   &World{},
		Clock:   &Clock{T: time.Unix(1_700_000_000, 0)},
		Random:  NewRandom(cfg.Seed),
	}
	if cfg.ID == "" {
		cfg.ID = "S1"
	}
	s, err := scene.New(cfg, scene.Deps{
		Terrain:   h.Terrain,
		World:     h.World,
		Random:    h.Random,
		Templates: cats,
		Clock:     h.Clock,
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("scene.New: %v", err)
	}
	h.S = s
	t.Cleanup(func() { _ = s.Close() })
	return h
}

func (h *Harness) Load(opts scene.LoadOptions) {
	h.T.Helper()
	if err := h.S.Load(opts); err != nil {
		h.T.Fatalf("Load: %v", err)
	}
}

// Object instantiates a preset owned by player on team.
func (h *Harness) Object(preset string, x, y float64, team, player int) *placed.Object {
	h.T.Helper()
	o, err := placed.FromPreset(h.Cats, preset, geom.Vec{X: x, Y: y})
	if err != nil {
		h.T.Fatalf("FromPreset: %v", err)
	}
	o.SetTeam(team)
	o.PlacedByPlayer = player
	return o
}

// Deployment builds a placement intent for loadout.
func (h *Harness) Deployment(loadout string, x, y float64, team, player int) *placed.Object {
	h.T.Helper()
	d, err := placed.NewDeployment(h.Cats, loadout, geom.Vec{X: x, Y: y}, 50, 100)
	if err != nil {
		h.T.Fatalf("NewDeployment: %v", err)
	}
	d.Team = team
	d.PlacedByPlayer = player
	return d
}

// StepFor runs n ticks of simDelta each, advancing the wall clock by the
// same amount.
func (h *Harness) StepFor(n int, simDelta time.Duration) []scene.StepReport {
	out := make([]scene.StepReport, 0, n)
	for i := 0; i < n; i++ {
		h.Clock.Advance(simDelta)
		out = append(out, h.S.Step(scene.StepInput{SimDelta: simDelta}))
	}
	return out
}
