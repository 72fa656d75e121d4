package scenedef

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/scenetest"
	"scenecraft.ai/internal/sim/scene/simrand"
	"scenecraft.ai/internal/sim/tuning"
)

const sample = `{
  "id": "S1",
  "name": "ridge",
  "seed": 9,
  "terrain": {
    "width": 400, "height": 200, "wrap_x": true,
    "rects": [{"box": {"x": 0, "y": 150, "w": 400, "h": 50}, "material": "DIRT"}]
  },
  "teams": [{"team": 1, "unseen_cell_size": 0}],
  "players": [
    {"player": 0, "team": 0, "budget": 300, "brain": "Brain Unit"},
    {"player": 1, "team": 1, "budget": 300, "tech": {"native_module": "Coalition", "native_cost_mult": 0.5}}
  ],
  "areas": [{"name": "LZ", "boxes": [{"x": 390, "y": 0, "w": 20, "h": 20}]}],
  "objects": [
    {"set": "on_load", "preset": "Bunker", "x": 100, "y": 130, "team": 0, "player": 0},
    {"set": "blueprint", "loadout": "Squad", "x": 300, "y": 100, "team": 1, "player": 1, "spawn_radius": 10},
    {"set": "ai_plan", "preset": "Grenade", "x": 20, "y": 20}
  ]
}`

func TestRestoreMatchesDigest(t *testing.T) {
	def, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	env := Env{
		Cats:   scenetest.Catalogs(t),
		Tuning: tuning.Defaults(),
		World:  &scenetest.World{},
		Random: simrand.New(def.Seed),
		Log:    zerolog.Nop(),
	}
	s, _, err := Build(def, env)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := s.Load(scene.LoadOptions{PlaceObjects: true, PlaceUnits: true}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Step(scene.StepInput{BuildRound: true})
	snap := s.ExportSnapshot()

	r, grid, err := Restore(snap, env)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := r.Load(scene.LoadOptions{}); err != nil {
		t.Fatalf("Load restored: %v", err)
	}
	if got := grid.MaterialAt(105, 135).ID; got != "CONCRETE" {
		t.Fatalf("restored raster lost the bunker: %s", got)
	}
	if r.Tick() != 1 || r.Session() != s.Session() {
		t.Fatalf("restored tick=%d session=%q", r.Tick(), r.Session())
	}
	if r.Digest() != s.Digest() {
		t.Fatalf("restored digest differs")
	}
}

func TestParseAndBuild(t *testing.T) {
	def, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := def.Config(tuning.Defaults())
	if cfg.UnseenCellSize[0] != 20 || cfg.UnseenCellSize[1] != 0 {
		t.Fatalf("unseen cell sizes=%v", cfg.UnseenCellSize)
	}

	s, grid, err := Build(def, Env{
		Cats:   scenetest.Catalogs(t),
		Tuning: tuning.Defaults(),
		World:  &scenetest.World{},
		Random: simrand.New(def.Seed),
		Log:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := s.Load(scene.LoadOptions{PlaceObjects: true}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := grid.MaterialAt(10, 160).ID; got != "DIRT" {
		t.Fatalf("rect not painted: %s", got)
	}
	if got := grid.MaterialAt(105, 135).ID; got != "CONCRETE" {
		t.Fatalf("bunker not stamped: %s", got)
	}
	if !s.Areas().PointInside("LZ", geom.Vec{X: 5, Y: 5}) {
		t.Fatalf("LZ should wrap across the seam")
	}
	if s.BuildBudget(1) != 300 || s.ResidentBrain(0) == nil || s.ResidentBrain(0).Team != 0 {
		t.Fatalf("players not set up")
	}
	bp := s.Placed(scene.PlacedBlueprint)
	if bp.Len() != 1 || !bp.At(0).IsDeployment() || bp.At(0).Deployment.SpawnRadius != 10 || bp.At(0).Deployment.WalkRadius != DefaultWalkRadius {
		t.Fatalf("blueprint deployment wrong")
	}
	if g := s.Placed(scene.PlacedAIPlan).At(0); g.Team != -1 || g.PlacedByPlayer != -1 {
		t.Fatalf("unowned object got team %d player %d", g.Team, g.PlacedByPlayer)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no terrain":     `{"id": "S1"}`,
		"bad set":        `{"id": "S1", "terrain": {"width": 10, "height": 10}, "objects": [{"set": "x", "preset": "A", "x": 0, "y": 0}]}`,
		"preset+loadout": `{"id": "S1", "terrain": {"width": 10, "height": 10}, "objects": [{"set": "on_load", "preset": "A", "loadout": "B", "x": 0, "y": 0}]}`,
		"team range":     `{"id": "S1", "terrain": {"width": 10, "height": 10}, "players": [{"player": 0, "team": 7}]}`,
		"duplicate":      `{"id": "S1", "terrain": {"width": 10, "height": 10}, "players": [{"player": 0, "team": 0}, {"player": 0, "team": 1}]}`,
		"unknown field":  `{"id": "S1", "terrain": {"width": 10, "height": 10}, "fog": true}`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil || !strings.Contains(err.Error(), "scene definition") {
			t.Fatalf("%s: err=%v", name, err)
		}
	}
}

func TestShippedSampleBuilds(t *testing.T) {
	configs := filepath.Join("..", "..", "..", "configs")
	cats, err := catalogs.Load(configs)
	if err != nil {
		t.Fatalf("catalogs.Load: %v", err)
	}
	tune, err := tuning.Load(filepath.Join(configs, "tuning.yaml"))
	if err != nil {
		t.Fatalf("tuning.Load: %v", err)
	}
	def, err := Load(filepath.Join(configs, "scenes", "sample.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s, _, err := Build(def, Env{
		Cats:   cats,
		Tuning: tune,
		World:  &scenetest.World{},
		Random: simrand.New(def.Seed),
		Log:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := s.Load(scene.LoadOptions{PlaceObjects: true}); err != nil {
		t.Fatalf("Load scene: %v", err)
	}
	if !s.Areas().Has(tune.MetaBaseArea) {
		t.Fatalf("sample has no %s area", tune.MetaBaseArea)
	}
}
