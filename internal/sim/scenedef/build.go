package scenedef

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/area"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/pathing"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/simrand"
	"scenecraft.ai/internal/sim/scene/terrain"
	"scenecraft.ai/internal/sim/tuning"
)

// Env carries the collaborators a built scene is wired to.
type Env struct {
	Cats   *catalogs.Catalogs
	Tuning tuning.Tuning
	World  scene.World
	Random simrand.Random
	Clock  pathing.Clock
	Log    zerolog.Logger
}

func (b BoxDef) box() geom.Box { return geom.NewBox(b.X, b.Y, b.W, b.H) }

// TerrainSpec converts the terrain section.
func (d Def) TerrainSpec() terrain.Spec {
	t := d.Terrain
	spec := terrain.Spec{
		Width:  t.Width,
		Height: t.Height,
		WrapX:  t.WrapX,
		WrapY:  t.WrapY,
		Fill:   t.Fill,
		Seed:   t.Seed,
	}
	for _, s := range t.Sprinkles {
		spec.Sprinkles = append(spec.Sprinkles, terrain.Sprinkle{Material: s.Material, Permille: s.Permille})
	}
	for _, r := range t.Rects {
		spec.Rects = append(spec.Rects, terrain.Rect{Box: r.Box.box(), Material: r.Material})
	}
	return spec
}

// Config derives the scene config from the definition and tuning.
func (d Def) Config(tu tuning.Tuning) scene.Config {
	cfg := scene.Config{
		ID:                 d.ID,
		Name:               d.Name,
		Seed:               d.Seed,
		UnseenCellSize:     tu.UnseenCellSizes(),
		MaxVisibilityCells: tu.MaxVisibilityCells,
		PathNodeSize:       tu.Pathing.NodeSize,
		Scheduler: pathing.SchedulerConfig{
			FullInterval:    time.Duration(tu.Pathing.FullRecomputeSimSeconds) * time.Second,
			PartialInterval: time.Duration(tu.Pathing.PartialRecomputeRealSeconds) * time.Second,
			NodeBudget:      tu.Pathing.PartialNodeBudget,
			MaxBacklog:      tu.Pathing.MaxDirtyRegions,
		},
		Hideouts:     tu.Hideouts,
		MetaBaseArea: tu.MetaBaseArea,
	}
	for _, t := range d.Teams {
		if t.UnseenCellSize != nil {
			cfg.UnseenCellSize[t.Team] = *t.UnseenCellSize
		}
	}
	return cfg
}

// Build creates the terrain and an unloaded scene populated from d.
func Build(d Def, env Env) (*scene.Scene, *terrain.Grid, error) {
	if env.Cats == nil {
		return nil, nil, fmt.Errorf("scenedef: nil catalogs")
	}
	grid := terrain.New(d.TerrainSpec(), &env.Cats.Materials)
	s, err := scene.New(d.Config(env.Tuning), scene.Deps{
		Terrain:   grid,
		World:     env.World,
		Random:    env.Random,
		Templates: env.Cats,
		Clock:     env.Clock,
		Log:       env.Log,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := populate(s, d, env); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	return s, grid, nil
}

func populate(s *scene.Scene, d Def, env Env) error {
	for _, p := range d.Players {
		s.SetupPlayer(p.Player, scene.PlayerSetup{
			Team:   p.Team,
			Budget: p.Budget,
			Ratio:  p.Ratio,
			Tech: placed.Tech{
				NativeModule:    p.Tech.NativeModule,
				NativeCostMult:  p.Tech.NativeCostMult,
				ForeignCostMult: p.Tech.ForeignCostMult,
			},
		})
		if p.Brain == "" {
			continue
		}
		b, err := placed.FromPreset(env.Cats, p.Brain, geom.Vec{})
		if err != nil {
			return fmt.Errorf("player %d brain: %w", p.Player, err)
		}
		b.SetTeam(p.Team)
		b.PlacedByPlayer = p.Player
		s.SetResidentBrain(p.Player, b)
	}

	for _, a := range d.Areas {
		boxes := make([]geom.Box, 0, len(a.Boxes))
		for _, b := range a.Boxes {
			boxes = append(boxes, b.box())
		}
		s.Areas().Upsert(area.New(a.Name, boxes...))
	}

	for i, od := range d.Objects {
		kind, ok := scene.ParsePlacedKind(od.Set)
		if !ok {
			return fmt.Errorf("object %d: unknown set %q", i, od.Set)
		}
		o, err := buildObject(env.Cats, od)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		s.AddPlaced(kind, o, -1)
	}
	return nil
}

// Restore creates an unloaded scene from a snapshot. The saved raster
// replaces the plain air fill on the next Load.
func Restore(snap snapshot.SceneV1, env Env) (*scene.Scene, *terrain.Grid, error) {
	if env.Cats == nil {
		return nil, nil, fmt.Errorf("scenedef: nil catalogs")
	}
	t := snap.Terrain
	grid := terrain.New(terrain.Spec{Width: t.Width, Height: t.Height, WrapX: t.WrapX, WrapY: t.WrapY}, &env.Cats.Materials)
	cfg := Def{ID: snap.Header.SceneID, Name: snap.Name, Seed: snap.Seed}.Config(env.Tuning)
	s, err := scene.New(cfg, scene.Deps{
		Terrain:   grid,
		World:     env.World,
		Random:    env.Random,
		Templates: env.Cats,
		Clock:     env.Clock,
		Log:       env.Log,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.ImportSnapshot(snap); err != nil {
		_ = s.Close()
		return nil, nil, fmt.Errorf("scene %s: %w", snap.Header.SceneID, err)
	}
	return s, grid, nil
}

func buildObject(cats *catalogs.Catalogs, od ObjectDef) (*placed.Object, error) {
	pos := geom.Vec{X: od.X, Y: od.Y}
	var o *placed.Object
	var err error
	if od.Loadout != "" {
		spawn, walk := float64(DefaultSpawnRadius), float64(DefaultWalkRadius)
		if od.SpawnRadius != nil {
			spawn = *od.SpawnRadius
		}
		if od.WalkRadius != nil {
			walk = *od.WalkRadius
		}
		o, err = placed.NewDeployment(cats, od.Loadout, pos, spawn, walk)
	} else {
		o, err = placed.FromPreset(cats, od.Preset, pos)
	}
	if err != nil {
		return nil, err
	}
	o.SetTeam(od.team())
	o.PlacedByPlayer = od.player()
	o.HFlipped = od.HFlipped
	o.Rotation = od.Rotation
	return o, nil
}
