package scene

import (
	"fmt"

	"scenecraft.ai/internal/sim/scene/economy"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/pathing"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
)

type LoadOptions struct {
	// PlaceObjects hands the OnLoad set to the World and stamps terrain
	// objects. Without it the set is left as is.
	PlaceObjects bool
	// PlaceUnits also places actors and spawns deployments. Doors are
	// placed regardless.
	PlaceUnits bool
	// InitPathfinding builds the cost graph and its scheduler.
	InitPathfinding bool
}

// Load brings the scene up. Every step that can fail runs before anything
// is handed out, so a terrain, visibility or pathing failure leaves the
// scene unloaded with its placed sets, pending raster and layers as they
// were.
func (s *Scene) Load(opts LoadOptions) error {
	if err := s.terrain.Load(); err != nil {
		return fmt.Errorf("scene %s: terrain: %w", s.cfg.ID, err)
	}
	if s.pending != nil {
		if err := s.restoreTerrain(s.pending); err != nil {
			return fmt.Errorf("scene %s: terrain restore: %w", s.cfg.ID, err)
		}
	}
	bounds := s.terrain.Bounds()
	var graph *pathing.Graph
	if opts.InitPathfinding {
		g, err := pathing.NewGraph(s.terrain, s.cfg.PathNodeSize)
		if err != nil {
			return fmt.Errorf("scene %s: %w", s.cfg.ID, err)
		}
		graph = g
	}
	if err := s.vis.ActivateWithin(bounds); err != nil {
		return fmt.Errorf("scene %s: visibility: %w", s.cfg.ID, err)
	}

	s.pending = nil
	s.areas.SetBounds(bounds)
	if opts.PlaceObjects {
		s.placeOnLoad(opts.PlaceUnits)
	}
	if graph != nil {
		// Built before placement; costs are read from the stamped terrain.
		s.startPathfinding(graph)
	}
	s.loaded = true
	s.log.Info().
		Float64("width", bounds.Width).
		Float64("height", bounds.Height).
		Bool("wrap_x", bounds.WrapX).
		Bool("wrap_y", bounds.WrapY).
		Int("areas", s.areas.Len()).
		Int("deployments", s.deployments.Len()).
		Msg("scene loaded")
	return nil
}

// InitPathfinding (re)builds the cost graph from the current terrain.
func (s *Scene) InitPathfinding() error {
	g, err := pathing.NewGraph(s.terrain, s.cfg.PathNodeSize)
	if err != nil {
		return err
	}
	s.startPathfinding(g)
	return nil
}

func (s *Scene) startPathfinding(g *pathing.Graph) {
	s.sched = pathing.NewScheduler(g, s.terrain, s.clock, s.cfg.Scheduler, s.log)
	s.sched.FullRecompute()
	s.metrics.fullRecompute()
}

type brainSlot struct {
	preset string
	actor  *placed.Object
	spots  []geom.Vec
}

// placeOnLoad empties the OnLoad set into the World and the terrain.
func (s *Scene) placeOnLoad(placeUnits bool) {
	var brains [roster.MaxTeams]brainSlot
	dropped := 0

	for _, o := range s.books.OnLoad.TakeAll() {
		switch o.Kind {
		case placed.KindActor:
			if (placeUnits || o.Door) && s.world != nil {
				s.world.AddActor(o)
			} else {
				dropped++
			}
		case placed.KindItem:
			if s.world != nil {
				s.world.AddItem(o)
			}
		case placed.KindParticle:
			if s.world != nil {
				s.world.AddParticle(o)
			}
		case placed.KindTerrainObject:
			if team := s.books.TeamOf(o.PlacedByPlayer); o.PlacedByPlayer != roster.NoPlayer && roster.ValidTeam(team) {
				if box, ok := o.FootprintBox(); ok {
					s.vis.RevealFootprint(team, box)
				}
			}
			if err := s.terrain.ApplyObject(o); err != nil {
				s.log.Warn().Err(err).Str("preset", o.Preset).Msg("terrain object not applied")
			}
		case placed.KindDeployment:
			if o.Deployment.ID == 0 {
				o.Deployment.ID = placed.NewID(s.rng, s.deploymentIDInUse)
			}
			s.deployments.Add(o.Clone())
			if placeUnits {
				s.spawnDeployment(o, &brains)
			}
		}
	}

	// Brains go out last, after picking one of their team's locations.
	for t := range brains {
		b := &brains[t]
		if b.actor == nil {
			continue
		}
		if len(b.spots) > 1 {
			b.actor.Pos = b.spots[s.rng.RandomInt(0, len(b.spots)-1)]
		}
		if s.world != nil {
			s.world.AddActor(b.actor)
		}
	}
	if dropped > 0 {
		s.log.Debug().Int("actors", dropped).Msg("actors not placed")
	}
}

// spawnDeployment places what a deployment yields at load. One brain
// preset is active per team; every deployment of it offers a location
// and the first one spawns the brain.
func (s *Scene) spawnDeployment(d *placed.Object, brains *[roster.MaxTeams]brainSlot) {
	if d.Preset == economy.BrainHideout {
		return
	}
	if d.IsBrain() && roster.ValidTeam(d.Team) {
		b := &brains[d.Team]
		if b.preset == "" {
			b.preset = d.Preset
		}
		if d.Preset != b.preset {
			return
		}
		b.spots = append(b.spots, d.Pos)
		if b.actor != nil {
			return
		}
	}

	tech := placed.Tech{}
	o, _ := s.pricer.CreateDeployedActor(d, d.PlacedByPlayer, tech)
	if o != nil {
		o.DeploymentID = d.Deployment.ID
		if d.IsBrain() && roster.ValidTeam(d.Team) {
			brains[d.Team].actor = o
			return
		}
		if s.world != nil {
			s.world.AddActor(o)
		}
		return
	}
	if o, _ = s.pricer.CreateDeployedObject(d, d.PlacedByPlayer, tech); o != nil && s.world != nil {
		s.world.AddItem(o)
	}
}

func (s *Scene) deploymentIDInUse(id uint32) bool {
	if s.books.DeploymentIDInUse(id) {
		return true
	}
	for _, o := range s.deployments.Items() {
		if o.Deployment.ID == id {
			return true
		}
	}
	return false
}
