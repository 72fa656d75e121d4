// Package scene owns one battlefield: terrain, per-team visibility, named
// areas, the placed-object queues with their build economy, and the
// pathfinding scheduler. Everything runs on the caller's goroutine.
package scene

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene/area"
	"scenecraft.ai/internal/sim/scene/economy"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/pathing"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
	"scenecraft.ai/internal/sim/scene/simrand"
	"scenecraft.ai/internal/sim/scene/visibility"
)

// Terrain is the material grid collaborator.
type Terrain interface {
	Load() error
	Bounds() geom.Bounds
	MaterialAt(x, y int) catalogs.MaterialDef
	DirtyRegions() []geom.Box
	ClearDirtyRegions()
	ApplyObject(o *placed.Object) error
}

// World receives objects handed off at load time and owns them from then on.
type World interface {
	AddActor(o *placed.Object)
	AddItem(o *placed.Object)
	AddParticle(o *placed.Object)
}

// BrainKeeper is implemented by worlds that can give resident brains back.
type BrainKeeper interface {
	TakeBrain(team int) (*placed.Object, bool)
}

type Config struct {
	ID   string
	Name string
	// Seed is recorded in snapshots so a resume can reseed its Random.
	Seed uint64

	// UnseenCellSize schedules a procedural visibility layer per team.
	// Zero leaves the team without fog.
	UnseenCellSize [roster.MaxTeams]int
	// MaxVisibilityCells caps one layer's allocation; zero is no cap.
	MaxVisibilityCells int

	PathNodeSize int
	Scheduler    pathing.SchedulerConfig

	Hideouts     []string
	MetaBaseArea string
}

type Deps struct {
	Terrain   Terrain
	World     World
	Random    simrand.Random
	Templates placed.Templates
	Clock     pathing.Clock
	Log       zerolog.Logger
	// Meter defaults to the global otel meter.
	Meter metric.Meter
}

// PlacedKind selects one of the three placed-object sets.
type PlacedKind int

const (
	PlacedOnLoad PlacedKind = iota
	PlacedBlueprint
	PlacedAIPlan
)

func (k PlacedKind) String() string {
	switch k {
	case PlacedOnLoad:
		return "on_load"
	case PlacedBlueprint:
		return "blueprint"
	case PlacedAIPlan:
		return "ai_plan"
	}
	return fmt.Sprintf("placed(%d)", int(k))
}

// ParsePlacedKind is the inverse of PlacedKind.String.
func ParsePlacedKind(s string) (PlacedKind, bool) {
	for k := PlacedOnLoad; k <= PlacedAIPlan; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

type Scene struct {
	cfg     Config
	log     zerolog.Logger
	session string

	terrain Terrain
	world   World
	rng     simrand.Random
	clock   pathing.Clock

	pricer placed.Pricer
	areas  *area.Registry
	vis    *visibility.Map
	books  *economy.Books
	econ   *economy.Engine
	sched  *pathing.Scheduler

	// deployments keeps a copy of every deployment placed at load so it
	// can be saved and re-run.
	deployments placed.Set

	tick    uint64
	loaded  bool
	pending *pendingTerrain
	metrics *sceneMetrics
}

func New(cfg Config, deps Deps) (*Scene, error) {
	if deps.Terrain == nil {
		return nil, fmt.Errorf("scene: nil terrain")
	}
	if deps.Random == nil {
		return nil, fmt.Errorf("scene: nil random")
	}
	if cfg.PathNodeSize <= 0 {
		cfg.PathNodeSize = pathing.DefaultNodeSize
	}
	log := deps.Log.With().Str("scene", cfg.ID).Logger()
	s := &Scene{
		cfg:     cfg,
		log:     log,
		session: uuid.NewString(),
		terrain: deps.Terrain,
		world:   deps.World,
		rng:     deps.Random,
		clock:   deps.Clock,
		pricer:  placed.Pricer{Templates: deps.Templates},
		books:   economy.NewBooks(),
	}
	bounds := deps.Terrain.Bounds()
	s.areas = area.NewRegistry(bounds, log)
	s.vis = visibility.NewMap(bounds, cfg.MaxVisibilityCells, log)
	s.econ = economy.NewEngine(s.pricer, s.rng, s.areas, log, economy.Options{
		Hideouts:     cfg.Hideouts,
		MetaBaseArea: cfg.MetaBaseArea,
		OnFootprint:  s.revealFootprint,
	})
	for t, size := range cfg.UnseenCellSize {
		if size <= 0 {
			continue
		}
		if err := s.vis.Schedule(t, size); err != nil {
			return nil, err
		}
	}
	m, err := newSceneMetrics(s, deps.Meter)
	if err != nil {
		return nil, err
	}
	s.metrics = m
	return s, nil
}

// Close releases the scene's metric callbacks. The scene must not be
// stepped afterwards.
func (s *Scene) Close() error {
	return s.metrics.close()
}

func (s *Scene) ID() string      { return s.cfg.ID }
func (s *Scene) Name() string    { return s.cfg.Name }
func (s *Scene) Seed() uint64    { return s.cfg.Seed }
func (s *Scene) Session() string { return s.session }
func (s *Scene) Tick() uint64    { return s.tick }
func (s *Scene) Loaded() bool    { return s.loaded }

func (s *Scene) Bounds() geom.Bounds { return s.terrain.Bounds() }

func (s *Scene) Terrain() Terrain              { return s.terrain }
func (s *Scene) Areas() *area.Registry         { return s.areas }
func (s *Scene) Visibility() *visibility.Map   { return s.vis }
func (s *Scene) Pathing() *pathing.Scheduler   { return s.sched }
func (s *Scene) Economy() *economy.Engine      { return s.econ }
func (s *Scene) Deployments() []*placed.Object { return s.deployments.Items() }
func (s *Scene) Pricer() placed.Pricer         { return s.pricer }
func (s *Scene) TotalInvestment() float64      { return s.books.TotalInvestment }
func (s *Scene) SetTotalInvestment(v float64)  { s.books.TotalInvestment = v }

// Placed borrows one of the placed-object sets.
func (s *Scene) Placed(kind PlacedKind) *placed.Set {
	switch kind {
	case PlacedOnLoad:
		return &s.books.OnLoad
	case PlacedBlueprint:
		return &s.books.Blueprint
	case PlacedAIPlan:
		return &s.books.AIPlan
	}
	return nil
}

// AddPlaced transfers o into the given set at position order, or at the
// end when order is negative.
func (s *Scene) AddPlaced(kind PlacedKind, o *placed.Object, order int) {
	set := s.Placed(kind)
	if set == nil || o == nil {
		return
	}
	if order < 0 {
		set.Add(o)
		return
	}
	set.Insert(order, o)
}

// ClearPlaced drops every object in one set.
func (s *Scene) ClearPlaced(kind PlacedKind) {
	if set := s.Placed(kind); set != nil {
		set.Clear()
	}
}

// revealFootprint is the economy's hook for funded terrain objects.
func (s *Scene) revealFootprint(team int, box geom.Box) {
	if roster.ValidTeam(team) {
		s.vis.RevealFootprint(team, box)
	}
}
