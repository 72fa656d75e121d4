package pathing

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/scene/geom"
)

// Clock supplies wall time to the partial recompute timer.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads time.Now.
var SystemClock Clock = systemClock{}

// DirtySource reports terrain regions changed since the last clear.
type DirtySource interface {
	DirtyRegions() []geom.Box
	ClearDirtyRegions()
}

type SchedulerConfig struct {
	// FullInterval is simulated time between full recomputes.
	FullInterval time.Duration
	// PartialInterval is wall time between partial recomputes.
	PartialInterval time.Duration
	// NodeBudget caps nodes recomputed per partial call.
	NodeBudget int
	// MaxBacklog lifts the budget once this many regions are waiting.
	MaxBacklog int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		FullInterval:    120 * time.Second,
		PartialInterval: 10 * time.Second,
		NodeBudget:      100,
		MaxBacklog:      1000,
	}
}

// Recompute describes what one Tick did.
type Recompute struct {
	Full    bool
	Partial bool
	Changed []int
	Backlog int
}

// Scheduler runs full recomputes on simulated time and partial ones on
// wall time.
type Scheduler struct {
	graph *Graph
	dirty DirtySource
	clock Clock
	cfg   SchedulerConfig
	log   zerolog.Logger

	sinceFull   time.Duration
	lastPartial time.Time
	backlog     []geom.Box
	updated     bool
}

func NewScheduler(graph *Graph, dirty DirtySource, clock Clock, cfg SchedulerConfig, log zerolog.Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.FullInterval <= 0 {
		cfg.FullInterval = def.FullInterval
	}
	if cfg.PartialInterval <= 0 {
		cfg.PartialInterval = def.PartialInterval
	}
	if cfg.NodeBudget <= 0 {
		cfg.NodeBudget = def.NodeBudget
	}
	if cfg.MaxBacklog <= 0 {
		cfg.MaxBacklog = def.MaxBacklog
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{
		graph:       graph,
		dirty:       dirty,
		clock:       clock,
		cfg:         cfg,
		log:         log.With().Str("component", "pathing").Logger(),
		lastPartial: clock.Now(),
	}
}

func (s *Scheduler) Graph() *Graph { return s.graph }

// Updated reports whether the graph changed during the last Tick or
// since it by a manual recompute.
func (s *Scheduler) Updated() bool { return s.updated }

func (s *Scheduler) Backlog() int { return len(s.backlog) }

// Tick advances the timers by simDelta of simulated time and runs
// whichever recomputes are due.
func (s *Scheduler) Tick(simDelta time.Duration) Recompute {
	s.updated = false
	var r Recompute

	s.sinceFull += simDelta
	if s.sinceFull >= s.cfg.FullInterval {
		s.FullRecompute()
		r.Full = true
	}
	if now := s.clock.Now(); now.Sub(s.lastPartial) >= s.cfg.PartialInterval {
		s.lastPartial = now
		r.Changed = s.PartialRecompute()
		r.Partial = true
	}
	r.Backlog = len(s.backlog)
	return r
}

// FullRecompute rebuilds every edge and drops any pending dirty regions.
func (s *Scheduler) FullRecompute() {
	s.graph.RecalculateAll()
	s.dirty.ClearDirtyRegions()
	s.backlog = nil
	s.sinceFull = 0
	s.updated = true
	s.log.Debug().Int("nodes", s.graph.Len()).Msg("full recompute")
}

// PartialRecompute pulls the terrain's dirty regions into the backlog,
// clears them at the source and recomputes up to the node budget.
func (s *Scheduler) PartialRecompute() []int {
	s.backlog = append(s.backlog, s.dirty.DirtyRegions()...)
	s.dirty.ClearDirtyRegions()
	s.updated = true
	if len(s.backlog) == 0 {
		return nil
	}
	limit := s.cfg.NodeBudget
	if len(s.backlog) > s.cfg.MaxBacklog {
		limit = math.MaxInt
	}
	changed, rest := s.graph.RecalculateBoxes(s.backlog, limit)
	s.backlog = append(s.backlog[:0:0], rest...)
	if len(changed) > 0 {
		s.log.Debug().Int("changed", len(changed)).Int("backlog", len(s.backlog)).Msg("partial recompute")
	}
	return changed
}
