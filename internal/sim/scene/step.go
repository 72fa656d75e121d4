package scene

import (
	"time"

	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/roster"
	"scenecraft.ai/internal/sim/scene/visibility"
)

type StepInput struct {
	// SimDelta is simulated time covered by this tick.
	SimDelta time.Duration
	// BuildRound runs the AI plan and build budget for every active player.
	BuildRound bool
}

type StepReport struct {
	Tick         uint64                     `json:"tick"`
	CellsCleaned [roster.MaxTeams]int       `json:"cells_cleaned"`
	BuildRound   bool                       `json:"build_round,omitempty"`
	Spent        [roster.MaxPlayers]float64 `json:"spent"`
	Placed       [roster.MaxPlayers]int     `json:"placed"`
	AIPlanMoved  [roster.MaxPlayers]int     `json:"ai_plan_moved"`

	FullRecompute    bool `json:"full_recompute,omitempty"`
	PartialRecompute bool `json:"partial_recompute,omitempty"`
	ChangedNodes     int  `json:"changed_nodes,omitempty"`
	PathBacklog      int  `json:"path_backlog,omitempty"`
}

// Step advances the scene one tick. Visibility erosion runs first so a
// reveal from this tick's placements is not immediately eroded, then the
// economy on build rounds, then pathfinding.
func (s *Scene) Step(in StepInput) StepReport {
	s.tick++
	rep := StepReport{Tick: s.tick, BuildRound: in.BuildRound}

	for t := 0; t < roster.MaxTeams; t++ {
		if s.vis.State(t) != visibility.Active {
			continue
		}
		rep.CellsCleaned[t] = s.vis.AdvanceSeenPixels(t)
		s.metrics.cellsCleaned(t, rep.CellsCleaned[t])
	}

	if in.BuildRound {
		for p := 0; p < roster.MaxPlayers; p++ {
			if !s.books.Players[p].Active {
				continue
			}
			_, rep.AIPlanMoved[p] = s.econ.ApplyAIPlan(s.books, p)
			rep.Spent[p], rep.Placed[p] = s.econ.Apply(s.books, p)
			s.metrics.buildRound(p, rep.Spent[p], rep.Placed[p])
		}
	}

	if s.sched != nil {
		r := s.sched.Tick(in.SimDelta)
		rep.FullRecompute = r.Full
		rep.PartialRecompute = r.Partial
		rep.ChangedNodes = len(r.Changed)
		rep.PathBacklog = r.Backlog
		if r.Full {
			s.metrics.fullRecompute()
		}
		if r.Partial {
			s.metrics.partialRecompute(len(r.Changed), r.Backlog)
		}
	}
	return rep
}

// PathUpdated reports whether the cost graph changed during the last
// Step.
func (s *Scene) PathUpdated() bool { return s.sched != nil && s.sched.Updated() }

// CalculatePath finds a route on the cost graph. Before pathfinding is
// initialised every query fails with cost -1.
func (s *Scene) CalculatePath(start, end geom.Vec, digStrength float64) (float64, []geom.Vec) {
	s.metrics.pathQuery()
	if s.sched == nil {
		return -1, []geom.Vec{start, end}
	}
	return s.sched.Graph().CalculatePath(start, end, digStrength)
}

// FullRecompute rebuilds the whole cost graph now and restarts the
// simulated-time timer.
func (s *Scene) FullRecompute() {
	if s.sched == nil {
		return
	}
	s.sched.FullRecompute()
	s.metrics.fullRecompute()
}
