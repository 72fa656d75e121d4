package scene

import (
	"scenecraft.ai/internal/sim/scene/economy"
	"scenecraft.ai/internal/sim/scene/fault"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
)

// PlayerSetup configures one build slot.
type PlayerSetup struct {
	Team   int
	Budget float64
	Ratio  float64
	Tech   placed.Tech
}

func (s *Scene) player(p int) (*economy.Player, bool) {
	if !roster.ValidPlayer(p) {
		_ = fault.Invariant(s.log, "player %d out of range", p)
		return nil, false
	}
	return &s.books.Players[p], true
}

// SetupPlayer activates player p.
func (s *Scene) SetupPlayer(p int, setup PlayerSetup) {
	pl, ok := s.player(p)
	if !ok {
		return
	}
	pl.Active = true
	pl.Team = setup.Team
	pl.Budget = setup.Budget
	pl.Ratio = setup.Ratio
	pl.Tech = setup.Tech
}

func (s *Scene) PlayerActive(p int) bool {
	return roster.ValidPlayer(p) && s.books.Players[p].Active
}

func (s *Scene) TeamOfPlayer(p int) int { return s.books.TeamOf(p) }

func (s *Scene) BuildBudget(p int) float64 {
	if pl, ok := s.player(p); ok {
		return pl.Budget
	}
	return 0
}

func (s *Scene) SetBuildBudget(p int, v float64) {
	if pl, ok := s.player(p); ok {
		pl.Budget = v
	}
}

func (s *Scene) BuildBudgetRatio(p int) float64 {
	if pl, ok := s.player(p); ok {
		return pl.Ratio
	}
	return 0
}

func (s *Scene) SetBuildBudgetRatio(p int, v float64) {
	if pl, ok := s.player(p); ok {
		pl.Ratio = v
	}
}

// PreviewBuild quotes what player p could fund now.
func (s *Scene) PreviewBuild(p int, includeAIPlan bool) economy.Quote {
	return s.econ.Preview(s.books, p, includeAIPlan)
}

// ApplyBuildBudget funds player p's Blueprint queue.
func (s *Scene) ApplyBuildBudget(p int) (float64, int) {
	spent, n := s.econ.Apply(s.books, p)
	s.metrics.buildRound(p, spent, n)
	return spent, n
}

// ApplyAIPlan moves player p's affordable AI-plan prefix into the
// Blueprint queue.
func (s *Scene) ApplyAIPlan(p int) (float64, int) {
	return s.econ.ApplyAIPlan(s.books, p)
}

// ResidentBrain borrows player p's resident brain.
func (s *Scene) ResidentBrain(p int) *placed.Object {
	if pl, ok := s.player(p); ok {
		return pl.Brain
	}
	return nil
}

// SetResidentBrain transfers o in as player p's resident brain,
// replacing any previous one.
func (s *Scene) SetResidentBrain(p int, o *placed.Object) {
	if pl, ok := s.player(p); ok {
		pl.Brain = o
	}
}

// PlaceResidentBrain hands player p's brain to the World. It reports
// whether there was one.
func (s *Scene) PlaceResidentBrain(p int) bool {
	pl, ok := s.player(p)
	if !ok || pl.Brain == nil || s.world == nil {
		return false
	}
	brain := pl.Brain
	pl.Brain = nil
	brain.SetTeam(pl.Team)
	s.world.AddActor(brain)
	return true
}

// PlaceResidentBrains places every active player's brain and returns the
// count placed.
func (s *Scene) PlaceResidentBrains() int {
	n := 0
	for p := range s.books.Players {
		if s.books.Players[p].Active && s.PlaceResidentBrain(p) {
			n++
		}
	}
	return n
}

// RetrieveResidentBrains takes brains back from a World that supports it,
// for every active player currently without one.
func (s *Scene) RetrieveResidentBrains() int {
	keeper, ok := s.world.(BrainKeeper)
	if !ok {
		return 0
	}
	n := 0
	for p := range s.books.Players {
		pl := &s.books.Players[p]
		if !pl.Active || pl.Brain != nil {
			continue
		}
		if b, ok := keeper.TakeBrain(pl.Team); ok {
			pl.Brain = b
			n++
		}
	}
	return n
}
