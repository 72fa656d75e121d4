// Package economy allocates per-player build budgets over the ordered
// Blueprint and AI-plan queues.
package economy

import (
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
)

// Player is one build slot.
type Player struct {
	Active bool
	Team   int
	Budget float64
	Ratio  float64
	Tech   placed.Tech
	// Brain is the resident brain, owned here until handed to the World.
	Brain *placed.Object
}

// Books is the mutable state the engine works on. The Scene owns it.
type Books struct {
	Players         [roster.MaxPlayers]Player
	TotalInvestment float64

	OnLoad    placed.Set
	Blueprint placed.Set
	AIPlan    placed.Set
}

// NewBooks returns books with every player inactive and teamless.
func NewBooks() *Books {
	b := &Books{}
	for i := range b.Players {
		b.Players[i].Team = roster.NoTeam
	}
	return b
}

// DeploymentIDInUse reports whether any queued or placed deployment
// already carries id.
func (b *Books) DeploymentIDInUse(id uint32) bool {
	for _, s := range []*placed.Set{&b.OnLoad, &b.Blueprint, &b.AIPlan} {
		for _, o := range s.Items() {
			if o.IsDeployment() && o.Deployment.ID == id {
				return true
			}
		}
	}
	return false
}

// TeamOf returns the team of player, or NoTeam when out of range.
func (b *Books) TeamOf(player int) int {
	if !roster.ValidPlayer(player) {
		return roster.NoTeam
	}
	return b.Players[player].Team
}
