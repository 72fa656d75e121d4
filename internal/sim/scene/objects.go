package scene

import (
	"math"

	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
)

// pickRadius is the grab distance for objects without a footprint.
const pickRadius = 12

// RemoveAllPlacedActors drops every actor from the three placed sets
// except those on exceptTeam. NoTeam removes them all.
func (s *Scene) RemoveAllPlacedActors(exceptTeam int) int {
	n := 0
	for _, kind := range []PlacedKind{PlacedOnLoad, PlacedBlueprint, PlacedAIPlan} {
		n += s.Placed(kind).RemoveIf(func(o *placed.Object) bool {
			return o.Kind == placed.KindActor && (exceptTeam == roster.NoTeam || o.Team != exceptTeam)
		})
	}
	return n
}

// SetOwnerOfAllDoors hands every door in the OnLoad set to team and
// player.
func (s *Scene) SetOwnerOfAllDoors(team, player int) int {
	n := 0
	for _, o := range s.books.OnLoad.Items() {
		if o.Kind != placed.KindActor || !o.Door {
			continue
		}
		o.SetTeam(team)
		o.PlacedByPlayer = player
		n++
	}
	return n
}

// PickPlacedObject returns the topmost object in the set under p and its
// index, or nil and -1.
func (s *Scene) PickPlacedObject(kind PlacedKind, p geom.Vec) (*placed.Object, int) {
	set := s.Placed(kind)
	if set == nil {
		return nil, -1
	}
	bounds := s.terrain.Bounds()
	p = bounds.WrapPosition(p)
	for i := set.Len() - 1; i >= 0; i-- {
		o := set.At(i)
		if box, ok := o.FootprintBox(); ok {
			for _, b := range bounds.WrapBox(box) {
				if b.Contains(p) {
					return o, i
				}
			}
			continue
		}
		if bounds.ShortestDistance(o.Pos, p).Magnitude() <= pickRadius {
			return o, i
		}
	}
	return nil, -1
}

// PickPlacedActorInRange returns the actor closest to p within dist, and
// its index in the set.
func (s *Scene) PickPlacedActorInRange(kind PlacedKind, p geom.Vec, dist float64) (*placed.Object, int) {
	set := s.Placed(kind)
	if set == nil {
		return nil, -1
	}
	bounds := s.terrain.Bounds()
	best, bestIdx, bestDist := (*placed.Object)(nil), -1, math.Inf(1)
	for i, o := range set.Items() {
		if o.Kind != placed.KindActor {
			continue
		}
		d := bounds.ShortestDistance(o.Pos, p).Magnitude()
		if d <= dist && d < bestDist {
			best, bestIdx, bestDist = o, i, d
		}
	}
	return best, bestIdx
}
