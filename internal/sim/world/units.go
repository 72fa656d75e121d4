package world

import (
	"sync"

	"scenecraft.ai/internal/sim/scene/placed"
)

// Units owns every object a scene hands off at load time. The scene
// calls into it from the tick goroutine; Counts may be read from anywhere.
type Units struct {
	mu        sync.Mutex
	actors    []*placed.Object
	items     []*placed.Object
	particles []*placed.Object
}

func NewUnits() *Units { return &Units{} }

func (u *Units) AddActor(o *placed.Object) {
	u.mu.Lock()
	u.actors = append(u.actors, o)
	u.mu.Unlock()
}

func (u *Units) AddItem(o *placed.Object) {
	u.mu.Lock()
	u.items = append(u.items, o)
	u.mu.Unlock()
}

func (u *Units) AddParticle(o *placed.Object) {
	u.mu.Lock()
	u.particles = append(u.particles, o)
	u.mu.Unlock()
}

// TakeBrain removes and returns the oldest brain actor on team.
func (u *Units) TakeBrain(team int) (*placed.Object, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i, o := range u.actors {
		if o.Team == team && o.IsBrain() {
			u.actors = append(u.actors[:i], u.actors[i+1:]...)
			return o, true
		}
	}
	return nil, false
}

type UnitCounts struct {
	Actors    int `json:"actors"`
	Brains    int `json:"brains"`
	Items     int `json:"items"`
	Particles int `json:"particles"`
}

func (u *Units) Counts() UnitCounts {
	u.mu.Lock()
	defer u.mu.Unlock()
	c := UnitCounts{Actors: len(u.actors), Items: len(u.items), Particles: len(u.particles)}
	for _, o := range u.actors {
		if o.IsBrain() {
			c.Brains++
		}
	}
	return c
}
