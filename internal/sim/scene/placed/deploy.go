package placed

import (
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/simrand"
)

// MaxDeploymentID is the upper bound of generated deployment IDs.
const MaxDeploymentID = 0xFFFF

// Tech is a player's cost context.
type Tech struct {
	NativeModule    string  `json:"native_module,omitempty" yaml:"native_module"`
	NativeCostMult  float64 `json:"native_cost_mult,omitempty" yaml:"native_cost_mult"`
	ForeignCostMult float64 `json:"foreign_cost_mult,omitempty" yaml:"foreign_cost_mult"`
}

func (t Tech) mult(module string) float64 {
	m := t.ForeignCostMult
	if t.NativeModule != "" && module == t.NativeModule {
		m = t.NativeCostMult
	}
	if m == 0 {
		return 1
	}
	return m
}

// Pricer prices objects and synthesizes what a deployment would spawn.
type Pricer struct {
	Templates Templates
}

// Price is the object's own gold value under tech. Deployments are priced
// by what they spawn.
func (p Pricer) Price(o *Object, tech Tech) float64 {
	if o == nil {
		return 0
	}
	if o.IsDeployment() {
		return p.TotalValue(o, tech)
	}
	return o.GoldValue * tech.mult(o.Module)
}

// TotalValue is the price plus everything carried.
func (p Pricer) TotalValue(o *Object, tech Tech) float64 {
	if o == nil {
		return 0
	}
	if o.IsDeployment() {
		if spawn := p.spawn(o, o.PlacedByPlayer); spawn != nil {
			return p.TotalValue(spawn, tech)
		}
		return 0
	}
	v := o.GoldValue * tech.mult(o.Module)
	for _, inv := range o.Inventory {
		v += p.TotalValue(inv, tech)
	}
	return v
}

// spawn builds the deployment's spawn: the first actor of the cargo
// carrying the remaining non-actor cargo, or the delivery craft carrying
// all cargo, or the first cargo item.
func (p Pricer) spawn(d *Object, player int) *Object {
	if !d.IsDeployment() || p.Templates == nil {
		return nil
	}
	lo, ok := p.Templates.Loadout(d.Preset)
	if !ok {
		return nil
	}
	var cargo []*Object
	for _, name := range lo.Cargo {
		o, err := FromPreset(p.Templates, name, d.Pos)
		if err != nil {
			continue
		}
		cargo = append(cargo, o)
	}

	var out *Object
	for i, o := range cargo {
		if o.Kind != KindActor {
			continue
		}
		out = o
		for j, rest := range cargo {
			if j != i && rest.Kind != KindActor {
				out.Inventory = append(out.Inventory, rest)
			}
		}
		break
	}
	if out == nil && lo.DeliveryCraft != "" {
		craft, err := FromPreset(p.Templates, lo.DeliveryCraft, d.Pos)
		if err == nil {
			craft.Inventory = append(craft.Inventory, cargo...)
			out = craft
		}
	}
	if out == nil && len(cargo) > 0 {
		out = cargo[0]
	}
	if out == nil {
		return nil
	}
	out.Pos = d.Pos
	out.HFlipped = d.HFlipped
	out.SetTeam(d.Team)
	out.PlacedByPlayer = player
	out.Groups = append(out.Groups, d.Groups...)
	return out
}

// CreateDeployedActor returns the actor the deployment spawns and its
// total cost, or nil when the loadout yields no actor.
func (p Pricer) CreateDeployedActor(d *Object, player int, tech Tech) (*Object, float64) {
	o := p.spawn(d, player)
	if o == nil || o.Kind != KindActor {
		return nil, 0
	}
	return o, p.TotalValue(o, tech)
}

// CreateDeployedObject returns the non-actor object the deployment spawns
// and its cost, or nil.
func (p Pricer) CreateDeployedObject(d *Object, player int, tech Tech) (*Object, float64) {
	o := p.spawn(d, player)
	if o == nil || o.Kind == KindActor {
		return nil, 0
	}
	return o, p.TotalValue(o, tech)
}

// Blocked reports whether the deployment's spawn would be redundant:
// an actor it spawned earlier is still within its walk radius, or an
// object of team with the spawn's preset sits within its spawn radius.
func (p Pricer) Blocked(d *Object, team int, bounds geom.Bounds, existing []*Object) bool {
	if !d.IsDeployment() {
		return false
	}
	dep := d.Deployment
	var spawnPreset, spawnClass string
	if s := p.spawn(d, d.PlacedByPlayer); s != nil {
		spawnPreset, spawnClass = s.Preset, s.Class
	}
	for _, o := range existing {
		if o == nil || o == d {
			continue
		}
		dist := bounds.ShortestDistance(d.Pos, o.Pos).Magnitude()
		if dep.ID != 0 && o.Kind == KindActor && o.DeploymentID == dep.ID && dist <= dep.WalkRadius {
			return true
		}
		if spawnPreset != "" && o.Team == team && o.Preset == spawnPreset && o.Class == spawnClass && dist <= dep.SpawnRadius {
			return true
		}
	}
	return false
}

// NewID draws a deployment ID in [1, MaxDeploymentID], re-rolling any
// value for which used reports true.
func NewID(rng simrand.Random, used func(uint32) bool) uint32 {
	var id uint32
	for tries := 0; tries < 64; tries++ {
		id = uint32(rng.RandomInt(1, MaxDeploymentID))
		if used == nil || !used(id) {
			return id
		}
	}
	return id
}
