// Package placed models the scene's placeable objects as one tagged type
// and the single-owner ordered sets that hold them.
package placed

import (
	"fmt"
	"slices"

	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/roster"
)

// BrainGroup marks objects that act as a player's resident brain.
const BrainGroup = "Brains"

type Kind uint8

const (
	KindActor Kind = iota + 1
	KindItem
	KindParticle
	KindTerrainObject
	KindDeployment
)

func (k Kind) String() string {
	switch k {
	case KindActor:
		return "actor"
	case KindItem:
		return "item"
	case KindParticle:
		return "particle"
	case KindTerrainObject:
		return "terrain_object"
	case KindDeployment:
		return "deployment"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := KindActor; k <= KindDeployment; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func kindFromCatalog(k string) (Kind, bool) {
	switch k {
	case catalogs.KindActor:
		return KindActor, true
	case catalogs.KindItem:
		return KindItem, true
	case catalogs.KindParticle:
		return KindParticle, true
	case catalogs.KindTerrainObject:
		return KindTerrainObject, true
	}
	return 0, false
}

// Deployment is the extra state carried by KindDeployment objects. The
// object's Preset names the loadout it spawns.
type Deployment struct {
	ID          uint32  `json:"id"`
	SpawnRadius float64 `json:"spawn_radius"`
	WalkRadius  float64 `json:"walk_radius"`
}

// Object is any placeable scene thing. Kind is fixed at construction and
// decides which of the optional fields are meaningful.
type Object struct {
	Kind           Kind
	Preset         string
	Class          string
	Module         string
	Groups         []string
	Pos            geom.Vec
	Team           int
	PlacedByPlayer int
	HFlipped       bool
	Rotation       float64
	Health         float64
	GoldValue      float64
	Door           bool

	// Actors only.
	Inventory    []*Object
	DeploymentID uint32

	// Terrain objects only.
	Footprint *catalogs.Footprint

	// Deployments only.
	Deployment *Deployment
}

// Templates resolves catalog presets and loadouts.
type Templates interface {
	Preset(name string) (catalogs.PresetDef, bool)
	Loadout(name string) (catalogs.LoadoutDef, bool)
}

// FromPreset instantiates a catalog preset at pos.
func FromPreset(tmpl Templates, name string, pos geom.Vec) (*Object, error) {
	def, ok := tmpl.Preset(name)
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	kind, ok := kindFromCatalog(def.Kind)
	if !ok {
		return nil, fmt.Errorf("preset %q: unknown kind %q", name, def.Kind)
	}
	o := &Object{
		Kind:           kind,
		Preset:         def.Name,
		Class:          def.Class,
		Module:         def.Module,
		Groups:         slices.Clone(def.Groups),
		Pos:            pos,
		Team:           roster.NoTeam,
		PlacedByPlayer: roster.NoPlayer,
		Health:         def.Health,
		GoldValue:      def.GoldValue,
		Door:           def.Door,
	}
	if def.Footprint != nil {
		fp := *def.Footprint
		o.Footprint = &fp
	}
	for _, inv := range def.Inventory {
		item, err := FromPreset(tmpl, inv, pos)
		if err != nil {
			return nil, fmt.Errorf("preset %q inventory: %w", name, err)
		}
		o.Inventory = append(o.Inventory, item)
	}
	return o, nil
}

// NewDeployment builds a placement intent for the named loadout.
func NewDeployment(tmpl Templates, loadout string, pos geom.Vec, spawnRadius, walkRadius float64) (*Object, error) {
	def, ok := tmpl.Loadout(loadout)
	if !ok {
		return nil, fmt.Errorf("unknown loadout %q", loadout)
	}
	return &Object{
		Kind:           KindDeployment,
		Preset:         def.Name,
		Class:          "Deployment",
		Groups:         slices.Clone(def.Groups),
		Pos:            pos,
		Team:           roster.NoTeam,
		PlacedByPlayer: roster.NoPlayer,
		Deployment:     &Deployment{SpawnRadius: spawnRadius, WalkRadius: walkRadius},
	}, nil
}

func (o *Object) InGroup(g string) bool { return slices.Contains(o.Groups, g) }

func (o *Object) IsBrain() bool { return o.InGroup(BrainGroup) }

func (o *Object) IsDeployment() bool { return o.Kind == KindDeployment && o.Deployment != nil }

// FootprintBox is the terrain object's stamped rectangle in scene space.
func (o *Object) FootprintBox() (geom.Box, bool) {
	if o.Footprint == nil {
		return geom.Box{}, false
	}
	fp := o.Footprint
	return geom.NewBox(o.Pos.X+fp.OffsetX, o.Pos.Y+fp.OffsetY, fp.Width, fp.Height), true
}

// Clone deep-copies the object, keeping any deployment ID.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	c.Groups = slices.Clone(o.Groups)
	if o.Inventory != nil {
		c.Inventory = make([]*Object, len(o.Inventory))
		for i, inv := range o.Inventory {
			c.Inventory[i] = inv.Clone()
		}
	}
	if o.Footprint != nil {
		fp := *o.Footprint
		c.Footprint = &fp
	}
	if o.Deployment != nil {
		d := *o.Deployment
		c.Deployment = &d
	}
	return &c
}

// SetTeam sets the team on the object and everything it carries.
func (o *Object) SetTeam(team int) {
	o.Team = team
	for _, inv := range o.Inventory {
		inv.SetTeam(team)
	}
}
