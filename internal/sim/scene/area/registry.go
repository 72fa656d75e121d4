package area

import (
	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/scene/fault"
	"scenecraft.ai/internal/sim/scene/geom"
)

// Registry is the scene's ordered set of uniquely named areas.
type Registry struct {
	log    zerolog.Logger
	bounds geom.Bounds
	areas  []Area
	index  map[string]int
}

func NewRegistry(bounds geom.Bounds, log zerolog.Logger) *Registry {
	return &Registry{
		log:    log.With().Str("component", "areas").Logger(),
		bounds: bounds,
		index:  map[string]int{},
	}
}

func (r *Registry) Bounds() geom.Bounds     { return r.bounds }
func (r *Registry) SetBounds(b geom.Bounds) { r.bounds = b }
func (r *Registry) Len() int                { return len(r.areas) }

// Upsert stores a deep copy of a, replacing any area with the same name in
// place.
func (r *Registry) Upsert(a Area) {
	c := a.Clone()
	if i, ok := r.index[a.Name]; ok {
		r.areas[i] = c
		return
	}
	r.index[a.Name] = len(r.areas)
	r.areas = append(r.areas, c)
}

func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Get returns the live area. Mutations through the pointer are visible to
// later queries.
func (r *Registry) Get(name string) (*Area, error) {
	i, ok := r.index[name]
	if !ok {
		return nil, fault.Miss(r.log, "area", name)
	}
	return &r.areas[i], nil
}

func (r *Registry) Remove(name string) bool {
	i, ok := r.index[name]
	if !ok {
		_ = fault.Miss(r.log, "area", name)
		return false
	}
	r.areas = append(r.areas[:i], r.areas[i+1:]...)
	delete(r.index, name)
	for j := i; j < len(r.areas); j++ {
		r.index[r.areas[j].Name] = j
	}
	return true
}

// PointInside is false for unknown names.
func (r *Registry) PointInside(name string, p geom.Vec) bool {
	a, err := r.Get(name)
	if err != nil {
		return false
	}
	return a.IsInside(r.bounds, p)
}

// MoveCoordinateInside moves p onto the named area along one axis. Unknown
// names leave p untouched.
func (r *Registry) MoveCoordinateInside(name string, p geom.Vec, axis geom.Axis, direction int) (geom.Vec, bool) {
	a, err := r.Get(name)
	if err != nil {
		return p, false
	}
	return a.MoveCoordinateInside(r.bounds, p, axis, direction)
}

// BoxContaining searches areas in insertion order and returns the first
// stored box covering p together with its area name.
func (r *Registry) BoxContaining(p geom.Vec) (geom.Box, string, bool) {
	for _, a := range r.areas {
		if b, ok := a.BoxContaining(r.bounds, p); ok {
			return b, a.Name, true
		}
	}
	return geom.Box{}, "", false
}

func (r *Registry) RemoveBoxContaining(p geom.Vec) (geom.Box, string, bool) {
	for i := range r.areas {
		if b, ok := r.areas[i].RemoveBoxContaining(r.bounds, p); ok {
			return b, r.areas[i].Name, true
		}
	}
	return geom.Box{}, "", false
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.areas))
	for _, a := range r.areas {
		out = append(out, a.Name)
	}
	return out
}

// All returns deep copies in insertion order.
func (r *Registry) All() []Area {
	out := make([]Area, 0, len(r.areas))
	for _, a := range r.areas {
		out = append(out, a.Clone())
	}
	return out
}

func (r *Registry) Clear() {
	r.areas = nil
	r.index = map[string]int{}
}
