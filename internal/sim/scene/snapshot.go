package scene

import (
	"fmt"

	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/encoding"
	"scenecraft.ai/internal/sim/scene/area"
	"scenecraft.ai/internal/sim/scene/economy"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
	"scenecraft.ai/internal/sim/scene/visibility"
)

// TerrainStore is implemented by terrains whose raster can be saved.
type TerrainStore interface {
	Cells() []uint16
	Restore(cells []uint16) error
	Palette() []string
}

// pendingTerrain is a saved raster waiting for the next Load.
type pendingTerrain struct {
	palette []string
	cells   []uint16
}

func (s *Scene) restoreTerrain(p *pendingTerrain) error {
	store, ok := s.terrain.(TerrainStore)
	if !ok {
		return fmt.Errorf("terrain %T cannot restore cells", s.terrain)
	}
	index := map[string]uint16{}
	for i, name := range store.Palette() {
		index[name] = uint16(i)
	}
	remap := make([]uint16, len(p.palette))
	for i, name := range p.palette {
		v, ok := index[name]
		if !ok {
			return fmt.Errorf("saved material %q not in palette", name)
		}
		remap[i] = v
	}
	cells := make([]uint16, len(p.cells))
	for i, c := range p.cells {
		if int(c) >= len(remap) {
			return fmt.Errorf("saved cell %d: palette index %d out of range", i, c)
		}
		cells[i] = remap[c]
	}
	return store.Restore(cells)
}

// ExportSnapshot captures every persisted field of the scene.
func (s *Scene) ExportSnapshot() snapshot.SceneV1 {
	b := s.terrain.Bounds()
	snap := snapshot.SceneV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			SceneID: s.cfg.ID,
			Session: s.session,
			Tick:    s.tick,
		},
		Name: s.cfg.Name,
		Seed: s.cfg.Seed,
		Terrain: snapshot.TerrainV1{
			Width:  int(b.Width),
			Height: int(b.Height),
			WrapX:  b.WrapX,
			WrapY:  b.WrapY,
		},
		TotalInvestment: s.books.TotalInvestment,
	}
	if store, ok := s.terrain.(TerrainStore); ok && s.loaded {
		snap.Terrain.Palette = store.Palette()
		snap.Terrain.Cells = encoding.EncodeRuns(store.Cells())
	} else if s.pending != nil {
		snap.Terrain.Palette = append([]string(nil), s.pending.palette...)
		snap.Terrain.Cells = encoding.EncodeRuns(s.pending.cells)
	}

	for _, p := range s.books.Players {
		pv := snapshot.PlayerV1{
			Active: p.Active,
			Team:   p.Team,
			Budget: p.Budget,
			Ratio:  p.Ratio,
			Tech: snapshot.TechV1{
				NativeModule:    p.Tech.NativeModule,
				NativeCostMult:  p.Tech.NativeCostMult,
				ForeignCostMult: p.Tech.ForeignCostMult,
			},
		}
		if p.Brain != nil {
			bv := objectToV1(p.Brain)
			pv.Brain = &bv
		}
		snap.Players = append(snap.Players, pv)
	}

	for _, a := range s.areas.All() {
		av := snapshot.AreaV1{Name: a.Name}
		for _, box := range a.Boxes {
			av.Boxes = append(av.Boxes, snapshot.BoxV1{X: box.Corner.X, Y: box.Corner.Y, W: box.Width, H: box.Height})
		}
		snap.Areas = append(snap.Areas, av)
	}

	for t := 0; t < roster.MaxTeams; t++ {
		vv := snapshot.VisibilityV1{Team: t, ScanScheduled: s.vis.ScanScheduled(t)}
		d, ok := s.vis.Export(t)
		if ok {
			vv.CellSize = d.CellSize
			vv.Width = d.Width
			vv.Height = d.Height
			if d.Unseen != nil {
				vv.Unseen = encoding.EncodeBits(d.Unseen)
			}
		}
		if !ok && !vv.ScanScheduled {
			continue
		}
		snap.Visibility = append(snap.Visibility, vv)
	}

	snap.OnLoad = objectsToV1(s.books.OnLoad.Items())
	snap.Blueprint = objectsToV1(s.books.Blueprint.Items())
	snap.AIPlan = objectsToV1(s.books.AIPlan.Items())
	snap.Deployments = objectsToV1(s.deployments.Items())
	return snap
}

// ImportSnapshot replaces the scene's state with a saved one. The scene
// must not be loaded yet; the saved terrain raster and visibility layers
// take effect on the next Load.
func (s *Scene) ImportSnapshot(snap snapshot.SceneV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("snapshot version %d, want %d", snap.Header.Version, snapshot.Version)
	}
	if s.loaded {
		return fmt.Errorf("scene %s: import into a loaded scene", s.cfg.ID)
	}
	if len(snap.Players) > roster.MaxPlayers {
		return fmt.Errorf("snapshot has %d players, max %d", len(snap.Players), roster.MaxPlayers)
	}

	var pending *pendingTerrain
	if snap.Terrain.Cells != "" {
		cells, err := encoding.DecodeRuns(snap.Terrain.Cells, snap.Terrain.Width*snap.Terrain.Height)
		if err != nil {
			return fmt.Errorf("terrain cells: %w", err)
		}
		pending = &pendingTerrain{palette: append([]string(nil), snap.Terrain.Palette...), cells: cells}
	}

	onLoad, err := objectsFromV1(snap.OnLoad)
	if err != nil {
		return fmt.Errorf("on_load: %w", err)
	}
	blueprint, err := objectsFromV1(snap.Blueprint)
	if err != nil {
		return fmt.Errorf("blueprint: %w", err)
	}
	aiPlan, err := objectsFromV1(snap.AIPlan)
	if err != nil {
		return fmt.Errorf("ai_plan: %w", err)
	}
	deployments, err := objectsFromV1(snap.Deployments)
	if err != nil {
		return fmt.Errorf("deployments: %w", err)
	}

	var brains [roster.MaxPlayers]*placed.Object
	for i, pv := range snap.Players {
		if pv.Brain == nil {
			continue
		}
		if brains[i], err = objectFromV1(*pv.Brain); err != nil {
			return fmt.Errorf("player %d brain: %w", i, err)
		}
	}

	var layers [roster.MaxTeams]*visibility.LayerData
	var scan [roster.MaxTeams]bool
	for _, vv := range snap.Visibility {
		if !roster.ValidTeam(vv.Team) {
			return fmt.Errorf("visibility team %d out of range", vv.Team)
		}
		scan[vv.Team] = vv.ScanScheduled
		if vv.CellSize == 0 && vv.Unseen == "" {
			continue
		}
		d := visibility.LayerData{CellSize: vv.CellSize, Width: vv.Width, Height: vv.Height}
		if vv.Unseen != "" {
			bits, err := encoding.DecodeBits(vv.Unseen, vv.Width*vv.Height)
			if err != nil {
				return fmt.Errorf("visibility team %d: %w", vv.Team, err)
			}
			d.Unseen = bits
		}
		layers[vv.Team] = &d
	}

	// Everything decoded; from here on nothing fails.
	s.books.Players = economy.NewBooks().Players
	for i, pv := range snap.Players {
		p := &s.books.Players[i]
		p.Active = pv.Active
		p.Team = pv.Team
		p.Budget = pv.Budget
		p.Ratio = pv.Ratio
		p.Tech = placed.Tech{
			NativeModule:    pv.Tech.NativeModule,
			NativeCostMult:  pv.Tech.NativeCostMult,
			ForeignCostMult: pv.Tech.ForeignCostMult,
		}
		p.Brain = brains[i]
	}
	s.books.TotalInvestment = snap.TotalInvestment

	s.areas.Clear()
	for _, av := range snap.Areas {
		a := area.Area{Name: av.Name}
		for _, bv := range av.Boxes {
			a.Boxes = append(a.Boxes, geom.Box{Corner: geom.Vec{X: bv.X, Y: bv.Y}, Width: bv.W, Height: bv.H})
		}
		s.areas.Upsert(a)
	}

	for t := 0; t < roster.MaxTeams; t++ {
		switch d := layers[t]; {
		case d == nil:
			s.vis.Drop(t)
		case d.Unseen == nil:
			_ = s.vis.Schedule(t, d.CellSize)
		default:
			_ = s.vis.Load(t, *d)
		}
		s.vis.SetScanScheduled(t, scan[t])
	}

	s.books.OnLoad = setOf(onLoad)
	s.books.Blueprint = setOf(blueprint)
	s.books.AIPlan = setOf(aiPlan)
	s.deployments = setOf(deployments)

	if snap.Header.Session != "" {
		s.session = snap.Header.Session
	}
	s.tick = snap.Header.Tick
	s.pending = pending
	s.log.Info().
		Uint64("tick", s.tick).
		Int("areas", len(snap.Areas)).
		Int("blueprint", s.books.Blueprint.Len()).
		Msg("snapshot imported")
	return nil
}

// Digest fingerprints the exported state; see snapshot.Digest.
func (s *Scene) Digest() string {
	return snapshot.Digest(s.ExportSnapshot())
}

func setOf(objs []*placed.Object) placed.Set {
	var set placed.Set
	for _, o := range objs {
		set.Add(o)
	}
	return set
}

func objectsToV1(objs []*placed.Object) []snapshot.ObjectV1 {
	if len(objs) == 0 {
		return nil
	}
	out := make([]snapshot.ObjectV1, 0, len(objs))
	for _, o := range objs {
		out = append(out, objectToV1(o))
	}
	return out
}

func objectToV1(o *placed.Object) snapshot.ObjectV1 {
	v := snapshot.ObjectV1{
		Kind:           o.Kind.String(),
		Preset:         o.Preset,
		Class:          o.Class,
		Module:         o.Module,
		Groups:         append([]string(nil), o.Groups...),
		X:              o.Pos.X,
		Y:              o.Pos.Y,
		Team:           o.Team,
		PlacedByPlayer: o.PlacedByPlayer,
		HFlipped:       o.HFlipped,
		Rotation:       o.Rotation,
		Health:         o.Health,
		GoldValue:      o.GoldValue,
		Door:           o.Door,
		Inventory:      objectsToV1(o.Inventory),
		DeploymentID:   o.DeploymentID,
	}
	if fp := o.Footprint; fp != nil {
		v.Footprint = &snapshot.FootprintV1{
			OffsetX:  fp.OffsetX,
			OffsetY:  fp.OffsetY,
			Width:    fp.Width,
			Height:   fp.Height,
			Material: fp.Material,
		}
	}
	if d := o.Deployment; d != nil {
		v.Deployment = &snapshot.DeploymentV1{ID: d.ID, SpawnRadius: d.SpawnRadius, WalkRadius: d.WalkRadius}
	}
	return v
}

func objectsFromV1(vs []snapshot.ObjectV1) ([]*placed.Object, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]*placed.Object, 0, len(vs))
	for _, v := range vs {
		o, err := objectFromV1(v)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func objectFromV1(v snapshot.ObjectV1) (*placed.Object, error) {
	kind, ok := placed.ParseKind(v.Kind)
	if !ok {
		return nil, fmt.Errorf("%s: unknown kind %q", v.Preset, v.Kind)
	}
	inv, err := objectsFromV1(v.Inventory)
	if err != nil {
		return nil, err
	}
	o := &placed.Object{
		Kind:           kind,
		Preset:         v.Preset,
		Class:          v.Class,
		Module:         v.Module,
		Groups:         append([]string(nil), v.Groups...),
		Pos:            geom.Vec{X: v.X, Y: v.Y},
		Team:           v.Team,
		PlacedByPlayer: v.PlacedByPlayer,
		HFlipped:       v.HFlipped,
		Rotation:       v.Rotation,
		Health:         v.Health,
		GoldValue:      v.GoldValue,
		Door:           v.Door,
		Inventory:      inv,
		DeploymentID:   v.DeploymentID,
	}
	if fp := v.Footprint; fp != nil {
		o.Footprint = &catalogs.Footprint{
			OffsetX:  fp.OffsetX,
			OffsetY:  fp.OffsetY,
			Width:    fp.Width,
			Height:   fp.Height,
			Material: fp.Material,
		}
	}
	if d := v.Deployment; d != nil {
		o.Deployment = &placed.Deployment{ID: d.ID, SpawnRadius: d.SpawnRadius, WalkRadius: d.WalkRadius}
	}
	if kind == placed.KindDeployment && o.Deployment == nil {
		return nil, fmt.Errorf("%s: deployment without deployment data", v.Preset)
	}
	return o, nil
}
