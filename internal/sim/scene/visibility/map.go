package visibility

import (
	"fmt"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/scene/fault"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/roster"
)

type State int

const (
	NoLayer State = iota
	ProceduralPending
	LoadedFromData
	Active
)

func (s State) String() string {
	switch s {
	case ProceduralPending:
		return "procedural_pending"
	case LoadedFromData:
		return "loaded_from_data"
	case Active:
		return "active"
	default:
		return "no_layer"
	}
}

// LayerData is the persisted form of one team's layer.
type LayerData struct {
	CellSize int    `json:"cell_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Unseen   []bool `json:"unseen,omitempty"`
}

// Orphan erosion constants. A still-hidden cell is revealed once the
// weighted count of hidden neighbours drops to orphanThreshold or below.
const (
	cardinalSupport = 1.0
	diagonalSupport = 0.5
	orphanThreshold = 2.5
)

type teamState struct {
	state    State
	cellSize int
	data     LayerData
	layer    *Layer

	seen    []Cell
	cleaned []Cell
	scan    bool
}

// Map holds every team's layer. It is mutated only from the scene's tick
// goroutine.
type Map struct {
	log      zerolog.Logger
	bounds   geom.Bounds
	maxCells int
	teams    [roster.MaxTeams]teamState
}

// NewMap creates an empty map. maxCells caps a single layer's allocation;
// zero means no cap.
func NewMap(bounds geom.Bounds, maxCells int, log zerolog.Logger) *Map {
	return &Map{
		log:      log.With().Str("component", "visibility").Logger(),
		bounds:   bounds,
		maxCells: maxCells,
	}
}

func (m *Map) team(t int) (*teamState, bool) {
	if !roster.ValidTeam(t) {
		_ = fault.Invariant(m.log, "visibility team %d out of range", t)
		return nil, false
	}
	return &m.teams[t], true
}

func (m *Map) State(t int) State {
	if !roster.ValidTeam(t) {
		return NoLayer
	}
	return m.teams[t].state
}

// Schedule requests a procedurally sized, fully unseen layer.
func (m *Map) Schedule(t, cellSize int) error {
	ts, ok := m.team(t)
	if !ok {
		return fmt.Errorf("schedule team %d: %w", t, fault.ErrInvariant)
	}
	if cellSize <= 0 {
		return fmt.Errorf("team %d: cell size %d must be positive", t, cellSize)
	}
	*ts = teamState{state: ProceduralPending, cellSize: cellSize, scan: ts.scan}
	return nil
}

// Load stages a saved layer for activation.
func (m *Map) Load(t int, data LayerData) error {
	ts, ok := m.team(t)
	if !ok {
		return fmt.Errorf("load team %d: %w", t, fault.ErrInvariant)
	}
	data.Unseen = append([]bool(nil), data.Unseen...)
	*ts = teamState{state: LoadedFromData, data: data, scan: ts.scan}
	return nil
}

// Drop removes a team's layer entirely.
func (m *Map) Drop(t int) {
	if ts, ok := m.team(t); ok {
		*ts = teamState{}
	}
}

// Activate allocates every pending layer. Either every layer comes up or,
// on the first failure, none of them change.
func (m *Map) Activate() error {
	return m.rebind(m.bounds, false, true)
}

// ActivateWithin is SetBounds followed by Activate as one step: nothing
// changes unless every resized and pending layer can be allocated.
func (m *Map) ActivateWithin(b geom.Bounds) error {
	return m.rebind(b, true, true)
}

func (m *Map) allocate(t, cellSize int, b geom.Bounds) (*Layer, error) {
	w := int(b.Width) / cellSize
	h := int(b.Height) / cellSize
	if err := m.checkSize(t, w, h); err != nil {
		return nil, err
	}
	return newLayer(w, h, cellSize, b), nil
}

func (m *Map) restore(t int, d LayerData, b geom.Bounds) (*Layer, error) {
	if err := m.checkSize(t, d.Width, d.Height); err != nil {
		return nil, err
	}
	if len(d.Unseen) != d.Width*d.Height {
		return nil, fault.Allocation("team %d layer data has %d cells, want %dx%d", t, len(d.Unseen), d.Width, d.Height)
	}
	cs := d.CellSize
	if cs <= 0 {
		cs = int(b.Width) / d.Width
	}
	l := newLayer(d.Width, d.Height, cs, b)
	copy(l.unseen, d.Unseen)
	return l, nil
}

func (m *Map) checkSize(t, w, h int) error {
	if w < 1 || h < 1 {
		return fault.Allocation("team %d layer %dx%d is empty", t, w, h)
	}
	if m.maxCells > 0 && w*h > m.maxCells {
		return fault.Allocation("team %d layer %dx%d exceeds %d cells", t, w, h, m.maxCells)
	}
	return nil
}

func (m *Map) Bounds() geom.Bounds { return m.bounds }

// SetBounds re-derives every active grid from the new terrain size. A
// grid whose size changes is rebuilt fully unseen. On failure no grid and
// not the bounds change.
func (m *Map) SetBounds(b geom.Bounds) error {
	return m.rebind(b, true, false)
}

// rebind builds every new layer first and swaps them in only when all
// allocations succeeded.
func (m *Map) rebind(b geom.Bounds, resize, activate bool) error {
	var staged [roster.MaxTeams]*Layer
	for t := range m.teams {
		ts := &m.teams[t]
		var (
			l   *Layer
			err error
		)
		switch {
		case ts.state == Active && resize:
			w := int(b.Width) / ts.cellSize
			h := int(b.Height) / ts.cellSize
			if w == ts.layer.Width && h == ts.layer.Height {
				continue
			}
			l, err = m.allocate(t, ts.cellSize, b)
		case ts.state == ProceduralPending && activate:
			l, err = m.allocate(t, ts.cellSize, b)
		case ts.state == LoadedFromData && activate:
			l, err = m.restore(t, ts.data, b)
		default:
			continue
		}
		if err != nil {
			return err
		}
		staged[t] = l
	}

	m.bounds = b
	for t := range m.teams {
		ts := &m.teams[t]
		l := staged[t]
		if l == nil {
			if ts.state == Active && resize {
				ts.layer.Scale = geom.Vec{X: b.Width / float64(ts.layer.Width), Y: b.Height / float64(ts.layer.Height)}
				ts.layer.WrapX, ts.layer.WrapY = b.WrapX, b.WrapY
			}
			continue
		}
		if ts.state == LoadedFromData {
			ts.cellSize = l.CellSize
			ts.data = LayerData{}
		}
		ts.layer = l
		ts.state = Active
		ts.seen = ts.seen[:0]
		ts.cleaned = ts.cleaned[:0]
		m.log.Debug().Int("team", t).Int("w", l.Width).Int("h", l.Height).Msg("layer active")
	}
	return nil
}

// Layer returns the team's active layer for reading.
func (m *Map) Layer(t int) (*Layer, bool) {
	if !roster.ValidTeam(t) || m.teams[t].state != Active {
		return nil, false
	}
	return m.teams[t].layer, true
}

func (m *Map) CellSize(t int) int {
	if !roster.ValidTeam(t) {
		return 0
	}
	return m.teams[t].cellSize
}

// IsUnseen reports whether the pixel is hidden from team t. Teams without
// an active layer see everything.
func (m *Map) IsUnseen(t int, p geom.Vec) bool {
	l, ok := m.Layer(t)
	if !ok {
		return false
	}
	return l.Unseen(l.CellFor(m.bounds, p))
}

func (m *Map) ScanScheduled(t int) bool {
	return roster.ValidTeam(t) && m.teams[t].scan
}

func (m *Map) SetScanScheduled(t int, v bool) {
	if ts, ok := m.team(t); ok {
		ts.scan = v
	}
}

// RevealBox clears the cells under rect for team t only.
func (m *Map) RevealBox(t int, rect geom.Box) int {
	return m.fillBox(t, rect, false, 0)
}

// ConcealBox marks the cells under rect unseen for team t only.
func (m *Map) ConcealBox(t int, rect geom.Box) int {
	return m.fillBox(t, rect, true, 0)
}

func (m *Map) fillBox(t int, rect geom.Box, unseen bool, pad int) int {
	l, ok := m.Layer(t)
	if !ok {
		return 0
	}
	x0, y0, x1, y1 := l.cellRange(rect)
	return l.fill(x0-pad, y0-pad, x1+pad, y1+pad, unseen)
}

// RevealFootprint reveals rect, padded one cell outward, to the owning
// team and blinds every other active team to the same footprint.
func (m *Map) RevealFootprint(owner int, rect geom.Box) {
	if _, ok := m.team(owner); !ok {
		return
	}
	m.fillBox(owner, rect, false, 1)
	for t := range m.teams {
		if t == owner {
			continue
		}
		m.fillBox(t, rect, true, 1)
	}
}

// MarkSeen queues the cell under p for the team's next AdvanceSeenPixels.
func (m *Map) MarkSeen(t int, p geom.Vec) {
	l, ok := m.Layer(t)
	if !ok {
		return
	}
	c, in := l.wrap(l.CellFor(m.bounds, p))
	if !in {
		return
	}
	m.teams[t].seen = append(m.teams[t].seen, c)
}

// Pending returns a copy of the team's newly seen list.
func (m *Map) Pending(t int) []Cell {
	if !roster.ValidTeam(t) {
		return nil
	}
	return append([]Cell(nil), m.teams[t].seen...)
}

// AdvanceSeenPixels reveals this frame's seen cells and erodes one ring of
// orphans around them. Cells cleaned now become next frame's seen list, so
// the cascade spreads by at most one ring per call. Returns the number of
// cells cleaned.
func (m *Map) AdvanceSeenPixels(t int) int {
	l, ok := m.Layer(t)
	if !ok {
		return 0
	}
	ts := &m.teams[t]
	for _, c := range ts.seen {
		l.set(c, false)
		for _, d := range neighbourDirs {
			o := d.Offset()
			m.cleanOrphan(t, l, Cell{X: c.X + o.X, Y: c.Y + o.Y}, d.Opposite())
		}
	}
	n := len(ts.cleaned)
	ts.seen, ts.cleaned = ts.cleaned, ts.seen[:0]
	return n
}

// CleanOrphanPixel reveals c when its hidden neighbours, excluding the one
// in direction from, weigh orphanThreshold or less. Cardinal neighbours
// weigh cardinalSupport and diagonals diagonalSupport.
func (m *Map) CleanOrphanPixel(t int, c Cell, from Direction) bool {
	l, ok := m.Layer(t)
	if !ok {
		return false
	}
	return m.cleanOrphan(t, l, c, from)
}

func (m *Map) cleanOrphan(t int, l *Layer, c Cell, from Direction) bool {
	c, in := l.wrap(c)
	if !in || !l.Unseen(c) {
		return false
	}
	support := 0.0
	for _, d := range neighbourDirs {
		if d == from {
			continue
		}
		o := d.Offset()
		if !l.Unseen(Cell{X: c.X + o.X, Y: c.Y + o.Y}) {
			continue
		}
		if d.diagonal() {
			support += diagonalSupport
		} else {
			support += cardinalSupport
		}
	}
	if support > orphanThreshold {
		return false
	}
	l.set(c, false)
	m.teams[t].cleaned = append(m.teams[t].cleaned, c)
	return true
}

// Export returns the persisted form of team t. Pending procedural layers
// export their cell size only.
func (m *Map) Export(t int) (LayerData, bool) {
	if !roster.ValidTeam(t) {
		return LayerData{}, false
	}
	ts := &m.teams[t]
	switch ts.state {
	case ProceduralPending:
		return LayerData{CellSize: ts.cellSize}, true
	case LoadedFromData:
		d := ts.data
		d.Unseen = append([]bool(nil), d.Unseen...)
		return d, true
	case Active:
		return LayerData{
			CellSize: ts.layer.CellSize,
			Width:    ts.layer.Width,
			Height:   ts.layer.Height,
			Unseen:   ts.layer.Cells(),
		}, true
	}
	return LayerData{}, false
}
