// Package pathing keeps a coarse movement-cost graph over the terrain and
// answers path queries on it.
package pathing

import (
	"fmt"
	"math"
	"sort"

	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/logic/mathx"
)

// DefaultNodeSize is the node spacing in pixels.
const DefaultNodeSize = 20

const (
	radiationMult     = 0.2
	extraUpCost       = 3.0
	diagonalStep      = 1.4
	digPenalty        = 1000.0
	costChangeEpsilon = 0.01
)

// Direction indexes a node's eight neighbours, clockwise from up.
type Direction int

const (
	Up Direction = iota
	UpRight
	Right
	RightDown
	Down
	DownLeft
	Left
	LeftUp
	numDirs
)

var dirSteps = [numDirs][2]int{
	Up: {0, -1}, UpRight: {1, -1}, Right: {1, 0}, RightDown: {1, 1},
	Down: {0, 1}, DownLeft: {-1, 1}, Left: {-1, 0}, LeftUp: {-1, -1},
}

// Rays for the directions a node owns; the opposite side is mirrored
// from the neighbour.
var rayOffsets = map[Direction]geom.Vec{
	Right:     {X: 0, Y: 3},
	Down:      {X: 3, Y: 0},
	UpRight:   {X: 2, Y: 2},
	RightDown: {X: 2, Y: -2},
}

var ownedDirs = []Direction{Right, Down, UpRight, RightDown}

func (d Direction) Opposite() Direction { return (d + 4) % numDirs }

// Materials is the terrain view the graph reads.
type Materials interface {
	Bounds() geom.Bounds
	MaterialAt(x, y int) catalogs.MaterialDef
}

type node struct {
	pos  geom.Vec
	adj  [numDirs]int
	mats [numDirs]catalogs.MaterialDef
}

// Graph is the node grid. It is not safe for concurrent use.
type Graph struct {
	terrain Materials
	bounds  geom.Bounds
	size    int
	cols    int
	rows    int
	nodes   []node
}

// OutOfBounds is the blocking material of edges never computed.
var OutOfBounds = catalogs.MaterialDef{ID: "OUT_OF_BOUNDS", Integrity: math.MaxFloat64}

func NewGraph(terrain Materials, nodeSize int) (*Graph, error) {
	if nodeSize <= 0 {
		nodeSize = DefaultNodeSize
	}
	b := terrain.Bounds()
	if b.Width <= 0 || b.Height <= 0 {
		return nil, fmt.Errorf("pathing: empty terrain %vx%v", b.Width, b.Height)
	}
	g := &Graph{
		terrain: terrain,
		bounds:  b,
		size:    nodeSize,
		cols:    mathx.CeilInt(b.Width / float64(nodeSize)),
		rows:    mathx.CeilInt(b.Height / float64(nodeSize)),
	}
	g.nodes = make([]node, g.cols*g.rows)
	half := float64(nodeSize) / 2
	for y := 0; y < g.rows; y++ {
		py := math.Min(half+float64(y*nodeSize), b.Height-1)
		for x := 0; x < g.cols; x++ {
			px := math.Min(half+float64(x*nodeSize), b.Width-1)
			n := &g.nodes[y*g.cols+x]
			n.pos = geom.V(px, py)
			for d := Direction(0); d < numDirs; d++ {
				n.adj[d] = g.NodeID(x+dirSteps[d][0], y+dirSteps[d][1])
				n.mats[d] = OutOfBounds
			}
		}
	}
	return g, nil
}

func (g *Graph) NodeSize() int { return g.size }
func (g *Graph) Cols() int     { return g.cols }
func (g *Graph) Rows() int     { return g.rows }
func (g *Graph) Len() int      { return len(g.nodes) }

// NodeID maps grid coordinates to a node, wrapping where the scene wraps.
// It returns -1 off a non-wrapping edge.
func (g *Graph) NodeID(x, y int) int {
	if g.bounds.WrapX {
		x = mathx.Mod(x, g.cols)
	}
	if g.bounds.WrapY {
		y = mathx.Mod(y, g.rows)
	}
	if x < 0 || y < 0 || x >= g.cols || y >= g.rows {
		return -1
	}
	return y*g.cols + x
}

func (g *Graph) NodePos(id int) geom.Vec { return g.nodes[id].pos }

// Neighbour returns the adjacent node in direction d, or -1.
func (g *Graph) Neighbour(id int, d Direction) int { return g.nodes[id].adj[d] }

// Blocking returns the strongest material between a node and its
// neighbour in direction d.
func (g *Graph) Blocking(id int, d Direction) catalogs.MaterialDef { return g.nodes[id].mats[d] }

// RecalculateAll recomputes every edge.
func (g *Graph) RecalculateAll() {
	for i := range g.nodes {
		g.nodes[i].mats = g.edgeMaterials(i)
	}
	for i := range g.nodes {
		g.mirror(i)
	}
}

// RecalculateBoxes drains boxes from the front, collecting the nodes
// around each until more than limit are collected, and recomputes them.
// It returns the collected node IDs when any edge changed (nil
// otherwise) and the boxes left unprocessed.
func (g *Graph) RecalculateBoxes(boxes []geom.Box, limit int) ([]int, []geom.Box) {
	ids := map[int]struct{}{}
	for len(boxes) > 0 {
		for _, id := range g.nodesInBox(boxes[0]) {
			ids[id] = struct{}{}
		}
		boxes = boxes[1:]
		if len(ids) > limit {
			break
		}
	}
	list := make([]int, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Ints(list)

	changed := false
	for _, id := range list {
		if g.updateNode(id) {
			changed = true
		}
	}
	if !changed {
		return nil, boxes
	}
	for _, id := range list {
		g.mirror(id)
	}
	return list, boxes
}

func (g *Graph) nodesInBox(box geom.Box) []int {
	box = box.Unflip()
	s := float64(g.size)
	x0 := mathx.FloorInt(box.Corner.X/s+0.5) - 1
	x1 := mathx.FloorInt((box.Corner.X+box.Width)/s+0.5) + 1
	y0 := mathx.FloorInt(box.Corner.Y/s+0.5) - 1
	y1 := mathx.FloorInt((box.Corner.Y+box.Height)/s+0.5) + 1
	var out []int
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			if id := g.NodeID(x, y); id >= 0 {
				out = append(out, id)
			}
		}
	}
	return out
}

// updateNode recomputes a node's owned edges and keeps them only if
// something moved by more than the epsilon or a door appeared or vanished.
func (g *Graph) updateNode(id int) bool {
	n := &g.nodes[id]
	next := g.edgeMaterials(id)
	for d := range next {
		oldM, newM := n.mats[d], next[d]
		delta := math.Abs(oldM.Integrity - newM.Integrity)
		doorChanged := oldM.ID != newM.ID && (oldM.Door || newM.Door)
		if delta > costChangeEpsilon || doorChanged {
			n.mats = next
			return true
		}
	}
	return false
}

func (g *Graph) edgeMaterials(id int) [numDirs]catalogs.MaterialDef {
	n := &g.nodes[id]
	out := n.mats
	for _, d := range ownedDirs {
		nb := n.adj[d]
		if nb < 0 {
			continue
		}
		off := rayOffsets[d]
		to := g.nodes[nb].pos
		a := g.strongestAlong(n.pos.Sub(off), to.Sub(off))
		b := g.strongestAlong(n.pos.Add(off), to.Add(off))
		if a.Integrity > b.Integrity {
			out[d] = a
		} else {
			out[d] = b
		}
	}
	return out
}

func (g *Graph) mirror(id int) {
	n := &g.nodes[id]
	for _, d := range ownedDirs {
		if nb := n.adj[d]; nb >= 0 {
			g.nodes[nb].mats[d.Opposite()] = n.mats[d]
		}
	}
}

// strongestAlong walks the pixels from a to b, the short way around on
// wrapping axes, and returns the material with the highest integrity.
func (g *Graph) strongestAlong(a, b geom.Vec) catalogs.MaterialDef {
	delta := g.bounds.ShortestDistance(a, b)
	steps := mathx.CeilInt(math.Max(math.Abs(delta.X), math.Abs(delta.Y)))
	best := catalogs.MaterialDef{ID: "AIR"}
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		p := g.bounds.ForceBounds(a.Add(delta.Scale(t)))
		m := g.terrain.MaterialAt(mathx.FloorInt(p.X), mathx.FloorInt(p.Y))
		if m.Integrity > best.Integrity {
			best = m
		}
	}
	return best
}

// transitionCost is a material's integrity, made prohibitive when it is
// harder than digStrength and not a door.
func transitionCost(m catalogs.MaterialDef, digStrength float64) float64 {
	s := m.Integrity
	if s > digStrength && !m.Door {
		s *= digPenalty
	}
	return s
}

func (g *Graph) averageIntegrity(id int) float64 {
	total, count := 0.0, 0
	for _, m := range g.nodes[id].mats {
		if m.Integrity < math.MaxFloat64 {
			total += m.Integrity
			count++
		}
	}
	return total / math.Max(float64(count), 1)
}

// EdgeCost is the cost of stepping from node id in direction d. Missing
// neighbours and impassable edges cost +Inf.
func (g *Graph) EdgeCost(id int, d Direction, digStrength float64) float64 {
	n := &g.nodes[id]
	if n.adj[d] < 0 {
		return math.Inf(1)
	}
	rad := g.averageIntegrity(id) * radiationMult
	t := transitionCost(n.mats[d], digStrength)
	var c float64
	switch d {
	case Up:
		c = 1 + extraUpCost + t*4 + rad
	case Right, Down, Left:
		c = 1 + t + rad
	case UpRight, LeftUp:
		c = diagonalStep + extraUpCost + t*diagonalStep*3 + rad
	case RightDown, DownLeft:
		c = diagonalStep + t*diagonalStep + rad
	}
	if math.IsNaN(c) || c > math.MaxFloat64 {
		return math.Inf(1)
	}
	return c
}
