package pathing

import (
	"container/heap"
	"math"

	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/logic/mathx"
)

type searchNode struct {
	id     int
	g, h   float64
	parent *searchNode
	index  int // heap index
}

type openList []*searchNode

func (ol openList) Len() int           { return len(ol) }
func (ol openList) Less(i, j int) bool { return ol[i].g+ol[i].h < ol[j].g+ol[j].h }
func (ol openList) Swap(i, j int) {
	ol[i], ol[j] = ol[j], ol[i]
	ol[i].index = i
	ol[j].index = j
}
func (ol *openList) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*ol)
	*ol = append(*ol, n)
}
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

// NodeAt returns the node covering a scene point after forcing it into
// bounds.
func (g *Graph) NodeAt(p geom.Vec) int {
	p = g.bounds.ForceBounds(p)
	s := float64(g.size)
	return g.NodeID(mathx.FloorInt(p.X/s), mathx.FloorInt(p.Y/s))
}

// CalculatePath finds the cheapest route from start to end for a digger
// of the given strength. The path starts at start, runs through node
// centres and ends at end. Start and end sharing a node is solved at cost
// zero. When no route exists the cost is -1 and the path is just
// [start, end].
func (g *Graph) CalculatePath(start, end geom.Vec, digStrength float64) (float64, []geom.Vec) {
	start = g.bounds.ForceBounds(start)
	end = g.bounds.ForceBounds(end)
	from, to := g.NodeAt(start), g.NodeAt(end)
	if from < 0 || to < 0 {
		return -1, []geom.Vec{start, end}
	}
	if from == to {
		return 0, []geom.Vec{start, end}
	}

	ids, cost, ok := g.solve(from, to, digStrength)
	if !ok {
		return -1, []geom.Vec{start, end}
	}
	path := make([]geom.Vec, 0, len(ids))
	path = append(path, start)
	for _, id := range ids[1:] {
		path = append(path, g.nodes[id].pos)
	}
	path[len(path)-1] = end
	return cost, path
}

// heuristic is the wrap-aware node distance in node steps, scaled so a
// diagonal step never overestimates its cheapest edge.
func (g *Graph) heuristic(a, b int) float64 {
	d := g.bounds.ShortestDistance(g.nodes[a].pos, g.nodes[b].pos).Magnitude()
	return d / float64(g.size) * diagonalStep / math.Sqrt2
}

func (g *Graph) solve(from, to int, digStrength float64) ([]int, float64, bool) {
	start := &searchNode{id: from, h: g.heuristic(from, to)}
	ol := &openList{start}
	heap.Init(ol)

	closed := make(map[int]bool)
	best := map[int]*searchNode{from: start}

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*searchNode)
		if cur.id == to {
			return unwind(cur), cur.g, true
		}
		if closed[cur.id] {
			continue
		}
		closed[cur.id] = true

		for d := Direction(0); d < numDirs; d++ {
			nb := g.nodes[cur.id].adj[d]
			if nb < 0 || closed[nb] {
				continue
			}
			c := g.EdgeCost(cur.id, d, digStrength)
			if math.IsInf(c, 1) {
				continue
			}
			ng := cur.g + c
			if prev, ok := best[nb]; ok && ng >= prev.g {
				continue
			}
			n := &searchNode{id: nb, g: ng, h: g.heuristic(nb, to), parent: cur}
			best[nb] = n
			heap.Push(ol, n)
		}
	}
	return nil, 0, false
}

func unwind(end *searchNode) []int {
	var ids []int
	for n := end; n != nil; n = n.parent {
		ids = append(ids, n.id)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}
