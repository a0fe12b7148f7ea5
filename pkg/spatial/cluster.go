package spatial

import (
	"fmt"

	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// Clusterer merges nearby nodes into synthetic representatives when the view
// is zoomed out far enough that individual nodes would overdraw each other.
//
// Collapse is a state transition, not a per-frame computation: the engine
// calls it once when the zoom crosses the threshold and Expand when it
// crosses back. Member positions are snapshotted at collapse time and
// restored verbatim on expand, so collapse/expand round-trips exactly.
type Clusterer struct {
	radius float64

	reps     []*model.Node
	snapshot map[string]model.Point
	memberOf map[string]string
}

// NewClusterer returns a clusterer that merges nodes closer than radius
// (world units, single linkage).
func NewClusterer(radius float64) *Clusterer {
	return &Clusterer{radius: radius}
}

// Collapsed reports whether a collapse is in effect.
func (c *Clusterer) Collapsed() bool { return c.reps != nil || c.memberOf != nil }

// Reps returns the synthetic representatives of the current collapse.
func (c *Clusterer) Reps() []*model.Node { return c.reps }

// RepID returns the representative standing in for the given member, or
// "" when the node is not clustered.
func (c *Clusterer) RepID(memberID string) string { return c.memberOf[memberID] }

// Collapse groups the given nodes (draw order) by single-linkage proximity:
// any two nodes closer than the cluster radius end up in the same group,
// transitively. Groups of one pass through untouched; larger groups are
// replaced by a pinned synthetic node at the group centroid carrying the
// member ids and their summed metric. The returned slice is the display set
// in draw order, with each representative occupying its first member's slot.
func (c *Clusterer) Collapse(nodes []*model.Node) []*model.Node {
	c.reset()
	c.snapshot = make(map[string]model.Point)
	c.memberOf = make(map[string]string)
	if len(nodes) < 2 {
		return nodes
	}

	groups := c.group(nodes)

	out := make([]*model.Node, 0, len(nodes))
	repAt := make(map[int]*model.Node) // first-member index -> rep
	skip := make(map[int]bool)

	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		rep := c.makeRep(nodes, g)
		repAt[g[0]] = rep
		for _, i := range g {
			n := nodes[i]
			c.snapshot[n.ID] = model.Point{X: n.X, Y: n.Y}
			c.memberOf[n.ID] = rep.ID
			skip[i] = true
		}
		c.reps = append(c.reps, rep)
	}

	for i, n := range nodes {
		if rep, ok := repAt[i]; ok {
			out = append(out, rep)
			continue
		}
		if !skip[i] {
			out = append(out, n)
		}
	}
	return out
}

// Expand ends the collapse and returns the position snapshot taken when it
// began, keyed by member id. The caller restores those positions onto the
// real nodes; the representatives are discarded.
func (c *Clusterer) Expand() map[string]model.Point {
	snap := c.snapshot
	c.reset()
	return snap
}

func (c *Clusterer) reset() {
	c.reps = nil
	c.snapshot = nil
	c.memberOf = nil
}

// group partitions node indices by single-linkage proximity using a uniform
// grid with cells the size of the cluster radius: any pair closer than the
// radius is guaranteed to sit in the same or adjacent cells.
func (c *Clusterer) group(nodes []*model.Node) [][]int {
	type key struct{ cx, cy int }
	grid := make(map[key][]int, len(nodes))
	uf := newUnionFind(len(nodes))
	r2 := c.radius * c.radius

	for i, n := range nodes {
		k := key{int(fastFloor(n.X / c.radius)), int(fastFloor(n.Y / c.radius))}
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, j := range grid[key{k.cx + dx, k.cy + dy}] {
					ddx := nodes[j].X - n.X
					ddy := nodes[j].Y - n.Y
					if ddx*ddx+ddy*ddy < r2 {
						uf.union(i, j)
					}
				}
			}
		}
		grid[k] = append(grid[k], i)
	}

	// Members in draw order; groups ordered by their first member.
	byRoot := make(map[int][]int)
	var order []int
	for i := range nodes {
		root := uf.find(i)
		if _, seen := byRoot[root]; !seen {
			order = append(order, root)
		}
		byRoot[root] = append(byRoot[root], i)
	}
	groups := make([][]int, 0, len(order))
	for _, root := range order {
		groups = append(groups, byRoot[root])
	}
	return groups
}

// makeRep builds the synthetic representative for a member group.
func (c *Clusterer) makeRep(nodes []*model.Node, group []int) *model.Node {
	first := nodes[group[0]]
	rep := &model.Node{
		ID:        "cluster:" + first.ID,
		Kind:      "cluster",
		Depth:     first.Depth,
		Status:    first.Status,
		Pinned:    true,
		LoadState: model.LoadLoaded,
	}
	var sx, sy float64
	for _, i := range group {
		n := nodes[i]
		rep.ClusterMemberIDs = append(rep.ClusterMemberIDs, n.ID)
		rep.Metric += n.Metric
		sx += n.X
		sy += n.Y
		if n.Depth < rep.Depth {
			rep.Depth = n.Depth
		}
		if statusSeverity(n.Status) > statusSeverity(rep.Status) {
			rep.Status = n.Status
		}
	}
	rep.X = sx / float64(len(group))
	rep.Y = sy / float64(len(group))
	rep.Label = fmt.Sprintf("%s +%d", first.Label, len(group)-1)
	return rep
}

// statusSeverity orders statuses so a cluster shows its worst member.
func statusSeverity(s model.Status) int {
	switch s {
	case model.StatusCritical:
		return 4
	case model.StatusWarning:
		return 3
	case model.StatusStale:
		return 2
	case model.StatusUnknown:
		return 1
	default:
		return 0
	}
}

// fastFloor avoids the int() truncation-toward-zero trap for negatives.
func fastFloor(v float64) float64 {
	f := float64(int(v))
	if v < f {
		return f - 1
	}
	return f
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// union keeps the smaller index as root so group identity follows draw order.
func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
}
