// Package spatial provides the quadtree index the engine rebuilds each frame,
// plus the clustering and viewport culling built on top of it.
//
// One tree serves three consumers: the force simulation walks it with
// VisitApprox for Barnes-Hut repulsion, the interaction controller hit-tests
// the pointer against it, and the frame pipeline culls to the viewport with
// Range. Cells aggregate mass and center-of-mass on insert, so the
// approximation needs no second pass.
//
// Mass is the node's draw radius, not its raw metric: radius is monotone in
// the metric, bounded, and never zero, so zero-metric datasets still repel.
package spatial

import (
	"math"
	"sort"

	"github.com/vanderheijden86/siteatlas/pkg/model"
)

const (
	// defaultLeafCap is the number of items a leaf holds before subdividing.
	defaultLeafCap = 8
	// maxDepth stops subdivision when many items share a position.
	maxDepth = 24
)

// Item is one indexed node: the node pointer, its draw order (admission
// order; higher draws later and wins hit-test ties), and its precomputed
// draw radius in world units.
type Item struct {
	Node   *model.Node
	Order  int
	Radius float64
}

// Tree is a point-region quadtree over node positions with center-of-mass
// aggregation in every cell. Build once per frame, query many times; the
// tree is immutable after Build and safe for concurrent reads.
type Tree struct {
	root      *cell
	count     int
	bounds    model.Rect
	maxRadius float64
	leafCap   int
}

type cell struct {
	// Square bounds: origin plus side length.
	x, y, size float64

	// Aggregates over every item at or below this cell.
	comX, comY float64
	mass       float64
	count      int

	leaf  bool
	items []Item

	nw, ne, sw, se *cell
}

func newCell(x, y, size float64) *cell {
	return &cell{x: x, y: y, size: size, leaf: true}
}

// Build constructs a tree over the given items. leafCap <= 0 selects the
// default. The bounding square is padded so boundary items never fall
// outside during subdivision.
func Build(items []Item, leafCap int) *Tree {
	if leafCap <= 0 {
		leafCap = defaultLeafCap
	}
	t := &Tree{leafCap: leafCap}
	if len(items) == 0 {
		return t
	}

	minX, maxX := items[0].Node.X, items[0].Node.X
	minY, maxY := items[0].Node.Y, items[0].Node.Y
	for _, it := range items[1:] {
		minX = math.Min(minX, it.Node.X)
		maxX = math.Max(maxX, it.Node.X)
		minY = math.Min(minY, it.Node.Y)
		maxY = math.Max(maxY, it.Node.Y)
	}

	size := math.Max(maxX-minX, maxY-minY)
	pad := size * 0.05
	if size == 0 {
		// All items coincide; any positive extent works.
		size, pad = 1, 0.5
	}
	side := size + 2*pad
	// Center the square on the data.
	ox := (minX+maxX)/2 - side/2
	oy := (minY+maxY)/2 - side/2

	t.root = newCell(ox, oy, side)
	t.bounds = model.Rect{MinX: ox, MinY: oy, MaxX: ox + side, MaxY: oy + side}
	for _, it := range items {
		t.insert(t.root, it, 0)
		if it.Radius > t.maxRadius {
			t.maxRadius = it.Radius
		}
		t.count++
	}
	return t
}

func (t *Tree) insert(c *cell, it Item, depth int) {
	x, y, m := it.Node.X, it.Node.Y, it.Radius

	// Running weighted mean keeps the aggregates exact without a second pass.
	total := c.mass + m
	if total > 0 {
		c.comX = (c.comX*c.mass + x*m) / total
		c.comY = (c.comY*c.mass + y*m) / total
	}
	c.mass = total
	c.count++

	if c.leaf {
		if len(c.items) < t.leafCap || depth >= maxDepth {
			c.items = append(c.items, it)
			return
		}
		c.subdivide()
		old := c.items
		c.items = nil
		for _, o := range old {
			t.insertChild(c, o, depth)
		}
	}
	t.insertChild(c, it, depth)
}

func (c *cell) subdivide() {
	h := c.size / 2
	c.nw = newCell(c.x, c.y, h)
	c.ne = newCell(c.x+h, c.y, h)
	c.sw = newCell(c.x, c.y+h, h)
	c.se = newCell(c.x+h, c.y+h, h)
	c.leaf = false
}

// insertChild routes the item into a quadrant without re-touching this
// cell's aggregates (the caller already folded the item in).
func (t *Tree) insertChild(c *cell, it Item, depth int) {
	midX := c.x + c.size/2
	midY := c.y + c.size/2

	var child *cell
	if it.Node.X < midX {
		if it.Node.Y < midY {
			child = c.nw
		} else {
			child = c.sw
		}
	} else {
		if it.Node.Y < midY {
			child = c.ne
		} else {
			child = c.se
		}
	}
	t.insert(child, it, depth+1)
}

// Len returns the number of indexed items.
func (t *Tree) Len() int { return t.count }

// Bounds returns the tree's bounding square. Zero value when empty.
func (t *Tree) Bounds() model.Rect { return t.bounds }

// MaxRadius returns the largest item radius in the tree. Queries that must
// catch every circle overlapping a point expand their search by this much.
func (t *Tree) MaxRadius() float64 { return t.maxRadius }

// Range returns the items whose centers lie inside r, in draw order.
func (t *Tree) Range(r model.Rect) []Item {
	if t.root == nil {
		return nil
	}
	var out []Item
	rangeQuery(t.root, r, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func rangeQuery(c *cell, r model.Rect, out *[]Item) {
	if c == nil || c.count == 0 {
		return
	}
	cr := model.Rect{MinX: c.x, MinY: c.y, MaxX: c.x + c.size, MaxY: c.y + c.size}
	if !r.Intersects(cr) {
		return
	}
	if c.leaf {
		for _, it := range c.items {
			if r.Contains(it.Node.X, it.Node.Y) {
				*out = append(*out, it)
			}
		}
		return
	}
	rangeQuery(c.nw, r, out)
	rangeQuery(c.ne, r, out)
	rangeQuery(c.sw, r, out)
	rangeQuery(c.se, r, out)
}

// Cull returns the items whose centers lie inside the viewport expanded by
// buffer on every side, in draw order. This is the render set: draw cost is
// bounded by what is near the screen, not by the loaded count.
func (t *Tree) Cull(viewport model.Rect, buffer float64) []Item {
	return t.Range(viewport.Expand(buffer))
}

// Nearest returns the item whose center is closest to (x, y), ties broken
// by draw order (topmost wins). ok is false when the tree is empty.
func (t *Tree) Nearest(x, y float64) (Item, bool) {
	if t.root == nil {
		return Item{}, false
	}
	best := Item{}
	bestD := math.Inf(1)
	found := false
	nearest(t.root, x, y, &best, &bestD, &found)
	return best, found
}

func nearest(c *cell, x, y float64, best *Item, bestD *float64, found *bool) {
	if c == nil || c.count == 0 {
		return
	}
	if cellDistSq(c, x, y) > *bestD {
		return
	}
	if c.leaf {
		for _, it := range c.items {
			dx, dy := it.Node.X-x, it.Node.Y-y
			d := dx*dx + dy*dy
			if d < *bestD || (d == *bestD && (!*found || it.Order > best.Order)) {
				*best, *bestD, *found = it, d, true
			}
		}
		return
	}
	// Descend nearer quadrants first so pruning bites sooner.
	children := [4]*cell{c.nw, c.ne, c.sw, c.se}
	var dists [4]float64
	for i, ch := range children {
		dists[i] = cellDistSq(ch, x, y)
	}
	for range children {
		bi, bd := -1, math.Inf(1)
		for i, ch := range children {
			if ch != nil && dists[i] < bd {
				bi, bd = i, dists[i]
			}
		}
		if bi < 0 {
			break
		}
		nearest(children[bi], x, y, best, bestD, found)
		children[bi] = nil
	}
}

// cellDistSq returns the squared distance from (x, y) to the cell's bounds,
// zero when inside.
func cellDistSq(c *cell, x, y float64) float64 {
	if c == nil {
		return math.Inf(1)
	}
	dx := math.Max(0, math.Max(c.x-x, x-(c.x+c.size)))
	dy := math.Max(0, math.Max(c.y-y, y-(c.y+c.size)))
	return dx*dx + dy*dy
}

// HitTest returns the node under the world-space point: among nodes whose
// circle contains the point, the one with the nearest center, ties broken
// by draw order so the topmost of coincident nodes wins.
func (t *Tree) HitTest(x, y float64) (*model.Node, bool) {
	if t.root == nil || t.maxRadius == 0 {
		return nil, false
	}
	// Any containing circle has its center within maxRadius of the point.
	r := model.Rect{
		MinX: x - t.maxRadius, MinY: y - t.maxRadius,
		MaxX: x + t.maxRadius, MaxY: y + t.maxRadius,
	}
	var cands []Item
	rangeQuery(t.root, r, &cands)

	var best *model.Node
	bestD := math.Inf(1)
	bestOrder := -1
	for _, it := range cands {
		dx, dy := it.Node.X-x, it.Node.Y-y
		d := dx*dx + dy*dy
		if d > it.Radius*it.Radius {
			continue
		}
		if d < bestD || (d == bestD && it.Order > bestOrder) {
			best, bestD, bestOrder = it.Node, d, it.Order
		}
	}
	return best, best != nil
}

// VisitApprox walks the tree Barnes-Hut style for the query point: cells
// whose size/distance ratio is below theta contribute their aggregate mass
// and center-of-mass in one call; near cells are opened down to individual
// items. skip is excluded (the caller's own node). Smaller theta means more
// exact and more calls; theta 0 degenerates to the full pairwise loop.
func (t *Tree) VisitApprox(x, y, theta float64, skip *model.Node, fn func(px, py, mass float64)) {
	if t.root != nil {
		visitApprox(t.root, x, y, theta, skip, fn)
	}
}

func visitApprox(c *cell, x, y, theta float64, skip *model.Node, fn func(px, py, mass float64)) {
	if c == nil || c.count == 0 {
		return
	}
	if !c.leaf {
		dx, dy := c.comX-x, c.comY-y
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist > 0 && c.size/dist < theta {
			fn(c.comX, c.comY, c.mass)
			return
		}
		visitApprox(c.nw, x, y, theta, skip, fn)
		visitApprox(c.ne, x, y, theta, skip, fn)
		visitApprox(c.sw, x, y, theta, skip, fn)
		visitApprox(c.se, x, y, theta, skip, fn)
		return
	}
	for _, it := range c.items {
		if it.Node != skip {
			fn(it.Node.X, it.Node.Y, it.Radius)
		}
	}
}
