// Package physics advances the force-directed layout: inverse-square
// repulsion approximated through the spatial index (Barnes-Hut), spring
// attraction along links, a weak centering pull, and post-integration
// collision resolution.
//
// The simulation carries a decaying energy scalar (alpha) plus a per-node
// heat map for local reheats. A tick moves node n by its accumulated force
// scaled with max(alpha, heat[n]), so inserting or releasing one node stirs
// its neighborhood while the rest of a settled layout stays put. Once alpha
// and all heat fall below AlphaMin the simulation is settled and Tick
// returns without touching anything.
package physics

import (
	"hash/fnv"
	"math"

	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/spatial"
)

// Spring is one attractive constraint between two live nodes. Strength in
// (0, 1] scales the pull; zero means full strength.
type Spring struct {
	From     *model.Node
	To       *model.Node
	Strength float64
}

// Config holds the simulation tunables. Zero values select defaults, so a
// partially filled config is usable.
type Config struct {
	Repulsion         float64 // repulsion gain, force = gain*mass/dist^2
	SpringLength      float64 // rest length, world units
	SpringStiffness   float64 // spring gain per unit strength
	CenterGravity     float64 // pull toward the origin
	Damping           float64 // velocity multiplier per tick
	Theta             float64 // Barnes-Hut accuracy
	AlphaDecay        float64 // energy decay per tick
	AlphaMin          float64 // settle threshold
	AlphaBoost        float64 // reheat on drag release
	CollisionStrength float64 // overlap separation factor per tick
}

// DefaultConfig returns the tuning the engine ships with.
func DefaultConfig() Config {
	return Config{
		Repulsion:         2000,
		SpringLength:      80,
		SpringStiffness:   0.05,
		CenterGravity:     0.01,
		Damping:           0.85,
		Theta:             0.5,
		AlphaDecay:        0.02,
		AlphaMin:          0.003,
		AlphaBoost:        0.3,
		CollisionStrength: 0.7,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Repulsion == 0 {
		c.Repulsion = d.Repulsion
	}
	if c.SpringLength == 0 {
		c.SpringLength = d.SpringLength
	}
	if c.SpringStiffness == 0 {
		c.SpringStiffness = d.SpringStiffness
	}
	if c.CenterGravity == 0 {
		c.CenterGravity = d.CenterGravity
	}
	if c.Damping == 0 {
		c.Damping = d.Damping
	}
	if c.Theta == 0 {
		c.Theta = d.Theta
	}
	if c.AlphaDecay == 0 {
		c.AlphaDecay = d.AlphaDecay
	}
	if c.AlphaMin == 0 {
		c.AlphaMin = d.AlphaMin
	}
	if c.AlphaBoost == 0 {
		c.AlphaBoost = d.AlphaBoost
	}
	if c.CollisionStrength == 0 {
		c.CollisionStrength = d.CollisionStrength
	}
	return c
}

// collisionPad keeps a little air between touching node rims.
const collisionPad = 1.5

// Simulation owns the layout energy state. Not safe for concurrent use; the
// engine ticks it from the frame loop only.
type Simulation struct {
	cfg    Config
	radius model.RadiusScale

	alpha   float64
	maxHeat float64
	heat    map[*model.Node]float64
	// home remembers each node's anchor (its warm-start point) so NaN
	// blowups have somewhere sane to reset to.
	home map[*model.Node]model.Point
}

// New returns a simulation starting hot (alpha 1) so a fresh dataset lays
// itself out immediately.
func New(cfg Config, radius model.RadiusScale) *Simulation {
	return &Simulation{
		cfg:    cfg.withDefaults(),
		radius: radius,
		alpha:  1,
		heat:   make(map[*model.Node]float64),
		home:   make(map[*model.Node]model.Point),
	}
}

// Alpha returns the current global energy.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Settled reports whether the layout has cooled below the tick threshold
// everywhere, globally and per node.
func (s *Simulation) Settled() bool {
	return s.alpha < s.cfg.AlphaMin && s.maxHeat < s.cfg.AlphaMin
}

// Insert warm-starts a newly admitted node: zero velocity, full local heat,
// and a position at the anchor point. Unseeded nodes get a small
// deterministic jitter (derived from the id) so children admitted onto the
// same parent separate instead of stacking. Global alpha is raised only
// enough to leave the settled state, keeping the rest of the layout calm.
func (s *Simulation) Insert(n *model.Node, at model.Point, seeded bool) {
	x, y := at.X, at.Y
	if !seeded {
		jx, jy := jitter(n.ID, s.cfg.SpringLength*0.15)
		x += jx
		y += jy
	}
	n.X, n.Y = x, y
	n.VX, n.VY = 0, 0
	s.home[n] = model.Point{X: x, Y: y}
	s.setHeat(n, 1)
	if floor := s.cfg.AlphaMin * 10; s.alpha < floor {
		s.alpha = floor
	}
}

// ReheatNeighborhood gives the given nodes full local heat. The engine calls
// it with the 1-hop neighbors of an inserted node so the surrounding region
// makes room.
func (s *Simulation) ReheatNeighborhood(nodes ...*model.Node) {
	for _, n := range nodes {
		s.setHeat(n, 1)
	}
}

// Release unpins a dragged node and boosts it back into the simulation.
func (s *Simulation) Release(n *model.Node) {
	n.Pinned = false
	s.setHeat(n, 1)
	if s.alpha < s.cfg.AlphaBoost {
		s.alpha = s.cfg.AlphaBoost
	}
}

// Reheat raises global energy to at least a. Used when the whole layout
// should re-settle, e.g. after a bulk admission.
func (s *Simulation) Reheat(a float64) {
	if s.alpha < a {
		s.alpha = a
	}
}

// Forget drops per-node bookkeeping for a node leaving the live set.
func (s *Simulation) Forget(n *model.Node) {
	delete(s.heat, n)
	delete(s.home, n)
}

func (s *Simulation) setHeat(n *model.Node, h float64) {
	s.heat[n] = h
	if h > s.maxHeat {
		s.maxHeat = h
	}
}

// effAlpha is the force scale for one node.
func (s *Simulation) effAlpha(n *model.Node) float64 {
	if h := s.heat[n]; h > s.alpha {
		return h
	}
	return s.alpha
}

// Tick advances every unpinned node one step. Springs with a missing
// endpoint are skipped. Returns false without doing any work when the
// simulation is settled.
func (s *Simulation) Tick(nodes []*model.Node, springs []Spring, dt float64) bool {
	if s.Settled() || len(nodes) == 0 {
		return false
	}

	// Reset corrupt positions up front so a NaN cannot spread through the
	// force pass to healthy neighbors.
	for _, n := range nodes {
		if !finite(n.X) || !finite(n.Y) || !finite(n.VX) || !finite(n.VY) {
			s.resetNode(n)
		}
	}

	items := make([]spatial.Item, len(nodes))
	for i, n := range nodes {
		items[i] = spatial.Item{Node: n, Order: i, Radius: s.radius.NodeRadius(n)}
	}
	tree := spatial.Build(items, 0)

	fx := make([]float64, len(nodes))
	fy := make([]float64, len(nodes))

	// Repulsion through the tree: far cells contribute their aggregate in
	// one shot.
	for i, n := range nodes {
		tree.VisitApprox(n.X, n.Y, s.cfg.Theta, n, func(px, py, mass float64) {
			dx := n.X - px
			dy := n.Y - py
			dist2 := dx*dx + dy*dy + 0.01
			force := s.cfg.Repulsion * mass / dist2
			inv := 1 / math.Sqrt(dist2)
			fx[i] += force * dx * inv
			fy[i] += force * dy * inv
		})
	}

	index := make(map[*model.Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	// Spring attraction along links.
	for _, sp := range springs {
		if sp.From == nil || sp.To == nil {
			continue
		}
		si, ok1 := index[sp.From]
		ti, ok2 := index[sp.To]
		if !ok1 || !ok2 {
			continue
		}
		dx := sp.To.X - sp.From.X
		dy := sp.To.Y - sp.From.Y
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist == 0 {
			continue
		}
		strength := sp.Strength
		if strength <= 0 || strength > 1 {
			strength = 1
		}
		f := s.cfg.SpringStiffness * strength * (dist - s.cfg.SpringLength)
		ux, uy := dx/dist, dy/dist
		fx[si] += f * ux
		fy[si] += f * uy
		fx[ti] -= f * ux
		fy[ti] -= f * uy
	}

	// Weak centering so disconnected components do not drift away.
	for i, n := range nodes {
		fx[i] -= n.X * s.cfg.CenterGravity
		fy[i] -= n.Y * s.cfg.CenterGravity
	}

	// Integrate. Displacement is capped at the spring rest length per tick
	// so a dense initial overlap cannot explode.
	maxDisp := s.cfg.SpringLength
	for i, n := range nodes {
		if n.Pinned {
			n.VX, n.VY = 0, 0
			continue
		}
		eff := s.effAlpha(n)
		n.VX = (n.VX + fx[i]*eff) * s.cfg.Damping
		n.VY = (n.VY + fy[i]*eff) * s.cfg.Damping

		dpx, dpy := n.VX*dt, n.VY*dt
		if d := math.Sqrt(dpx*dpx + dpy*dpy); d > maxDisp {
			scale := maxDisp / d
			dpx *= scale
			dpy *= scale
			n.VX *= scale
			n.VY *= scale
		}
		n.X += dpx
		n.Y += dpy

		if !finite(n.X) || !finite(n.Y) || !finite(n.VX) || !finite(n.VY) {
			s.resetNode(n)
		}
	}

	s.resolveCollisions(tree, items)
	s.cool()
	return true
}

// resolveCollisions pushes overlapping nodes apart along their center axis.
// The tree holds pre-integration positions, so resolution is approximate
// and converges over successive ticks rather than within one.
func (s *Simulation) resolveCollisions(tree *spatial.Tree, items []spatial.Item) {
	if s.cfg.CollisionStrength <= 0 {
		return
	}
	reach := tree.MaxRadius() + collisionPad
	for _, it := range items {
		n := it.Node
		search := model.Rect{
			MinX: n.X - it.Radius - reach, MinY: n.Y - it.Radius - reach,
			MaxX: n.X + it.Radius + reach, MaxY: n.Y + it.Radius + reach,
		}
		for _, other := range tree.Range(search) {
			if other.Order <= it.Order {
				continue
			}
			m := other.Node
			dx := m.X - n.X
			dy := m.Y - n.Y
			dist := math.Sqrt(dx*dx + dy*dy)
			minDist := it.Radius + other.Radius + collisionPad
			if dist >= minDist {
				continue
			}
			var ux, uy float64
			if dist > 0 {
				ux, uy = dx/dist, dy/dist
			} else {
				// Coincident centers separate along a direction derived
				// from the id so the outcome is reproducible.
				ux, uy = jitter(n.ID, 1)
			}
			shift := (minDist - dist) * s.cfg.CollisionStrength / 2
			if !n.Pinned {
				n.X -= ux * shift
				n.Y -= uy * shift
			}
			if !m.Pinned {
				m.X += ux * shift
				m.Y += uy * shift
			}
		}
	}
}

// cool decays global alpha and every heat entry, dropping entries that fell
// below the settle threshold.
func (s *Simulation) cool() {
	s.alpha *= 1 - s.cfg.AlphaDecay
	s.maxHeat = 0
	for n, h := range s.heat {
		h *= 1 - s.cfg.AlphaDecay
		if h < s.cfg.AlphaMin {
			delete(s.heat, n)
			continue
		}
		s.heat[n] = h
		if h > s.maxHeat {
			s.maxHeat = h
		}
	}
}

func (s *Simulation) resetNode(n *model.Node) {
	p := s.home[n] // zero Point (the origin) when unknown
	n.X, n.Y = p.X, p.Y
	n.VX, n.VY = 0, 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// jitter maps an id to a fixed offset of the given magnitude. The direction
// comes from a hash of the id, so a node always jitters the same way.
func jitter(id string, spread float64) (float64, float64) {
	h := fnv.New32a()
	h.Write([]byte(id))
	angle := float64(h.Sum32()) / float64(math.MaxUint32) * 2 * math.Pi
	return spread * math.Cos(angle), spread * math.Sin(angle)
}
