// Package progressive decides which nodes enter the live graph, and when.
//
// Loading advances through tiers: core (the most important nodes, loaded
// first), viewport (nodes positioned inside the visible area), connected
// (1-hop neighbors of a node the user expanded), and all (everything,
// on request). Within a tier, admission follows a fixed importance order,
// so the same dataset and viewport always load the same nodes in the same
// sequence.
//
// Admission is budgeted: each frame admits at most one batch, sized
// adaptively against the wall-clock budget the engine grants. A viewport
// change invalidates the in-flight viewport pass; nodes it admitted are
// rolled back so the loaded set never reflects a superseded viewport.
package progressive

import (
	"sort"
	"time"

	"github.com/vanderheijden86/siteatlas/pkg/debug"
	"github.com/vanderheijden86/siteatlas/pkg/metrics"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/store"
)

// Tier names a loading stage.
type Tier string

const (
	TierCore      Tier = "core"
	TierViewport  Tier = "viewport"
	TierConnected Tier = "connected"
	TierAll       Tier = "all"
	// TierIdle means nothing is left to admit for the current targets.
	TierIdle Tier = "idle"
)

// Batch adaptation factors: grow on cheap frames, shrink on overruns.
const (
	batchGrow   = 1.5
	batchShrink = 0.5
)

// Config holds the loader tunables. Zero values select defaults.
type Config struct {
	CoreLimit      int     // max nodes in the core tier
	BatchMin       int     // adaptive batch floor
	BatchMax       int     // adaptive batch ceiling
	ViewportBuffer float64 // viewport margin, screen pixels
	WeightDegree   float64 // importance: connection count
	WeightDepth    float64 // importance: inverse depth
	WeightMetric   float64 // importance: normalized metric
}

// DefaultConfig returns the tuning the engine ships with.
func DefaultConfig() Config {
	return Config{
		CoreLimit:      100,
		BatchMin:       8,
		BatchMax:       256,
		ViewportBuffer: 200,
		WeightDegree:   1.0,
		WeightDepth:    2.0,
		WeightMetric:   1.5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CoreLimit == 0 {
		c.CoreLimit = d.CoreLimit
	}
	if c.BatchMin == 0 {
		c.BatchMin = d.BatchMin
	}
	if c.BatchMax == 0 {
		c.BatchMax = d.BatchMax
	}
	if c.ViewportBuffer == 0 {
		c.ViewportBuffer = d.ViewportBuffer
	}
	if c.WeightDegree == 0 && c.WeightDepth == 0 && c.WeightMetric == 0 {
		c.WeightDegree = d.WeightDegree
		c.WeightDepth = d.WeightDepth
		c.WeightMetric = d.WeightMetric
	}
	return c
}

// Result reports one admission pass.
type Result struct {
	Admitted []*model.Node
	Tier     Tier
	// Done is true when every current target is fully admitted. More work
	// can appear later (viewport move, ExpandNeighbors, RequestAll).
	Done bool
}

// Loader owns admission order and pacing. Single-threaded like the rest of
// the frame pipeline; the engine is its only caller.
type Loader struct {
	cfg Config
	st  *store.Store

	// Importance order over the whole dataset: score desc, id asc.
	order  []string
	scores map[string]float64

	generation uint64
	batchSize  int

	viewport     model.Rect // expanded to world units
	haveViewport bool

	coreIdx  int
	allIdx   int
	vpTarget []string // lazily rebuilt per generation
	vpIdx    int
	vpFresh  bool

	connected []string // explicit expansion queue, deduped
	queued    map[string]bool

	allRequested bool

	// Admissions of the in-flight viewport pass, rolled back if the
	// viewport changes before the pass completes.
	passAdmitted []string

	// now is swappable for batch-adaptation tests.
	now func() time.Time
}

// New returns a loader over the given store. Call Reset after every dataset
// replacement.
func New(cfg Config, st *store.Store) *Loader {
	l := &Loader{
		cfg: cfg.withDefaults(),
		st:  st,
		now: time.Now,
	}
	l.Reset()
	return l
}

// Reset recomputes importance order for the store's current dataset and
// clears all pacing state. The first batch is optimistic (the ceiling) so
// the core tier lands before the first render; the budget still bounds the
// work, and the batch adapts down on overruns.
func (l *Loader) Reset() {
	l.scores = make(map[string]float64, l.st.TotalCount())
	l.order = l.order[:0]

	maxMetric := 0.0
	forEachID := func(fn func(n *model.Node)) {
		for _, id := range l.st.PendingIDs() {
			fn(l.st.Node(id))
		}
		for _, n := range l.st.Loaded() {
			fn(n)
		}
	}
	forEachID(func(n *model.Node) {
		if n.Metric > maxMetric {
			maxMetric = n.Metric
		}
	})
	forEachID(func(n *model.Node) {
		score := l.cfg.WeightDegree*float64(len(l.st.Neighbors(n.ID))) +
			l.cfg.WeightDepth/float64(n.Depth+1)
		if maxMetric > 0 {
			score += l.cfg.WeightMetric * n.Metric / maxMetric
		}
		l.scores[n.ID] = score
		l.order = append(l.order, n.ID)
	})
	sort.Slice(l.order, func(i, j int) bool {
		a, b := l.order[i], l.order[j]
		if l.scores[a] != l.scores[b] {
			return l.scores[a] > l.scores[b]
		}
		return a < b
	})

	l.generation++
	l.batchSize = l.cfg.BatchMax
	l.coreIdx = 0
	l.allIdx = 0
	l.vpTarget = nil
	l.vpIdx = 0
	l.vpFresh = false
	l.connected = nil
	l.queued = make(map[string]bool)
	l.allRequested = false
	l.passAdmitted = nil
	l.haveViewport = false

	debug.Log("loader: reset, %d nodes ranked", len(l.order))
}

// Generation returns the current cancellation token.
func (l *Loader) Generation() uint64 { return l.generation }

// Score returns the importance score computed for a node id.
func (l *Loader) Score(id string) float64 { return l.scores[id] }

// SetViewport updates the world-space viewport. A real change bumps the
// generation and rolls back the in-flight viewport pass, returning the
// evicted nodes so the caller can drop their simulation state. Core,
// connected, and all passes are viewport-independent and unaffected.
func (l *Loader) SetViewport(world model.Rect, scale float64) []*model.Node {
	if scale <= 0 {
		scale = 1
	}
	expanded := world.Expand(l.cfg.ViewportBuffer / scale)
	if l.haveViewport && expanded == l.viewport {
		return nil
	}
	l.viewport = expanded
	l.haveViewport = true
	l.generation++
	l.vpTarget = nil
	l.vpIdx = 0
	l.vpFresh = false

	var evicted []*model.Node
	for _, id := range l.passAdmitted {
		if n := l.st.Node(id); n != nil && n.LoadState == model.LoadLoaded {
			l.st.Evict(id)
			evicted = append(evicted, n)
		}
	}
	if len(evicted) > 0 {
		metrics.BatchesDiscarded.Inc()
		debug.Log("loader: viewport changed, rolled back %d stale admissions", len(evicted))
	}
	l.passAdmitted = nil
	return evicted
}

// ExpandNeighbors queues the pending 1-hop neighbors of the given node for
// admission under the connected tier. Returns how many were queued.
func (l *Loader) ExpandNeighbors(id string) int {
	neighbors := l.st.Neighbors(id)
	// Importance order within the expansion, like any other tier.
	sort.Slice(neighbors, func(i, j int) bool {
		a, b := neighbors[i], neighbors[j]
		if l.scores[a] != l.scores[b] {
			return l.scores[a] > l.scores[b]
		}
		return a < b
	})
	added := 0
	for _, nb := range neighbors {
		n := l.st.Node(nb)
		if n == nil || n.LoadState == model.LoadLoaded || l.queued[nb] {
			continue
		}
		l.connected = append(l.connected, nb)
		l.queued[nb] = true
		added++
	}
	return added
}

// RequestAll switches the loader to the all tier: every remaining node will
// be admitted over the following frames.
func (l *Loader) RequestAll() {
	l.allRequested = true
}

// AllRequested reports whether a full load is in progress or done.
func (l *Loader) AllRequested() bool { return l.allRequested }

// Admit runs one admission pass under the given wall-clock budget and
// returns what it admitted. The caller warm-starts the returned nodes in
// the simulation and emits progress.
func (l *Loader) Admit(budget time.Duration) Result {
	defer metrics.Timer(metrics.LoadAdmit)()

	tier := l.currentTier()
	res := Result{Tier: tier}
	if tier == TierIdle {
		res.Done = true
		return res
	}

	start := l.now()
	for len(res.Admitted) < l.batchSize {
		if l.now().Sub(start) > budget {
			break
		}
		id, ok := l.next(tier)
		if !ok {
			break
		}
		n := l.st.Admit(id)
		if n == nil {
			continue
		}
		if tier == TierViewport {
			l.passAdmitted = append(l.passAdmitted, id)
		}
		res.Admitted = append(res.Admitted, n)
	}
	elapsed := l.now().Sub(start)

	// Multiplicative adaptation between the configured bounds.
	switch {
	case elapsed > budget:
		l.batchSize = max(l.cfg.BatchMin, int(float64(l.batchSize)*batchShrink))
	case len(res.Admitted) == l.batchSize && elapsed*2 < budget:
		l.batchSize = min(l.cfg.BatchMax, int(float64(l.batchSize)*batchGrow))
	}

	if tier == TierViewport && !l.hasNext(TierViewport) {
		// Pass complete; its admissions are permanent now.
		l.passAdmitted = nil
	}
	if len(res.Admitted) > 0 {
		metrics.NodesAdmitted.Add(int64(len(res.Admitted)))
		debug.Log("loader: admitted %d (%s tier, batch %d, %v)",
			len(res.Admitted), tier, l.batchSize, elapsed)
	}
	res.Done = l.currentTier() == TierIdle
	return res
}

// currentTier resolves which tier the next pass serves. Core loads first;
// an explicit expansion queue preempts background work; a full-load request
// subsumes the viewport tier.
func (l *Loader) currentTier() Tier {
	if l.hasNext(TierCore) {
		return TierCore
	}
	if l.hasNext(TierConnected) {
		return TierConnected
	}
	if l.allRequested && l.hasNext(TierAll) {
		return TierAll
	}
	if l.haveViewport && l.hasNext(TierViewport) {
		return TierViewport
	}
	return TierIdle
}

// Tier reports the tier the next admission pass will serve.
func (l *Loader) Tier() Tier { return l.currentTier() }

func (l *Loader) hasNext(tier Tier) bool {
	switch tier {
	case TierCore:
		for i := l.coreIdx; i < l.coreEnd(); i++ {
			if l.pending(l.order[i]) {
				return true
			}
		}
	case TierConnected:
		for _, id := range l.connected {
			if l.pending(id) {
				return true
			}
		}
	case TierAll:
		for i := l.allIdx; i < len(l.order); i++ {
			if l.pending(l.order[i]) {
				return true
			}
		}
	case TierViewport:
		l.buildViewportTarget()
		for i := l.vpIdx; i < len(l.vpTarget); i++ {
			if l.pending(l.vpTarget[i]) {
				return true
			}
		}
	}
	return false
}

// next pops the next pending id for the tier, advancing its cursor.
func (l *Loader) next(tier Tier) (string, bool) {
	switch tier {
	case TierCore:
		for l.coreIdx < l.coreEnd() {
			id := l.order[l.coreIdx]
			l.coreIdx++
			if l.pending(id) {
				return id, true
			}
		}
	case TierConnected:
		for len(l.connected) > 0 {
			id := l.connected[0]
			l.connected = l.connected[1:]
			delete(l.queued, id)
			if l.pending(id) {
				return id, true
			}
		}
	case TierAll:
		for l.allIdx < len(l.order) {
			id := l.order[l.allIdx]
			l.allIdx++
			if l.pending(id) {
				return id, true
			}
		}
	case TierViewport:
		l.buildViewportTarget()
		for l.vpIdx < len(l.vpTarget) {
			id := l.vpTarget[l.vpIdx]
			l.vpIdx++
			if l.pending(id) {
				return id, true
			}
		}
	}
	return "", false
}

// buildViewportTarget computes the viewport tier's target once per
// generation: pending nodes whose best known position falls inside the
// expanded viewport, in importance order.
func (l *Loader) buildViewportTarget() {
	if l.vpFresh || !l.haveViewport {
		return
	}
	l.vpTarget = l.vpTarget[:0]
	for _, id := range l.order {
		if !l.pending(id) {
			continue
		}
		p, ok := l.st.KnownPoint(id)
		if !ok {
			continue
		}
		if l.viewport.Contains(p.X, p.Y) {
			l.vpTarget = append(l.vpTarget, id)
		}
	}
	l.vpIdx = 0
	l.vpFresh = true
}

func (l *Loader) coreEnd() int {
	return min(l.cfg.CoreLimit, len(l.order))
}

func (l *Loader) pending(id string) bool {
	n := l.st.Node(id)
	return n != nil && n.LoadState == model.LoadPending
}
