// Package engine hosts the per-frame pipeline that turns the graph data
// store into pixels: admissions, clustering, force simulation, spatial
// indexing, culling, and the draw pass, in that order. Hosts (the TUI, the
// snapshot exporter) drive it by forwarding input events and calling Frame
// once per animation tick.
//
// The engine is single-threaded by contract. Every mutation of node state
// happens either inside Frame or inside an input method called between
// frames, so no locking is needed anywhere in the pipeline.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/siteatlas/pkg/debug"
	"github.com/vanderheijden86/siteatlas/pkg/interact"
	"github.com/vanderheijden86/siteatlas/pkg/metrics"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/physics"
	"github.com/vanderheijden86/siteatlas/pkg/progressive"
	"github.com/vanderheijden86/siteatlas/pkg/render"
	"github.com/vanderheijden86/siteatlas/pkg/spatial"
	"github.com/vanderheijden86/siteatlas/pkg/store"
)

// ErrRender marks a draw-surface failure. Frame returns it wrapped around
// the surface's own error; data problems never produce it.
var ErrRender = errors.New("render failed")

// Engine wires the store, loader, simulation, spatial index, clusterer,
// interaction controller, and renderer into one frame loop.
type Engine struct {
	cfg    Config
	events Events

	store    *store.Store
	sim      *physics.Simulation
	loader   *progressive.Loader
	cluster  *spatial.Clusterer
	ctrl     *interact.Controller
	renderer *render.Renderer
	surface  render.DrawSurface

	tree *spatial.Tree

	// Collapse state. viewNodes is the display set while collapsed: cluster
	// representatives plus unclustered singles, in draw order.
	collapsed    bool
	clusterDirty bool
	viewNodes    []*model.Node
	repByID      map[string]*model.Node

	overruns  int
	lastFrame time.Time
	fps       float64

	// Last emitted load progress, to suppress duplicate events.
	lastLoaded int
	lastTotal  int
	lastTier   progressive.Tier
}

// New returns an engine drawing to the given surface. The surface may be
// nil for headless use; Frame then runs the pipeline without the draw pass.
func New(cfg Config, surface render.DrawSurface, ev Events) *Engine {
	cfg = cfg.withDefaults()
	st := store.New(cfg.Radius)
	e := &Engine{
		cfg:        cfg,
		events:     ev,
		store:      st,
		sim:        physics.New(cfg.Physics, cfg.Radius),
		loader:     progressive.New(cfg.Loader, st),
		cluster:    spatial.NewClusterer(cfg.ClusterRadius),
		ctrl:       interact.New(cfg.Interact),
		renderer:   render.New(cfg.Render, cfg.Radius),
		surface:    surface,
		lastLoaded: -1,
		lastTotal:  -1,
	}
	e.ctrl.OnSelectionChange = ev.SelectionChanged
	e.ctrl.OnHoverChange = ev.HoverChanged
	e.ctrl.OnRelease = e.releaseNode
	return e
}

// SetDataset replaces the graph. Previous load state, selection, hover,
// cluster state, and simulation energy are discarded; positions seeds warm
// starts for the ids it names (typically from the position cache).
func (e *Engine) SetDataset(ds *model.Dataset, positions map[string]model.Point) {
	if ds == nil {
		ds = &model.Dataset{}
	}
	e.store.Replace(ds)
	if len(positions) > 0 {
		e.store.SeedPositions(positions)
	}
	e.sim = physics.New(e.cfg.Physics, e.cfg.Radius)
	e.loader.Reset()
	e.cluster = spatial.NewClusterer(e.cfg.ClusterRadius)
	e.collapsed = false
	e.clusterDirty = false
	e.viewNodes = nil
	e.repByID = nil
	e.tree = nil
	e.ctrl.SetIndex(nil)
	e.ctrl.ClearSelection()
	e.ctrl.ClearHover()
	e.lastLoaded, e.lastTotal, e.lastTier = -1, -1, ""
	debug.Log("engine: dataset %q, %d nodes, %d links, %d seeded",
		ds.Generation, len(ds.Nodes), len(ds.Links), len(positions))
}

// Frame runs one pipeline pass: admit pending nodes, sync cluster state
// against the zoom level, tick the simulation, rebuild the spatial index,
// cull to the viewport, and draw. now is the host's frame timestamp, used
// only for the FPS estimate; the simulation itself is frame-locked so a
// given input sequence always produces the same layout.
func (e *Engine) Frame(now time.Time) error {
	defer metrics.Timer(metrics.FrameTotal)()
	frameStart := time.Now()

	if !e.lastFrame.IsZero() {
		if d := now.Sub(e.lastFrame); d > 0 {
			e.fps = 1 / d.Seconds()
		}
	}
	e.lastFrame = now

	tr := e.ctrl.Transform()
	w, h := e.ctrl.ScreenSize()
	haveView := w > 0 && h > 0
	var world model.Rect
	if haveView {
		world = tr.VisibleWorldRect(w, h)
	}

	// Admissions first, so a node is never simulated or drawn before it is
	// loaded and never referenced after eviction.
	if haveView {
		for _, n := range e.loader.SetViewport(world, tr.Scale) {
			e.sim.Forget(n)
			e.clusterDirty = true
		}
	}
	res := e.loader.Admit(e.cfg.AdmitBudget)
	for _, n := range res.Admitted {
		e.insertNode(n)
	}
	if len(res.Admitted) > 0 {
		e.clusterDirty = true
	}
	e.emitProgress(res.Tier)

	e.syncClusters(tr.Scale)

	live := e.liveNodes()
	springs := e.buildSprings()

	stop := metrics.Timer(metrics.SimTick)
	e.sim.Tick(live, springs, 1)
	stop()

	stop = metrics.Timer(metrics.IndexRebuild)
	items := make([]spatial.Item, len(live))
	for i, n := range live {
		items[i] = spatial.Item{Node: n, Order: i, Radius: e.store.Radius(n)}
	}
	e.tree = spatial.Build(items, e.cfg.LeafCapacity)
	stop()
	e.ctrl.SetIndex(e.tree)

	if e.surface == nil {
		e.trackBudget(frameStart)
		return nil
	}

	drawNodes := live
	var inDraw map[*model.Node]bool
	if haveView {
		culled := e.tree.Cull(world, e.cfg.CullBuffer/tr.Scale)
		drawNodes = make([]*model.Node, len(culled))
		inDraw = make(map[*model.Node]bool, len(culled))
		for i, it := range culled {
			drawNodes[i] = it.Node
			inDraw[it.Node] = true
		}
	}

	// A link is drawn when either endpoint survived the cull, so edges
	// reaching offscreen stay visible at the boundary.
	links := make([]render.Edge, 0, len(springs))
	for _, sp := range springs {
		if inDraw != nil && !inDraw[sp.From] && !inDraw[sp.To] {
			continue
		}
		links = append(links, render.Edge{From: sp.From, To: sp.To, Strength: sp.Strength})
	}

	hovered, _ := e.ctrl.Hovered()
	frame := render.Frame{
		Nodes:    drawNodes,
		Links:    links,
		Hovered:  hovered,
		Selected: e.ctrl.Selected(),
	}
	if err := e.renderer.Render(frame, tr, e.surface); err != nil {
		return fmt.Errorf("%w: %w", ErrRender, err)
	}

	e.trackBudget(frameStart)
	return nil
}

// trackBudget counts consecutive over-budget frames and trips performance
// mode when the streak reaches the configured threshold. Performance mode
// is never un-tripped automatically; hosts expose a manual toggle.
func (e *Engine) trackBudget(frameStart time.Time) {
	if elapsed := time.Since(frameStart); elapsed > e.cfg.FrameBudget {
		e.overruns++
		metrics.FramesOverBudget.Inc()
		if e.overruns >= e.cfg.PerfTripFrames && !e.renderer.PerformanceMode() {
			e.renderer.SetPerformanceMode(true)
			debug.Log("engine: %d consecutive frame overruns, performance mode on", e.overruns)
		}
		return
	}
	e.overruns = 0
}

// insertNode warm-starts an admitted node in the simulation. Cached
// positions are exact starts; everything else spawns near its taxonomy
// parent (or the origin) with deterministic jitter, and the loaded 1-hop
// neighborhood is reheated so the region makes room.
func (e *Engine) insertNode(n *model.Node) {
	seeded := e.store.Seeded(n.ID)
	at := model.Point{X: n.X, Y: n.Y}
	if !seeded {
		if p := e.store.Parent(n.ID); p != nil {
			if kp, ok := e.store.KnownPoint(p.ID); ok {
				at = kp
			}
		}
	}
	e.sim.Insert(n, at, seeded)

	var hot []*model.Node
	for _, id := range e.store.Neighbors(n.ID) {
		if nb := e.store.Node(id); nb != nil && nb.LoadState == model.LoadLoaded {
			hot = append(hot, nb)
		}
	}
	e.sim.ReheatNeighborhood(hot...)
}

// releaseNode handles drag release. Cluster representatives stay pinned at
// their centroid; real nodes rejoin the simulation with a local boost.
func (e *Engine) releaseNode(n *model.Node) {
	if n.IsCluster() {
		n.Pinned = true
		return
	}
	e.sim.Release(n)
	var hot []*model.Node
	for _, id := range e.store.Neighbors(n.ID) {
		if nb := e.store.Node(id); nb != nil && nb.LoadState == model.LoadLoaded {
			hot = append(hot, nb)
		}
	}
	e.sim.ReheatNeighborhood(hot...)
}

// syncClusters reconciles collapse state with the zoom level. Collapse and
// expand happen once at threshold crossings; while collapsed, admissions
// and evictions mark the grouping dirty and it is rebuilt here.
func (e *Engine) syncClusters(scale float64) {
	want := scale < e.cfg.ClusterZoom && e.store.LoadedCount() > 1
	switch {
	case want && !e.collapsed:
		e.collapseClusters()
	case !want && e.collapsed:
		e.expandClusters()
	case want && e.clusterDirty:
		e.expandClusters()
		e.collapseClusters()
	}
	e.clusterDirty = false
}

func (e *Engine) collapseClusters() {
	live := e.store.Loaded()
	e.viewNodes = e.cluster.Collapse(live)
	e.collapsed = true

	reps := e.cluster.Reps()
	e.repByID = make(map[string]*model.Node, len(reps))
	for _, r := range reps {
		e.repByID[r.ID] = r
	}
	if len(reps) > 0 {
		metrics.ClustersFormed.Add(int64(len(reps)))
	}

	// Members leave the simulation frozen at their snapshot position.
	inView := make(map[*model.Node]bool, len(e.viewNodes))
	for _, n := range e.viewNodes {
		inView[n] = true
	}
	for _, n := range live {
		if !inView[n] {
			e.sim.Forget(n)
		}
	}
	debug.Log("engine: collapsed %d nodes into %d (%d clusters)",
		len(live), len(e.viewNodes), len(reps))
}

func (e *Engine) expandClusters() {
	for id, p := range e.cluster.Expand() {
		n := e.store.Node(id)
		if n == nil || n.LoadState != model.LoadLoaded {
			continue
		}
		n.X, n.Y = p.X, p.Y
		n.VX, n.VY = 0, 0
	}
	e.collapsed = false
	e.viewNodes = nil
	e.repByID = nil
	e.sim.Reheat(e.alphaBoost())
	debug.Log("engine: expanded clusters")
}

// liveNodes is the simulation and draw set for this frame.
func (e *Engine) liveNodes() []*model.Node {
	if e.collapsed {
		return e.viewNodes
	}
	return e.store.Loaded()
}

// buildSprings resolves the active links into spring constraints. While
// collapsed, member endpoints are remapped onto their representative and
// intra-cluster links drop out entirely.
func (e *Engine) buildSprings() []physics.Spring {
	active := e.store.ActiveLinks()
	springs := make([]physics.Spring, 0, len(active))
	for _, al := range active {
		from, to := al.Source, al.Target
		if e.collapsed {
			if rid := e.cluster.RepID(from.ID); rid != "" {
				from = e.repByID[rid]
			}
			if rid := e.cluster.RepID(to.ID); rid != "" {
				to = e.repByID[rid]
			}
		}
		if from == to {
			continue
		}
		springs = append(springs, physics.Spring{From: from, To: to, Strength: al.Strength})
	}
	return springs
}

func (e *Engine) emitProgress(tier progressive.Tier) {
	loaded, total := e.store.LoadedCount(), e.store.TotalCount()
	if total == 0 {
		return
	}
	if loaded == e.lastLoaded && total == e.lastTotal && tier == e.lastTier {
		return
	}
	e.lastLoaded, e.lastTotal, e.lastTier = loaded, total, tier
	if e.events.LoadProgress != nil {
		e.events.LoadProgress(loaded, total, tier)
	}
}

func (e *Engine) alphaBoost() float64 {
	if b := e.cfg.Physics.AlphaBoost; b > 0 {
		return b
	}
	return physics.DefaultConfig().AlphaBoost
}

// --- input forwarding ------------------------------------------------------

// PointerMove forwards pointer motion in screen pixels.
func (e *Engine) PointerMove(x, y float64) { e.ctrl.PointerMove(x, y) }

// PointerDown forwards a press. additive marks modifier-click semantics.
func (e *Engine) PointerDown(x, y float64, additive bool) { e.ctrl.PointerDown(x, y, additive) }

// PointerUp forwards a release.
func (e *Engine) PointerUp(x, y float64) { e.ctrl.PointerUp(x, y) }

// Wheel forwards scroll input anchored at the cursor.
func (e *Engine) Wheel(x, y, deltaY float64) { e.ctrl.Wheel(x, y, deltaY) }

// PanBy shifts the view by a screen-pixel delta.
func (e *Engine) PanBy(dx, dy float64) { e.ctrl.PanBy(dx, dy) }

// SelectNode applies click selection rules to an id directly (search jump).
func (e *Engine) SelectNode(id string, additive bool) { e.ctrl.SelectID(id, additive) }

// ClearSelection empties the selection set.
func (e *Engine) ClearSelection() { e.ctrl.ClearSelection() }

// Resize updates the logical screen size in pixels.
func (e *Engine) Resize(w, h float64) { e.ctrl.Resize(w, h) }

// CenterOn pans the view so the given node sits at the screen center. The
// zoom level is left alone. Unknown ids are ignored.
func (e *Engine) CenterOn(id string) {
	n := e.store.Node(id)
	if n == nil {
		return
	}
	w, h := e.ctrl.ScreenSize()
	t := e.ctrl.Transform()
	t.OffsetX = w/2 - n.X*t.Scale
	t.OffsetY = h/2 - n.Y*t.Scale
	e.ctrl.SetTransform(t)
}

// --- loading ---------------------------------------------------------------

// ExpandNeighbors queues the pending neighbors of a node for admission.
// Returns how many were queued.
func (e *Engine) ExpandNeighbors(id string) int { return e.loader.ExpandNeighbors(id) }

// AdmitNode force-admits one node immediately, outside the loader's tier
// order, so a search jump lands on a visible node. Unknown and already
// loaded ids are no-ops.
func (e *Engine) AdmitNode(id string) {
	n := e.store.Admit(id)
	if n == nil {
		return
	}
	e.insertNode(n)
	e.clusterDirty = true
	e.emitProgress(e.loader.Tier())
}

// RequestAll asks the loader to eventually admit the entire dataset.
func (e *Engine) RequestAll() { e.loader.RequestAll() }

// Reheat restores full layout energy, re-settling the whole graph.
func (e *Engine) Reheat() { e.sim.Reheat(1) }

// --- accessors -------------------------------------------------------------

// Store exposes the graph data store. Read-only for hosts.
func (e *Engine) Store() *store.Store { return e.store }

// Transform returns the current world-to-screen mapping.
func (e *Engine) Transform() model.Transform { return e.ctrl.Transform() }

// SetTransform replaces the view transform (snapshot fit-to-content).
func (e *Engine) SetTransform(t model.Transform) { e.ctrl.SetTransform(t) }

// SetSurface swaps the draw surface. The next Frame draws to it.
func (e *Engine) SetSurface(s render.DrawSurface) { e.surface = s }

// SetDPR updates the device pixel ratio applied at the surface boundary.
func (e *Engine) SetDPR(d float64) { e.renderer.SetDPR(d) }

// Hovered returns the hovered node id, if any.
func (e *Engine) Hovered() (string, bool) { return e.ctrl.Hovered() }

// SelectedIDs returns the sorted selected ids.
func (e *Engine) SelectedIDs() []string { return e.ctrl.SelectedIDs() }

// Tier returns the loader's active tier.
func (e *Engine) Tier() progressive.Tier { return e.loader.Tier() }

// LoadedCount returns how many nodes are live.
func (e *Engine) LoadedCount() int { return e.store.LoadedCount() }

// TotalCount returns the dataset size.
func (e *Engine) TotalCount() int { return e.store.TotalCount() }

// Settled reports whether the simulation has run out of energy.
func (e *Engine) Settled() bool { return e.sim.Settled() }

// Alpha returns the simulation's global energy, for the debug HUD.
func (e *Engine) Alpha() float64 { return e.sim.Alpha() }

// FPS returns the frame rate estimated from the host's Frame timestamps.
func (e *Engine) FPS() float64 { return e.fps }

// Generation returns the dataset label keying the position cache.
func (e *Engine) Generation() string { return e.store.Generation() }

// Positions snapshots the live node positions for the position cache.
func (e *Engine) Positions() map[string]model.Point { return e.store.Positions() }

// PerformanceMode reports whether reduced-fidelity drawing is active.
func (e *Engine) PerformanceMode() bool { return e.renderer.PerformanceMode() }

// SetPerformanceMode toggles reduced-fidelity drawing by hand.
func (e *Engine) SetPerformanceMode(on bool) {
	e.renderer.SetPerformanceMode(on)
	if !on {
		e.overruns = 0
	}
}
