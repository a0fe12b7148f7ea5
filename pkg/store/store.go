// Package store owns the live node/link collection and per-node load state.
//
// The store holds every node of the current dataset, pending and loaded
// alike. The progressive loader is the only component that flips nodes to
// loaded; the force simulation mutates positions on loaded nodes; everything
// else reads. Loaded order is admission order, which is also draw order, so
// "topmost" is well defined for hit-testing.
package store

import (
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// ActiveLink is a dataset link whose endpoints are both loaded, resolved to
// node pointers so the per-tick force loop does no map lookups.
type ActiveLink struct {
	Source   *model.Node
	Target   *model.Node
	Strength float64
}

// Store is the graph data store. Not safe for concurrent mutation; the
// engine guarantees a single writer per field class (see package doc).
type Store struct {
	byID   map[string]*model.Node
	loaded []*model.Node // admission order
	links  []model.Link  // all dataset links, validated at ingestion

	// linksByNode indexes links by the id of either endpoint.
	linksByNode map[string][]int
	active      []ActiveLink

	neighbors map[string][]string
	seeded    map[string]bool // ids whose position was seeded from cache

	radius     model.RadiusScale
	generation string
}

// New returns an empty store using the given radius mapping.
func New(radius model.RadiusScale) *Store {
	s := &Store{radius: radius}
	s.reset(nil)
	return s
}

func (s *Store) reset(ds *model.Dataset) {
	s.byID = make(map[string]*model.Node)
	s.loaded = nil
	s.links = nil
	s.linksByNode = make(map[string][]int)
	s.active = nil
	s.neighbors = make(map[string][]string)
	s.seeded = make(map[string]bool)
	s.generation = ""

	if ds == nil {
		return
	}
	s.generation = ds.Generation
	for _, n := range ds.Nodes {
		n.LoadState = model.LoadPending
		n.Pinned = false
		n.ClusterMemberIDs = nil
		s.byID[n.ID] = n
	}
	for _, l := range ds.Links {
		// Ingestion already dropped dangling links; skip defensively anyway.
		if s.byID[l.SourceID] == nil || s.byID[l.TargetID] == nil {
			continue
		}
		idx := len(s.links)
		s.links = append(s.links, l)
		s.linksByNode[l.SourceID] = append(s.linksByNode[l.SourceID], idx)
		s.linksByNode[l.TargetID] = append(s.linksByNode[l.TargetID], idx)
		s.neighbors[l.SourceID] = append(s.neighbors[l.SourceID], l.TargetID)
		s.neighbors[l.TargetID] = append(s.neighbors[l.TargetID], l.SourceID)
	}
}

// Replace swaps in a new dataset. All previous nodes, links, admission
// order, and seeds are discarded; every new node starts pending.
func (s *Store) Replace(ds *model.Dataset) {
	s.reset(ds)
}

// Generation returns the label of the current dataset.
func (s *Store) Generation() string {
	return s.generation
}

// Node returns the node with the given id, loaded or pending, or nil.
func (s *Store) Node(id string) *model.Node {
	return s.byID[id]
}

// Loaded returns the live nodes in admission (= draw) order. Callers must
// not mutate the slice.
func (s *Store) Loaded() []*model.Node {
	return s.loaded
}

// LoadedCount returns the number of admitted nodes.
func (s *Store) LoadedCount() int {
	return len(s.loaded)
}

// TotalCount returns the number of nodes in the dataset.
func (s *Store) TotalCount() int {
	return len(s.byID)
}

// ActiveLinks returns links whose endpoints are both loaded, in dataset
// order. Maintained incrementally on admission.
func (s *Store) ActiveLinks() []ActiveLink {
	return s.active
}

// Neighbors returns the 1-hop neighbor ids of a node over all dataset links
// (taxonomy edges included, since ingestion materializes them as links).
func (s *Store) Neighbors(id string) []string {
	return s.neighbors[id]
}

// Parent returns the taxonomy parent of the node, or nil for roots and
// unknown ids.
func (s *Store) Parent(id string) *model.Node {
	n := s.byID[id]
	if n == nil || n.ParentID == "" {
		return nil
	}
	return s.byID[n.ParentID]
}

// Admit flips a pending node to loaded and appends it to the draw order.
// Returns the node, or nil when the id is unknown or already loaded.
func (s *Store) Admit(id string) *model.Node {
	n := s.byID[id]
	if n == nil || n.LoadState == model.LoadLoaded {
		return nil
	}
	n.LoadState = model.LoadLoaded
	s.loaded = append(s.loaded, n)

	// Activate links whose other endpoint is already live.
	for _, idx := range s.linksByNode[id] {
		l := s.links[idx]
		src, tgt := s.byID[l.SourceID], s.byID[l.TargetID]
		if src == nil || tgt == nil {
			continue
		}
		if src.LoadState == model.LoadLoaded && tgt.LoadState == model.LoadLoaded {
			s.active = append(s.active, ActiveLink{Source: src, Target: tgt, Strength: l.Strength})
		}
	}
	return n
}

// Evict demotes a loaded node back to pending, removing it from the draw
// order and deactivating its links. Used by the progressive loader to roll
// back an interrupted admission pass; rare, so the link rebuild is a plain
// filter.
func (s *Store) Evict(id string) {
	n := s.byID[id]
	if n == nil || n.LoadState != model.LoadLoaded {
		return
	}
	n.LoadState = model.LoadPending
	for i, ln := range s.loaded {
		if ln == n {
			s.loaded = append(s.loaded[:i], s.loaded[i+1:]...)
			break
		}
	}
	kept := s.active[:0]
	for _, l := range s.active {
		if l.Source != n && l.Target != n {
			kept = append(kept, l)
		}
	}
	s.active = kept
}

// SeedPositions copies cached positions onto matching nodes and records
// them as known, so pending nodes can be placed for viewport membership
// tests before they are admitted.
func (s *Store) SeedPositions(points map[string]model.Point) {
	for id, p := range points {
		n := s.byID[id]
		if n == nil {
			continue
		}
		n.X, n.Y = p.X, p.Y
		s.seeded[id] = true
	}
}

// Seeded reports whether the node's position came from the position cache.
// Seeded nodes are admitted exactly where they are; unseeded ones warm-start
// near their parent.
func (s *Store) Seeded(id string) bool {
	return s.seeded[id]
}

// KnownPoint returns the best available position for a node: its own when
// loaded or seeded, otherwise the nearest ancestor with a known position.
// ok is false when no position is known anywhere up the chain.
func (s *Store) KnownPoint(id string) (model.Point, bool) {
	seen := 0
	for cur := s.byID[id]; cur != nil; cur = s.byID[cur.ParentID] {
		if cur.LoadState == model.LoadLoaded || s.seeded[cur.ID] {
			return model.Point{X: cur.X, Y: cur.Y}, true
		}
		if cur.ParentID == "" {
			break
		}
		// Depth is bounded by ingestion, but guard against bad data.
		if seen++; seen > 256 {
			break
		}
	}
	return model.Point{}, false
}

// Positions snapshots the positions of all loaded nodes, keyed by id.
// Used to persist layout across runs.
func (s *Store) Positions() map[string]model.Point {
	out := make(map[string]model.Point, len(s.loaded))
	for _, n := range s.loaded {
		out[n.ID] = model.Point{X: n.X, Y: n.Y}
	}
	return out
}

// Radius returns the draw radius for a node under the store's mapping.
// Cluster representatives size by their aggregate metric like any other
// node.
func (s *Store) Radius(n *model.Node) float64 {
	return s.radius.NodeRadius(n)
}

// RadiusScale exposes the mapping for components that size nodes
// themselves (renderer, spatial index).
func (s *Store) RadiusScale() model.RadiusScale {
	return s.radius
}

// PendingIDs returns ids not yet admitted, in no particular order. The
// progressive loader orders candidates itself; this exists for tests and
// the stats sidebar.
func (s *Store) PendingIDs() []string {
	out := make([]string, 0, len(s.byID)-len(s.loaded))
	for id, n := range s.byID {
		if n.LoadState == model.LoadPending {
			out = append(out, id)
		}
	}
	return out
}
