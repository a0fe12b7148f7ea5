// Package analysis computes dataset-level taxonomy statistics for the stats
// command and the TUI sidebar.
//
// Analysis runs in two phases. Counting fields are filled synchronously by
// Analyze and are read-only afterwards. PageRank and connectivity run in a
// background goroutine and must be read through the accessor methods, which
// return zero values until the phase completes.
package analysis

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/siteatlas/pkg/debug"
	"github.com/vanderheijden86/siteatlas/pkg/metrics"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// Hub is a node ranked by PageRank over the link graph.
type Hub struct {
	ID    string
	Label string
	Score float64
}

// Stats holds the results of dataset analysis.
type Stats struct {
	NodeCount      int
	LinkCount      int
	RootCount      int
	OrphanCount    int   // nodes with no links in either direction
	DanglingLinks  int   // links referencing ids missing from the dataset
	MaxDepth       int
	DepthHistogram []int // index = depth, value = node count

	mu         sync.RWMutex
	ready      bool
	done       chan struct{}
	pageRank   map[string]float64
	hubs       []Hub
	components [][]string
}

// Analyze builds the link graph and returns immediately with the counting
// fields populated. PageRank and components land in the background; use
// Ready or Wait before reading them when completeness matters.
func Analyze(ds *model.Dataset) *Stats {
	s := &Stats{done: make(chan struct{})}
	if ds == nil || len(ds.Nodes) == 0 {
		s.ready = true
		close(s.done)
		return s
	}

	g := simple.NewDirectedGraph()
	und := simple.NewUndirectedGraph()
	idToNode := make(map[string]int64, len(ds.Nodes))
	nodeToID := make(map[int64]string, len(ds.Nodes))
	labels := make(map[string]string, len(ds.Nodes))

	for _, n := range ds.Nodes {
		gn := g.NewNode()
		g.AddNode(gn)
		und.AddNode(simple.Node(gn.ID()))
		idToNode[n.ID] = gn.ID()
		nodeToID[gn.ID()] = n.ID
		labels[n.ID] = n.Label
	}

	linked := make(map[string]bool, len(ds.Nodes))
	for _, l := range ds.Links {
		from, okFrom := idToNode[l.SourceID]
		to, okTo := idToNode[l.TargetID]
		if !okFrom || !okTo {
			s.DanglingLinks++
			continue
		}
		// gonum rejects self edges.
		if from == to {
			continue
		}
		g.SetEdge(g.NewEdge(g.Node(from), g.Node(to)))
		und.SetEdge(und.NewEdge(und.Node(from), und.Node(to)))
		linked[l.SourceID] = true
		linked[l.TargetID] = true
	}

	s.NodeCount = len(ds.Nodes)
	s.LinkCount = len(ds.Links)
	for _, n := range ds.Nodes {
		if n.IsRoot() {
			s.RootCount++
		}
		if !linked[n.ID] {
			s.OrphanCount++
		}
		if n.Depth > s.MaxDepth {
			s.MaxDepth = n.Depth
		}
	}
	s.DepthHistogram = make([]int, s.MaxDepth+1)
	for _, n := range ds.Nodes {
		if n.Depth >= 0 && n.Depth < len(s.DepthHistogram) {
			s.DepthHistogram[n.Depth]++
		}
	}

	go s.computeBackground(g, und, nodeToID, labels)
	return s
}

func (s *Stats) computeBackground(g *simple.DirectedGraph, und *simple.UndirectedGraph, nodeToID map[int64]string, labels map[string]string) {
	defer metrics.Timer(metrics.StatsCompute)()

	ranks := network.PageRank(g, 0.85, 1e-6)

	pageRank := make(map[string]float64, len(ranks))
	hubs := make([]Hub, 0, len(ranks))
	for gid, score := range ranks {
		id := nodeToID[gid]
		pageRank[id] = score
		hubs = append(hubs, Hub{ID: id, Label: labels[id], Score: score})
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].Score == hubs[j].Score {
			return hubs[i].ID < hubs[j].ID
		}
		return hubs[i].Score > hubs[j].Score
	})

	var components [][]string
	for _, comp := range topo.ConnectedComponents(und) {
		ids := make([]string, 0, len(comp))
		for _, n := range comp {
			ids = append(ids, nodeToID[n.ID()])
		}
		sort.Strings(ids)
		components = append(components, ids)
	}
	sort.Slice(components, func(i, j int) bool {
		if len(components[i]) == len(components[j]) {
			return components[i][0] < components[j][0]
		}
		return len(components[i]) > len(components[j])
	})

	s.mu.Lock()
	s.pageRank = pageRank
	s.hubs = hubs
	s.components = components
	s.ready = true
	s.mu.Unlock()
	close(s.done)

	debug.Log("analysis: ranked %d nodes, %d components", len(hubs), len(components))
}

// Ready reports whether the background phase has completed.
func (s *Stats) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Wait blocks until the background phase completes.
func (s *Stats) Wait() {
	<-s.done
}

// PageRankScore returns the PageRank score for one node, or 0 before the
// background phase completes or for unknown ids.
func (s *Stats) PageRankScore(id string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageRank[id]
}

// TopHubs returns the n highest-ranked nodes, ties broken by id.
func (s *Stats) TopHubs(n int) []Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.hubs) {
		n = len(s.hubs)
	}
	if n <= 0 {
		return nil
	}
	return append([]Hub(nil), s.hubs[:n]...)
}

// Components returns the connected components of the link graph, largest
// first, each sorted by id.
func (s *Stats) Components() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]string, len(s.components))
	copy(out, s.components)
	return out
}

// ComponentCount returns the number of connected components, or 0 before the
// background phase completes.
func (s *Stats) ComponentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.components)
}
