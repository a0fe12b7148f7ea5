package analysis_test

import (
	"math"
	"testing"

	"github.com/vanderheijden86/siteatlas/pkg/analysis"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

func node(id string, parent string, depth int) *model.Node {
	return &model.Node{ID: id, Label: id, ParentID: parent, Depth: depth}
}

func TestAnalyze_Counts(t *testing.T) {
	ds := &model.Dataset{
		Nodes: []*model.Node{
			node("home", "", 0),
			node("docs", "home", 1),
			node("blog", "home", 1),
			node("guide", "docs", 2),
			node("lonely", "", 0),
		},
		Links: []model.Link{
			{SourceID: "home", TargetID: "docs", Strength: 0.7},
			{SourceID: "home", TargetID: "blog", Strength: 0.7},
			{SourceID: "docs", TargetID: "guide", Strength: 0.7},
			{SourceID: "docs", TargetID: "blog", Strength: 0.5},
		},
	}

	stats := analysis.Analyze(ds)
	if stats.NodeCount != 5 {
		t.Errorf("NodeCount = %d, want 5", stats.NodeCount)
	}
	if stats.LinkCount != 4 {
		t.Errorf("LinkCount = %d, want 4", stats.LinkCount)
	}
	if stats.RootCount != 2 {
		t.Errorf("RootCount = %d, want 2", stats.RootCount)
	}
	if stats.OrphanCount != 1 {
		t.Errorf("OrphanCount = %d, want 1 (lonely)", stats.OrphanCount)
	}
	if stats.DanglingLinks != 0 {
		t.Errorf("DanglingLinks = %d, want 0", stats.DanglingLinks)
	}
	if stats.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", stats.MaxDepth)
	}
	wantHist := []int{2, 2, 1}
	if len(stats.DepthHistogram) != len(wantHist) {
		t.Fatalf("DepthHistogram = %v, want %v", stats.DepthHistogram, wantHist)
	}
	for d, want := range wantHist {
		if stats.DepthHistogram[d] != want {
			t.Errorf("DepthHistogram[%d] = %d, want %d", d, stats.DepthHistogram[d], want)
		}
	}
}

func TestAnalyze_DanglingLinksCounted(t *testing.T) {
	ds := &model.Dataset{
		Nodes: []*model.Node{node("a", "", 0), node("b", "", 0)},
		Links: []model.Link{
			{SourceID: "a", TargetID: "b"},
			{SourceID: "a", TargetID: "ghost"},
			{SourceID: "ghost", TargetID: "b"},
		},
	}

	stats := analysis.Analyze(ds)
	stats.Wait()

	if stats.DanglingLinks != 2 {
		t.Errorf("DanglingLinks = %d, want 2", stats.DanglingLinks)
	}
	if stats.ComponentCount() != 1 {
		t.Errorf("ComponentCount = %d, want 1", stats.ComponentCount())
	}
}

func TestAnalyze_SelfLinkDoesNotPanic(t *testing.T) {
	ds := &model.Dataset{
		Nodes: []*model.Node{node("a", "", 0)},
		Links: []model.Link{{SourceID: "a", TargetID: "a"}},
	}

	stats := analysis.Analyze(ds)
	stats.Wait()

	if stats.ComponentCount() != 1 {
		t.Errorf("ComponentCount = %d, want 1", stats.ComponentCount())
	}
	if stats.OrphanCount != 1 {
		t.Errorf("OrphanCount = %d, want 1 (self link carries no connection)", stats.OrphanCount)
	}
}

func TestAnalyze_Components(t *testing.T) {
	ds := &model.Dataset{
		Nodes: []*model.Node{
			node("a", "", 0), node("b", "", 0),
			node("c", "", 0), node("d", "", 0),
			node("e", "", 0),
		},
		Links: []model.Link{
			{SourceID: "a", TargetID: "b"},
			{SourceID: "c", TargetID: "d"},
		},
	}

	stats := analysis.Analyze(ds)
	stats.Wait()
	if !stats.Ready() {
		t.Fatal("Expected Ready after Wait")
	}

	comps := stats.Components()
	if len(comps) != 3 {
		t.Fatalf("Expected 3 components, got %d: %v", len(comps), comps)
	}
	// Largest first, size ties broken by first id, members sorted.
	if comps[0][0] != "a" || comps[0][1] != "b" {
		t.Errorf("comps[0] = %v, want [a b]", comps[0])
	}
	if comps[1][0] != "c" || comps[1][1] != "d" {
		t.Errorf("comps[1] = %v, want [c d]", comps[1])
	}
	if len(comps[2]) != 1 || comps[2][0] != "e" {
		t.Errorf("comps[2] = %v, want [e]", comps[2])
	}
}

func TestAnalyze_TopHubs(t *testing.T) {
	ds := &model.Dataset{
		Nodes: []*model.Node{
			node("center", "", 0),
			node("c1", "center", 1), node("c2", "center", 1),
			node("c3", "center", 1), node("c4", "center", 1),
		},
		Links: []model.Link{
			{SourceID: "center", TargetID: "c1"},
			{SourceID: "center", TargetID: "c2"},
			{SourceID: "center", TargetID: "c3"},
			{SourceID: "center", TargetID: "c4"},
		},
	}

	stats := analysis.Analyze(ds)
	stats.Wait()

	all := stats.TopHubs(10)
	if len(all) != 5 {
		t.Fatalf("Expected 5 hubs, got %d", len(all))
	}
	sum := 0.0
	for _, h := range all {
		sum += h.Score
	}
	if math.Abs(sum-1.0) > 1e-3 {
		t.Errorf("Expected PageRank scores to sum to ~1, got %v", sum)
	}

	// Every child receives the center's rank on top of the teleport share,
	// so children outrank the center and ties resolve by id.
	center := stats.PageRankScore("center")
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		if stats.PageRankScore(id) <= center {
			t.Errorf("Expected %s to outrank center: %v vs %v", id, stats.PageRankScore(id), center)
		}
	}
	if top := stats.TopHubs(1); len(top) != 1 || top[0].ID != "c1" {
		t.Errorf("TopHubs(1) = %+v, want c1", top)
	}
	if got := stats.TopHubs(0); len(got) != 0 {
		t.Errorf("TopHubs(0) = %+v, want empty", got)
	}
	if all[4].ID != "center" {
		t.Errorf("Expected center ranked last, got %+v", all)
	}
}

func TestAnalyze_EmptyDataset(t *testing.T) {
	for _, ds := range []*model.Dataset{nil, {}} {
		stats := analysis.Analyze(ds)
		if !stats.Ready() {
			t.Error("Expected empty analysis to be ready immediately")
		}
		stats.Wait()
		if stats.NodeCount != 0 || stats.ComponentCount() != 0 {
			t.Errorf("Expected zero counts, got nodes=%d components=%d", stats.NodeCount, stats.ComponentCount())
		}
		if hubs := stats.TopHubs(3); len(hubs) != 0 {
			t.Errorf("Expected no hubs, got %+v", hubs)
		}
		if stats.PageRankScore("anything") != 0 {
			t.Error("Expected zero score for unknown id")
		}
	}
}
