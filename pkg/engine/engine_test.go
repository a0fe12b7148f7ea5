package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/siteatlas/pkg/config"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/progressive"
	"github.com/vanderheijden86/siteatlas/pkg/render"
)

// dataset builds a flat taxonomy with metrics descending in id order, so
// admission order is predictable where a test cares.
func dataset(gen string, ids []string, links []model.Link) *model.Dataset {
	ds := &model.Dataset{Generation: gen}
	for i, id := range ids {
		ds.Nodes = append(ds.Nodes, &model.Node{
			ID:     id,
			Kind:   "page",
			Status: model.StatusHealthy,
			Metric: float64(len(ids) - i),
		})
	}
	ds.Links = links
	return ds
}

func opsWithPrefix(rec *render.Recorder, prefix string) []string {
	var out []string
	for _, op := range rec.Ops {
		if strings.HasPrefix(op, prefix) {
			out = append(out, op)
		}
	}
	return out
}

func lineEndpoints(t *testing.T, op string) (string, string) {
	t.Helper()
	fields := strings.Fields(op)
	if len(fields) < 2 {
		t.Fatalf("malformed line op %q", op)
	}
	parts := strings.SplitN(fields[1], ")-(", 2)
	if len(parts) != 2 {
		t.Fatalf("malformed line op %q", op)
	}
	return parts[0] + ")", "(" + parts[1]
}

func TestFrameAdmitsThenDraws(t *testing.T) {
	rec := &render.Recorder{W: 800, H: 600}
	var progress []string
	eng := New(Config{}, rec, Events{
		LoadProgress: func(loaded, total int, tier progressive.Tier) {
			progress = append(progress, fmt.Sprintf("%d/%d %s", loaded, total, tier))
		},
	})
	eng.Resize(800, 600)

	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5"}
	var links []model.Link
	for i := 1; i < len(ids); i++ {
		links = append(links, model.Link{SourceID: ids[i-1], TargetID: ids[i], Strength: 0.5})
	}
	seeds := make(map[string]model.Point)
	for i, id := range ids {
		seeds[id] = model.Point{X: 350 + 20*float64(i), Y: 300}
	}
	eng.SetDataset(dataset("gen-a", ids, links), seeds)

	if err := eng.Frame(time.Now()); err != nil {
		t.Fatalf("Frame error: %v", err)
	}

	if got := eng.LoadedCount(); got != 6 {
		t.Fatalf("loaded %d nodes, want 6", got)
	}
	if len(rec.Ops) == 0 {
		t.Fatal("no draw ops recorded")
	}
	if !strings.HasPrefix(rec.Ops[0], "clear ") {
		t.Fatalf("first op %q, want clear", rec.Ops[0])
	}
	if got := len(opsWithPrefix(rec, "circle ")); got != 18 {
		t.Errorf("drew %d circles, want 18 (shadow+body+badge per node)", got)
	}
	if got := len(opsWithPrefix(rec, "line ")); got != 5 {
		t.Errorf("drew %d links, want 5", got)
	}
	if got := len(opsWithPrefix(rec, "text ")); got != 0 {
		t.Errorf("drew %d labels, want 0 below the radius cutoff", got)
	}

	if len(progress) == 0 {
		t.Fatal("no load progress events")
	}
	if progress[0] != "6/6 core" {
		t.Errorf("first progress event %q, want %q", progress[0], "6/6 core")
	}

	// A second frame with nothing left to admit reports the idle tier once.
	if err := eng.Frame(time.Now()); err != nil {
		t.Fatalf("Frame error: %v", err)
	}
	if last := progress[len(progress)-1]; last != "6/6 idle" {
		t.Errorf("last progress event %q, want %q", last, "6/6 idle")
	}
}

func TestDrawnLinksConnectLoadedNodes(t *testing.T) {
	rec := &render.Recorder{W: 800, H: 600}
	eng := New(Config{
		Loader: progressive.Config{CoreLimit: 4, BatchMin: 2, BatchMax: 4},
	}, rec, Events{})
	eng.Resize(800, 600)

	var ids []string
	var links []model.Link
	seeds := make(map[string]model.Point)
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("n%02d", i)
		ids = append(ids, id)
		seeds[id] = model.Point{X: 250 + 10*float64(i), Y: 300}
		if i > 0 {
			links = append(links, model.Link{SourceID: ids[i-1], TargetID: id, Strength: 0.5})
		}
	}
	eng.SetDataset(dataset("gen-chain", ids, links), seeds)

	for frame := 0; frame < 12; frame++ {
		rec.Reset()
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}

		for _, al := range eng.Store().ActiveLinks() {
			if al.Source.LoadState != model.LoadLoaded || al.Target.LoadState != model.LoadLoaded {
				t.Fatalf("frame %d: active link %s->%s has an unloaded endpoint",
					frame, al.Source.ID, al.Target.ID)
			}
		}

		tr := eng.Transform()
		at := make(map[string]bool)
		for _, n := range eng.Store().Loaded() {
			sx, sy := tr.WorldToScreen(n.X, n.Y)
			at[fmt.Sprintf("(%.2f,%.2f)", sx, sy)] = true
		}
		for _, op := range opsWithPrefix(rec, "line ") {
			a, b := lineEndpoints(t, op)
			if !at[a] || !at[b] {
				t.Fatalf("frame %d: link drawn to a position with no loaded node: %q", frame, op)
			}
		}
	}

	if got := eng.LoadedCount(); got != 30 {
		t.Fatalf("loaded %d nodes after 12 frames, want 30", got)
	}
}

func TestRenderErrorWrapped(t *testing.T) {
	flushErr := errors.New("terminal gone")
	rec := &render.Recorder{W: 100, H: 100, FailFlush: flushErr}
	eng := New(Config{}, rec, Events{})
	eng.Resize(100, 100)
	eng.SetDataset(dataset("gen-e", []string{"x"}, nil), map[string]model.Point{
		"x": {X: 50, Y: 50},
	})

	err := eng.Frame(time.Now())
	if err == nil {
		t.Fatal("Frame returned nil, want a render error")
	}
	if !errors.Is(err, ErrRender) {
		t.Errorf("error %v does not match ErrRender", err)
	}
	if !errors.Is(err, flushErr) {
		t.Errorf("error %v does not wrap the surface error", err)
	}
}

func TestHeadlessFrameSkipsDraw(t *testing.T) {
	eng := New(Config{}, nil, Events{})
	eng.SetDataset(dataset("gen-h", []string{"a", "b"}, nil), nil)

	for i := 0; i < 3; i++ {
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatalf("headless frame %d: %v", i, err)
		}
	}
	if got := eng.LoadedCount(); got != 2 {
		t.Fatalf("loaded %d nodes, want 2", got)
	}
}

func TestPerformanceModeTripsAfterConsecutiveOverruns(t *testing.T) {
	rec := &render.Recorder{W: 200, H: 200}
	eng := New(Config{
		FrameBudget:    time.Nanosecond, // every frame overruns
		PerfTripFrames: 3,
	}, rec, Events{})
	eng.Resize(200, 200)
	eng.SetDataset(dataset("gen-p", []string{"a", "b"}, nil), map[string]model.Point{
		"a": {X: 80, Y: 100}, "b": {X: 120, Y: 100},
	})

	for i := 0; i < 2; i++ {
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if eng.PerformanceMode() {
		t.Fatal("performance mode tripped before the threshold")
	}
	if err := eng.Frame(time.Now()); err != nil {
		t.Fatal(err)
	}
	if !eng.PerformanceMode() {
		t.Fatal("performance mode did not trip after 3 consecutive overruns")
	}

	// Manual reset restarts the streak count.
	eng.SetPerformanceMode(false)
	if err := eng.Frame(time.Now()); err != nil {
		t.Fatal(err)
	}
	if eng.PerformanceMode() {
		t.Fatal("performance mode re-tripped after a single overrun")
	}
}

func TestPerformanceModeStaysOffWithinBudget(t *testing.T) {
	rec := &render.Recorder{W: 200, H: 200}
	eng := New(Config{PerfTripFrames: 3}, rec, Events{})
	eng.Resize(200, 200)
	eng.SetDataset(dataset("gen-q", []string{"a", "b"}, nil), map[string]model.Point{
		"a": {X: 80, Y: 100}, "b": {X: 120, Y: 100},
	})

	for i := 0; i < 50; i++ {
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if eng.PerformanceMode() {
		t.Fatal("performance mode tripped on frames within budget")
	}
}

func TestLoadProgressEvents(t *testing.T) {
	type tuple struct {
		loaded, total int
		tier          progressive.Tier
	}
	var events []tuple
	rec := &render.Recorder{W: 800, H: 600}
	eng := New(Config{
		Loader: progressive.Config{CoreLimit: 5, BatchMin: 2, BatchMax: 5},
	}, rec, Events{
		LoadProgress: func(loaded, total int, tier progressive.Tier) {
			events = append(events, tuple{loaded, total, tier})
		},
	})
	eng.Resize(800, 600)

	var ids []string
	seeds := make(map[string]model.Point)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("n%02d", i)
		ids = append(ids, id)
		seeds[id] = model.Point{X: 200 + 30*float64(i), Y: 300}
	}
	eng.SetDataset(dataset("gen-prog", ids, nil), seeds)

	for i := 0; i < 30 && eng.Tier() != progressive.TierIdle; i++ {
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	if len(events) == 0 {
		t.Fatal("no progress events")
	}
	if events[0].tier != progressive.TierCore {
		t.Errorf("first event tier %q, want core", events[0].tier)
	}
	last := events[len(events)-1]
	if last.loaded != 20 || last.total != 20 {
		t.Errorf("last event %d/%d, want 20/20", last.loaded, last.total)
	}
	for i := 1; i < len(events); i++ {
		if events[i] == events[i-1] {
			t.Errorf("duplicate consecutive event %+v", events[i])
		}
		if events[i].loaded < events[i-1].loaded {
			t.Errorf("loaded count went backwards: %+v after %+v", events[i], events[i-1])
		}
	}
}

func TestSetDatasetResetsState(t *testing.T) {
	rec := &render.Recorder{W: 800, H: 600}
	var selections [][]string
	var hovers []string
	eng := New(Config{}, rec, Events{
		SelectionChanged: func(ids []string) {
			selections = append(selections, append([]string(nil), ids...))
		},
		HoverChanged: func(id string, ok bool) {
			hovers = append(hovers, fmt.Sprintf("%s:%v", id, ok))
		},
	})
	eng.Resize(800, 600)

	seedsA := map[string]model.Point{
		"a0": {X: 200, Y: 300}, "a1": {X: 300, Y: 300},
		"a2": {X: 400, Y: 300}, "a3": {X: 500, Y: 300},
	}
	eng.SetDataset(dataset("gen-a", []string{"a0", "a1", "a2", "a3"}, nil), seedsA)
	for i := 0; i < 2; i++ {
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	eng.SelectNode("a0", false)
	a1 := eng.Store().Node("a1")
	eng.PointerMove(a1.X, a1.Y)
	if id, ok := eng.Hovered(); !ok || id != "a1" {
		t.Fatalf("hovered %q %v, want a1", id, ok)
	}
	if got := eng.SelectedIDs(); len(got) != 1 || got[0] != "a0" {
		t.Fatalf("selected %v, want [a0]", got)
	}

	eng.SetDataset(dataset("gen-b", []string{"b0", "b1", "b2"}, nil), nil)

	if got := eng.SelectedIDs(); len(got) != 0 {
		t.Errorf("selection survived dataset swap: %v", got)
	}
	if len(selections) == 0 || len(selections[len(selections)-1]) != 0 {
		t.Errorf("no empty selection event on dataset swap: %v", selections)
	}
	if len(hovers) == 0 || hovers[len(hovers)-1] != ":false" {
		t.Errorf("no hover-off event on dataset swap: %v", hovers)
	}
	if got := eng.LoadedCount(); got != 0 {
		t.Errorf("loaded %d nodes before any frame, want 0", got)
	}
	if got := eng.TotalCount(); got != 3 {
		t.Errorf("total %d nodes, want 3", got)
	}
	if got := eng.Generation(); got != "gen-b" {
		t.Errorf("generation %q, want gen-b", got)
	}

	if err := eng.Frame(time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := eng.LoadedCount(); got != 3 {
		t.Errorf("loaded %d nodes after frame, want 3", got)
	}
}

func TestClusterCollapseAndExpand(t *testing.T) {
	rec := &render.Recorder{W: 800, H: 600}
	eng := New(Config{}, rec, Events{})
	eng.Resize(800, 600)
	eng.SetPerformanceMode(true) // one circle per drawn node

	seeds := map[string]model.Point{
		"a1": {X: 300, Y: 300}, "a2": {X: 310, Y: 300},
		"b1": {X: 700, Y: 300}, "b2": {X: 710, Y: 300},
	}
	eng.SetDataset(dataset("gen-c", []string{"a1", "a2", "b1", "b2"}, nil), seeds)

	// Below the cluster zoom threshold the first frame collapses both pairs
	// before the simulation ever moves them, so the representatives sit at
	// the exact seed centroids.
	eng.SetTransform(model.Transform{Scale: 0.3})
	rec.Reset()
	if err := eng.Frame(time.Now()); err != nil {
		t.Fatal(err)
	}
	circles := opsWithPrefix(rec, "circle ")
	if len(circles) != 2 {
		t.Fatalf("collapsed frame drew %d circles, want 2 representatives", len(circles))
	}
	wantCenters := []string{"circle (91.50,90.00)", "circle (211.50,90.00)"}
	for _, want := range wantCenters {
		found := false
		for _, op := range circles {
			if strings.HasPrefix(op, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no representative at %q; ops: %v", want, circles)
		}
	}
	if got := eng.LoadedCount(); got != 4 {
		t.Errorf("collapse changed the loaded count: %d, want 4", got)
	}

	// Zooming back in expands the clusters and frees the members.
	eng.SetTransform(model.Transform{Scale: 1})
	rec.Reset()
	if err := eng.Frame(time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := len(opsWithPrefix(rec, "circle ")); got != 4 {
		t.Fatalf("expanded frame drew %d circles, want 4", got)
	}
	if n := eng.Store().Node("a1"); n.Pinned {
		t.Error("member still pinned after expand")
	}
}

func TestDragReleaseReheatsLayout(t *testing.T) {
	rec := &render.Recorder{W: 800, H: 600}
	eng := New(Config{}, rec, Events{})
	eng.Resize(800, 600)

	links := []model.Link{
		{SourceID: "a", TargetID: "b", Strength: 0.8},
		{SourceID: "b", TargetID: "c", Strength: 0.8},
	}
	seeds := map[string]model.Point{
		"a": {X: 320, Y: 300}, "b": {X: 400, Y: 300}, "c": {X: 480, Y: 300},
	}
	eng.SetDataset(dataset("gen-d", []string{"a", "b", "c"}, links), seeds)

	for i := 0; i < 500 && !eng.Settled(); i++ {
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if !eng.Settled() {
		t.Fatalf("layout did not settle within 500 frames (alpha %v)", eng.Alpha())
	}

	b := eng.Store().Node("b")
	bx, by := b.X, b.Y
	eng.PointerDown(bx, by, false)
	eng.PointerMove(bx+30, by)
	if !b.Pinned {
		t.Fatal("dragged node not pinned")
	}
	if b.X != bx+30 {
		t.Fatalf("dragged node at %v, want %v", b.X, bx+30)
	}
	eng.PointerUp(bx+30, by)
	if b.Pinned {
		t.Fatal("node still pinned after release")
	}
	if eng.Settled() {
		t.Fatal("release did not reheat the simulation")
	}

	a := eng.Store().Node("a")
	ax := a.X
	for i := 0; i < 2; i++ {
		if err := eng.Frame(time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	if a.X == ax {
		t.Error("neighbor did not move after drag release")
	}
}

func TestCullingSkipsOffscreenNodes(t *testing.T) {
	rec := &render.Recorder{W: 800, H: 600}
	eng := New(Config{}, rec, Events{})
	eng.Resize(800, 600)
	eng.SetPerformanceMode(true)

	seeds := map[string]model.Point{
		"in":  {X: 400, Y: 300},
		"out": {X: 5000, Y: 5000},
	}
	eng.SetDataset(dataset("gen-cull", []string{"in", "out"}, nil), seeds)

	rec.Reset()
	if err := eng.Frame(time.Now()); err != nil {
		t.Fatal(err)
	}
	if got := len(opsWithPrefix(rec, "circle ")); got != 1 {
		t.Fatalf("drew %d circles, want 1 (offscreen node culled)", got)
	}
	if got := eng.LoadedCount(); got != 2 {
		t.Fatalf("culling changed the loaded count: %d, want 2", got)
	}
}

func TestCenterOnBringsNodeToScreenCenter(t *testing.T) {
	rec := &render.Recorder{W: 800, H: 600}
	eng := New(Config{}, rec, Events{})
	eng.Resize(800, 600)
	eng.SetDataset(dataset("gen-center", []string{"far"}, nil), map[string]model.Point{
		"far": {X: 1000, Y: 700},
	})
	if err := eng.Frame(time.Now()); err != nil {
		t.Fatal(err)
	}

	eng.CenterOn("far")
	n := eng.Store().Node("far")
	sx, sy := eng.Transform().WorldToScreen(n.X, n.Y)
	if dx, dy := sx-400, sy-300; dx > 1e-9 || dx < -1e-9 || dy > 1e-9 || dy < -1e-9 {
		t.Fatalf("node at screen (%v,%v), want (400,300)", sx, sy)
	}

	// Unknown ids leave the view alone.
	before := eng.Transform()
	eng.CenterOn("nope")
	if eng.Transform() != before {
		t.Error("CenterOn moved the view for an unknown id")
	}
}

func TestFromSettingsMapsTuning(t *testing.T) {
	c := FromSettings(config.DefaultConfig())

	if c.FrameBudget != 16*time.Millisecond {
		t.Errorf("FrameBudget = %v, want 16ms", c.FrameBudget)
	}
	if c.AdmitBudget != 4*time.Millisecond {
		t.Errorf("AdmitBudget = %v, want 4ms", c.AdmitBudget)
	}
	if c.PerfTripFrames != 30 {
		t.Errorf("PerfTripFrames = %d, want 30", c.PerfTripFrames)
	}
	if c.Loader.CoreLimit != 100 {
		t.Errorf("Loader.CoreLimit = %d, want 100", c.Loader.CoreLimit)
	}
	if c.Physics.Repulsion != 2000 {
		t.Errorf("Physics.Repulsion = %v, want 2000", c.Physics.Repulsion)
	}
	if c.ClusterZoom != 0.5 {
		t.Errorf("ClusterZoom = %v, want 0.5", c.ClusterZoom)
	}
	if c.Interact.MaxScale != 5 {
		t.Errorf("Interact.MaxScale = %v, want 5", c.Interact.MaxScale)
	}
	if c.Radius != (model.RadiusScale{Min: 4, Max: 28, Scale: 0.6}) {
		t.Errorf("Radius = %+v", c.Radius)
	}
	if c.Render.Theme != "dark" {
		t.Errorf("Render.Theme = %q, want dark", c.Render.Theme)
	}
}
