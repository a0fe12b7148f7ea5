package interact

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/spatial"
)

func indexOf(nodes ...*model.Node) *spatial.Tree {
	items := make([]spatial.Item, len(nodes))
	for i, n := range nodes {
		items[i] = spatial.Item{Node: n, Order: i, Radius: model.DefaultRadiusScale.Radius(n.Metric)}
	}
	return spatial.Build(items, 0)
}

// bigNode has metric 400, a 16px radius under the default scale.
func bigNode(id string, x, y float64) *model.Node {
	return &model.Node{ID: id, X: x, Y: y, Metric: 400}
}

func TestWheelZoomsAtCursor(t *testing.T) {
	c := New(Config{})
	c.SetTransform(model.Transform{OffsetX: 40, OffsetY: -20, Scale: 1.5})

	wx, wy := c.Transform().ScreenToWorld(100, 80)
	c.Wheel(100, 80, -250) // zoom in by 1.5x
	if got := c.Transform().Scale; math.Abs(got-2.25) > 1e-9 {
		t.Fatalf("scale = %v, want 2.25", got)
	}
	ax, ay := c.Transform().ScreenToWorld(100, 80)
	if math.Abs(ax-wx) > 1e-9 || math.Abs(ay-wy) > 1e-9 {
		t.Errorf("world point under cursor moved: (%v,%v) -> (%v,%v)", wx, wy, ax, ay)
	}
}

func TestWheelZoomCursorInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := New(Config{})
		c.SetTransform(model.Transform{
			OffsetX: rapid.Float64Range(-1000, 1000).Draw(t, "ox"),
			OffsetY: rapid.Float64Range(-1000, 1000).Draw(t, "oy"),
			Scale:   rapid.Float64Range(0.2, 5).Draw(t, "scale"),
		})
		cx := rapid.Float64Range(0, 800).Draw(t, "cx")
		cy := rapid.Float64Range(0, 600).Draw(t, "cy")
		delta := rapid.Float64Range(-1000, 1000).Draw(t, "delta")

		bx, by := c.Transform().ScreenToWorld(cx, cy)
		c.Wheel(cx, cy, delta)
		ax, ay := c.Transform().ScreenToWorld(cx, cy)
		if math.Abs(ax-bx) > 1e-6 || math.Abs(ay-by) > 1e-6 {
			t.Fatalf("cursor world point drifted: (%v,%v) -> (%v,%v)", bx, by, ax, ay)
		}
	})
}

func TestWheelClampsScale(t *testing.T) {
	c := New(Config{})
	for i := 0; i < 10; i++ {
		c.Wheel(0, 0, -1000)
	}
	if got := c.Transform().Scale; got != 5 {
		t.Errorf("scale after sustained zoom-in = %v, want max 5", got)
	}
	for i := 0; i < 20; i++ {
		c.Wheel(0, 0, 1000)
	}
	if got := c.Transform().Scale; got != 0.2 {
		t.Errorf("scale after sustained zoom-out = %v, want min 0.2", got)
	}
}

func TestHoverTracksPointer(t *testing.T) {
	n := bigNode("n1", 100, 100)
	c := New(Config{})
	c.SetIndex(indexOf(n))

	var events []string
	c.OnHoverChange = func(id string, ok bool) {
		events = append(events, fmt.Sprintf("%s:%v", id, ok))
	}

	c.PointerMove(100, 100)
	c.PointerMove(102, 101) // still inside, no duplicate event
	c.PointerMove(300, 300)

	want := []string{"n1:true", ":false"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("hover events = %v, want %v", events, want)
	}
	if _, ok := c.Hovered(); ok {
		t.Error("still hovering after pointer left")
	}
}

func TestClickSelectsAndBackgroundClears(t *testing.T) {
	n := bigNode("n1", 100, 100)
	c := New(Config{})
	c.SetIndex(indexOf(n))

	var events [][]string
	c.OnSelectionChange = func(ids []string) { events = append(events, ids) }

	c.PointerDown(100, 100, false)
	c.PointerUp(100, 100)
	if !c.Selected()["n1"] {
		t.Fatal("click did not select node")
	}

	c.PointerDown(300, 300, false)
	c.PointerUp(300, 300)
	if len(c.Selected()) != 0 {
		t.Fatal("background click did not clear selection")
	}

	want := [][]string{{"n1"}, {}}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("selection events = %v, want %v", events, want)
	}
}

func TestModifierClickTogglesMembership(t *testing.T) {
	a := bigNode("a", 100, 100)
	b := bigNode("b", 200, 100)
	c := New(Config{})
	c.SetIndex(indexOf(a, b))

	var last []string
	c.OnSelectionChange = func(ids []string) { last = ids }

	c.PointerDown(100, 100, false)
	c.PointerUp(100, 100)
	c.PointerDown(200, 100, true)
	c.PointerUp(200, 100)
	if !reflect.DeepEqual(last, []string{"a", "b"}) {
		t.Fatalf("additive click selection = %v, want [a b]", last)
	}

	c.PointerDown(100, 100, true)
	c.PointerUp(100, 100)
	if !reflect.DeepEqual(last, []string{"b"}) {
		t.Errorf("modifier re-click selection = %v, want [b]", last)
	}
}

func TestAdditiveBackgroundClickKeepsSelection(t *testing.T) {
	n := bigNode("n1", 100, 100)
	c := New(Config{})
	c.SetIndex(indexOf(n))
	c.PointerDown(100, 100, false)
	c.PointerUp(100, 100)

	c.PointerDown(300, 300, true)
	c.PointerUp(300, 300)
	if !c.Selected()["n1"] {
		t.Error("modifier background click cleared the selection")
	}
}

func TestMoveBelowThresholdIsStillAClick(t *testing.T) {
	n := bigNode("n1", 100, 100)
	c := New(Config{})
	c.SetIndex(indexOf(n))

	c.PointerDown(100, 100, false)
	c.PointerMove(102, 101) // under the 3px threshold
	c.PointerUp(102, 101)

	if n.Pinned {
		t.Error("sub-threshold movement pinned the node")
	}
	if n.X != 100 || n.Y != 100 {
		t.Errorf("sub-threshold movement moved the node to (%v,%v)", n.X, n.Y)
	}
	if !c.Selected()["n1"] {
		t.Error("sub-threshold release did not select")
	}
}

func TestDragPinsAndDrivesNode(t *testing.T) {
	n := bigNode("n1", 100, 100)
	n.VX, n.VY = 3, -2
	c := New(Config{})
	c.SetIndex(indexOf(n))

	var released *model.Node
	c.OnRelease = func(rn *model.Node) { released = rn }

	c.PointerDown(100, 100, false)
	c.PointerMove(110, 100) // past threshold: drag starts, grab offset -10
	if !n.Pinned {
		t.Fatal("drag did not pin the node")
	}
	if id, ok := c.Dragging(); !ok || id != "n1" {
		t.Fatalf("Dragging() = %q,%v", id, ok)
	}
	if n.X != 100 || n.Y != 100 {
		t.Errorf("node jumped at drag start: (%v,%v)", n.X, n.Y)
	}
	if n.VX != 0 || n.VY != 0 {
		t.Errorf("drag left velocity (%v,%v), want zeroed", n.VX, n.VY)
	}

	c.PointerMove(150, 130)
	if n.X != 140 || n.Y != 130 {
		t.Errorf("node = (%v,%v) mid-drag, want (140,130)", n.X, n.Y)
	}

	c.PointerUp(150, 130)
	if n.Pinned {
		t.Error("release left the node pinned")
	}
	if released != n {
		t.Error("OnRelease not called with the dragged node")
	}
	if len(c.Selected()) != 0 {
		t.Error("drag end changed the selection")
	}
}

func TestDragWithScaledTransform(t *testing.T) {
	n := bigNode("n1", 100, 100)
	c := New(Config{})
	c.SetTransform(model.Transform{Scale: 2}) // node at screen (200,200)
	c.SetIndex(indexOf(n))

	c.PointerDown(200, 200, false)
	c.PointerMove(220, 200)
	c.PointerMove(240, 240)
	// 40px screen delta from drag start = 20 world units.
	if math.Abs(n.X-110) > 1e-9 || math.Abs(n.Y-120) > 1e-9 {
		t.Errorf("node = (%v,%v), want (110,120)", n.X, n.Y)
	}
}

func TestPanOnBackgroundDrag(t *testing.T) {
	c := New(Config{})
	c.SetIndex(indexOf(bigNode("n1", 1000, 1000)))

	var selections int
	c.OnSelectionChange = func([]string) { selections++ }

	c.PointerDown(10, 10, false)
	c.PointerMove(50, 40)
	tr := c.Transform()
	if tr.OffsetX != 40 || tr.OffsetY != 30 {
		t.Errorf("pan offset = (%v,%v), want (40,30)", tr.OffsetX, tr.OffsetY)
	}
	c.PointerUp(50, 40)
	if selections != 0 {
		t.Error("pan emitted a selection change")
	}
}

func TestPanBy(t *testing.T) {
	c := New(Config{})
	c.PanBy(15, -5)
	c.PanBy(5, 5)
	tr := c.Transform()
	if tr.OffsetX != 20 || tr.OffsetY != 0 {
		t.Errorf("offset = (%v,%v), want (20,0)", tr.OffsetX, tr.OffsetY)
	}
}

func TestSelectIDMatchesClickRules(t *testing.T) {
	c := New(Config{})
	c.SelectID("x", false)
	c.SelectID("y", true)
	if !reflect.DeepEqual(c.SelectedIDs(), []string{"x", "y"}) {
		t.Errorf("selection = %v, want [x y]", c.SelectedIDs())
	}
	c.SelectID("z", false)
	if !reflect.DeepEqual(c.SelectedIDs(), []string{"z"}) {
		t.Errorf("selection = %v, want [z]", c.SelectedIDs())
	}
}
