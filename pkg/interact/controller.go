// Package interact turns pointer and wheel input into the viewport transform
// and the hover/selection/drag state the frame pipeline consumes. It owns the
// Pinned flag on nodes; positions are written only while a drag is active.
package interact

import (
	"sort"

	"github.com/vanderheijden86/siteatlas/pkg/metrics"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/spatial"
)

// Config holds the interaction tunables. Zero values select defaults.
type Config struct {
	MinScale        float64 // zoom floor
	MaxScale        float64 // zoom ceiling
	DragThresholdPx float64 // movement below this is a click
	ZoomSensitivity float64 // wheel delta divisor
}

func (c Config) withDefaults() Config {
	if c.MinScale == 0 {
		c.MinScale = 0.2
	}
	if c.MaxScale == 0 {
		c.MaxScale = 5
	}
	if c.DragThresholdPx == 0 {
		c.DragThresholdPx = 3
	}
	if c.ZoomSensitivity == 0 {
		c.ZoomSensitivity = 500
	}
	return c
}

type pointerState uint8

const (
	stateIdle pointerState = iota
	// statePressed is the window between pointer-down and either a click
	// (release below the drag threshold) or a drag/pan (movement beyond it).
	statePressed
	statePanning
	stateDragging
)

// Controller is the pointer state machine. Single-threaded like the rest of
// the frame pipeline.
type Controller struct {
	cfg Config

	t                model.Transform
	screenW, screenH float64

	index *spatial.Tree

	hovered  string
	selected map[string]bool

	state         pointerState
	pressX        float64
	pressY        float64
	pressAdditive bool
	pressNode     *model.Node
	// Grab offset keeps the node from snapping its center to the pointer.
	grabDX, grabDY float64
	// Pan base: the offset at pointer-down.
	panBaseX, panBaseY float64

	// OnRelease fires at drag end with the dragged node, after it has been
	// unpinned. The engine uses it to reheat the simulation.
	OnRelease func(*model.Node)
	// OnSelectionChange fires with the sorted selected ids whenever the
	// selection set changes.
	OnSelectionChange func([]string)
	// OnHoverChange fires when the hovered node changes; ok is false when
	// the pointer left all nodes.
	OnHoverChange func(id string, ok bool)
}

// New returns an idle controller with the identity transform.
func New(cfg Config) *Controller {
	return &Controller{
		cfg:      cfg.withDefaults(),
		t:        model.IdentityTransform,
		selected: make(map[string]bool),
	}
}

// Transform returns the current world-to-screen mapping.
func (c *Controller) Transform() model.Transform { return c.t }

// SetTransform replaces the viewport transform (dataset reset, fit-to-view).
func (c *Controller) SetTransform(t model.Transform) {
	if t.Scale <= 0 {
		t.Scale = 1
	}
	c.t = t
}

// Resize records the screen size in logical pixels.
func (c *Controller) Resize(w, h float64) {
	c.screenW, c.screenH = w, h
}

// ScreenSize returns the last recorded screen size.
func (c *Controller) ScreenSize() (float64, float64) { return c.screenW, c.screenH }

// SetIndex points the controller at the current frame's spatial index.
func (c *Controller) SetIndex(idx *spatial.Tree) { c.index = idx }

// Hovered returns the hovered node id, if any.
func (c *Controller) Hovered() (string, bool) { return c.hovered, c.hovered != "" }

// Selected returns the live selection set. Callers must not mutate it.
func (c *Controller) Selected() map[string]bool { return c.selected }

// SelectedIDs returns the selection as a sorted slice.
func (c *Controller) SelectedIDs() []string {
	ids := make([]string, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dragging returns the id of the node being dragged, if any.
func (c *Controller) Dragging() (string, bool) {
	if c.state == stateDragging && c.pressNode != nil {
		return c.pressNode.ID, true
	}
	return "", false
}

// PointerDown begins a press at screen (x, y). additive marks a
// modifier-click for selection.
func (c *Controller) PointerDown(x, y float64, additive bool) {
	c.pressX, c.pressY = x, y
	c.pressAdditive = additive
	c.pressNode = c.hitTest(x, y)
	c.panBaseX, c.panBaseY = c.t.OffsetX, c.t.OffsetY
	c.state = statePressed
}

// PointerMove updates hover when idle, promotes a press to a drag or pan
// past the threshold, and drives the active drag or pan.
func (c *Controller) PointerMove(x, y float64) {
	switch c.state {
	case stateIdle:
		c.updateHover(x, y)
	case statePressed:
		dx, dy := x-c.pressX, y-c.pressY
		th := c.cfg.DragThresholdPx
		if dx*dx+dy*dy <= th*th {
			return
		}
		if c.pressNode != nil {
			c.startDrag(x, y)
		} else {
			c.state = statePanning
			c.panTo(x, y)
		}
	case stateDragging:
		c.dragTo(x, y)
	case statePanning:
		c.panTo(x, y)
	}
}

// PointerUp ends the press: a click below the threshold selects (or clears on
// background); a drag end unpins and hands the node to OnRelease.
func (c *Controller) PointerUp(x, y float64) {
	switch c.state {
	case stateDragging:
		n := c.pressNode
		n.Pinned = false
		if c.OnRelease != nil {
			c.OnRelease(n)
		}
	case statePressed:
		if c.pressNode != nil {
			c.applySelect(c.pressNode.ID, c.pressAdditive)
		} else if !c.pressAdditive {
			c.ClearSelection()
		}
	}
	c.state = stateIdle
	c.pressNode = nil
}

// Wheel zooms, keeping the world point under the cursor fixed. deltaY > 0
// zooms out (scroll down), matching typical wheel conventions.
func (c *Controller) Wheel(x, y, deltaY float64) {
	factor := 1 - clamp(deltaY/c.cfg.ZoomSensitivity, -0.5, 0.5)
	newScale := clamp(c.t.Scale*factor, c.cfg.MinScale, c.cfg.MaxScale)
	if newScale == c.t.Scale {
		return
	}
	wx, wy := c.t.ScreenToWorld(x, y)
	c.t.Scale = newScale
	c.t.OffsetX = x - wx*newScale
	c.t.OffsetY = y - wy*newScale
}

// PanBy shifts the viewport by a screen-space delta (keyboard panning).
func (c *Controller) PanBy(dx, dy float64) {
	c.t.OffsetX += dx
	c.t.OffsetY += dy
}

// SelectID applies the click selection rules to an id directly (search jump).
func (c *Controller) SelectID(id string, additive bool) {
	c.applySelect(id, additive)
}

// ClearSelection empties the selection set.
func (c *Controller) ClearSelection() {
	if len(c.selected) == 0 {
		return
	}
	c.selected = make(map[string]bool)
	c.emitSelection()
}

// ClearHover drops the hover state. Used on dataset replacement, when the
// hovered id may no longer exist.
func (c *Controller) ClearHover() {
	if c.hovered == "" {
		return
	}
	c.hovered = ""
	if c.OnHoverChange != nil {
		c.OnHoverChange("", false)
	}
}

func (c *Controller) startDrag(x, y float64) {
	n := c.pressNode
	n.Pinned = true
	wx, wy := c.t.ScreenToWorld(x, y)
	c.grabDX, c.grabDY = n.X-wx, n.Y-wy
	c.state = stateDragging
	c.dragTo(x, y)
}

func (c *Controller) dragTo(x, y float64) {
	n := c.pressNode
	wx, wy := c.t.ScreenToWorld(x, y)
	n.X = wx + c.grabDX
	n.Y = wy + c.grabDY
	n.VX, n.VY = 0, 0
}

func (c *Controller) panTo(x, y float64) {
	c.t.OffsetX = c.panBaseX + (x - c.pressX)
	c.t.OffsetY = c.panBaseY + (y - c.pressY)
}

func (c *Controller) updateHover(x, y float64) {
	id := ""
	if n := c.hitTest(x, y); n != nil {
		id = n.ID
	}
	if id == c.hovered {
		return
	}
	c.hovered = id
	if c.OnHoverChange != nil {
		c.OnHoverChange(id, id != "")
	}
}

func (c *Controller) applySelect(id string, additive bool) {
	if additive {
		if c.selected[id] {
			delete(c.selected, id)
		} else {
			c.selected[id] = true
		}
		c.emitSelection()
		return
	}
	if len(c.selected) == 1 && c.selected[id] {
		return
	}
	c.selected = map[string]bool{id: true}
	c.emitSelection()
}

func (c *Controller) emitSelection() {
	if c.OnSelectionChange != nil {
		c.OnSelectionChange(c.SelectedIDs())
	}
}

func (c *Controller) hitTest(x, y float64) *model.Node {
	if c.index == nil {
		return nil
	}
	defer metrics.Timer(metrics.HitTest)()
	wx, wy := c.t.ScreenToWorld(x, y)
	n, ok := c.index.HitTest(wx, wy)
	if !ok {
		return nil
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
