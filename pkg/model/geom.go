package model

import "math"

// Point is a position in world coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle in world coordinates.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewRect returns the rectangle spanning the two corner points in any order.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{
		MinX: math.Min(x0, x1),
		MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1),
		MaxY: math.Max(y0, y1),
	}
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Contains reports whether the point (x, y) lies inside r. Edges count as
// inside so that nodes sitting exactly on a boundary are not dropped.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && r.MaxX >= o.MinX && r.MinY <= o.MaxY && r.MaxY >= o.MinY
}

// Expand grows the rectangle by buf on every side.
func (r Rect) Expand(buf float64) Rect {
	return Rect{MinX: r.MinX - buf, MinY: r.MinY - buf, MaxX: r.MaxX + buf, MaxY: r.MaxY + buf}
}

// Transform maps world coordinates to screen coordinates:
// screen = world*Scale + Offset. Scale is uniform in both axes.
type Transform struct {
	OffsetX float64
	OffsetY float64
	Scale   float64
}

// IdentityTransform is the no-op mapping.
var IdentityTransform = Transform{Scale: 1}

// WorldToScreen maps a world position to screen pixels.
func (t Transform) WorldToScreen(wx, wy float64) (float64, float64) {
	return wx*t.Scale + t.OffsetX, wy*t.Scale + t.OffsetY
}

// ScreenToWorld maps a screen position back to world coordinates.
func (t Transform) ScreenToWorld(sx, sy float64) (float64, float64) {
	return (sx - t.OffsetX) / t.Scale, (sy - t.OffsetY) / t.Scale
}

// VisibleWorldRect returns the world-space rectangle covered by a screen of
// the given pixel size under this transform.
func (t Transform) VisibleWorldRect(screenW, screenH float64) Rect {
	x0, y0 := t.ScreenToWorld(0, 0)
	x1, y1 := t.ScreenToWorld(screenW, screenH)
	return NewRect(x0, y0, x1, y1)
}
