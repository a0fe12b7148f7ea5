// Package render turns the engine's per-frame draw list into draw calls on a
// DrawSurface. The renderer owns level-of-detail decisions (labels, badges,
// shadows) and theming; it never touches node state, so rendering the same
// frame twice emits the same op sequence.
package render

import (
	"fmt"
	"image/color"

	"github.com/vanderheijden86/siteatlas/pkg/metrics"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// Config holds the renderer tunables. Zero values select defaults.
type Config struct {
	MinZoomForLabels float64 // labels only above this zoom scale
	LabelMinRadius   float64 // min on-screen radius for an unfocused label, px
	Theme            string  // "dark" (default) or "light"
	DPR              float64 // device pixel ratio, 1 for logical-pixel surfaces
}

func (c Config) withDefaults() Config {
	if c.MinZoomForLabels == 0 {
		c.MinZoomForLabels = 0.8
	}
	if c.LabelMinRadius == 0 {
		c.LabelMinRadius = 8
	}
	if c.Theme == "" {
		c.Theme = "dark"
	}
	if c.DPR == 0 {
		c.DPR = 1
	}
	return c
}

// Edge is a drawable link with both endpoints resolved. The engine guarantees
// both nodes are in the live set; nil endpoints are skipped defensively.
type Edge struct {
	From     *model.Node
	To       *model.Node
	Strength float64
}

// Frame is the draw list for one frame: culled nodes in draw order (first
// drawn first, so later nodes paint on top) plus their visible links and the
// current interaction state.
type Frame struct {
	Nodes    []*model.Node
	Links    []Edge
	Hovered  string
	Selected map[string]bool
}

// Stroke widths and layout offsets, in logical pixels.
const (
	strokeWidthDefault = 1.0
	strokeWidthHover   = 2.0
	strokeWidthSelect  = 2.5
	linkBaseWidth      = 1.0
	shadowOffset       = 2.0
	labelGap           = 10.0
	labelFontSize      = 13.0
	labelMaxRunes      = 40
	badgeMinRadius     = 2.0
)

// Renderer draws frames. Not safe for concurrent use; the frame loop is
// single-threaded by design.
type Renderer struct {
	cfg     Config
	radius  model.RadiusScale
	palette Palette
	perf    bool
}

// New returns a renderer using the given radius mapping, so draw sizes agree
// with the physics collision sizes.
func New(cfg Config, radius model.RadiusScale) *Renderer {
	cfg = cfg.withDefaults()
	return &Renderer{
		cfg:     cfg,
		radius:  radius,
		palette: PaletteFor(cfg.Theme),
	}
}

// SetPerformanceMode toggles reduced draw fidelity: shadows, badges, and
// labels are skipped. Positions and data are never affected.
func (r *Renderer) SetPerformanceMode(on bool) { r.perf = on }

// PerformanceMode reports whether reduced fidelity is active.
func (r *Renderer) PerformanceMode() bool { return r.perf }

// SetDPR changes the device pixel ratio applied to all draw coordinates.
func (r *Renderer) SetDPR(dpr float64) {
	if dpr > 0 {
		r.cfg.DPR = dpr
	}
}

// Palette returns the active theme palette.
func (r *Renderer) Palette() Palette { return r.palette }

// Render draws one frame: background, links beneath nodes, nodes in draw
// order with status fill and state stroke, then labels on top. The returned
// error is a surface failure; it carries no data problems.
func (r *Renderer) Render(f Frame, t model.Transform, s DrawSurface) error {
	defer metrics.Timer(metrics.RenderFrame)()

	d := r.cfg.DPR
	p := r.palette
	s.Clear(p.Background)

	for _, e := range f.Links {
		if e.From == nil || e.To == nil {
			continue
		}
		x1, y1 := t.WorldToScreen(e.From.X, e.From.Y)
		x2, y2 := t.WorldToScreen(e.To.X, e.To.Y)
		s.DrawLine(x1*d, y1*d, x2*d, y2*d, (linkBaseWidth+e.Strength)*d, p.Link)
	}

	for _, n := range f.Nodes {
		sx, sy := t.WorldToScreen(n.X, n.Y)
		sr := r.radius.Radius(n.Metric) * t.Scale
		if !r.perf {
			s.DrawCircle((sx+shadowOffset)*d, (sy+shadowOffset)*d, sr*d,
				p.Shadow, color.RGBA{}, 0)
		}
		stroke, width := r.strokeFor(f, n)
		s.DrawCircle(sx*d, sy*d, sr*d, p.Fill(n.Status), stroke, width*d)
		if !r.perf {
			br := max(badgeMinRadius, sr*0.25)
			bx := sx + sr*0.7071
			by := sy - sr*0.7071
			s.DrawCircle(bx*d, by*d, br*d, p.Badge(n.Status), p.Background, 1*d)
		}
	}

	if !r.perf && t.Scale > r.cfg.MinZoomForLabels {
		for _, n := range f.Nodes {
			sr := r.radius.Radius(n.Metric) * t.Scale
			if sr <= r.cfg.LabelMinRadius && !r.focused(f, n) {
				continue
			}
			label := n.Label
			if label == "" {
				label = n.ID
			}
			sx, sy := t.WorldToScreen(n.X, n.Y)
			s.DrawText(sx*d, (sy+sr+labelGap)*d, truncate(label, labelMaxRunes),
				labelFontSize*d, p.Label)
		}
	}

	if err := s.Flush(); err != nil {
		return fmt.Errorf("flush draw surface: %w", err)
	}
	return nil
}

func (r *Renderer) strokeFor(f Frame, n *model.Node) (color.RGBA, float64) {
	switch {
	case f.Selected[n.ID]:
		return r.palette.StrokeSelect, strokeWidthSelect
	case f.Hovered != "" && f.Hovered == n.ID:
		return r.palette.StrokeHover, strokeWidthHover
	default:
		return r.palette.StrokeDefault, strokeWidthDefault
	}
}

func (r *Renderer) focused(f Frame, n *model.Node) bool {
	return f.Selected[n.ID] || (f.Hovered != "" && f.Hovered == n.ID)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
