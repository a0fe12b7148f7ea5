package render

import (
	"fmt"
	"image/color"
	"strings"
)

// DrawSurface is the drawing target the renderer paints each frame. All
// coordinates are device pixels; the renderer applies the device pixel ratio
// before calling. Implementations: gg raster (PNG), svgo vector (SVG), the
// TUI cell canvas, and Recorder for tests.
type DrawSurface interface {
	// Size returns the surface dimensions in device pixels.
	Size() (w, h int)
	Clear(bg color.RGBA)
	DrawLine(x1, y1, x2, y2, width float64, c color.RGBA)
	// DrawCircle fills the circle and, when strokeWidth > 0, outlines it.
	DrawCircle(x, y, r float64, fill, stroke color.RGBA, strokeWidth float64)
	// DrawText draws a string centered horizontally on x with its baseline
	// near y. size is advisory; fixed-font surfaces ignore it.
	DrawText(x, y float64, text string, size float64, c color.RGBA)
	// Flush completes the frame. A non-nil error means the surface is lost
	// and the frame must be treated as failed.
	Flush() error
}

// Recorder captures draw operations as stable strings so tests can assert
// on the exact op sequence the renderer emits.
type Recorder struct {
	W, H int
	Ops  []string

	// FailFlush, when set, is returned from Flush to simulate a lost
	// surface.
	FailFlush error
}

var _ DrawSurface = (*Recorder)(nil)

func NewRecorder(w, h int) *Recorder {
	return &Recorder{W: w, H: h}
}

func (r *Recorder) Size() (int, int) { return r.W, r.H }

func (r *Recorder) Clear(bg color.RGBA) {
	r.Ops = append(r.Ops, fmt.Sprintf("clear %s", rgba(bg)))
}

func (r *Recorder) DrawLine(x1, y1, x2, y2, width float64, c color.RGBA) {
	r.Ops = append(r.Ops, fmt.Sprintf("line (%.2f,%.2f)-(%.2f,%.2f) w=%.2f %s",
		x1, y1, x2, y2, width, rgba(c)))
}

func (r *Recorder) DrawCircle(x, y, rad float64, fill, stroke color.RGBA, strokeWidth float64) {
	r.Ops = append(r.Ops, fmt.Sprintf("circle (%.2f,%.2f) r=%.2f fill=%s stroke=%s/%.2f",
		x, y, rad, rgba(fill), rgba(stroke), strokeWidth))
}

func (r *Recorder) DrawText(x, y float64, text string, size float64, c color.RGBA) {
	r.Ops = append(r.Ops, fmt.Sprintf("text (%.2f,%.2f) size=%.1f %s %q",
		x, y, size, rgba(c), text))
}

func (r *Recorder) Flush() error {
	r.Ops = append(r.Ops, "flush")
	return r.FailFlush
}

// Dump returns the recorded ops as one newline-joined string, convenient for
// golden comparisons.
func (r *Recorder) Dump() string { return strings.Join(r.Ops, "\n") }

// Reset clears the recording for the next frame.
func (r *Recorder) Reset() { r.Ops = r.Ops[:0] }

func rgba(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
