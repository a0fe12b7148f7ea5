package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"
)

// SVGSurface streams draw ops as SVG elements. Single-shot: one Clear..Flush
// cycle per document. svgo swallows writer errors, so writes go through a
// wrapper that keeps the first one for Flush to report.
type SVGSurface struct {
	canvas *svg.SVG
	ew     *errWriter
	w, h   int
	ended  bool
}

var _ DrawSurface = (*SVGSurface)(nil)

// NewSVGSurface starts an SVG document of the given pixel size on w.
func NewSVGSurface(w io.Writer, width, height int) *SVGSurface {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(width, height)
	return &SVGSurface{canvas: canvas, ew: ew, w: width, h: height}
}

func (s *SVGSurface) Size() (int, int) { return s.w, s.h }

func (s *SVGSurface) Clear(bg color.RGBA) {
	s.canvas.Rect(0, 0, s.w, s.h, fmt.Sprintf("fill:%s", css(bg)))
}

func (s *SVGSurface) DrawLine(x1, y1, x2, y2, width float64, c color.RGBA) {
	style := fmt.Sprintf("stroke:%s;stroke-width:%.2f", css(c), width)
	if c.A < 0xff {
		style += fmt.Sprintf(";stroke-opacity:%.2f", opacity(c))
	}
	s.canvas.Line(px(x1), px(y1), px(x2), px(y2), style)
}

func (s *SVGSurface) DrawCircle(x, y, r float64, fill, stroke color.RGBA, strokeWidth float64) {
	style := fmt.Sprintf("fill:%s", css(fill))
	if fill.A < 0xff {
		style += fmt.Sprintf(";fill-opacity:%.2f", opacity(fill))
	}
	if strokeWidth > 0 && stroke.A > 0 {
		style += fmt.Sprintf(";stroke:%s;stroke-width:%.2f", css(stroke), strokeWidth)
		if stroke.A < 0xff {
			style += fmt.Sprintf(";stroke-opacity:%.2f", opacity(stroke))
		}
	}
	s.canvas.Circle(px(x), px(y), px(r), style)
}

func (s *SVGSurface) DrawText(x, y float64, text string, size float64, c color.RGBA) {
	s.canvas.Text(px(x), px(y), text,
		fmt.Sprintf("fill:%s;font-size:%.0fpx;font-family:monospace;text-anchor:middle", css(c), size))
}

// Flush closes the document and reports the first write error, if any.
func (s *SVGSurface) Flush() error {
	if !s.ended {
		s.canvas.End()
		s.ended = true
	}
	return s.ew.err
}

func px(v float64) int { return int(math.Round(v)) }

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func opacity(c color.RGBA) float64 { return float64(c.A) / 0xff }

// errWriter remembers the first error so a stream of fire-and-forget svgo
// writes still surfaces failure.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
