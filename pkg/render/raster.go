package render

import (
	"image"
	"image/color"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"
)

// RasterSurface draws into an in-memory RGBA image via gg. It backs PNG
// snapshot export and any host that wants pixels.
type RasterSurface struct {
	dc *gg.Context
}

var _ DrawSurface = (*RasterSurface)(nil)

// NewRasterSurface allocates a w x h pixel surface.
func NewRasterSurface(w, h int) *RasterSurface {
	dc := gg.NewContext(w, h)
	dc.SetFontFace(basicfont.Face7x13)
	return &RasterSurface{dc: dc}
}

func (s *RasterSurface) Size() (int, int) { return s.dc.Width(), s.dc.Height() }

func (s *RasterSurface) Clear(bg color.RGBA) {
	s.dc.SetColor(bg)
	s.dc.Clear()
}

func (s *RasterSurface) DrawLine(x1, y1, x2, y2, width float64, c color.RGBA) {
	s.dc.SetColor(c)
	s.dc.SetLineWidth(width)
	s.dc.DrawLine(x1, y1, x2, y2)
	s.dc.Stroke()
}

func (s *RasterSurface) DrawCircle(x, y, r float64, fill, stroke color.RGBA, strokeWidth float64) {
	s.dc.SetColor(fill)
	s.dc.DrawCircle(x, y, r)
	s.dc.Fill()
	if strokeWidth > 0 && stroke.A > 0 {
		s.dc.SetColor(stroke)
		s.dc.SetLineWidth(strokeWidth)
		s.dc.DrawCircle(x, y, r)
		s.dc.Stroke()
	}
}

func (s *RasterSurface) DrawText(x, y float64, text string, size float64, c color.RGBA) {
	// basicfont is fixed-size; size is ignored.
	s.dc.SetColor(c)
	s.dc.DrawStringAnchored(text, x, y, 0.5, 0.5)
}

func (s *RasterSurface) Flush() error { return nil }

// Image exposes the backing image for encoding or inspection.
func (s *RasterSurface) Image() image.Image { return s.dc.Image() }

// SavePNG encodes the surface to a PNG file.
func (s *RasterSurface) SavePNG(path string) error { return s.dc.SavePNG(path) }
