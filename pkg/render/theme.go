package render

import (
	"image/color"

	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// Palette is a resolved theme: every color the renderer needs. Fills are
// muted so the graph reads as a whole; badges use the saturated variant of
// the same status so state stays visible on small nodes.
type Palette struct {
	Background    color.RGBA
	Link          color.RGBA
	Label         color.RGBA
	Shadow        color.RGBA
	StrokeDefault color.RGBA
	StrokeHover   color.RGBA
	StrokeSelect  color.RGBA

	FillHealthy  color.RGBA
	FillWarning  color.RGBA
	FillCritical color.RGBA
	FillStale    color.RGBA
	FillUnknown  color.RGBA

	BadgeHealthy  color.RGBA
	BadgeWarning  color.RGBA
	BadgeCritical color.RGBA
	BadgeStale    color.RGBA
	BadgeUnknown  color.RGBA
}

var darkPalette = Palette{
	Background:    color.RGBA{0x0b, 0x12, 0x20, 0xff},
	Link:          color.RGBA{0x3b, 0x4a, 0x63, 0xff},
	Label:         color.RGBA{0xdb, 0xe4, 0xf3, 0xff},
	Shadow:        color.RGBA{0x00, 0x00, 0x00, 0x64},
	StrokeDefault: color.RGBA{0x2c, 0x3a, 0x52, 0xff},
	StrokeHover:   color.RGBA{0xe2, 0xe8, 0xf0, 0xff},
	StrokeSelect:  color.RGBA{0x53, 0xb1, 0xfd, 0xff},

	FillHealthy:  color.RGBA{0x1f, 0x7a, 0x4c, 0xff},
	FillWarning:  color.RGBA{0x8a, 0x6d, 0x1d, 0xff},
	FillCritical: color.RGBA{0x8f, 0x2f, 0x39, 0xff},
	FillStale:    color.RGBA{0x4b, 0x55, 0x63, 0xff},
	FillUnknown:  color.RGBA{0x37, 0x41, 0x51, 0xff},

	BadgeHealthy:  color.RGBA{0x4a, 0xde, 0x80, 0xff},
	BadgeWarning:  color.RGBA{0xfa, 0xcc, 0x15, 0xff},
	BadgeCritical: color.RGBA{0xf8, 0x71, 0x71, 0xff},
	BadgeStale:    color.RGBA{0x9c, 0xa3, 0xaf, 0xff},
	BadgeUnknown:  color.RGBA{0x6b, 0x72, 0x80, 0xff},
}

var lightPalette = Palette{
	Background:    color.RGBA{0xf8, 0xfa, 0xfc, 0xff},
	Link:          color.RGBA{0x94, 0xa3, 0xb8, 0xff},
	Label:         color.RGBA{0x1e, 0x29, 0x3b, 0xff},
	Shadow:        color.RGBA{0x00, 0x00, 0x00, 0x28},
	StrokeDefault: color.RGBA{0x47, 0x55, 0x69, 0xff},
	StrokeHover:   color.RGBA{0x0f, 0x17, 0x2a, 0xff},
	StrokeSelect:  color.RGBA{0x02, 0x84, 0xc7, 0xff},

	FillHealthy:  color.RGBA{0x86, 0xef, 0xac, 0xff},
	FillWarning:  color.RGBA{0xfd, 0xe6, 0x8a, 0xff},
	FillCritical: color.RGBA{0xfe, 0xca, 0xca, 0xff},
	FillStale:    color.RGBA{0xe2, 0xe8, 0xf0, 0xff},
	FillUnknown:  color.RGBA{0xcb, 0xd5, 0xe1, 0xff},

	BadgeHealthy:  color.RGBA{0x16, 0xa3, 0x4a, 0xff},
	BadgeWarning:  color.RGBA{0xd9, 0x77, 0x06, 0xff},
	BadgeCritical: color.RGBA{0xdc, 0x26, 0x26, 0xff},
	BadgeStale:    color.RGBA{0x64, 0x74, 0x8b, 0xff},
	BadgeUnknown:  color.RGBA{0x47, 0x55, 0x69, 0xff},
}

// PaletteFor resolves a theme name. Unknown names fall back to dark.
func PaletteFor(theme string) Palette {
	if theme == "light" {
		return lightPalette
	}
	return darkPalette
}

// Fill returns the node fill color for a status.
func (p Palette) Fill(s model.Status) color.RGBA {
	switch s {
	case model.StatusHealthy:
		return p.FillHealthy
	case model.StatusWarning:
		return p.FillWarning
	case model.StatusCritical:
		return p.FillCritical
	case model.StatusStale:
		return p.FillStale
	default:
		return p.FillUnknown
	}
}

// Badge returns the saturated accent color for a status.
func (p Palette) Badge(s model.Status) color.RGBA {
	switch s {
	case model.StatusHealthy:
		return p.BadgeHealthy
	case model.StatusWarning:
		return p.BadgeWarning
	case model.StatusCritical:
		return p.BadgeCritical
	case model.StatusStale:
		return p.BadgeStale
	default:
		return p.BadgeUnknown
	}
}
