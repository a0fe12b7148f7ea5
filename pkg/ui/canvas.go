package ui

import (
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Canvas is a terminal draw surface built on Unicode half blocks. Every
// terminal cell carries two vertically stacked pixels: the upper one is the
// foreground of the '▀' rune, the lower one its background. On common cell
// geometry that yields roughly square pixels, so the renderer can treat the
// canvas like any other raster target.
//
// Labels are collected during the draw pass and composited over the block
// art when the frame is turned into a string.
type Canvas struct {
	cols, rows int
	px         []color.RGBA // cols * rows*2, row-major
	texts      []textSpan
}

type textSpan struct {
	col, row int
	text     string
	c        color.RGBA
}

// NewCanvas returns a canvas of the given size in terminal cells.
func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{}
	c.Resize(cols, rows)
	return c
}

// Resize reshapes the canvas and drops the current frame content.
func (c *Canvas) Resize(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	c.cols, c.rows = cols, rows
	c.px = make([]color.RGBA, cols*rows*2)
	c.texts = c.texts[:0]
}

// Size reports the pixel dimensions: one pixel per column, two per row.
func (c *Canvas) Size() (w, h int) { return c.cols, c.rows * 2 }

// Cells reports the terminal dimensions.
func (c *Canvas) Cells() (cols, rows int) { return c.cols, c.rows }

func (c *Canvas) Clear(bg color.RGBA) {
	for i := range c.px {
		c.px[i] = bg
	}
	c.texts = c.texts[:0]
}

func (c *Canvas) set(x, y int, col color.RGBA) {
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows*2 {
		return
	}
	i := y*c.cols + x
	c.px[i] = blend(c.px[i], col)
}

// Pixel returns the color at a pixel coordinate, for tests and for label
// compositing. Out-of-range coordinates return the zero color.
func (c *Canvas) Pixel(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows*2 {
		return color.RGBA{}
	}
	return c.px[y*c.cols+x]
}

func (c *Canvas) DrawLine(x1, y1, x2, y2, width float64, col color.RGBA) {
	// Single-pixel DDA walk. Stroke width below cell resolution collapses
	// to one pixel; there is nothing thinner to draw in a terminal.
	steps := math.Max(math.Abs(x2-x1), math.Abs(y2-y1))
	if steps < 1 {
		steps = 1
	}
	dx := (x2 - x1) / steps
	dy := (y2 - y1) / steps
	x, y := x1, y1
	lastX, lastY := -1<<31, -1<<31
	for i := 0.0; i <= steps; i++ {
		// Rounding repeats pixels on shallow slopes; drawing them once
		// keeps alpha blending from stacking.
		xi, yi := int(math.Round(x)), int(math.Round(y))
		if xi != lastX || yi != lastY {
			c.set(xi, yi, col)
			lastX, lastY = xi, yi
		}
		x += dx
		y += dy
	}
}

func (c *Canvas) DrawCircle(x, y, r float64, fill, stroke color.RGBA, strokeWidth float64) {
	if r < 0.5 {
		r = 0.5
	}
	inner := r - strokeWidth
	minX, maxX := int(math.Floor(x-r)), int(math.Ceil(x+r))
	minY, maxY := int(math.Floor(y-r)), int(math.Ceil(y+r))
	for py := minY; py <= maxY; py++ {
		for pxx := minX; pxx <= maxX; pxx++ {
			d := math.Hypot(float64(pxx)-x, float64(py)-y)
			if d > r {
				continue
			}
			if strokeWidth > 0 && d >= inner {
				c.set(pxx, py, stroke)
			} else {
				c.set(pxx, py, fill)
			}
		}
	}
}

// DrawText records a label centered on x, placed in the cell row covering y.
func (c *Canvas) DrawText(x, y float64, text string, _ float64, col color.RGBA) {
	if text == "" {
		return
	}
	w := runewidth.StringWidth(text)
	c.texts = append(c.texts, textSpan{
		col:  int(math.Round(x)) - w/2,
		row:  int(math.Round(y)) / 2,
		text: text,
		c:    col,
	})
}

func (c *Canvas) Flush() error { return nil }

// View renders the frame as styled terminal rows. Runs of cells sharing
// the same color pair batch into one style call.
func (c *Canvas) View() string {
	type cell struct {
		ch     rune
		fg, bg color.RGBA
	}

	grid := make([]cell, c.cols*c.rows)
	for row := 0; row < c.rows; row++ {
		for col := 0; col < c.cols; col++ {
			top := c.px[(row*2)*c.cols+col]
			bottom := c.px[(row*2+1)*c.cols+col]
			grid[row*c.cols+col] = cell{ch: '▀', fg: top, bg: bottom}
		}
	}

	// Labels overwrite the block art. The cell's own colors become the
	// text background so labels sit on whatever was drawn beneath them.
	for _, span := range c.texts {
		col := span.col
		for _, r := range span.text {
			w := runewidth.RuneWidth(r)
			if w == 0 {
				continue
			}
			if span.row >= 0 && span.row < c.rows && col >= 0 && col < c.cols {
				i := span.row*c.cols + col
				bg := average(grid[i].fg, grid[i].bg)
				grid[i] = cell{ch: r, fg: span.c, bg: bg}
				// A wide rune occupies the following cell too.
				for k := 1; k < w && col+k < c.cols; k++ {
					grid[i+k] = cell{ch: ' ', fg: span.c, bg: bg}
				}
			}
			col += w
		}
	}

	var b strings.Builder
	b.Grow(c.cols * c.rows * 8)
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		var runFg, runBg color.RGBA
		started := false
		flush := func() {
			if run.Len() == 0 {
				return
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(runFg))).
				Background(lipgloss.Color(hexColor(runBg))).
				Render(run.String()))
			run.Reset()
		}
		for col := 0; col < c.cols; col++ {
			cl := grid[row*c.cols+col]
			if !started || cl.fg != runFg || cl.bg != runBg {
				flush()
				runFg, runBg = cl.fg, cl.bg
				started = true
			}
			run.WriteRune(cl.ch)
		}
		flush()
	}
	return b.String()
}

// blend composites src over dst, treating alpha as coverage.
func blend(dst, src color.RGBA) color.RGBA {
	switch src.A {
	case 0xff:
		return src
	case 0:
		return dst
	}
	a := uint32(src.A)
	ia := 0xff - a
	return color.RGBA{
		R: uint8((uint32(src.R)*a + uint32(dst.R)*ia) / 0xff),
		G: uint8((uint32(src.G)*a + uint32(dst.G)*ia) / 0xff),
		B: uint8((uint32(src.B)*a + uint32(dst.B)*ia) / 0xff),
		A: 0xff,
	}
}

func average(a, b color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8((uint16(a.R) + uint16(b.R)) / 2),
		G: uint8((uint16(a.G) + uint16(b.G)) / 2),
		B: uint8((uint16(a.B) + uint16(b.B)) / 2),
		A: 0xff,
	}
}

func hexColor(c color.RGBA) string {
	return "#" + hexByte(c.R) + hexByte(c.G) + hexByte(c.B)
}

func hexByte(v uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[v>>4], digits[v&0xf]})
}
