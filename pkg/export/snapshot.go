// Package export renders headless snapshots of a taxonomy graph to PNG and
// SVG files, and hosts the interactive wizard that collects the options.
//
// A snapshot runs the full engine pipeline without a draw surface: every
// node is admitted, the force layout runs until it settles or a tick budget
// runs out, and the finished layout is framed by a fit-to-content transform
// and drawn by the standard renderer. Requesting both formats renders them
// concurrently from the same settled frame.
package export

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/siteatlas/pkg/debug"
	"github.com/vanderheijden86/siteatlas/pkg/engine"
	"github.com/vanderheijden86/siteatlas/pkg/metrics"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/render"
)

const (
	// DefaultWidth and DefaultHeight size the canvas when the caller does
	// not.
	DefaultWidth  = 1600
	DefaultHeight = 1000

	// DefaultMaxSettleTicks bounds the settle loop. The default physics
	// tuning settles in roughly 300 ticks; the headroom covers datasets
	// that keep jostling longer.
	DefaultMaxSettleTicks = 600

	// fitPadding is the margin between the content bounds and the canvas
	// edge, in pixels.
	fitPadding = 48.0

	// maxFitScale caps the fit zoom so a tiny graph is not blown up to a
	// wall of circles.
	maxFitScale = 2.0

	// settleStep is the simulated frame interval fed to the engine clock.
	settleStep = 16 * time.Millisecond
)

// Options control a snapshot export. An empty PNGPath or SVGPath skips that
// format; at least one must be set.
type Options struct {
	PNGPath string
	SVGPath string

	Width  int
	Height int

	// Theme selects the palette, "dark" or "light".
	Theme string

	// Labels draws node labels on nodes large enough to carry them.
	Labels bool

	// MaxSettleTicks bounds the layout loop. The snapshot is taken from
	// whatever state the simulation reached when the budget ran out.
	MaxSettleTicks int

	// Positions warm-starts the layout, typically from the position cache,
	// so a snapshot matches what the interactive view last showed.
	Positions map[string]model.Point
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Theme == "" {
		o.Theme = "dark"
	}
	if o.MaxSettleTicks <= 0 {
		o.MaxSettleTicks = DefaultMaxSettleTicks
	}
	return o
}

// Result reports what a snapshot wrote and how the layout run went.
type Result struct {
	PNGPath string
	SVGPath string

	Nodes int
	Links int

	// Ticks is how many simulation ticks ran. Settled is false when the
	// tick budget ran out before the layout came to rest.
	Ticks   int
	Settled bool
}

// Snapshot lays out the dataset headlessly and writes the requested files.
func Snapshot(ds *model.Dataset, opts Options) (Result, error) {
	defer metrics.Timer(metrics.SnapshotExport)()

	opts = opts.withDefaults()
	if opts.PNGPath == "" && opts.SVGPath == "" {
		return Result{}, errors.New("snapshot: no output path given")
	}
	if ds == nil || len(ds.Nodes) == 0 {
		return Result{}, errors.New("snapshot: dataset has no nodes")
	}

	eng := engine.New(engine.Config{}, nil, engine.Events{})
	eng.Resize(float64(opts.Width), float64(opts.Height))
	eng.SetDataset(ds, opts.Positions)
	eng.RequestAll()

	start := time.Now()
	ticks := 0
	for ticks < opts.MaxSettleTicks {
		if err := eng.Frame(start.Add(time.Duration(ticks) * settleStep)); err != nil {
			return Result{}, fmt.Errorf("snapshot: settle frame: %w", err)
		}
		ticks++
		if eng.LoadedCount() == eng.TotalCount() && eng.Settled() {
			break
		}
	}

	nodes := eng.Store().Loaded()
	active := eng.Store().ActiveLinks()
	edges := make([]render.Edge, 0, len(active))
	for _, l := range active {
		edges = append(edges, render.Edge{From: l.Source, To: l.Target, Strength: l.Strength})
	}
	frame := render.Frame{Nodes: nodes, Links: edges}

	rs := eng.Store().RadiusScale()
	t := fitTransform(nodes, rs, opts.Width, opts.Height)

	cfg := render.Config{Theme: opts.Theme, MinZoomForLabels: 0.01}
	if !opts.Labels {
		cfg.MinZoomForLabels = math.MaxFloat64
	}

	res := Result{
		Nodes:   len(nodes),
		Links:   len(edges),
		Ticks:   ticks,
		Settled: eng.Settled(),
	}

	// One renderer per goroutine; the frame and transform are only read.
	var g errgroup.Group
	if opts.PNGPath != "" {
		res.PNGPath = opts.PNGPath
		path := opts.PNGPath
		g.Go(func() error {
			surf := render.NewRasterSurface(opts.Width, opts.Height)
			if err := render.New(cfg, rs).Render(frame, t, surf); err != nil {
				return fmt.Errorf("render png: %w", err)
			}
			if err := surf.SavePNG(path); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			return nil
		})
	}
	if opts.SVGPath != "" {
		res.SVGPath = opts.SVGPath
		path := opts.SVGPath
		g.Go(func() error {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			// Render flushes the surface, which ends the SVG document.
			if err := render.New(cfg, rs).Render(frame, t, render.NewSVGSurface(f, opts.Width, opts.Height)); err != nil {
				f.Close()
				return fmt.Errorf("render svg: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	debug.Log("export: snapshot nodes=%d links=%d ticks=%d settled=%v png=%q svg=%q",
		res.Nodes, res.Links, res.Ticks, res.Settled, res.PNGPath, res.SVGPath)
	return res, nil
}

// fitTransform frames every node, including its draw radius, inside the
// canvas with a uniform margin. Large layouts zoom out as far as needed;
// small ones zoom in no further than maxFitScale.
func fitTransform(nodes []*model.Node, rs model.RadiusScale, width, height int) model.Transform {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		r := rs.Radius(n.Metric)
		minX = math.Min(minX, n.X-r)
		minY = math.Min(minY, n.Y-r)
		maxX = math.Max(maxX, n.X+r)
		maxY = math.Max(maxY, n.Y+r)
	}

	availW := float64(width) - 2*fitPadding
	availH := float64(height) - 2*fitPadding
	if availW < 1 {
		availW = 1
	}
	if availH < 1 {
		availH = 1
	}

	scale := maxFitScale
	if span := maxX - minX; span > 0 {
		scale = math.Min(scale, availW/span)
	}
	if span := maxY - minY; span > 0 {
		scale = math.Min(scale, availH/span)
	}

	cx := (minX + maxX) / 2
	cy := (minY + maxY) / 2
	return model.Transform{
		Scale:   scale,
		OffsetX: float64(width)/2 - cx*scale,
		OffsetY: float64(height)/2 - cy*scale,
	}
}

// ParseSize parses a "WIDTHxHEIGHT" string such as "1600x1000".
func ParseSize(s string) (width, height int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size %q, want WIDTHxHEIGHT", s)
	}
	width, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("size %q, want WIDTHxHEIGHT", s)
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("size %q, want WIDTHxHEIGHT", s)
	}
	if width < 64 || height < 64 {
		return 0, 0, fmt.Errorf("size %q below the 64x64 minimum", s)
	}
	return width, height, nil
}

// SnapshotPaths derives the output files from a base path and a format
// selector ("png", "svg", or "both"). A known image extension on the base
// is stripped first, so "map.png" with format both yields map.png and
// map.svg.
func SnapshotPaths(base, format string) (pngPath, svgPath string, err error) {
	switch strings.ToLower(filepath.Ext(base)) {
	case ".png", ".svg":
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "png":
		return base + ".png", "", nil
	case "svg":
		return "", base + ".svg", nil
	case "both", "":
		return base + ".png", base + ".svg", nil
	default:
		return "", "", fmt.Errorf("unknown snapshot format %q (want png, svg, or both)", format)
	}
}
