package engine

import (
	"time"

	"github.com/vanderheijden86/siteatlas/pkg/config"
	"github.com/vanderheijden86/siteatlas/pkg/interact"
	"github.com/vanderheijden86/siteatlas/pkg/model"
	"github.com/vanderheijden86/siteatlas/pkg/physics"
	"github.com/vanderheijden86/siteatlas/pkg/progressive"
	"github.com/vanderheijden86/siteatlas/pkg/render"
)

// Events are the engine's outward notifications. All callbacks fire
// synchronously from the frame loop; nil fields are skipped.
type Events struct {
	// SelectionChanged fires with the sorted selected ids whenever the
	// selection set changes, including when it empties.
	SelectionChanged func(ids []string)
	// HoverChanged fires when the pointer enters or leaves a node.
	HoverChanged func(id string, ok bool)
	// LoadProgress fires when the loaded count or active tier changes.
	LoadProgress func(loaded, total int, tier progressive.Tier)
}

// Config aggregates the per-component tunables plus the frame pacing knobs
// the engine itself owns. Zero values select defaults.
type Config struct {
	Physics  physics.Config
	Loader   progressive.Config
	Interact interact.Config
	Render   render.Config
	Radius   model.RadiusScale

	// ClusterZoom is the scale below which nearby nodes collapse into
	// synthetic representatives.
	ClusterZoom float64
	// ClusterRadius is the merge distance in world units.
	ClusterRadius float64
	// CullBuffer is the culling margin in screen pixels.
	CullBuffer float64
	// LeafCapacity caps bodies per quadtree leaf.
	LeafCapacity int

	// FrameBudget is the whole-frame wall-clock target.
	FrameBudget time.Duration
	// AdmitBudget bounds per-frame admission work.
	AdmitBudget time.Duration
	// PerfTripFrames is how many consecutive over-budget frames switch the
	// renderer into performance mode.
	PerfTripFrames int
}

func (c Config) withDefaults() Config {
	if c.Radius == (model.RadiusScale{}) {
		c.Radius = model.DefaultRadiusScale
	}
	if c.ClusterZoom == 0 {
		c.ClusterZoom = 0.5
	}
	if c.ClusterRadius == 0 {
		c.ClusterRadius = 40
	}
	if c.CullBuffer == 0 {
		c.CullBuffer = 100
	}
	if c.LeafCapacity == 0 {
		c.LeafCapacity = 8
	}
	if c.FrameBudget == 0 {
		c.FrameBudget = 16 * time.Millisecond
	}
	if c.AdmitBudget == 0 {
		c.AdmitBudget = 4 * time.Millisecond
	}
	if c.PerfTripFrames == 0 {
		c.PerfTripFrames = 30
	}
	return c
}

// FromSettings maps the YAML configuration onto engine tunables.
func FromSettings(s config.Config) Config {
	return Config{
		Physics: physics.Config{
			Repulsion:         s.Physics.Repulsion,
			SpringLength:      s.Physics.SpringLength,
			SpringStiffness:   s.Physics.SpringStiffness,
			CenterGravity:     s.Physics.CenterGravity,
			Damping:           s.Physics.Damping,
			Theta:             s.Physics.Theta,
			AlphaDecay:        s.Physics.AlphaDecay,
			AlphaMin:          s.Physics.AlphaMin,
			AlphaBoost:        s.Physics.AlphaBoost,
			CollisionStrength: s.Physics.CollisionStrength,
		},
		Loader: progressive.Config{
			CoreLimit:      s.Loader.CoreLimit,
			BatchMin:       s.Loader.BatchMin,
			BatchMax:       s.Loader.BatchMax,
			ViewportBuffer: s.Loader.ViewportBufferPx,
			WeightDegree:   s.Loader.WeightDegree,
			WeightDepth:    s.Loader.WeightDepth,
			WeightMetric:   s.Loader.WeightMetric,
		},
		Interact: interact.Config{
			MinScale:        s.Interact.MinScale,
			MaxScale:        s.Interact.MaxScale,
			DragThresholdPx: s.Interact.DragThresholdPx,
			ZoomSensitivity: s.Interact.ZoomSensitivity,
		},
		Render: render.Config{
			MinZoomForLabels: s.Render.MinZoomForLabels,
			LabelMinRadius:   s.Render.LabelMinRadius,
			Theme:            s.Render.Theme,
		},
		Radius: model.RadiusScale{
			Min:   s.Render.MinRadius,
			Max:   s.Render.MaxRadius,
			Scale: s.Render.RadiusScale,
		},
		ClusterZoom:    s.Spatial.ClusterZoom,
		ClusterRadius:  s.Spatial.ClusterRadius,
		CullBuffer:     s.Spatial.CullBufferPx,
		LeafCapacity:   s.Spatial.LeafCapacity,
		FrameBudget:    time.Duration(s.Engine.FrameBudgetMS * float64(time.Millisecond)),
		AdmitBudget:    time.Duration(s.Loader.AdmitBudgetMS * float64(time.Millisecond)),
		PerfTripFrames: s.Engine.PerfModeTripFrames,
	}
}
