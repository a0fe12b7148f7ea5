package model

import "math"

// RadiusScale maps a node's importance metric to a draw radius in world
// units. The mapping is monotonic non-decreasing (square-root growth, so
// node area tracks the metric) and clamped to [Min, Max].
type RadiusScale struct {
	Min   float64
	Max   float64
	Scale float64
}

// DefaultRadiusScale matches the tuning the engine ships with; hosts
// normally take these values from config.
var DefaultRadiusScale = RadiusScale{Min: 4, Max: 28, Scale: 0.6}

// Radius returns the draw radius for the given metric value.
func (s RadiusScale) Radius(metric float64) float64 {
	if metric < 0 {
		metric = 0
	}
	r := s.Min + s.Scale*math.Sqrt(metric)
	if r < s.Min {
		r = s.Min
	}
	if r > s.Max {
		r = s.Max
	}
	return r
}

// NodeRadius is shorthand for Radius(n.Metric).
func (s RadiusScale) NodeRadius(n *Node) float64 {
	return s.Radius(n.Metric)
}
