package model

// Dataset is the finished node/link collection handed to the engine by the
// upstream pipeline. Generation is an opaque label (normally derived from
// the source file) used to key the position cache.
type Dataset struct {
	Nodes      []*Node
	Links      []Link
	Generation string
}

// NodeByID builds an ID lookup over the dataset's nodes.
func (d *Dataset) NodeByID() map[string]*Node {
	m := make(map[string]*Node, len(d.Nodes))
	for _, n := range d.Nodes {
		m[n.ID] = n
	}
	return m
}

// Degree returns the number of link endpoints touching each node, counting
// both directions. Parent edges are not included; callers that want the
// taxonomy edges counted should add them to Links first.
func (d *Dataset) Degree() map[string]int {
	deg := make(map[string]int, len(d.Nodes))
	for _, l := range d.Links {
		deg[l.SourceID]++
		deg[l.TargetID]++
	}
	return deg
}

// MaxMetric returns the largest node metric in the dataset, or zero when
// the dataset is empty.
func (d *Dataset) MaxMetric() float64 {
	var max float64
	for _, n := range d.Nodes {
		if n.Metric > max {
			max = n.Metric
		}
	}
	return max
}
