// Package model defines the core graph data types shared by every part of
// the engine: nodes, links, datasets, and the radius mapping that turns a
// node's importance metric into a draw radius.
package model

import (
	"errors"
	"fmt"
)

// Status drives a node's fill color in the renderer. It reflects the health
// of the page/section the node represents, as computed upstream.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusStale    Status = "stale"
	StatusUnknown  Status = "unknown"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusHealthy, StatusWarning, StatusCritical, StatusStale, StatusUnknown:
		return true
	}
	return false
}

// LoadState tracks whether a node has been admitted into the live graph.
type LoadState uint8

const (
	// LoadPending means the node exists in the dataset but has not been
	// admitted by the progressive loader yet.
	LoadPending LoadState = iota
	// LoadLoaded means the node is live: simulated, indexed, and drawable.
	LoadLoaded
)

func (ls LoadState) String() string {
	if ls == LoadLoaded {
		return "loaded"
	}
	return "pending"
}

// Node is one element of the site taxonomy. Position and velocity are
// mutated exclusively by the force simulation; Pinned only by the
// interaction controller; LoadState only by the progressive loader.
type Node struct {
	ID       string  `json:"id"`
	Label    string  `json:"label,omitempty"`
	URL      string  `json:"url,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Depth    int     `json:"depth,omitempty"`
	ParentID string  `json:"parent,omitempty"`
	Metric   float64 `json:"metric,omitempty"`
	Status   Status  `json:"status,omitempty"`

	// Layout state, world coordinates.
	X  float64 `json:"-"`
	Y  float64 `json:"-"`
	VX float64 `json:"-"`
	VY float64 `json:"-"`

	Pinned    bool      `json:"-"`
	LoadState LoadState `json:"-"`

	// ClusterMemberIDs is non-nil only when this node is a synthetic
	// representative standing in for several nearby real nodes at low zoom.
	ClusterMemberIDs []string `json:"-"`
}

// ErrMissingID marks a node record without an id field.
var ErrMissingID = errors.New("node missing id")

// Validate checks the fields a record must carry to enter a dataset.
// Unknown statuses are not an error; they normalize to StatusUnknown.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrMissingID
	}
	if n.Metric < 0 {
		return fmt.Errorf("node %s: negative metric %v", n.ID, n.Metric)
	}
	return nil
}

// Normalize fills defaulted fields in place: empty labels fall back to the
// ID, unrecognized statuses become StatusUnknown.
func (n *Node) Normalize() {
	if n.Label == "" {
		n.Label = n.ID
	}
	if !n.Status.Valid() {
		n.Status = StatusUnknown
	}
}

// IsCluster reports whether n is a synthetic cluster representative.
func (n *Node) IsCluster() bool {
	return len(n.ClusterMemberIDs) > 0
}

// IsRoot reports whether n sits at the top of the taxonomy.
func (n *Node) IsRoot() bool {
	return n.ParentID == ""
}

// Link is a directed edge between two nodes. Strength in (0, 1] scales the
// spring attraction between its endpoints; zero means "use the default".
type Link struct {
	SourceID string  `json:"source"`
	TargetID string  `json:"target"`
	Strength float64 `json:"strength,omitempty"`
}

// Validate checks that both endpoints are named.
func (l Link) Validate() error {
	if l.SourceID == "" || l.TargetID == "" {
		return fmt.Errorf("link %q -> %q: empty endpoint", l.SourceID, l.TargetID)
	}
	if l.Strength < 0 || l.Strength > 1 {
		return fmt.Errorf("link %s -> %s: strength %v outside [0,1]", l.SourceID, l.TargetID, l.Strength)
	}
	return nil
}
