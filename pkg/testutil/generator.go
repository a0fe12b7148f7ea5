// Package testutil provides deterministic taxonomy fixtures for tests.
// All generators produce the same dataset for the same config, so tests
// that depend on admission order or layout are reproducible.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// GeneratorConfig controls dataset generation.
type GeneratorConfig struct {
	Seed           int64          // random seed for determinism (0 = 42)
	IDPrefix       string         // prefix for node ids (default: "test")
	BaseURL        string         // prefix for node URLs (default: "https://example.com")
	ParentStrength float64        // strength of materialized taxonomy edges (default: 0.7)
	StatusMix      []model.Status // status distribution (nil = all healthy)
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:           42,
		IDPrefix:       "test",
		BaseURL:        "https://example.com",
		ParentStrength: 0.7,
		StatusMix:      []model.Status{model.StatusHealthy},
	}
}

// Generator creates taxonomy datasets with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "test"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://example.com"
	}
	if cfg.ParentStrength == 0 {
		cfg.ParentStrength = 0.7
	}
	if len(cfg.StatusMix) == 0 {
		cfg.StatusMix = []model.Status{model.StatusHealthy}
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a generator with the default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// node builds one taxonomy node. Metrics decline with the index so the
// importance order over a generated dataset is stable and obvious.
func (g *Generator) node(id, parentID string, depth, index, total int) *model.Node {
	return &model.Node{
		ID:       id,
		Label:    strings.ReplaceAll(id, "/", " "),
		URL:      g.cfg.BaseURL + "/" + id,
		Kind:     kindForDepth(depth),
		Depth:    depth,
		ParentID: parentID,
		Metric:   float64(10 * (total - index)),
		Status:   g.pickStatus(),
	}
}

func kindForDepth(depth int) string {
	switch depth {
	case 0:
		return "root"
	case 1:
		return "section"
	default:
		return "page"
	}
}

func (g *Generator) pickStatus() model.Status {
	return g.cfg.StatusMix[g.rng.Intn(len(g.cfg.StatusMix))]
}

// parentEdge materializes the taxonomy edge the loader would add for the
// same record.
func (g *Generator) parentEdge(n *model.Node) model.Link {
	return model.Link{SourceID: n.ParentID, TargetID: n.ID, Strength: g.cfg.ParentStrength}
}

// Chain generates a linear taxonomy: root -> a -> b -> ... with depth
// increasing by one per node.
func (g *Generator) Chain(size int) *model.Dataset {
	ds := &model.Dataset{Generation: fmt.Sprintf("chain-%d", size)}
	parent := ""
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("%s/%d", g.cfg.IDPrefix, i)
		if i == 0 {
			id = g.cfg.IDPrefix
		}
		n := g.node(id, parent, i, i, size)
		ds.Nodes = append(ds.Nodes, n)
		if parent != "" {
			ds.Links = append(ds.Links, g.parentEdge(n))
		}
		parent = id
	}
	return ds
}

// Star generates one root with the given number of direct children.
func (g *Generator) Star(spokes int) *model.Dataset {
	ds := &model.Dataset{Generation: fmt.Sprintf("star-%d", spokes)}
	root := g.node(g.cfg.IDPrefix, "", 0, 0, spokes+1)
	ds.Nodes = append(ds.Nodes, root)
	for i := 0; i < spokes; i++ {
		n := g.node(fmt.Sprintf("%s/%d", g.cfg.IDPrefix, i), root.ID, 1, i+1, spokes+1)
		ds.Nodes = append(ds.Nodes, n)
		ds.Links = append(ds.Links, g.parentEdge(n))
	}
	return ds
}

// Tree generates a balanced taxonomy of the given depth where every
// non-leaf has breadth children. Depth 1 is just the root.
func (g *Generator) Tree(depth, breadth int) *model.Dataset {
	total := 1
	width := 1
	for d := 1; d < depth; d++ {
		width *= breadth
		total += width
	}

	ds := &model.Dataset{Generation: fmt.Sprintf("tree-%dx%d", depth, breadth)}
	root := g.node(g.cfg.IDPrefix, "", 0, 0, total)
	ds.Nodes = append(ds.Nodes, root)

	index := 1
	level := []*model.Node{root}
	for d := 1; d < depth; d++ {
		var next []*model.Node
		for _, p := range level {
			for b := 0; b < breadth; b++ {
				n := g.node(fmt.Sprintf("%s/%d", p.ID, b), p.ID, d, index, total)
				index++
				ds.Nodes = append(ds.Nodes, n)
				ds.Links = append(ds.Links, g.parentEdge(n))
				next = append(next, n)
			}
		}
		level = next
	}
	return ds
}

// TwoLevelSite generates a typical site shape: a home root, a row of
// sections, and pages under each section, with cross-links between
// adjacent sections (sale banners, related-category blocks).
func (g *Generator) TwoLevelSite(sections, pagesPer int) *model.Dataset {
	total := 1 + sections + sections*pagesPer
	ds := &model.Dataset{Generation: fmt.Sprintf("site-%dx%d", sections, pagesPer)}
	root := g.node(g.cfg.IDPrefix, "", 0, 0, total)
	root.Label = "Home"
	ds.Nodes = append(ds.Nodes, root)

	index := 1
	var secs []*model.Node
	for s := 0; s < sections; s++ {
		sec := g.node(fmt.Sprintf("%s/s%d", g.cfg.IDPrefix, s), root.ID, 1, index, total)
		index++
		ds.Nodes = append(ds.Nodes, sec)
		ds.Links = append(ds.Links, g.parentEdge(sec))
		secs = append(secs, sec)
		for p := 0; p < pagesPer; p++ {
			pg := g.node(fmt.Sprintf("%s/p%d", sec.ID, p), sec.ID, 2, index, total)
			index++
			ds.Nodes = append(ds.Nodes, pg)
			ds.Links = append(ds.Links, g.parentEdge(pg))
		}
	}
	for i := 1; i < len(secs); i++ {
		ds.Links = append(ds.Links, model.Link{
			SourceID: secs[i-1].ID,
			TargetID: secs[i].ID,
			Strength: 0.3,
		})
	}
	return ds
}

// Disconnected generates several independent star components, each with
// its own root.
func (g *Generator) Disconnected(components, componentSize int) *model.Dataset {
	total := components * componentSize
	ds := &model.Dataset{Generation: fmt.Sprintf("disc-%dx%d", components, componentSize)}
	index := 0
	for c := 0; c < components; c++ {
		root := g.node(fmt.Sprintf("%s-c%d", g.cfg.IDPrefix, c), "", 0, index, total)
		index++
		ds.Nodes = append(ds.Nodes, root)
		for i := 1; i < componentSize; i++ {
			n := g.node(fmt.Sprintf("%s/%d", root.ID, i), root.ID, 1, index, total)
			index++
			ds.Nodes = append(ds.Nodes, n)
			ds.Links = append(ds.Links, g.parentEdge(n))
		}
	}
	return ds
}

// RandomTaxonomy generates size nodes where each non-root picks a random
// earlier node as its parent, plus cross-links at the given density
// (expected cross-links per node). Same seed, same dataset.
func (g *Generator) RandomTaxonomy(size int, crossDensity float64) *model.Dataset {
	ds := &model.Dataset{Generation: fmt.Sprintf("rand-%d-%d", size, g.cfg.Seed)}
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("%s/%d", g.cfg.IDPrefix, i)
		if i == 0 {
			id = g.cfg.IDPrefix
		}
		parentID := ""
		depth := 0
		if i > 0 {
			p := ds.Nodes[g.rng.Intn(i)]
			parentID = p.ID
			depth = p.Depth + 1
		}
		n := g.node(id, parentID, depth, i, size)
		ds.Nodes = append(ds.Nodes, n)
		if parentID != "" {
			ds.Links = append(ds.Links, g.parentEdge(n))
		}
	}

	crossCount := int(crossDensity * float64(size))
	for c := 0; c < crossCount; c++ {
		a := ds.Nodes[g.rng.Intn(size)]
		b := ds.Nodes[g.rng.Intn(size)]
		if a == b {
			continue
		}
		ds.Links = append(ds.Links, model.Link{
			SourceID: a.ID,
			TargetID: b.ID,
			Strength: 0.1 + 0.4*g.rng.Float64(),
		})
	}
	return ds
}

// ToJSONL serializes a dataset into the wire format the loader reads: one
// node record per line with its outgoing cross-links embedded. Taxonomy
// edges (source = the target's parent) are omitted; the loader
// re-materializes them from the parent field.
func ToJSONL(ds *model.Dataset) string {
	byID := ds.NodeByID()
	cross := make(map[string][]model.Link)
	for _, l := range ds.Links {
		if t := byID[l.TargetID]; t != nil && t.ParentID == l.SourceID {
			continue
		}
		cross[l.SourceID] = append(cross[l.SourceID], l)
	}

	var sb strings.Builder
	for _, n := range ds.Nodes {
		sb.WriteString(fmt.Sprintf(`{"id":%q,"label":%q,"url":%q,"kind":%q`,
			n.ID, n.Label, n.URL, n.Kind))
		if n.ParentID != "" {
			sb.WriteString(fmt.Sprintf(`,"parent":%q`, n.ParentID))
		}
		sb.WriteString(fmt.Sprintf(`,"metric":%g,"status":%q`, n.Metric, n.Status))
		if links := cross[n.ID]; len(links) > 0 {
			sb.WriteString(`,"links":[`)
			for i, l := range links {
				if i > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(fmt.Sprintf(`{"target":%q,"strength":%g}`, l.TargetID, l.Strength))
			}
			sb.WriteByte(']')
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

// Quick helpers with default config, for tests that just need a shape.

// QuickChain generates a chain with default config.
func QuickChain(size int) *model.Dataset {
	return NewDefault().Chain(size)
}

// QuickStar generates a star with default config.
func QuickStar(spokes int) *model.Dataset {
	return NewDefault().Star(spokes)
}

// QuickTree generates a balanced tree with default config.
func QuickTree(depth, breadth int) *model.Dataset {
	return NewDefault().Tree(depth, breadth)
}

// QuickSite generates a two-level site with default config.
func QuickSite(sections, pagesPer int) *model.Dataset {
	return NewDefault().TwoLevelSite(sections, pagesPer)
}

// QuickRandom generates a random taxonomy with default config.
func QuickRandom(size int, crossDensity float64) *model.Dataset {
	return NewDefault().RandomTaxonomy(size, crossDensity)
}

// Empty returns an empty dataset.
func Empty() *model.Dataset {
	return &model.Dataset{Generation: "empty"}
}

// Single returns a dataset with one root node.
func Single() *model.Dataset {
	g := NewDefault()
	ds := &model.Dataset{Generation: "single"}
	ds.Nodes = append(ds.Nodes, g.node(g.cfg.IDPrefix, "", 0, 0, 1))
	return ds
}
