// Package loader reads site taxonomy datasets from the JSONL wire format:
// one node record per line, each with its outgoing cross-links embedded.
//
// Parsing is forgiving by design. Malformed lines, invalid records,
// duplicate ids, dangling links, and broken parent chains are dropped with a
// warning and the rest of the file still loads; a reload should not be all
// or nothing because an exporter wrote one bad line.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/siteatlas/pkg/debug"
	"github.com/vanderheijden86/siteatlas/pkg/metrics"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// DefaultBufferSize caps a single line at 10MB. Real records are a few
// hundred bytes; anything past this is an exporter bug, not data.
const DefaultBufferSize = 10 * 1024 * 1024

// DefaultParentLinkStrength is the spring strength assigned to implicit
// taxonomy edges when ParseOptions does not override it.
const DefaultParentLinkStrength = 0.7

// ParseOptions configures Parse.
type ParseOptions struct {
	// WarningHandler receives one message per dropped line, record, or
	// link. Nil means stderr.
	WarningHandler func(string)

	// BufferSize is the maximum line size in bytes; longer lines are
	// skipped with a warning. Zero means DefaultBufferSize.
	BufferSize int

	// ParentLinkStrength is assigned to the materialized parent-child
	// edges. Zero means DefaultParentLinkStrength.
	ParentLinkStrength float64
}

// linkRef is the embedded form of an outgoing link inside a node record.
type linkRef struct {
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

// nodeRecord is one JSONL line: a node plus its outgoing links.
type nodeRecord struct {
	model.Node
	Links []linkRef `json:"links"`
}

// LoadFile reads and parses a dataset file.
func LoadFile(path string, opts ParseOptions) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return ds, nil
}

// Parse reads JSONL node records into a Dataset. Blank lines and lines
// starting with # are skipped; a UTF-8 BOM on the first line is stripped.
// The dataset generation is a content hash, so an unchanged file maps to
// the same position-cache key across runs.
func Parse(r io.Reader, opts ParseOptions) (*model.Dataset, error) {
	defer metrics.Timer(metrics.DatasetParse)()

	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
		}
	}
	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	parentStrength := opts.ParentLinkStrength
	if parentStrength == 0 {
		parentStrength = DefaultParentLinkStrength
	}

	var nodes []*model.Node
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil {
			// Records average a few hundred bytes; undershoot rather than
			// over-allocate on huge files.
			const avgRecordBytes = 512
			const maxCap = 500_000
			if est := int(info.Size() / avgRecordBytes); est > 0 {
				if est > maxCap {
					est = maxCap
				}
				nodes = make([]*model.Node, 0, est)
			}
		}
	}

	byID := make(map[string]*model.Node)
	var rawLinks []model.Link
	hash := fnv.New64a()
	reader := bufio.NewReaderSize(r, bufSize)

	lineNum := 0
	dropped := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("reading dataset at line %d: %w", lineNum, err)
		}

		hash.Write(line)
		hash.Write([]byte{'\n'})

		if isPrefix {
			warn(fmt.Sprintf("line %d: exceeds %d bytes, skipped", lineNum, bufSize))
			dropped++
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err != nil && err != io.EOF {
					return nil, fmt.Errorf("skipping long line %d: %w", lineNum, err)
				}
				if err == io.EOF {
					break
				}
			}
			continue
		}

		if lineNum == 1 {
			line = stripBOM(line)
		}
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' {
			continue
		}

		var rec nodeRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			warn(fmt.Sprintf("line %d: malformed JSON, skipped: %v", lineNum, err))
			dropped++
			continue
		}
		n := rec.Node
		n.Status = model.Status(strings.ToLower(strings.TrimSpace(string(n.Status))))
		if err := n.Validate(); err != nil {
			warn(fmt.Sprintf("line %d: invalid record, skipped: %v", lineNum, err))
			dropped++
			continue
		}
		if byID[n.ID] != nil {
			warn(fmt.Sprintf("line %d: duplicate id %q, skipped", lineNum, n.ID))
			dropped++
			continue
		}
		n.Normalize()

		node := new(model.Node)
		*node = n
		nodes = append(nodes, node)
		byID[node.ID] = node

		for _, l := range rec.Links {
			rawLinks = append(rawLinks, model.Link{
				SourceID: node.ID,
				TargetID: l.Target,
				Strength: l.Strength,
			})
		}
	}

	resolveDepths(nodes, byID, warn)

	links := make([]model.Link, 0, len(rawLinks)+len(nodes))
	pairSeen := make(map[[2]string]bool, len(rawLinks))
	for _, l := range rawLinks {
		if err := l.Validate(); err != nil {
			warn(fmt.Sprintf("link dropped: %v", err))
			continue
		}
		if l.SourceID == l.TargetID {
			warn(fmt.Sprintf("link %s -> %s: self link, dropped", l.SourceID, l.TargetID))
			continue
		}
		if byID[l.TargetID] == nil {
			warn(fmt.Sprintf("link %s -> %s: unknown target, dropped", l.SourceID, l.TargetID))
			continue
		}
		links = append(links, l)
		pairSeen[[2]string{l.SourceID, l.TargetID}] = true
		pairSeen[[2]string{l.TargetID, l.SourceID}] = true
	}

	// Materialize taxonomy edges so parents attract their children. An
	// explicit cross-link between the same pair takes precedence.
	for _, n := range nodes {
		if n.ParentID == "" || pairSeen[[2]string{n.ParentID, n.ID}] {
			continue
		}
		links = append(links, model.Link{
			SourceID: n.ParentID,
			TargetID: n.ID,
			Strength: parentStrength,
		})
	}

	ds := &model.Dataset{
		Nodes:      nodes,
		Links:      links,
		Generation: fmt.Sprintf("%016x", hash.Sum64()),
	}
	debug.Log("loader: %d nodes, %d links, %d lines dropped, generation %s",
		len(ds.Nodes), len(ds.Links), dropped, ds.Generation)
	return ds, nil
}

// resolveDepths walks every parent chain once, computing Depth and repairing
// broken chains in place: unknown parents, self-parents, and cycles all turn
// the offending node into a root with a warning.
func resolveDepths(nodes []*model.Node, byID map[string]*model.Node, warn func(string)) {
	depths := make(map[string]int, len(nodes))

	var depthOf func(n *model.Node, trail map[string]bool) int
	depthOf = func(n *model.Node, trail map[string]bool) int {
		if d, ok := depths[n.ID]; ok {
			return d
		}
		if n.ParentID == n.ID {
			warn(fmt.Sprintf("node %s: is its own parent, treated as root", n.ID))
			n.ParentID = ""
		}
		if n.ParentID == "" {
			depths[n.ID] = 0
			return 0
		}
		p := byID[n.ParentID]
		if p == nil {
			warn(fmt.Sprintf("node %s: unknown parent %q dropped", n.ID, n.ParentID))
			n.ParentID = ""
			depths[n.ID] = 0
			return 0
		}
		if trail[n.ID] {
			warn(fmt.Sprintf("node %s: parent cycle broken, treated as root", n.ID))
			n.ParentID = ""
			depths[n.ID] = 0
			return 0
		}
		trail[n.ID] = true
		d := depthOf(p, trail) + 1
		delete(trail, n.ID)
		// The cycle cut may have landed on n itself while resolving p.
		if n.ParentID == "" {
			return depths[n.ID]
		}
		depths[n.ID] = d
		return d
	}

	for _, n := range nodes {
		n.Depth = depthOf(n, map[string]bool{})
	}
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
