package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// AssertNodeCount verifies the expected number of nodes.
func AssertNodeCount(t *testing.T, ds *model.Dataset, expected int) {
	t.Helper()
	if len(ds.Nodes) != expected {
		t.Errorf("expected %d nodes, got %d", expected, len(ds.Nodes))
	}
}

// AssertLinkCount verifies the expected number of links.
func AssertLinkCount(t *testing.T, ds *model.Dataset, expected int) {
	t.Helper()
	if len(ds.Links) != expected {
		t.Errorf("expected %d links, got %d", expected, len(ds.Links))
	}
}

// AssertNoDuplicateIDs verifies all node IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, ds *model.Dataset) {
	t.Helper()
	seen := make(map[string]bool)
	for _, n := range ds.Nodes {
		if seen[n.ID] {
			t.Errorf("duplicate node ID: %s", n.ID)
		}
		seen[n.ID] = true
	}
}

// AssertAllValid verifies all nodes and links pass validation.
func AssertAllValid(t *testing.T, ds *model.Dataset) {
	t.Helper()
	for i, n := range ds.Nodes {
		if err := n.Validate(); err != nil {
			t.Errorf("node %d (%s) invalid: %v", i, n.ID, err)
		}
	}
	for i, l := range ds.Links {
		if err := l.Validate(); err != nil {
			t.Errorf("link %d invalid: %v", i, err)
		}
	}
}

// AssertLinksResolve verifies every link endpoint names a node in the
// dataset.
func AssertLinksResolve(t *testing.T, ds *model.Dataset) {
	t.Helper()
	byID := ds.NodeByID()
	for _, l := range ds.Links {
		if byID[l.SourceID] == nil {
			t.Errorf("link %s -> %s: unknown source", l.SourceID, l.TargetID)
		}
		if byID[l.TargetID] == nil {
			t.Errorf("link %s -> %s: unknown target", l.SourceID, l.TargetID)
		}
	}
}

// AssertDepthsConsistent verifies depth(child) = depth(parent) + 1 for
// every node with a parent, and that roots sit at depth zero.
func AssertDepthsConsistent(t *testing.T, ds *model.Dataset) {
	t.Helper()
	byID := ds.NodeByID()
	for _, n := range ds.Nodes {
		if n.ParentID == "" {
			if n.Depth != 0 {
				t.Errorf("root %s has depth %d, want 0", n.ID, n.Depth)
			}
			continue
		}
		p := byID[n.ParentID]
		if p == nil {
			t.Errorf("node %s: unknown parent %s", n.ID, n.ParentID)
			continue
		}
		if n.Depth != p.Depth+1 {
			t.Errorf("node %s depth %d, parent %s depth %d", n.ID, n.Depth, p.ID, p.Depth)
		}
	}
}

// FindNode returns the node with the given ID, or nil if not found.
func FindNode(ds *model.Dataset, id string) *model.Node {
	for _, n := range ds.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// NodeIDs returns a slice of all node IDs in dataset order.
func NodeIDs(ds *model.Dataset) []string {
	ids := make([]string, len(ds.Nodes))
	for i, n := range ds.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// CountByStatus returns a map of status -> node count.
func CountByStatus(ds *model.Dataset) map[model.Status]int {
	counts := make(map[model.Status]int)
	for _, n := range ds.Nodes {
		counts[n.Status]++
	}
	return counts
}

// WriteDatasetFile writes a dataset in JSONL wire format to the given
// path, creating parent directories as needed.
func WriteDatasetFile(t *testing.T, path string, ds *model.Dataset) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(ToJSONL(ds)), 0644); err != nil {
		t.Fatalf("failed to write dataset file: %v", err)
	}
}

// TempDatasetFile writes a dataset to a temp file and returns its path.
// The file is cleaned up after the test.
func TempDatasetFile(t *testing.T, ds *model.Dataset) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	WriteDatasetFile(t, path, ds)
	return path
}

// Golden file helpers

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
// If GENERATE_GOLDEN is set, updates the golden file instead.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()

	path := g.Path()

	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}

	if string(expected) != actual {
		// Find first difference for helpful error message
		expectedLines := strings.Split(string(expected), "\n")
		actualLines := strings.Split(actual, "\n")

		for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
			var expLine, actLine string
			if i < len(expectedLines) {
				expLine = expectedLines[i]
			}
			if i < len(actualLines) {
				actLine = actualLines[i]
			}
			if expLine != actLine {
				g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s\n\nFull diff (expected vs actual):\n%s\nvs\n%s",
					i+1, expLine, actLine, string(expected), actual)
				return
			}
		}
		g.t.Errorf("golden file mismatch (length differs)")
	}
}

// AssertJSON compares actual value as JSON against the golden file.
func (g *GoldenFile) AssertJSON(actual interface{}) {
	g.t.Helper()

	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		g.t.Fatalf("failed to marshal actual value: %v", err)
	}

	g.Assert(string(data))
}
