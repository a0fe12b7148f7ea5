package export_test

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/siteatlas/pkg/export"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// starDataset builds a hub with the given number of spokes.
func starDataset(spokes int) *model.Dataset {
	ds := &model.Dataset{
		Nodes: []*model.Node{
			{ID: "hub", Label: "hub", Metric: 900, Status: model.StatusHealthy},
		},
		Generation: "star-fixture",
	}
	for i := 0; i < spokes; i++ {
		id := fmt.Sprintf("leaf-%d", i)
		ds.Nodes = append(ds.Nodes, &model.Node{
			ID: id, Label: id, ParentID: "hub", Depth: 1,
			Metric: 100, Status: model.StatusHealthy,
		})
		ds.Links = append(ds.Links, model.Link{SourceID: "hub", TargetID: id, Strength: 0.7})
	}
	return ds
}

// ============================================================================
// Snapshot
// ============================================================================

func TestSnapshot_WritesPNGAndSVG(t *testing.T) {
	tmp := t.TempDir()
	pngPath := filepath.Join(tmp, "map.png")
	svgPath := filepath.Join(tmp, "map.svg")

	res, err := export.Snapshot(starDataset(5), export.Options{
		PNGPath: pngPath,
		SVGPath: svgPath,
		Width:   800,
		Height:  600,
		Labels:  true,
	})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if res.Nodes != 6 {
		t.Errorf("Expected 6 nodes in the frame, got %d", res.Nodes)
	}
	if res.Links != 5 {
		t.Errorf("Expected 5 links in the frame, got %d", res.Links)
	}
	if res.Ticks <= 0 || res.Ticks > export.DefaultMaxSettleTicks {
		t.Errorf("Expected a positive tick count within the default budget, got %d", res.Ticks)
	}
	if res.PNGPath != pngPath || res.SVGPath != svgPath {
		t.Errorf("Result paths do not echo the options: %+v", res)
	}

	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatalf("PNG not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("PNG does not decode: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Errorf("Expected an 800x600 image, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	svg, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatalf("SVG not written: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") || !strings.Contains(string(svg), "</svg>") {
		t.Error("SVG output is not a complete document")
	}
}

func TestSnapshot_PNGOnly(t *testing.T) {
	pngPath := filepath.Join(t.TempDir(), "only.png")

	res, err := export.Snapshot(starDataset(3), export.Options{
		PNGPath: pngPath,
		Width:   640,
		Height:  480,
	})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if res.SVGPath != "" {
		t.Errorf("Expected no SVG path, got %q", res.SVGPath)
	}
	if _, err := os.Stat(pngPath); err != nil {
		t.Errorf("PNG not written: %v", err)
	}
}

func TestSnapshot_TickBudgetBoundsLayout(t *testing.T) {
	pngPath := filepath.Join(t.TempDir(), "rough.png")

	res, err := export.Snapshot(starDataset(4), export.Options{
		PNGPath:        pngPath,
		Width:          640,
		Height:         480,
		MaxSettleTicks: 3,
	})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if res.Ticks != 3 {
		t.Errorf("Expected the loop to stop at the 3 tick budget, got %d", res.Ticks)
	}
	if res.Settled {
		t.Error("Expected an unsettled layout after 3 ticks")
	}
	if _, err := os.Stat(pngPath); err != nil {
		t.Errorf("Snapshot should still be written from the unsettled state: %v", err)
	}
}

func TestSnapshot_SettlesWithinBudget(t *testing.T) {
	res, err := export.Snapshot(starDataset(4), export.Options{
		PNGPath:        filepath.Join(t.TempDir(), "calm.png"),
		Width:          640,
		Height:         480,
		MaxSettleTicks: 2000,
	})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !res.Settled {
		t.Errorf("Expected the layout to settle within 2000 ticks, stopped at %d", res.Ticks)
	}
	if res.Ticks >= 2000 {
		t.Errorf("Expected early exit on settle, ran all %d ticks", res.Ticks)
	}
}

func TestSnapshot_LabelsToggle(t *testing.T) {
	ds := &model.Dataset{
		Nodes:      []*model.Node{{ID: "alpha-site", Label: "alpha-site", Metric: 2000, Status: model.StatusHealthy}},
		Generation: "single",
	}

	tmp := t.TempDir()
	withPath := filepath.Join(tmp, "with.svg")
	withoutPath := filepath.Join(tmp, "without.svg")

	if _, err := export.Snapshot(ds, export.Options{SVGPath: withPath, Width: 800, Height: 600, Labels: true}); err != nil {
		t.Fatalf("Snapshot with labels failed: %v", err)
	}
	if _, err := export.Snapshot(ds, export.Options{SVGPath: withoutPath, Width: 800, Height: 600, Labels: false}); err != nil {
		t.Fatalf("Snapshot without labels failed: %v", err)
	}

	withSVG, _ := os.ReadFile(withPath)
	withoutSVG, _ := os.ReadFile(withoutPath)
	if !strings.Contains(string(withSVG), "alpha-site") {
		t.Error("Expected the label in the labeled snapshot")
	}
	if strings.Contains(string(withoutSVG), "alpha-site") {
		t.Error("Expected no label in the unlabeled snapshot")
	}
}

func TestSnapshot_NoOutputPathFails(t *testing.T) {
	_, err := export.Snapshot(starDataset(2), export.Options{})
	if err == nil {
		t.Fatal("Expected an error when no output path is given")
	}
	if !strings.Contains(err.Error(), "no output path") {
		t.Errorf("Expected a no output path error, got: %v", err)
	}
}

func TestSnapshot_EmptyDatasetFails(t *testing.T) {
	for _, ds := range []*model.Dataset{nil, {}} {
		_, err := export.Snapshot(ds, export.Options{PNGPath: "unused.png"})
		if err == nil {
			t.Fatal("Expected an error for an empty dataset")
		}
		if !strings.Contains(err.Error(), "no nodes") {
			t.Errorf("Expected a no nodes error, got: %v", err)
		}
	}
}

// ============================================================================
// Option helpers
// ============================================================================

func TestParseSize(t *testing.T) {
	cases := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"1600x1000", 1600, 1000, false},
		{" 800X600 ", 800, 600, false},
		{"64x64", 64, 64, false},
		{"abc", 0, 0, true},
		{"100", 0, 0, true},
		{"100x", 0, 0, true},
		{"32x32", 0, 0, true},
		{"0x600", 0, 0, true},
	}
	for _, c := range cases {
		w, h, err := export.ParseSize(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseSize(%q): expected error, got %dx%d", c.in, w, h)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSize(%q) failed: %v", c.in, err)
			continue
		}
		if w != c.w || h != c.h {
			t.Errorf("ParseSize(%q) = %dx%d, want %dx%d", c.in, w, h, c.w, c.h)
		}
	}
}

func TestSnapshotPaths(t *testing.T) {
	cases := []struct {
		base, format string
		png, svg     string
		wantErr      bool
	}{
		{"map", "both", "map.png", "map.svg", false},
		{"map", "", "map.png", "map.svg", false},
		{"map.png", "both", "map.png", "map.svg", false},
		{"out/site", "png", "out/site.png", "", false},
		{"site.svg", "svg", "", "site.svg", false},
		{"map", "PNG", "map.png", "", false},
		{"map", "gif", "", "", true},
	}
	for _, c := range cases {
		png, svg, err := export.SnapshotPaths(c.base, c.format)
		if c.wantErr {
			if err == nil {
				t.Errorf("SnapshotPaths(%q, %q): expected error", c.base, c.format)
			}
			continue
		}
		if err != nil {
			t.Errorf("SnapshotPaths(%q, %q) failed: %v", c.base, c.format, err)
			continue
		}
		if png != c.png || svg != c.svg {
			t.Errorf("SnapshotPaths(%q, %q) = (%q, %q), want (%q, %q)",
				c.base, c.format, png, svg, c.png, c.svg)
		}
	}
}
