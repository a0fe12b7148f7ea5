package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/vanderheijden86/siteatlas/pkg/analysis"
	"github.com/vanderheijden86/siteatlas/pkg/config"
	"github.com/vanderheijden86/siteatlas/pkg/loader"
	"github.com/vanderheijden86/siteatlas/pkg/testutil"
)

func TestResolveDataPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataPath = "/data/site.jsonl"

	if got := resolveDataPath("/flag/override.jsonl", cfg); got != "/flag/override.jsonl" {
		t.Errorf("flag should win, got %s", got)
	}
	if got := resolveDataPath("", cfg); got != "/data/site.jsonl" {
		t.Errorf("config fallback, got %s", got)
	}
	if got := resolveDataPath("", config.DefaultConfig()); got != "" {
		t.Errorf("no source should yield empty, got %s", got)
	}
}

func TestResolvePositionsPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PositionsPath = "/state/custom.db"

	if got := resolvePositionsPath("/flag/p.db", cfg); got != "/flag/p.db" {
		t.Errorf("flag should win, got %s", got)
	}
	if got := resolvePositionsPath("", cfg); got != "/state/custom.db" {
		t.Errorf("config fallback, got %s", got)
	}
	if got := resolvePositionsPath("", config.DefaultConfig()); got == "" {
		t.Error("default state-dir path should never be empty")
	}
}

func TestWriteStatsText(t *testing.T) {
	path := testutil.TempDatasetFile(t, testutil.QuickSite(3, 4))
	ds, err := loader.LoadFile(path, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	st := analysis.Analyze(ds)
	st.Wait()

	var buf bytes.Buffer
	if err := writeStats(&buf, path, ds, st, "text"); err != nil {
		t.Fatalf("writeStats: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Nodes       16 (1 roots, 0 orphans)",
		"Components  1",
		"Max depth   2",
		"depth 2: 12",
		"Top hubs by PageRank:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteStatsJSON(t *testing.T) {
	ds := testutil.QuickStar(5)
	st := analysis.Analyze(ds)
	st.Wait()

	var buf bytes.Buffer
	if err := writeStats(&buf, "star.jsonl", ds, st, "json"); err != nil {
		t.Fatalf("writeStats: %v", err)
	}

	var out statsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if out.Nodes != 6 || out.Links != 5 || out.Roots != 1 {
		t.Errorf("got nodes=%d links=%d roots=%d, want 6/5/1", out.Nodes, out.Links, out.Roots)
	}
	if out.Generation != ds.Generation {
		t.Errorf("generation %q, want %q", out.Generation, ds.Generation)
	}
}

func TestWriteStatsBadFormat(t *testing.T) {
	ds := testutil.Single()
	st := analysis.Analyze(ds)
	st.Wait()

	var buf bytes.Buffer
	if err := writeStats(&buf, "one.jsonl", ds, st, "yaml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
