package datasource_test

import (
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/siteatlas/internal/datasource"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

func openCache(t *testing.T) *datasource.PositionCache {
	t.Helper()
	cache, err := datasource.OpenPositionCache(filepath.Join(t.TempDir(), "positions.db"))
	if err != nil {
		t.Fatalf("OpenPositionCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestPositionCache_RoundTrip(t *testing.T) {
	cache := openCache(t)

	saved := map[string]model.Point{
		"home": {X: 10, Y: 20},
		"docs": {X: -5.5, Y: 7.25},
	}
	if err := cache.Save("gen-a", saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := cache.Load("gen-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 positions, got %d", len(got))
	}
	for id, want := range saved {
		if got[id] != want {
			t.Errorf("Position %s: got %+v, want %+v", id, got[id], want)
		}
	}
}

func TestPositionCache_MissingGenerationIsEmpty(t *testing.T) {
	cache := openCache(t)

	got, err := cache.Load("never-saved")
	if err != nil {
		t.Fatalf("Expected nil error for unknown generation, got: %v", err)
	}
	if got == nil {
		t.Fatal("Expected empty map, got nil")
	}
	if len(got) != 0 {
		t.Errorf("Expected empty map, got %d entries", len(got))
	}
}

func TestPositionCache_UpsertOverwrites(t *testing.T) {
	cache := openCache(t)

	if err := cache.Save("gen-a", map[string]model.Point{"n": {X: 1, Y: 2}}); err != nil {
		t.Fatalf("First save: %v", err)
	}
	if err := cache.Save("gen-a", map[string]model.Point{"n": {X: 3, Y: 4}}); err != nil {
		t.Fatalf("Second save: %v", err)
	}

	got, err := cache.Load("gen-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["n"] != (model.Point{X: 3, Y: 4}) {
		t.Errorf("Expected later save to win, got %+v", got["n"])
	}
}

func TestPositionCache_GenerationsIsolated(t *testing.T) {
	cache := openCache(t)

	if err := cache.Save("gen-a", map[string]model.Point{"n": {X: 1, Y: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := cache.Save("gen-b", map[string]model.Point{"n": {X: 2, Y: 2}}); err != nil {
		t.Fatal(err)
	}

	a, err := cache.Load("gen-a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := cache.Load("gen-b")
	if err != nil {
		t.Fatal(err)
	}
	if a["n"].X != 1 || b["n"].X != 2 {
		t.Errorf("Generations bled into each other: a=%+v b=%+v", a["n"], b["n"])
	}
}

func TestPositionCache_EmptySaveIsNoop(t *testing.T) {
	cache := openCache(t)

	if err := cache.Save("gen-a", nil); err != nil {
		t.Fatalf("Expected nil error for empty save, got: %v", err)
	}
	got, err := cache.Load("gen-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Expected nothing stored, got %d entries", len(got))
	}
}

func TestPositionCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.db")

	cache, err := datasource.OpenPositionCache(path)
	if err != nil {
		t.Fatalf("OpenPositionCache: %v", err)
	}
	if err := cache.Save("gen-a", map[string]model.Point{"n": {X: 9, Y: -9}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := datasource.OpenPositionCache(path)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load("gen-a")
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if got["n"] != (model.Point{X: 9, Y: -9}) {
		t.Errorf("Expected persisted position, got %+v", got["n"])
	}
}

func TestPositionCache_PruneKeepsRecentGenerations(t *testing.T) {
	cache := openCache(t)

	for _, gen := range []string{"gen-a", "gen-b", "gen-c"} {
		if err := cache.Save(gen, map[string]model.Point{"n": {X: 1, Y: 1}}); err != nil {
			t.Fatalf("Save %s: %v", gen, err)
		}
	}

	if err := cache.Prune(2); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	a, _ := cache.Load("gen-a")
	b, _ := cache.Load("gen-b")
	c, _ := cache.Load("gen-c")
	if len(a) != 0 {
		t.Errorf("Expected oldest generation pruned, still has %d entries", len(a))
	}
	if len(b) != 1 || len(c) != 1 {
		t.Errorf("Expected recent generations kept, got b=%d c=%d", len(b), len(c))
	}
}
