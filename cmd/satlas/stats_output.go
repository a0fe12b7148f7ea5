package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/vanderheijden86/siteatlas/pkg/analysis"
	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// topHubCount is how many PageRank hubs the stats report lists.
const topHubCount = 10

type hubOutput struct {
	ID    string  `json:"id"`
	Label string  `json:"label,omitempty"`
	Score float64 `json:"score"`
}

type statsOutput struct {
	GeneratedAt    string      `json:"generated_at"`
	Dataset        string      `json:"dataset"`
	Generation     string      `json:"generation"`
	Nodes          int         `json:"nodes"`
	Links          int         `json:"links"`
	Roots          int         `json:"roots"`
	Orphans        int         `json:"orphans"`
	DanglingLinks  int         `json:"dangling_links"`
	MaxDepth       int         `json:"max_depth"`
	DepthHistogram []int       `json:"depth_histogram"`
	Components     int         `json:"components"`
	TopHubs        []hubOutput `json:"top_hubs,omitempty"`
}

// buildStatsOutput flattens a completed analysis into the report shape.
// The caller must have waited for the background phase.
func buildStatsOutput(path string, ds *model.Dataset, st *analysis.Stats) statsOutput {
	out := statsOutput{
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		Dataset:        path,
		Generation:     ds.Generation,
		Nodes:          st.NodeCount,
		Links:          st.LinkCount,
		Roots:          st.RootCount,
		Orphans:        st.OrphanCount,
		DanglingLinks:  st.DanglingLinks,
		MaxDepth:       st.MaxDepth,
		DepthHistogram: st.DepthHistogram,
		Components:     st.ComponentCount(),
	}
	for _, h := range st.TopHubs(topHubCount) {
		out.TopHubs = append(out.TopHubs, hubOutput{ID: h.ID, Label: h.Label, Score: h.Score})
	}
	return out
}

// writeStats renders the report in the requested format.
func writeStats(w io.Writer, path string, ds *model.Dataset, st *analysis.Stats, format string) error {
	out := buildStatsOutput(path, ds, st)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "", "text":
		writeStatsText(w, out)
		return nil
	default:
		return fmt.Errorf("invalid --stats-format: %q (expected text|json)", format)
	}
}

func writeStatsText(w io.Writer, out statsOutput) {
	fmt.Fprintf(w, "Dataset     %s (generation %s)\n", out.Dataset, out.Generation)
	fmt.Fprintf(w, "Nodes       %d (%d roots, %d orphans)\n", out.Nodes, out.Roots, out.Orphans)
	fmt.Fprintf(w, "Links       %d", out.Links)
	if out.DanglingLinks > 0 {
		fmt.Fprintf(w, " (%d dangling dropped at ingestion)", out.DanglingLinks)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Components  %d\n", out.Components)
	fmt.Fprintf(w, "Max depth   %d\n", out.MaxDepth)
	for depth, count := range out.DepthHistogram {
		fmt.Fprintf(w, "  depth %d: %d\n", depth, count)
	}
	if len(out.TopHubs) > 0 {
		fmt.Fprintln(w, "Top hubs by PageRank:")
		for i, h := range out.TopHubs {
			label := h.Label
			if label == "" {
				label = h.ID
			}
			fmt.Fprintf(w, "  %2d. %s (%.4f)\n", i+1, label, h.Score)
		}
	}
}
