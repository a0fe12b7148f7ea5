package ui

import (
	"strings"

	"github.com/vanderheijden86/siteatlas/pkg/model"
)

// BestMatch picks the node that best matches a search query. Matching is
// case-insensitive over labels and ids: exact beats prefix beats substring,
// and ties go to the shallower, then larger, then lexically first node, so
// a query like "docs" lands on the section root rather than a leaf page.
func BestMatch(nodes []*model.Node, query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}

	var best *model.Node
	bestRank := 0
	for _, n := range nodes {
		rank := matchRank(n, q)
		if rank == 0 {
			continue
		}
		if best == nil || rank > bestRank || (rank == bestRank && preferred(n, best)) {
			best, bestRank = n, rank
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}

func matchRank(n *model.Node, q string) int {
	label := strings.ToLower(n.Label)
	id := strings.ToLower(n.ID)
	switch {
	case label == q || id == q:
		return 3
	case strings.HasPrefix(label, q) || strings.HasPrefix(id, q):
		return 2
	case strings.Contains(label, q) || strings.Contains(id, q):
		return 1
	}
	return 0
}

func preferred(a, b *model.Node) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	if a.Metric != b.Metric {
		return a.Metric > b.Metric
	}
	return a.ID < b.ID
}
