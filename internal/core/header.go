package core

import (
	"fmt"
	"strings"
)

// MaxHeaderCandidates caps how many leading rows are offered for the header pick.
const MaxHeaderCandidates = 20

// HeaderCandidate is one row offered as a possible header.
type HeaderCandidate struct {
	Index int      `json:"index"`
	Cells []string `json:"cells"`
}

// SuggestHeaderRow returns the first row with at least minNonBlank non-blank
// cells, or 0 when no row qualifies.
func SuggestHeaderRow(g Grid, minNonBlank int) int {
	for i, row := range g {
		n := 0
		for _, cell := range row {
			if !isBlank(cell) {
				n++
			}
		}
		if n >= minNonBlank {
			return i
		}
	}
	return 0
}

// HeaderCandidates returns up to limit leading rows for the operator to choose from.
func HeaderCandidates(g Grid, limit int) []HeaderCandidate {
	if limit <= 0 || limit > len(g) {
		limit = len(g)
	}
	out := make([]HeaderCandidate, limit)
	for i := 0; i < limit; i++ {
		out[i] = HeaderCandidate{Index: i, Cells: g[i]}
	}
	return out
}

// HeaderLabels builds the column labels from row idx. Empty cells become
// column_<n> (1-based); repeated labels get a " (column_<n>)" suffix so
// every column keeps a distinct label.
func HeaderLabels(g Grid, idx int) ([]string, error) {
	if idx < 0 || idx >= len(g) {
		return nil, fmt.Errorf("%w: row %d out of range (0-%d)", ErrInvalidHeaderRow, idx, len(g)-1)
	}

	width := g.Width()
	labels := make([]string, width)
	seen := make(map[string]bool, width)
	for c := 0; c < width; c++ {
		label := strings.TrimSpace(g.Cell(idx, c))
		if label == "" {
			label = fmt.Sprintf("column_%d", c+1)
		}
		if seen[label] {
			label = fmt.Sprintf("%s (column_%d)", label, c+1)
		}
		seen[label] = true
		labels[c] = label
	}
	return labels, nil
}
