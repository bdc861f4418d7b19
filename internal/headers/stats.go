package headers

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blackmichael/disc-sheets/internal/domain"
)

// LabelCount is how often a column label occurs across grids.
type LabelCount struct {
	Label string
	Count int
}

// CountLabels tallies the lower-cased, trimmed column labels of grids, most
// frequent first. Placeholder labels ("unnamed: 3") and labels starting with
// a digit are ignored.
func CountLabels(grids []*domain.Grid) []LabelCount {
	counts := make(map[string]int)
	for _, g := range grids {
		for _, label := range normalizeLabels(g.Columns) {
			if skipLabel(label) {
				continue
			}
			counts[label]++
		}
	}

	out := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, LabelCount{Label: label, Count: n})
	}
	slices.SortFunc(out, func(a, b LabelCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
	return out
}

func skipLabel(label string) bool {
	if strings.Contains(label, "unnamed:") {
		return true
	}
	r, _ := utf8.DecodeRuneInString(label)
	return unicode.IsDigit(r)
}
