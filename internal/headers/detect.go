// Package headers locates the header row of downloaded sheets and rewrites
// its labels onto the canonical schema.
package headers

import (
	"strings"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ColumnRow is the HeaderRowIndex reported when the grid's existing column
// row is the header.
const ColumnRow = -1

// Match thresholds. A header buried in the rows needs stronger evidence than
// one on the column row; data rows often contain a single schema word.
const (
	minColumnRowMatches = 2
	minRowScanMatches   = 3
)

// Result is the outcome of header detection for one grid. The Result owns
// Grid for the duration of a normalization pass.
type Result struct {
	Grid *domain.Grid

	// Source is the record the grid was downloaded for.
	Source *domain.SheetPost

	Found bool

	// HeaderRowIndex is ColumnRow or the index into Grid.Rows of the header.
	// Only meaningful when Found.
	HeaderRowIndex int

	// MatchCount is the number of distinct canonical names among RawLabels.
	MatchCount int

	// RawLabels are the lower-cased, trimmed header labels.
	RawLabels []string

	// Promoted is set once the header row has become the grid's column row.
	Promoted bool

	MappingApplied bool
}

// Detect finds the header of grid: first on the column row, then by scanning
// rows top to bottom. Only the first row that contains any canonical name is
// considered during the scan.
func Detect(grid *domain.Grid, source *domain.SheetPost) *Result {
	r := &Result{Grid: grid, Source: source}

	labels := normalizeLabels(grid.Columns)
	if n := MatchCount(labels); n >= minColumnRowMatches {
		r.Found = true
		r.HeaderRowIndex = ColumnRow
		r.MatchCount = n
		r.RawLabels = labels
		return r
	}

	for i, row := range grid.Rows {
		labels := normalizeLabels(row)
		if !containsCanonical(labels) {
			continue
		}
		if n := MatchCount(labels); n >= minRowScanMatches {
			r.Found = true
			r.HeaderRowIndex = i
			r.MatchCount = n
			r.RawLabels = labels
		}
		break
	}
	return r
}

// MatchCount returns how many distinct canonical field names appear in labels.
func MatchCount(labels []string) int {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if domain.IsCanonical(l) {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}

func containsCanonical(labels []string) bool {
	for _, l := range labels {
		if domain.IsCanonical(l) {
			return true
		}
	}
	return false
}

func normalizeLabels(labels []string) []string {
	lower := cases.Lower(language.Und)
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strings.TrimSpace(lower.String(l))
	}
	return out
}
