package headers

import (
	"fmt"
	"strings"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MapLabels rewrites raw labels onto canonical field names. An exact
// case-insensitive synonym match in any field wins over a substring match;
// within each pass the first field in table order wins. Unmatched labels are
// kept as they are.
func MapLabels(raw []string, table domain.SynonymTable) []string {
	lower := cases.Lower(language.Und)
	out := make([]string, len(raw))
	for i, label := range raw {
		out[i] = mapLabel(lower.String(label), table)
		if out[i] == "" {
			out[i] = label
		}
	}
	return out
}

func mapLabel(label string, table domain.SynonymTable) string {
	for _, f := range table {
		for _, syn := range f.Synonyms {
			if label == syn {
				return f.Field
			}
		}
	}
	for _, f := range table {
		for _, syn := range f.Synonyms {
			if strings.Contains(label, syn) {
				return f.Field
			}
		}
	}
	return ""
}

// ApplyMapping maps r.RawLabels and commits them as the grid's columns. It is
// a no-op when no header was found. The grid is left untouched and
// domain.ErrMappingLengthMismatch returned when the mapped labels would not
// cover the grid's columns exactly.
func ApplyMapping(r *Result, table domain.SynonymTable) error {
	if !r.Found {
		return nil
	}

	mapped := MapLabels(r.RawLabels, table)
	if len(mapped) != len(r.RawLabels) || len(mapped) != r.Grid.Width() {
		return fmt.Errorf("%w: %d labels for %d columns",
			domain.ErrMappingLengthMismatch, len(mapped), r.Grid.Width())
	}

	r.Grid.Columns = mapped
	r.MappingApplied = true
	return nil
}

// Promote makes the detected header the grid's column row. A header found
// inside the rows replaces the columns, and that row and everything above it
// are dropped.
func Promote(r *Result) {
	if !r.Found || r.Promoted {
		return
	}

	r.Grid.Columns = append([]string(nil), r.RawLabels...)
	if r.HeaderRowIndex != ColumnRow {
		r.Grid.Rows = r.Grid.Rows[r.HeaderRowIndex+1:]
	}
	r.Promoted = true
}
