package headers

import (
	"testing"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCountLabels(t *testing.T) {
	grids := []*domain.Grid{
		{Columns: []string{"Mold", "Price", "Unnamed: 2", "0"}},
		{Columns: []string{"mold ", "Plastic"}},
		{Columns: []string{"MOLD", "price", "2nd run"}},
	}

	got := CountLabels(grids)

	assert.Equal(t, []LabelCount{
		{Label: "mold", Count: 3},
		{Label: "price", Count: 2},
		{Label: "plastic", Count: 1},
	}, got)
}
