package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	content := []byte("\xef\xbb\xbfMold,,Price\nDestroyer,Star,20\nBuzzz,ESP\n")

	g, err := ParseCSV(content)
	require.NoError(t, err)

	assert.Equal(t, []string{"Mold", "Unnamed: 1", "Price"}, g.Columns)
	assert.Equal(t, [][]string{
		{"Destroyer", "Star", "20"},
		{"Buzzz", "ESP", ""},
	}, g.Rows)
}

func TestParseCSV_WideRow(t *testing.T) {
	g, err := ParseCSV([]byte("a,b\n1,2,3\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "Unnamed: 2"}, g.Columns)
	assert.Equal(t, [][]string{{"1", "2", "3"}}, g.Rows)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV([]byte("  \n"))
	assert.Error(t, err)
}

func TestGridFromValues(t *testing.T) {
	g := GridFromValues([][]string{
		{"My discs"},
		{"Mold", "Plastic", "Price"},
		{"Wraith", "Star", "15"},
	})

	assert.Equal(t, []string{"0", "1", "2"}, g.Columns)
	assert.Equal(t, 3, g.Width())
	assert.Equal(t, []string{"My discs", "", ""}, g.Rows[0])
	assert.Equal(t, []string{"Wraith", "Star", "15"}, g.Rows[2])
}

func TestGrid_EncodeDecode(t *testing.T) {
	g := &Grid{Columns: []string{"mold", "price"}, Rows: [][]string{{"Teebird", "12"}}}

	s, err := g.Encode()
	require.NoError(t, err)

	got, err := DecodeGrid(s)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	_, err = DecodeGrid("[")
	assert.ErrorIs(t, err, ErrCorruptCacheEntry)
}

func TestGrid_WriteCSV(t *testing.T) {
	g := &Grid{Columns: []string{"mold", "notes"}, Rows: [][]string{{"Roc3", "small dome, flat"}}}

	var buf bytes.Buffer
	require.NoError(t, g.WriteCSV(&buf))
	assert.Equal(t, "mold,notes\nRoc3,\"small dome, flat\"\n", buf.String())
}
