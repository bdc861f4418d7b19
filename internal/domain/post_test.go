package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlairRank(t *testing.T) {
	tests := []struct {
		flair string
		want  int
	}{
		{"12 exchanges", 12},
		{"Trades | 12", 12},
		{"Trades: 3 Sales: 4", 0},
		{"Trade Count: 7", 7},
		{"", 0},
		{"   ", 0},
		{"Newbie", 0},
		{"Trades | -4", 0},
		{"-4 trades", 0},
		{"Trades | lots", 0},
	}

	for _, tt := range tests {
		t.Run(tt.flair, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFlairRank(tt.flair))
		})
	}
}

func TestNewSheetPost(t *testing.T) {
	raw := &RawPost{
		ID:          "abc",
		Title:       "[H] plastic [W] paypal",
		Permalink:   "https://www.reddit.com/r/discexchange/comments/abc/",
		CreatedUTC:  1700000000.5,
		NumComments: 4,
		Score:       9,
		Author:      &RawAuthor{Name: "thrower", FlairText: "Trades | 21"},
	}

	p := NewSheetPost(raw)

	assert.Equal(t, "abc", p.ID)
	assert.Equal(t, 4, p.CommentCount)
	assert.Equal(t, 9, p.Score)
	assert.Equal(t, time.Unix(1700000000, int64(500*time.Millisecond)).UTC(), p.CreatedAt)
	require.NotNil(t, p.Author)
	assert.Equal(t, "thrower", p.Author.Name)
	assert.Equal(t, 21, p.Author.FlairRank)
	assert.False(t, p.HasDocument())
}

func TestNewSheetPost_DeletedAuthor(t *testing.T) {
	for _, author := range []*RawAuthor{nil, {Name: "[deleted]"}, {Name: ""}} {
		p := NewSheetPost(&RawPost{ID: "x", Author: author})
		assert.Nil(t, p.Author)
	}
}

func TestSheetPost_AttachDocument(t *testing.T) {
	var p SheetPost

	p.AttachDocument("id", "")
	assert.Empty(t, p.DocumentID)
	assert.Empty(t, p.DocumentURL)

	p.AttachDocument("id", "https://docs.google.com/spreadsheets/d/id")
	assert.Equal(t, "id", p.DocumentID)
	assert.True(t, p.HasDocument())

	p.AttachDocument("", "https://docs.google.com/spreadsheets/d/id")
	assert.False(t, p.HasDocument())
	assert.Empty(t, p.DocumentURL)
}

func TestSheetPost_Grid(t *testing.T) {
	var p SheetPost

	_, err := p.Grid()
	assert.ErrorIs(t, err, ErrNotFound)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("MDT", -6*3600))
	g := &Grid{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	require.NoError(t, p.AttachGrid(g, at))

	require.NotNil(t, p.DownloadedAt)
	assert.Equal(t, time.UTC, p.DownloadedAt.Location())
	assert.True(t, at.Equal(*p.DownloadedAt))

	got, err := p.Grid()
	require.NoError(t, err)
	assert.Equal(t, g, got)

	p.RawGrid = "{not json"
	_, err = p.Grid()
	assert.ErrorIs(t, err, ErrCorruptCacheEntry)
}
