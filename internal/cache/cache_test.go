package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/blackmichael/disc-sheets/internal/redisstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := redisstore.Open(context.Background(), redisstore.Options{Addr: mr.Addr()})
	require.NoError(t, err)

	c := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func samplePost(id, documentID string) domain.SheetPost {
	p := domain.SheetPost{
		Post: domain.Post{
			ID:        id,
			Title:     "selling " + id,
			CreatedAt: time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC),
			Author:    domain.NewAuthor("thrower", "Trades | 8"),
		},
	}
	if documentID != "" {
		p.AttachDocument(documentID, "https://docs.google.com/spreadsheets/d/"+documentID)
	}
	return p
}

func TestCache_GetSet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, err := Get[domain.SheetPost](ctx, c, PostKey("a"))
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	want := samplePost("a", "doc1")
	require.NoError(t, c.Set(ctx, PostKey("a"), want))

	ok, err := c.Exists(ctx, "post:a")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := Get[domain.SheetPost](ctx, c, PostKey("a"))
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.DocumentID, got.DocumentID)
	assert.Equal(t, want.DocumentURL, got.DocumentURL)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Author)
	assert.Equal(t, 8, got.Author.FlairRank)
}

func TestCache_HashGetSet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	p := samplePost("a", "doc1")
	require.NoError(t, p.AttachGrid(&domain.Grid{Columns: []string{"mold"}, Rows: [][]string{{"Zone"}}}, time.Now()))
	require.NoError(t, c.HashSet(ctx, SheetsHash, SheetField("doc1"), p))

	ok, err := c.HashExists(ctx, "sheets", "sheet:doc1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := HashGet[domain.SheetPost](ctx, c, SheetsHash, SheetField("doc1"))
	require.NoError(t, err)
	g, err := got.Grid()
	require.NoError(t, err)
	assert.Equal(t, []string{"mold"}, g.Columns)

	_, err = HashGet[domain.SheetPost](ctx, c, SheetsHash, SheetField("missing"))
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestCache_CorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("post:bad", "\xc1"))

	_, err := Get[domain.SheetPost](ctx, c, PostKey("bad"))
	assert.ErrorIs(t, err, domain.ErrCorruptCacheEntry)
}

func TestScanHashValues(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8", "d9", "d10",
		"d11", "d12", "d13", "d14", "d15", "d16", "d17", "d18", "d19", "d20", "d21", "d22"} {
		require.NoError(t, c.HashSet(ctx, SheetsHash, SheetField(id), samplePost("p"+id, id)))
	}
	mr.HSet(SheetsHash, "sheet:broken", "\xc1")
	mr.HSet(SheetsHash, "unrelated", "\xc1")

	values, err := ScanHashValues[domain.SheetPost](ctx, c, SheetsHash, SheetFieldPattern)
	assert.ErrorIs(t, err, domain.ErrCorruptCacheEntry)
	assert.Len(t, values, 22)

	seen := make(map[string]bool)
	for _, v := range values {
		seen[v.DocumentID] = true
	}
	assert.Len(t, seen, 22)
}

func TestScanHashValues_EmptyHash(t *testing.T) {
	c, _ := newTestCache(t)

	values, err := ScanHashValues[domain.SheetPost](context.Background(), c, SheetsHash, SheetFieldPattern)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestScanHashValues_InvalidPattern(t *testing.T) {
	c, _ := newTestCache(t)

	for _, pattern := range []string{"sheet:", "sh*et:*", "sheet:?*", "*"} {
		_, err := ScanHashValues[domain.SheetPost](context.Background(), c, SheetsHash, pattern)
		if pattern == "*" {
			assert.NoError(t, err, pattern)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidPattern, pattern)
	}
}

func TestScanHashValues_StoreDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	values, err := ScanHashValues[domain.SheetPost](context.Background(), c, SheetsHash, SheetFieldPattern)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCorruptCacheEntry)
	assert.Nil(t, values)
}
