package sqlstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_KeyValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "post:1")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	ok, err := s.Exists(ctx, "post:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "post:1", []byte("first")))
	require.NoError(t, s.Set(ctx, "post:1", []byte("second")))

	ok, err = s.Exists(ctx, "post:1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, "post:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestStore_Hash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.HGet(ctx, "sheets", "sheet:a")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	require.NoError(t, s.HSet(ctx, "sheets", "sheet:a", []byte("A")))
	require.NoError(t, s.HSet(ctx, "normalized", "sheet:a", []byte("N")))

	ok, err := s.HExists(ctx, "sheets", "sheet:a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HExists(ctx, "sheets", "sheet:b")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.HGet(ctx, "sheets", "sheet:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), got)

	got, err = s.HGet(ctx, "normalized", "sheet:a")
	require.NoError(t, err)
	assert.Equal(t, []byte("N"), got)
}

func TestStore_HScanPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 45 {
		require.NoError(t, s.HSet(ctx, "sheets", fmt.Sprintf("sheet:%02d", i), []byte(fmt.Sprint(i))))
	}
	require.NoError(t, s.HSet(ctx, "sheets", "other:1", []byte("skip")))
	require.NoError(t, s.HSet(ctx, "normalized", "sheet:00", []byte("skip")))

	var (
		all    [][]byte
		cursor uint64
		rounds int
	)
	for {
		batch, next, err := s.HScan(ctx, "sheets", "sheet:", cursor, 20)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(batch), 20)
		all = append(all, batch...)
		rounds++
		cursor = next
		if cursor == 0 {
			break
		}
	}

	assert.Equal(t, 3, rounds)
	assert.Len(t, all, 45)
	assert.Equal(t, []byte("0"), all[0])
	assert.NotContains(t, all, []byte("skip"))
}

func TestStore_HScanUpdateKeepsPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "sheets", "sheet:a", []byte("a1")))
	require.NoError(t, s.HSet(ctx, "sheets", "sheet:b", []byte("b1")))

	batch, next, err := s.HScan(ctx, "sheets", "sheet:", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a1")}, batch)

	require.NoError(t, s.HSet(ctx, "sheets", "sheet:a", []byte("a2")))

	batch, next, err = s.HScan(ctx, "sheets", "sheet:", next, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("b1")}, batch)

	batch, next, err = s.HScan(ctx, "sheets", "sheet:", next, 1)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Zero(t, next)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("SQLite")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d)

	d, err = ParseDialect("postgres")
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, d)

	_, err = ParseDialect("mongo")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))

	lite := &Store{dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}
