package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/blackmichael/disc-sheets/internal/config"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		s, err := OpenStore(ctx, config.CacheConfig{Backend: config.BackendRedis, RedisAddr: mr.Addr()})
		require.NoError(t, err)
		defer s.Close()

		require.NoError(t, s.Set(ctx, "k", []byte("v")))
		assert.True(t, mr.Exists("k"))
	})

	t.Run("sqlite", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "cache.db")
		s, err := OpenStore(ctx, config.CacheConfig{Backend: config.BackendSQLite, DSN: dsn})
		require.NoError(t, err)
		defer s.Close()

		ok, err := s.Exists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenStore(ctx, config.CacheConfig{Backend: "mongo"})
		assert.Error(t, err)
	})
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = config.BackendSQLite
	cfg.Cache.DSN = filepath.Join(t.TempDir(), "cache.db")
	cfg.Sheets.DisableAPI = true

	a, err := Build(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Normalizer)
}

func TestDefaultQuery(t *testing.T) {
	cfg := config.Default()
	cfg.Search.Limit = 40

	q := DefaultQuery(&cfg)
	assert.Equal(t, "spreadsheet", q.Query)
	assert.Equal(t, "relevance", q.Sort)
	assert.Equal(t, "all", q.TimeWindow)
	assert.Equal(t, 40, q.Limit)
}

func TestPerMinute(t *testing.T) {
	assert.Equal(t, rate.Inf, perMinute(0))
	assert.Equal(t, rate.Every(time.Second), perMinute(60))
}
