// Package cache stores typed records on top of a byte-level domain.Store.
// Values are msgpack encoded; decoding is bound to a type at the call site.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/vmihailenco/msgpack/v5"
)

// ScanBatchSize is the number of hash entries requested per scan round trip.
const ScanBatchSize = 20

// ErrInvalidPattern is returned for scan patterns that are not a plain
// prefix followed by a single trailing "*".
var ErrInvalidPattern = errors.New("invalid field pattern")

// Cache wraps a Store with msgpack encoding. It is safe for concurrent use
// when the Store is, but check-then-write sequences are not atomic.
type Cache struct {
	store  domain.Store
	logger *slog.Logger
}

// New returns a Cache backed by store.
func New(store domain.Store, logger *slog.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

// Set encodes v and stores it under key.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key, b); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return ok, nil
}

// HashSet encodes v and stores it in field of hash.
func (c *Cache) HashSet(ctx context.Context, hash, field string, v any) error {
	b, err := encode(v)
	if err != nil {
		return err
	}
	if err := c.store.HSet(ctx, hash, field, b); err != nil {
		return fmt.Errorf("hset %s %s: %w", hash, field, err)
	}
	return nil
}

// HashExists reports whether field is present in hash.
func (c *Cache) HashExists(ctx context.Context, hash, field string) (bool, error) {
	ok, err := c.store.HExists(ctx, hash, field)
	if err != nil {
		return false, fmt.Errorf("hexists %s %s: %w", hash, field, err)
	}
	return ok, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Get decodes the value stored under key into a T. Returns
// domain.ErrCacheMiss when the key is absent.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T
	b, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", key, err)
	}
	return decode[T](b)
}

// HashGet decodes field of hash into a T. Returns domain.ErrCacheMiss when
// the field is absent.
func HashGet[T any](ctx context.Context, c *Cache, hash, field string) (T, error) {
	var zero T
	b, err := c.store.HGet(ctx, hash, field)
	if err != nil {
		return zero, fmt.Errorf("hget %s %s: %w", hash, field, err)
	}
	return decode[T](b)
}

// ScanHashValues walks every field of hash matching pattern, ScanBatchSize
// entries at a time, until the cursor returns to zero. A store failure
// returns no values. Records that fail to decode are skipped and reported
// together in the returned error, which then wraps domain.ErrCorruptCacheEntry;
// the decodable values are still returned.
func ScanHashValues[T any](ctx context.Context, c *Cache, hash, pattern string) ([]T, error) {
	prefix, err := patternPrefix(pattern)
	if err != nil {
		return nil, err
	}

	var (
		values  []T
		corrupt []error
		cursor  uint64
		rounds  int
	)
	for {
		batch, next, err := c.store.HScan(ctx, hash, prefix, cursor, ScanBatchSize)
		if err != nil {
			return nil, fmt.Errorf("hscan %s %s: %w", hash, pattern, err)
		}
		rounds++

		for _, b := range batch {
			v, err := decode[T](b)
			if err != nil {
				corrupt = append(corrupt, err)
				continue
			}
			values = append(values, v)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("hash scan complete",
		"hash", hash,
		"pattern", pattern,
		"values", len(values),
		"corrupt", len(corrupt),
		"rounds", rounds,
	)

	return values, errors.Join(corrupt...)
}

func patternPrefix(pattern string) (string, error) {
	prefix, ok := strings.CutSuffix(pattern, "*")
	if !ok || strings.ContainsAny(prefix, `*?[]\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}
	return prefix, nil
}

func encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return b, nil
}

func decode[T any](b []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(b, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: decode %T: %v", domain.ErrCorruptCacheEntry, v, err)
	}
	return v, nil
}
