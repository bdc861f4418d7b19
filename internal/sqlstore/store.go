// Package sqlstore implements domain.Store on SQLite or PostgreSQL. Plain
// keys live in cache_entries and hash fields in cache_hash_entries; hash scans
// page by row id.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blackmichael/disc-sheets/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect validates a configured backend name.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(name)); d {
	case DialectSQLite, DialectPostgres:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sql dialect %q", name)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// Store implements domain.Store using database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database described by dsn, verifies the connection,
// applies pending migrations, and returns a new Store. The caller should call
// Close when the store is no longer needed.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers anyway, and an in-memory database exists
	// only for the connection that created it.
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM cache_entries WHERE key = ?`), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("select entry %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the value stored under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO cache_entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM cache_entries WHERE key = ?`), key,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check entry %s: %w", key, err)
	}
	return true, nil
}

// HSet upserts field of the named hash. Updating an existing field keeps its
// row id, so an in-progress scan does not see it twice.
func (s *Store) HSet(ctx context.Context, hash, field string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO cache_hash_entries (hash, field, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (hash, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
		hash, field, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert hash entry %s %s: %w", hash, field, err)
	}
	return nil
}

// HGet returns the value stored in field of the named hash.
func (s *Store) HGet(ctx context.Context, hash, field string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM cache_hash_entries WHERE hash = ? AND field = ?`), hash, field,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("select hash entry %s %s: %w", hash, field, err)
	}
	return value, nil
}

// HExists reports whether field is present in the named hash.
func (s *Store) HExists(ctx context.Context, hash, field string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM cache_hash_entries WHERE hash = ? AND field = ?`), hash, field,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check hash entry %s %s: %w", hash, field, err)
	}
	return true, nil
}

// HScan returns up to count values whose field starts with prefix and whose
// row id is greater than cursor. The cursor is the last row id returned, or
// 0 once fewer than count rows remain.
func (s *Store) HScan(ctx context.Context, hash, prefix string, cursor uint64, count int64) ([][]byte, uint64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, value
		FROM cache_hash_entries
		WHERE hash = ? AND substr(field, 1, ?) = ? AND id > ?
		ORDER BY id
		LIMIT ?`),
		hash, len(prefix), prefix, int64(cursor), count,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("scan hash %s (prefix=%s, cursor=%d): %w", hash, prefix, cursor, err)
	}
	defer rows.Close()

	var (
		values [][]byte
		lastID int64
	)
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&lastID, &value); err != nil {
			return nil, 0, fmt.Errorf("scan hash row: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate hash rows: %w", err)
	}

	if int64(len(values)) < count {
		return values, 0, nil
	}
	return values, uint64(lastID), nil
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
