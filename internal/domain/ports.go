package domain

import "context"

// Store is the raw byte-level key/value and hash store behind the cache.
// Implementations return ErrCacheMiss for absent keys and fields. Check-then-
// write sequences built on top of it are not atomic.
type Store interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// HSet stores value in field of the named hash.
	HSet(ctx context.Context, hash, field string, value []byte) error

	// HGet returns the value stored in field of the named hash.
	HGet(ctx context.Context, hash, field string) ([]byte, error)

	// HExists reports whether field is present in the named hash.
	HExists(ctx context.Context, hash, field string) (bool, error)

	// HScan returns up to count values of the hash whose field starts with
	// prefix, starting after cursor. The returned cursor is 0 once the scan is
	// complete. Implementations may return fewer or slightly more than count.
	HScan(ctx context.Context, hash, prefix string, cursor uint64, count int64) ([][]byte, uint64, error)

	// Close releases the underlying connection.
	Close() error
}

// SearchQuery describes a forum search.
type SearchQuery struct {
	// Query is the search text.
	Query string `json:"query"`

	// Sort is the forum sort order (relevance, new, hot, top, comments).
	Sort string `json:"sort,omitempty"`

	// TimeWindow restricts results by age (hour, day, week, month, year, all).
	TimeWindow string `json:"time_window,omitempty"`

	// Limit caps the number of results. Zero means no limit.
	Limit int `json:"limit,omitempty"`
}

// ForumClient searches the topic forum.
type ForumClient interface {
	// Search returns posts matching q. Comments are not loaded.
	Search(ctx context.Context, q SearchQuery) ([]RawPost, error)

	// Comments returns the top-level comments of a post in listing order.
	Comments(ctx context.Context, postID string) ([]RawComment, error)
}

// CSVExporter fetches a tabular export by URL.
type CSVExporter interface {
	FetchCSV(ctx context.Context, url string) ([]byte, error)
}

// SpreadsheetAPI opens spreadsheets through the structured API.
type SpreadsheetAPI interface {
	OpenByKey(ctx context.Context, documentID string) (Workbook, error)
}

// Workbook is an opened spreadsheet.
type Workbook interface {
	FirstWorksheet(ctx context.Context) (Worksheet, error)
}

// Worksheet is a single tab of a spreadsheet.
type Worksheet interface {
	// AllValues returns every cell as displayed, row by row.
	AllValues(ctx context.Context) ([][]string, error)
}
