package domain

import "errors"

var (
	// ErrNotFound is returned when a post carries no resolvable document link.
	ErrNotFound = errors.New("not found")

	// ErrCacheMiss is returned by cache reads for absent keys and fields.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCorruptCacheEntry is returned when a cached value cannot be decoded.
	ErrCorruptCacheEntry = errors.New("corrupt cache entry")

	// Download errors.
	ErrUnsupportedDocument = errors.New("unsupported document")
	ErrRateLimited         = errors.New("rate limited")
	ErrTransientDownload   = errors.New("transient download error")
	ErrDownloadExhausted   = errors.New("download retries exhausted")

	// ErrMappingLengthMismatch is returned when mapped labels would change the
	// column count of a grid.
	ErrMappingLengthMismatch = errors.New("mapped header length mismatch")
)
