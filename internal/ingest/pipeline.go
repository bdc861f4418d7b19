// Package ingest searches the forum for shared spreadsheets, records every
// post it sees and downloads each document that is not cached yet.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/blackmichael/disc-sheets/internal/cache"
	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/google/uuid"
)

const displayTimeFormat = "2006-01-02 15:04"

// Downloader fetches the grid of a document.
type Downloader interface {
	Download(ctx context.Context, documentID string) (*domain.Grid, error)
}

// Pipeline runs ingestion. Runs are sequential; concurrent runs against the
// same cache may download a document twice.
type Pipeline struct {
	forum      domain.ForumClient
	cache      *cache.Cache
	downloader Downloader
	logger     *slog.Logger
	location   *time.Location
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLocation sets the timezone post times are logged in (default: UTC).
func WithLocation(loc *time.Location) Option {
	return func(p *Pipeline) { p.location = loc }
}

// WithClock replaces the clock used for download timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(forum domain.ForumClient, c *cache.Cache, downloader Downloader, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		forum:      forum,
		cache:      c,
		downloader: downloader,
		logger:     logger,
		location:   time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result holds the record sets produced by each stage of a run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	SearchResults   []domain.RawPost
	AllParsed       []domain.SheetPost
	UniquePosts     []domain.SheetPost
	UniqueDocuments []domain.SheetPost
	Downloaded      []domain.SheetPost
}

// Summary is the serializable outline of a Result.
type Summary struct {
	RunID             string    `json:"run_id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	SearchResults     int       `json:"search_results"`
	ParsedPosts       int       `json:"parsed_posts"`
	UniquePosts       int       `json:"unique_posts"`
	DuplicatesRemoved int       `json:"duplicates_removed"`
	UniqueDocuments   int       `json:"unique_documents"`
	Downloaded        int       `json:"downloaded"`
}

// Summary returns the counts of r.
func (r *Result) Summary() Summary {
	return Summary{
		RunID:             r.RunID,
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
		SearchResults:     len(r.SearchResults),
		ParsedPosts:       len(r.AllParsed),
		UniquePosts:       len(r.UniquePosts),
		DuplicatesRemoved: len(r.AllParsed) - len(r.UniquePosts),
		UniqueDocuments:   len(r.UniqueDocuments),
		Downloaded:        len(r.Downloaded),
	}
}

// Run searches the forum and ingests the results. Failures of a single post
// or document are logged and skipped; cache failures abort the run.
func (p *Pipeline) Run(ctx context.Context, q domain.SearchQuery) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
	}
	logger := p.logger.With("run_id", res.RunID)

	logger.Info("searching posts",
		"query", q.Query,
		"sort", q.Sort,
		"time_window", q.TimeWindow,
		"limit", q.Limit,
	)
	raws, err := p.forum.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	res.SearchResults = raws

	for i := range raws {
		sp, ok, err := p.parsePost(ctx, logger, &raws[i])
		if err != nil {
			return nil, err
		}
		if ok {
			res.AllParsed = append(res.AllParsed, sp)
		}
	}

	res.AllParsed = sortByCreatedDesc(res.AllParsed)
	res.UniquePosts = p.dedupePosts(logger, res.AllParsed)
	res.UniqueDocuments = p.uniqueDocuments(logger, res.AllParsed)

	for i, sp := range res.UniqueDocuments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Info("processing sheet",
			"index", i+1,
			"total", len(res.UniqueDocuments),
			"document_id", sp.DocumentID,
		)
		downloaded, ok, err := p.download(ctx, logger, sp)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Downloaded = append(res.Downloaded, downloaded)
		}
	}

	for _, sp := range res.Downloaded {
		if err := p.cache.HashSet(ctx, cache.SheetsHash, cache.SheetField(sp.DocumentID), sp); err != nil {
			return nil, fmt.Errorf("cache sheet %s: %w", sp.DocumentID, err)
		}
		logger.Info("sheet cached", "document_id", sp.DocumentID)
	}

	res.FinishedAt = p.now().UTC()
	s := res.Summary()
	logger.Info("ingestion complete",
		"search_results", s.SearchResults,
		"unique_posts", s.UniquePosts,
		"duplicates_removed", s.DuplicatesRemoved,
		"unique_documents", s.UniqueDocuments,
		"downloaded", s.Downloaded,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)
	return res, nil
}

// parsePost builds and caches the record of a post not seen before. It
// reports ok=false for cached posts and for posts whose comments could not be
// loaded; the latter are retried on the next run.
func (p *Pipeline) parsePost(ctx context.Context, logger *slog.Logger, raw *domain.RawPost) (domain.SheetPost, bool, error) {
	key := cache.PostKey(raw.ID)
	logger = logger.With("post_id", raw.ID)

	logger.Info("processing post",
		"created", raw.CreatedAt().In(p.location).Format(displayTimeFormat),
		"title", truncate(raw.Title, 50),
		"permalink", raw.Permalink,
	)

	seen, err := p.cache.Exists(ctx, key)
	if err != nil {
		return domain.SheetPost{}, false, fmt.Errorf("check post %s: %w", raw.ID, err)
	}
	if seen {
		logger.Debug("post already cached, skipping")
		return domain.SheetPost{}, false, nil
	}

	sp := domain.NewSheetPost(raw)

	url, err := domain.FindDocumentURL(ctx, raw, p.forum.Comments)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("no sheet link in post", "title", raw.Title)
	case err != nil:
		logger.Error("search post for sheet link", "error", err)
		return domain.SheetPost{}, false, nil
	default:
		id, err := domain.ResolveDocumentID(url)
		if err != nil {
			logger.Warn("link is not a spreadsheet", "url", url, "error", err)
		} else {
			sp.AttachDocument(id, url)
			logger.Info("sheet link found", "document_id", id)
		}
	}

	if err := p.cache.Set(ctx, key, sp); err != nil {
		return domain.SheetPost{}, false, fmt.Errorf("cache post %s: %w", raw.ID, err)
	}
	return sp, true, nil
}

func (p *Pipeline) dedupePosts(logger *slog.Logger, posts []domain.SheetPost) []domain.SheetPost {
	seen := make(map[string]struct{}, len(posts))
	unique := make([]domain.SheetPost, 0, len(posts))
	for _, sp := range posts {
		if _, ok := seen[sp.ID]; ok {
			logger.Warn("skipping duplicate post", "post_id", sp.ID, "title", sp.Title)
			continue
		}
		seen[sp.ID] = struct{}{}
		unique = append(unique, sp)
	}
	return unique
}

// uniqueDocuments keeps the first post of each document. posts must already
// be ordered newest first.
func (p *Pipeline) uniqueDocuments(logger *slog.Logger, posts []domain.SheetPost) []domain.SheetPost {
	seen := make(map[string]struct{})
	var unique []domain.SheetPost
	for _, sp := range posts {
		if !sp.HasDocument() {
			continue
		}
		if _, ok := seen[sp.DocumentID]; ok {
			attrs := []any{"document_id", sp.DocumentID, "post_id", sp.ID, "permalink", sp.Permalink}
			if sp.Author != nil {
				attrs = append(attrs, "author", sp.Author.Name, "flair_rank", sp.Author.FlairRank)
			}
			logger.Warn("skipping duplicate sheet", attrs...)
			continue
		}
		seen[sp.DocumentID] = struct{}{}
		unique = append(unique, sp)
	}
	return unique
}

// download fetches a document unless it is cached already. Download failures
// are logged and reported as ok=false.
func (p *Pipeline) download(ctx context.Context, logger *slog.Logger, sp domain.SheetPost) (domain.SheetPost, bool, error) {
	logger = logger.With("document_id", sp.DocumentID)

	cached, err := p.cache.HashExists(ctx, cache.SheetsHash, cache.SheetField(sp.DocumentID))
	if err != nil {
		return sp, false, fmt.Errorf("check sheet %s: %w", sp.DocumentID, err)
	}
	if cached {
		logger.Info("sheet already cached")
		return sp, false, nil
	}

	grid, err := p.downloader.Download(ctx, sp.DocumentID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sp, false, ctxErr
		}
		logger.Error("sheet download failed", "error", err)
		return sp, false, nil
	}

	if err := sp.AttachGrid(grid, p.now()); err != nil {
		logger.Error("attach sheet grid", "error", err)
		return sp, false, nil
	}
	return sp, true, nil
}

func sortByCreatedDesc(posts []domain.SheetPost) []domain.SheetPost {
	slices.SortStableFunc(posts, func(a, b domain.SheetPost) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return posts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
