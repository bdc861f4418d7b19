package headers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blackmichael/disc-sheets/internal/cache"
	"github.com/blackmichael/disc-sheets/internal/domain"
)

// Normalizer runs the header pass over every cached sheet.
type Normalizer struct {
	cache     *cache.Cache
	synonyms  domain.SynonymTable
	exportDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewNormalizer creates a Normalizer. When exportDir is not empty each
// normalized grid is also written there as CSV.
func NewNormalizer(c *cache.Cache, synonyms domain.SynonymTable, exportDir string, logger *slog.Logger) *Normalizer {
	if synonyms == nil {
		synonyms = domain.DefaultSynonyms
	}
	return &Normalizer{
		cache:     c,
		synonyms:  synonyms,
		exportDir: exportDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Report summarizes a normalization pass.
type Report struct {
	Results  []*Result
	Corrupt  int
	Found    int
	Mapped   int
	Exported int
}

// Grids returns the grid of every result.
func (r *Report) Grids() []*domain.Grid {
	grids := make([]*domain.Grid, len(r.Results))
	for i, res := range r.Results {
		grids[i] = res.Grid
	}
	return grids
}

// Run reads every grid from the sheets hash, detects and promotes its header,
// maps the labels and stores the result in the normalized hash. Records with
// no detectable header are reported but not stored. Raw records are never
// modified. Only cache failures abort the pass.
func (n *Normalizer) Run(ctx context.Context) (*Report, error) {
	posts, err := cache.ScanHashValues[domain.SheetPost](ctx, n.cache, cache.SheetsHash, cache.SheetFieldPattern)
	report := &Report{}
	if err != nil {
		if !errors.Is(err, domain.ErrCorruptCacheEntry) {
			return nil, fmt.Errorf("scan sheets: %w", err)
		}
		n.logger.Warn("skipping corrupt sheet records", "error", err)
		report.Corrupt += len(multiErrors(err))
	}

	for i := range posts {
		post := &posts[i]
		grid, err := post.Grid()
		if err != nil {
			n.logger.Warn("skipping sheet without usable grid",
				"document_id", post.DocumentID,
				"error", err,
			)
			report.Corrupt++
			continue
		}

		res := Detect(grid, post)
		report.Results = append(report.Results, res)
		if !res.Found {
			n.logger.Info("no header found", "document_id", post.DocumentID, "rows", len(grid.Rows))
			continue
		}
		report.Found++

		Promote(res)
		if err := ApplyMapping(res, n.synonyms); err != nil {
			n.logger.Warn("header mapping skipped",
				"document_id", post.DocumentID,
				"error", err,
			)
		} else {
			report.Mapped++
		}

		n.logger.Debug("header normalized",
			"document_id", post.DocumentID,
			"header_row", res.HeaderRowIndex,
			"match_count", res.MatchCount,
			"columns", res.Grid.Columns,
		)

		if err := n.store(ctx, res); err != nil {
			return nil, err
		}

		if n.exportDir != "" {
			if err := n.export(res); err != nil {
				n.logger.Error("csv export failed", "document_id", post.DocumentID, "error", err)
			} else {
				report.Exported++
			}
		}
	}

	n.logger.Info("normalization complete",
		"sheets", len(report.Results),
		"found", report.Found,
		"missing", len(report.Results)-report.Found,
		"mapped", report.Mapped,
		"corrupt", report.Corrupt,
		"exported", report.Exported,
	)
	return report, nil
}

func (n *Normalizer) store(ctx context.Context, res *Result) error {
	encoded, err := res.Grid.Encode()
	if err != nil {
		return err
	}
	out := *res.Source
	out.RawGrid = encoded

	if err := n.cache.HashSet(ctx, cache.NormalizedHash, cache.SheetField(out.DocumentID), out); err != nil {
		return fmt.Errorf("store normalized sheet %s: %w", out.DocumentID, err)
	}
	return nil
}

// ExportPath returns where the CSV of documentID is written on day.
func ExportPath(dir, documentID string, day time.Time) string {
	return filepath.Join(dir, documentID+"_"+day.Format(time.DateOnly)+".csv")
}

func (n *Normalizer) export(res *Result) (err error) {
	if err := os.MkdirAll(n.exportDir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	path := ExportPath(n.exportDir, res.Source.DocumentID, n.now())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return res.Grid.WriteCSV(f)
}

func multiErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
