package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	quotaExceededMessage = "Quota exceeded"
	unsupportedMessage   = "This operation is not supported"
)

// GoogleAPI opens spreadsheets through the Sheets v4 API.
type GoogleAPI struct {
	svc *gsheets.Service
}

// NewGoogleAPI creates a read-only Sheets client. credentialsFile is a service
// account key; when empty, application default credentials are used. Extra
// options are appended last.
func NewGoogleAPI(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*GoogleAPI, error) {
	clientOpts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsReadonlyScope)}
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleAPI{svc: svc}, nil
}

// OpenByKey loads the worksheet list of a document.
func (g *GoogleAPI) OpenByKey(ctx context.Context, documentID string) (domain.Workbook, error) {
	ss, err := g.svc.Spreadsheets.Get(documentID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyError(fmt.Errorf("open %s: %w", documentID, err))
	}

	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return &workbook{svc: g.svc, id: documentID, titles: titles}, nil
}

type workbook struct {
	svc    *gsheets.Service
	id     string
	titles []string
}

func (w *workbook) FirstWorksheet(_ context.Context) (domain.Worksheet, error) {
	if len(w.titles) == 0 {
		return nil, fmt.Errorf("%w: document %s has no worksheets", domain.ErrUnsupportedDocument, w.id)
	}
	return &worksheet{svc: w.svc, id: w.id, title: w.titles[0]}, nil
}

type worksheet struct {
	svc   *gsheets.Service
	id    string
	title string
}

func (w *worksheet) AllValues(ctx context.Context) ([][]string, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.id, quoteSheetTitle(w.title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyError(fmt.Errorf("read values of %s: %w", w.id, err))
	}

	values := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		values[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				values[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return values, nil
}

// quoteSheetTitle turns a worksheet title into an A1 range covering the
// whole sheet.
func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// classifyError tags API errors with the download error taxonomy.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			strings.Contains(apiErr.Message, quotaExceededMessage):
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		case strings.Contains(apiErr.Message, unsupportedMessage):
			return fmt.Errorf("%w: %w", domain.ErrUnsupportedDocument, err)
		}
	}
	return err
}
