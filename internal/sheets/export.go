package sheets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"
)

const exportURLFormat = "https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=0"

// maxExportSize bounds the body read from an export response.
const maxExportSize = 32 << 20

// ExportURL returns the CSV export link of the first worksheet of a document.
func ExportURL(documentID string) string {
	return fmt.Sprintf(exportURLFormat, documentID)
}

// HTTPExporter downloads CSV exports over plain HTTP. Only documents shared
// with "anyone with the link" can be exported this way.
type HTTPExporter struct {
	httpClient *http.Client
}

// NewHTTPExporter creates an exporter. If timeout is zero it defaults to 30s.
func NewHTTPExporter(timeout time.Duration) *HTTPExporter {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExporter{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchCSV fetches url and returns the body. Private documents redirect to a
// sign-in page, so HTML responses are rejected.
func (e *HTTPExporter) FetchCSV(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("export error (status %d): %s", resp.StatusCode, truncate(body, 200))
	}

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		return nil, fmt.Errorf("export returned html instead of csv")
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
