package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/blackmichael/disc-sheets/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func newTestGoogleAPI(t *testing.T, handler http.HandlerFunc) *GoogleAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := NewGoogleAPI(context.Background(), "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return api
}

func TestGoogleAPI_AllValues(t *testing.T) {
	var gotRange string
	api := newTestGoogleAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/values/") {
			gotRange = r.URL.Path[strings.Index(r.URL.Path, "/values/")+len("/values/"):]
			w.Write([]byte(`{"range":"'Sale list'!A1:C2","values":[["Mold","Price"],["Buzzz",12,true]]}`))
			return
		}
		w.Write([]byte(`{"sheets":[{"properties":{"title":"Sale list","index":0}},{"properties":{"title":"Sold"}}]}`))
	})
	ctx := context.Background()

	wb, err := api.OpenByKey(ctx, "doc1")
	require.NoError(t, err)
	ws, err := wb.FirstWorksheet(ctx)
	require.NoError(t, err)
	values, err := ws.AllValues(ctx)
	require.NoError(t, err)

	assert.Equal(t, "'Sale list'", gotRange)
	assert.Equal(t, [][]string{{"Mold", "Price"}, {"Buzzz", "12", "true"}}, values)
}

func TestGoogleAPI_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			name:   "quota",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"code":429,"message":"Quota exceeded for quota metric 'Read requests'","status":"RESOURCE_EXHAUSTED"}}`,
			want:   domain.ErrRateLimited,
		},
		{
			name:   "unsupported",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"This operation is not supported for this document","status":"FAILED_PRECONDITION"}}`,
			want:   domain.ErrUnsupportedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestGoogleAPI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := api.OpenByKey(context.Background(), "doc1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClassifyError_Passthrough(t *testing.T) {
	err := classifyError(&googleapi.Error{Code: http.StatusInternalServerError, Message: "backend"})
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.NotErrorIs(t, err, domain.ErrUnsupportedDocument)

	plain := errors.New("dial tcp: refused")
	assert.Equal(t, plain, classifyError(plain))
}

func TestWorkbook_NoWorksheets(t *testing.T) {
	wb := &workbook{id: "doc1"}
	_, err := wb.FirstWorksheet(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnsupportedDocument)
}
