package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/api/respond"
	"github.com/bondcrm/notionsync/internal/conflict"
	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/notion"
	"github.com/bondcrm/notionsync/internal/resolution"
	"github.com/bondcrm/notionsync/internal/services"
)

type fakeSyncService struct {
	preview services.PreviewRequest
	resolve services.ResolveRequest
	sync    services.SyncRequest
	err     error
}

func (f *fakeSyncService) Preview(_ context.Context, req services.PreviewRequest) (*services.Preview, error) {
	f.preview = req
	if f.err != nil {
		return nil, f.err
	}
	return &services.Preview{Entity: req.Entity, DatabaseID: "db1", PagesRetrieved: 3, Detection: &conflict.Summary{Conflicts: []model.Conflict{}}}, nil
}

func (f *fakeSyncService) Resolve(_ context.Context, req services.ResolveRequest) (*resolution.Result, error) {
	f.resolve = req
	if f.err != nil {
		return nil, f.err
	}
	return &resolution.Result{Success: true, RecordsUpdated: len(req.Choices)}, nil
}

func (f *fakeSyncService) Sync(_ context.Context, req services.SyncRequest) (*services.SyncReport, error) {
	f.sync = req
	if f.err != nil {
		return nil, f.err
	}
	return &services.SyncReport{Resolution: &resolution.Result{Success: true}, Linked: 2}, nil
}

func newTestRouter(svc SyncService) http.Handler {
	return NewRouter(NewSyncHandler(svc), NewHealthHandler())
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPreview_PassesPathBodyAndToken(t *testing.T) {
	svc := &fakeSyncService{}
	rr := do(t, newTestRouter(svc), http.MethodPost, "/api/users/u1/sync/tasks/preview",
		`{"databaseId":"db-override"}`, map[string]string{"Authorization": "Bearer secret_abc"})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, services.PreviewRequest{UserID: "u1", Entity: model.EntityTasks, DatabaseID: "db-override", APIKey: "secret_abc"}, svc.preview)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, float64(3), got["pagesRetrieved"])
}

func TestPreview_EmptyBodyAllowed(t *testing.T) {
	svc := &fakeSyncService{}
	rr := do(t, newTestRouter(svc), http.MethodPost, "/api/users/u1/sync/journal/preview", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.EntityJournal, svc.preview.Entity)
	assert.Empty(t, svc.preview.APIKey)
}

func TestPreview_UnknownEntity(t *testing.T) {
	rr := do(t, newTestRouter(&fakeSyncService{}), http.MethodPost, "/api/users/u1/sync/widgets/preview", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPreview_BadAuthorization(t *testing.T) {
	rr := do(t, newTestRouter(&fakeSyncService{}), http.MethodPost, "/api/users/u1/sync/tasks/preview", "",
		map[string]string{"Authorization": "Token abc"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestResolve_DecodesChoices(t *testing.T) {
	svc := &fakeSyncService{}
	body := `{"conflicts":[{"id":"p1:record","type":"record","severity":"medium","remotePageId":"p1","localRecordId":"r1"}],
		"choices":[{"conflictId":"p1:record","strategy":"merge","fieldChoices":{"status":"remote"}}]}`
	rr := do(t, newTestRouter(svc), http.MethodPost, "/api/users/u1/sync/tasks/resolve", body, nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, svc.resolve.Conflicts, 1)
	assert.Equal(t, "r1", svc.resolve.Conflicts[0].LocalRecordID)
	require.Len(t, svc.resolve.Choices, 1)
	assert.Equal(t, model.StrategyMerge, svc.resolve.Choices[0].Strategy)
	assert.Equal(t, model.SideRemote, svc.resolve.Choices[0].FieldChoices["status"])
}

func TestResolve_InvalidJSON(t *testing.T) {
	rr := do(t, newTestRouter(&fakeSyncService{}), http.MethodPost, "/api/users/u1/sync/tasks/resolve", "{", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSync_OneShot(t *testing.T) {
	svc := &fakeSyncService{}
	rr := do(t, newTestRouter(svc), http.MethodPost, "/api/users/u1/sync/tasks", `{"strategy":"prefer_remote"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.StrategyPreferRemote, svc.sync.Strategy)

	var got services.SyncReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Linked)
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", model.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: x", model.ErrUnknownEntity), http.StatusBadRequest},
		{fmt.Errorf("retrieve db: %w", notion.ErrDatabaseNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: no db", model.ErrNotFound), http.StatusNotFound},
		{model.ErrConflict, http.StatusConflict},
		{&notion.APIError{StatusCode: http.StatusUnauthorized, Code: "unauthorized"}, http.StatusUnauthorized},
		{&notion.APIError{StatusCode: http.StatusTooManyRequests, Code: "rate_limited"}, http.StatusTooManyRequests},
		{&notion.APIError{StatusCode: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rr := do(t, newTestRouter(&fakeSyncService{err: tc.err}), http.MethodPost, "/api/users/u1/sync/tasks/preview", "", nil)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestServiceError_RateLimitPassesRetryAfter(t *testing.T) {
	err := fmt.Errorf("update: %w", &notion.APIError{StatusCode: http.StatusTooManyRequests, Code: "rate_limited", RetryAfter: 3 * time.Second})
	rr := do(t, newTestRouter(&fakeSyncService{err: err}), http.MethodPost, "/api/users/u1/sync/tasks/preview", "", map[string]string{"X-Request-ID": "req-9"})

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "3", rr.Header().Get("Retry-After"))
	var body respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "req-9", body.RequestID)
	assert.NotEmpty(t, body.Hint)
}

func TestHealth_BoundSource(t *testing.T) {
	hh := NewHealthHandler()
	router := NewRouter(NewSyncHandler(&fakeSyncService{}), hh)

	rr := do(t, router, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"unhealthy"`)

	hh.BindServiceHealth(func() bool { return true }, func() map[string]bool { return map[string]bool{"store": true} })
	rr = do(t, router, http.MethodGet, "/api/health", "", nil)
	assert.Contains(t, rr.Body.String(), `"healthy"`)
	assert.Contains(t, rr.Body.String(), `"store":true`)
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(t, newTestRouter(&fakeSyncService{}), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestID_Echoed(t *testing.T) {
	rr := do(t, newTestRouter(&fakeSyncService{}), http.MethodGet, "/api/health", "", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}
