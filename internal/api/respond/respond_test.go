package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestWriteError_CarriesRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set(RequestIDHeader, "req-1")
	WriteError(rr, http.StatusConflict, "page already linked")

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	body := decode(t, rr)
	assert.Equal(t, ErrorResponse{Error: "Conflict", Code: 409, Message: "page already linked", RequestID: "req-1"}, body)
}

func TestWriteErrorHint(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteErrorHint(rr, http.StatusNotFound, "database db1 not found", "re-link the Notion database")
	body := decode(t, rr)
	assert.Equal(t, "re-link the Notion database", body.Hint)
	assert.Empty(t, body.RequestID)
}

func TestWriteRateLimited(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteRateLimited(rr, "rate limited", 1500*time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
	assert.NotEmpty(t, decode(t, rr).Hint)

	rr = httptest.NewRecorder()
	WriteRateLimited(rr, "rate limited", 0)
	assert.Empty(t, rr.Header().Get("Retry-After"))
}
