// Package respond writes the JSON bodies returned by the sync API.
package respond

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the id the middleware assigns to every request.
const RequestIDHeader = "X-Request-ID"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Message   string `json:"message,omitempty"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// WriteError writes an error body tagged with the request id already set on
// the response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteErrorHint(w, statusCode, message, "")
}

// WriteErrorHint adds what the caller can do about the error.
func WriteErrorHint(w http.ResponseWriter, statusCode int, message, hint string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Code:      statusCode,
		Message:   message,
		Hint:      hint,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// WriteRateLimited passes Notion's Retry-After through, rounded up to whole
// seconds.
func WriteRateLimited(w http.ResponseWriter, message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	WriteErrorHint(w, http.StatusTooManyRequests, message, "Notion is rate limiting this integration; retry later")
}
