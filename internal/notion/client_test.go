package notion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/model"
)

func TestUpdatePage_SendsProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/pages/p1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body struct {
			Properties map[string]model.PropertyValue `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body.Properties, "Status")
		assert.Equal(t, "Completed", body.Properties["Status"].Select.Name)

		writeJSON(w, 200, map[string]any{
			"id":               "p1",
			"last_edited_time": "2024-02-01T10:00:00.000Z",
			"properties":       map[string]any{"Status": map[string]any{"type": "select", "select": map[string]any{"name": "Completed"}}},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	page, err := c.UpdatePage(context.Background(), "tok", "p1", map[string]model.PropertyValue{
		"Status": {Select: &model.SelectOption{Name: "Completed"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", page.ID)
	assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), page.LastEditedTime.UTC())
	name, ok := page.Properties["Status"].SelectName()
	require.True(t, ok)
	assert.Equal(t, "Completed", name)
}

func TestUpdatePage_MapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, map[string]any{"object": "error", "status": 400, "code": "validation_error", "message": "Status is not a property"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.UpdatePage(context.Background(), "tok", "p1", nil)
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.Equal(t, Recoverable, apiErr.Category())
	assert.False(t, errors.Is(err, ErrDatabaseNotFound))
}

func TestClient_RequiresIDs(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	_, err := c.QueryDatabase(context.Background(), "tok", "", "")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = c.UpdatePage(context.Background(), "tok", "", nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestAPIError_Classification(t *testing.T) {
	tests := []struct {
		err      APIError
		category ErrorCategory
		notFound bool
	}{
		{APIError{StatusCode: 404}, Irrecoverable, true},
		{APIError{StatusCode: 400, Message: "Could not find page with ID"}, Irrecoverable, true},
		{APIError{StatusCode: 401}, Irrecoverable, false},
		{APIError{StatusCode: 403}, Irrecoverable, false},
		{APIError{StatusCode: 429}, Recoverable, false},
		{APIError{StatusCode: 502}, Recoverable, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.category, tt.err.Category(), "status %d", tt.err.StatusCode)
		assert.Equal(t, tt.notFound, tt.err.NotFound(), "status %d", tt.err.StatusCode)
	}
}
