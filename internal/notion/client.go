// Package notion is a small client for the Notion REST API covering the
// calls the sync engine needs: paginated database queries and page property
// updates.
package notion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/bondcrm/notionsync/internal/metrics"
	"github.com/bondcrm/notionsync/internal/model"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	// MaxPageSize is the largest page_size the query endpoint accepts.
	MaxPageSize = 100
)

// Config configures the HTTP client.
type Config struct {
	BaseURL string
	Version string
	Timeout time.Duration
}

// Client calls the Notion API. It is safe for concurrent use; the bearer
// token is supplied per call.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewClient creates a Client, applying defaults for empty config fields.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Notion-Version", cfg.Version).
		SetTimeout(cfg.Timeout)

	return &Client{http: c, log: log}
}

// QueryResponse is one page of database query results.
type QueryResponse struct {
	Object     string             `json:"object"`
	Results    []model.RemotePage `json:"results"`
	HasMore    bool               `json:"has_more"`
	NextCursor *string            `json:"next_cursor"`
}

type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size"`
}

type updatePageRequest struct {
	Properties map[string]model.PropertyValue `json:"properties"`
}

// QueryDatabase fetches one page of results starting at cursor ("" for the
// first page).
func (c *Client) QueryDatabase(ctx context.Context, apiKey, databaseID, cursor string) (*QueryResponse, error) {
	if databaseID == "" {
		return nil, fmt.Errorf("%w: database id is required", model.ErrValidation)
	}
	var out QueryResponse
	var eb errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetPathParam("databaseId", databaseID).
		SetBody(&queryRequest{StartCursor: cursor, PageSize: MaxPageSize}).
		SetResult(&out).
		SetError(&eb).
		Post("/databases/{databaseId}/query")
	if err != nil {
		metrics.NotionRequests.WithLabelValues("query", metrics.StatusClass(0)).Inc()
		return nil, fmt.Errorf("notion query: %w", err)
	}
	metrics.NotionRequests.WithLabelValues("query", metrics.StatusClass(resp.StatusCode())).Inc()
	if resp.IsError() {
		return nil, apiError(resp, eb)
	}
	return &out, nil
}

// UpdatePage patches the properties of a page and returns the updated page.
func (c *Client) UpdatePage(ctx context.Context, apiKey, pageID string, properties map[string]model.PropertyValue) (*model.RemotePage, error) {
	if pageID == "" {
		return nil, fmt.Errorf("%w: page id is required", model.ErrValidation)
	}
	var out model.RemotePage
	var eb errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetPathParam("pageId", pageID).
		SetBody(&updatePageRequest{Properties: properties}).
		SetResult(&out).
		SetError(&eb).
		Patch("/pages/{pageId}")
	if err != nil {
		metrics.NotionRequests.WithLabelValues("update_page", metrics.StatusClass(0)).Inc()
		return nil, fmt.Errorf("notion update page: %w", err)
	}
	metrics.NotionRequests.WithLabelValues("update_page", metrics.StatusClass(resp.StatusCode())).Inc()
	if resp.IsError() {
		err := apiError(resp, eb)
		c.log.Warn().Err(err).Str("page_id", pageID).Msg("notion page update failed")
		return nil, err
	}
	return &out, nil
}

func apiError(resp *resty.Response, eb errorBody) *APIError {
	msg := eb.Message
	if msg == "" {
		msg = resp.String()
	}
	return &APIError{
		StatusCode: resp.StatusCode(),
		Code:       eb.Code,
		Message:    msg,
		RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After"), time.Now()),
	}
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
