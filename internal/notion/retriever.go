package notion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/bondcrm/notionsync/internal/metrics"
	"github.com/bondcrm/notionsync/internal/model"
)

// PageQuerier fetches one page of database results.
type PageQuerier interface {
	QueryDatabase(ctx context.Context, apiKey, databaseID, cursor string) (*QueryResponse, error)
}

// RetrieverConfig bounds retries and pacing.
type RetrieverConfig struct {
	MaxRetries     int
	MinInterval    time.Duration
	InitialBackoff time.Duration
}

// DefaultRetrieverConfig stays under Notion's documented three requests per
// second.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		MaxRetries:     3,
		MinInterval:    333 * time.Millisecond,
		InitialBackoff: time.Second,
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetrieveResult is everything collected from one database.
type RetrieveResult struct {
	Pages          []model.RemotePage `json:"pages"`
	TotalRetrieved int                `json:"totalRetrieved"`
	Errors         []string           `json:"errors"`
	RateLimitHits  int                `json:"rateLimitHits"`
}

// ProgressFunc is called after each successful page. total is nil until the
// last page has been read.
type ProgressFunc func(retrieved int, total *int)

type Retriever struct {
	querier PageQuerier
	cfg     RetrieverConfig
	log     zerolog.Logger
	sleep   Sleeper
}

func NewRetriever(q PageQuerier, cfg RetrieverConfig, log zerolog.Logger) *Retriever {
	def := DefaultRetrieverConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	return &Retriever{querier: q, cfg: cfg, log: log, sleep: sleepWithContext}
}

// WithSleeper replaces the sleeper; tests use it to record delays.
func (r *Retriever) WithSleeper(s Sleeper) *Retriever {
	r.sleep = s
	return r
}

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeRetry
	outcomeFatal
)

type attempt struct {
	kind  outcomeKind
	resp  *QueryResponse
	err   error
	delay time.Duration // server hint for outcomeRetry; zero means use backoff
}

func (r *Retriever) try(ctx context.Context, apiKey, databaseID, cursor string) attempt {
	resp, err := r.querier.QueryDatabase(ctx, apiKey, databaseID, cursor)
	if err == nil {
		return attempt{kind: outcomeOK, resp: resp}
	}
	if ctx.Err() != nil {
		return attempt{kind: outcomeFatal, err: ctx.Err()}
	}
	if errors.Is(err, model.ErrValidation) {
		return attempt{kind: outcomeFatal, err: err}
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		return attempt{kind: outcomeRetry, err: err}
	}
	if apiErr.Category() == Irrecoverable {
		return attempt{kind: outcomeFatal, err: err}
	}
	return attempt{kind: outcomeRetry, err: err, delay: apiErr.RetryAfter}
}

// RetrieveAll walks every page of the database. A missing database or a
// rejected token aborts with an error and whatever was already collected.
// When retries for a page run out the failure is recorded in Errors and
// pagination stops there: the pages after that cursor are never fetched, so
// the result is truncated even though no error is returned. Callers must
// check Errors before treating the page set as complete.
func (r *Retriever) RetrieveAll(ctx context.Context, apiKey, databaseID string, onProgress ProgressFunc) (*RetrieveResult, error) {
	res := &RetrieveResult{Pages: []model.RemotePage{}, Errors: []string{}}
	log := r.log.With().Str("database_id", databaseID).Logger()

	var (
		cursor string
		first  = true
	)
	for {
		if !first && r.cfg.MinInterval > 0 {
			if err := r.sleep(ctx, r.cfg.MinInterval); err != nil {
				return res, err
			}
		}
		first = false

		resp, err := r.fetchPage(ctx, apiKey, databaseID, cursor, res, log)
		if err != nil {
			if errors.Is(err, errRetriesExhausted) {
				return res, nil
			}
			return res, err
		}

		for _, p := range resp.Results {
			if p.Archived || p.InTrash {
				continue
			}
			res.Pages = append(res.Pages, p)
		}
		res.TotalRetrieved = len(res.Pages)

		done := !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == ""
		if onProgress != nil {
			if done {
				total := res.TotalRetrieved
				onProgress(res.TotalRetrieved, &total)
			} else {
				onProgress(res.TotalRetrieved, nil)
			}
		}
		if done {
			break
		}
		cursor = *resp.NextCursor
	}

	log.Debug().
		Int("pages", res.TotalRetrieved).
		Int("rate_limit_hits", res.RateLimitHits).
		Msg("database retrieved")
	return res, nil
}

var errRetriesExhausted = errors.New("retries exhausted")

// fetchPage retries a single cursor until it succeeds, hits a fatal error or
// runs out of budget.
func (r *Retriever) fetchPage(ctx context.Context, apiKey, databaseID, cursor string, res *RetrieveResult, log zerolog.Logger) (*QueryResponse, error) {
	bo := r.newBackOff()
	retriesLeft := r.cfg.MaxRetries
	for {
		a := r.try(ctx, apiKey, databaseID, cursor)
		switch a.kind {
		case outcomeOK:
			return a.resp, nil
		case outcomeFatal:
			res.Errors = append(res.Errors, a.err.Error())
			if apiErr, ok := AsAPIError(a.err); ok && apiErr.NotFound() {
				log.Error().Err(a.err).Msg("notion database not found")
				return nil, fmt.Errorf("retrieve %s: %w", databaseID, ErrDatabaseNotFound)
			}
			log.Error().Err(a.err).Msg("notion retrieval aborted")
			return nil, fmt.Errorf("retrieve %s: %w", databaseID, a.err)
		}

		// outcomeRetry
		if apiErr, ok := AsAPIError(a.err); ok && apiErr.RateLimited() {
			res.RateLimitHits++
			metrics.RateLimitHits.Inc()
		}
		if retriesLeft <= 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("page at cursor %q: %v", cursor, a.err))
			log.Warn().Err(a.err).Str("cursor", cursor).Msg("notion retries exhausted; returning partial results")
			return nil, errRetriesExhausted
		}
		retriesLeft--

		wait := bo.NextBackOff()
		if a.delay > 0 {
			wait = a.delay
		}
		log.Debug().Err(a.err).Dur("wait", wait).Int("retries_left", retriesLeft).Msg("retrying notion query")
		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (r *Retriever) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
