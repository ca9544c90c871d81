// Package services composes retrieval, matching, detection and resolution
// into the use cases served by the API and the CLI.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bondcrm/notionsync/internal/conflict"
	"github.com/bondcrm/notionsync/internal/matching"
	"github.com/bondcrm/notionsync/internal/metrics"
	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/notion"
	"github.com/bondcrm/notionsync/internal/resolution"
	"github.com/bondcrm/notionsync/internal/store"
)

// PageRetriever walks a whole Notion database.
type PageRetriever interface {
	RetrieveAll(ctx context.Context, apiKey, databaseID string, onProgress notion.ProgressFunc) (*notion.RetrieveResult, error)
}

// SyncService orchestrates a sync cycle for one user and entity.
type SyncService struct {
	store     store.Store
	retriever PageRetriever
	detector  *conflict.Detector
	resolver  *resolution.Resolver
	tokens    TokenProvider
	databases DatabaseRegistry
	log       zerolog.Logger
}

func NewSyncService(st store.Store, r PageRetriever, res *resolution.Resolver, tokens TokenProvider, dbs DatabaseRegistry, log zerolog.Logger) *SyncService {
	return &SyncService{
		store:     st,
		retriever: r,
		detector:  conflict.NewDetector(log),
		resolver:  res,
		tokens:    tokens,
		databases: dbs,
		log:       log,
	}
}

// PreviewRequest selects what to compare. DatabaseID and APIKey are looked
// up when empty.
type PreviewRequest struct {
	UserID     string
	Entity     model.EntityType
	DatabaseID string
	APIKey     string
}

// MatchSummary counts matches by kind.
type MatchSummary struct {
	Total      int `json:"total"`
	ExternalID int `json:"externalId"`
	Title      int `json:"title"`
	None       int `json:"none"`
	Demoted    int `json:"demoted"`
}

// Preview is the read-only outcome of retrieval, matching and detection.
type Preview struct {
	Entity          model.EntityType  `json:"entity"`
	DatabaseID      string            `json:"databaseId"`
	PagesRetrieved  int               `json:"pagesRetrieved"`
	LocalRecords    int               `json:"localRecords"`
	Matches         MatchSummary      `json:"matches"`
	Detection       *conflict.Summary `json:"detection"`
	RetrievalErrors []string          `json:"retrievalErrors"`
	RateLimitHits   int               `json:"rateLimitHits"`

	matches []model.MatchResult
}

// Preview retrieves the remote database, matches it against the user's
// local records and reports conflicts without writing anything.
func (s *SyncService) Preview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	apiKey, dbID, err := s.credentials(ctx, req.UserID, req.Entity, req.APIKey, req.DatabaseID)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("user_id", req.UserID).Str("entity", string(req.Entity)).Logger()

	start := time.Now()
	retrieved, err := s.retriever.RetrieveAll(ctx, apiKey, dbID, func(n int, total *int) {
		ev := log.Debug().Int("retrieved", n)
		if total != nil {
			ev = ev.Int("total", *total)
		}
		ev.Msg("retrieval progress")
	})
	metrics.StageDuration.WithLabelValues("retrieve").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.PagesRetrieved.WithLabelValues(string(req.Entity)).Add(float64(retrieved.TotalRetrieved))

	local, err := s.store.Records().List(ctx, req.Entity, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("list local records: %w", err)
	}

	start = time.Now()
	matches, err := matching.MatchAll(retrieved.Pages, local, req.Entity)
	metrics.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	start = time.Now()
	summary, err := s.detector.DetectAll(matches, req.Entity)
	metrics.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	for _, c := range summary.Conflicts {
		metrics.ConflictsDetected.WithLabelValues(string(req.Entity), string(c.Type)).Inc()
	}

	p := &Preview{
		Entity:          req.Entity,
		DatabaseID:      dbID,
		PagesRetrieved:  retrieved.TotalRetrieved,
		LocalRecords:    len(local),
		Matches:         summarizeMatches(matches),
		Detection:       summary,
		RetrievalErrors: retrieved.Errors,
		RateLimitHits:   retrieved.RateLimitHits,
		matches:         matches,
	}
	log.Info().
		Int("pages", p.PagesRetrieved).
		Int("local", p.LocalRecords).
		Int("conflicts", len(summary.Conflicts)).
		Int("retrieval_errors", len(p.RetrievalErrors)).
		Msg("sync preview ready")
	return p, nil
}

func summarizeMatches(matches []model.MatchResult) MatchSummary {
	ms := MatchSummary{Total: len(matches)}
	for _, m := range matches {
		if m.Demoted {
			ms.Demoted++
		}
		switch m.MatchType {
		case model.MatchExternalID:
			ms.ExternalID++
		case model.MatchTitle:
			ms.Title++
		default:
			ms.None++
		}
	}
	return ms
}

// ResolveRequest carries the user's decisions for previously previewed
// conflicts.
type ResolveRequest struct {
	UserID    string
	Entity    model.EntityType
	APIKey    string
	Conflicts []model.Conflict
	Choices   []model.ResolutionChoice
}

// Resolve applies the choices in req.
func (s *SyncService) Resolve(ctx context.Context, req ResolveRequest) (*resolution.Result, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	apiKey, err := s.token(ctx, req.UserID, req.APIKey)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds()) }()
	return s.resolver.Resolve(ctx, apiKey, req.Conflicts, req.Choices, req.UserID, req.Entity)
}

// SyncRequest runs a full cycle resolving every conflict the same way.
type SyncRequest struct {
	UserID     string
	Entity     model.EntityType
	Strategy   model.Strategy
	DatabaseID string
	APIKey     string
}

// SyncReport is the outcome of Sync.
type SyncReport struct {
	Preview    *Preview           `json:"preview"`
	Resolution *resolution.Result `json:"resolution"`
	// Linked counts title matches without conflicts that were recorded as
	// synced so later runs match them by page id.
	Linked int `json:"linked"`
}

// Sync previews, resolves every conflict with req.Strategy and links clean
// title matches. With the skip strategy nothing is written.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*SyncReport, error) {
	if _, err := model.ParseStrategy(string(req.Strategy)); err != nil {
		return nil, err
	}
	apiKey, err := s.token(ctx, req.UserID, req.APIKey)
	if err != nil {
		return nil, err
	}
	p, err := s.Preview(ctx, PreviewRequest{UserID: req.UserID, Entity: req.Entity, DatabaseID: req.DatabaseID, APIKey: apiKey})
	if err != nil {
		return nil, err
	}

	conflicts := p.Detection.Conflicts
	res := &resolution.Result{Success: true, Errors: []resolution.ResolutionError{}}
	if p.Detection.HasConflicts() {
		res, err = s.Resolve(ctx, ResolveRequest{
			UserID:    req.UserID,
			Entity:    req.Entity,
			APIKey:    apiKey,
			Conflicts: conflicts,
			Choices:   resolution.ChoicesFor(conflicts, req.Strategy),
		})
		if err != nil {
			return nil, err
		}
	}

	// skip is a dry run and leaves every sync column alone
	if req.Strategy == model.StrategySkip {
		return &SyncReport{Preview: p, Resolution: res}, nil
	}

	conflicted := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		conflicted[c.RemotePageID] = true
	}
	var clean []model.MatchResult
	for _, m := range p.matches {
		if !conflicted[m.RemotePage.ID] {
			clean = append(clean, m)
		}
	}
	linked, err := s.resolver.Link(ctx, req.UserID, req.Entity, clean)
	if err != nil {
		return nil, fmt.Errorf("link matches: %w", err)
	}

	return &SyncReport{Preview: p, Resolution: res, Linked: linked}, nil
}

func (s *SyncService) token(ctx context.Context, userID, supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}
	if s.tokens == nil {
		return "", fmt.Errorf("%w: notion token required", model.ErrValidation)
	}
	return s.tokens.Token(ctx, userID)
}

func (s *SyncService) credentials(ctx context.Context, userID string, entity model.EntityType, apiKey, dbID string) (string, string, error) {
	if _, err := model.ParseEntityType(string(entity)); err != nil {
		return "", "", err
	}
	key, err := s.token(ctx, userID, apiKey)
	if err != nil {
		return "", "", err
	}
	if dbID != "" {
		return key, dbID, nil
	}
	if s.databases == nil {
		return "", "", fmt.Errorf("%w: database id required", model.ErrValidation)
	}
	dbID, err = s.databases.DatabaseID(ctx, userID, entity)
	if err != nil {
		return "", "", err
	}
	return key, dbID, nil
}
