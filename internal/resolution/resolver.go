// Package resolution applies user-chosen strategies to detected conflicts,
// writing to whichever side should change and keeping the sync-status
// columns current. Nothing is ever deleted on either side.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/bondcrm/notionsync/internal/metrics"
	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/notion"
	"github.com/bondcrm/notionsync/internal/schema"
	"github.com/bondcrm/notionsync/internal/shardqueue"
	"github.com/bondcrm/notionsync/internal/store"
	"github.com/bondcrm/notionsync/internal/transform"
)

// PageUpdater writes properties back to a remote page.
type PageUpdater interface {
	UpdatePage(ctx context.Context, apiKey, pageID string, properties map[string]model.PropertyValue) (*model.RemotePage, error)
}

// Executor serializes jobs that share a key. *shardqueue.ShardExecutor
// satisfies it.
type Executor interface {
	Do(ctx context.Context, key string, job shardqueue.Job) error
}

// ResolutionError ties a failed record group to the conflict whose choice
// triggered it.
type ResolutionError struct {
	ConflictID string `json:"conflictId"`
	Message    string `json:"message"`
}

// Result summarizes one Resolve call. Success is false when any group
// failed; the counts still reflect partial progress.
type Result struct {
	Success        bool              `json:"success"`
	RecordsUpdated int               `json:"recordsUpdated"`
	RecordsSkipped int               `json:"recordsSkipped"`
	Errors         []ResolutionError `json:"errors"`
}

// maxInFlight caps the groups handed to the executor at once.
const maxInFlight = 64

type Resolver struct {
	store    store.Store
	notion   PageUpdater
	exec     Executor
	log      zerolog.Logger
	now      func() time.Time
	inFlight int
}

// NewResolver builds a Resolver. exec may be nil, in which case groups run
// inline in input order.
func NewResolver(st store.Store, n PageUpdater, exec Executor, log zerolog.Logger) *Resolver {
	return &Resolver{store: st, notion: n, exec: exec, log: log, now: time.Now, inFlight: maxInFlight}
}

// group is every conflict belonging to one record.
type group struct {
	key       string
	conflicts []model.Conflict
}

func groupConflicts(conflicts []model.Conflict) []*group {
	var out []*group
	byKey := make(map[string]*group)
	for _, c := range conflicts {
		k := c.RecordKey()
		g, ok := byKey[k]
		if !ok {
			g = &group{key: k}
			byKey[k] = g
			out = append(out, g)
		}
		g.conflicts = append(g.conflicts, c)
	}
	return out
}

// choiceFor returns the first choice addressed to any conflict in g.
func (g *group) choiceFor(choices map[string]model.ResolutionChoice) (model.ResolutionChoice, bool) {
	for _, c := range g.conflicts {
		if ch, ok := choices[c.ID]; ok {
			return ch, true
		}
	}
	return model.ResolutionChoice{}, false
}

func (g *group) localID() string {
	for _, c := range g.conflicts {
		if c.LocalRecordID != "" {
			return c.LocalRecordID
		}
	}
	return ""
}

func (g *group) pageID() string { return g.conflicts[0].RemotePageID }

func (g *group) remoteData() map[string]any {
	for _, c := range g.conflicts {
		if c.RemoteData != nil {
			return c.RemoteData
		}
	}
	return nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeUpdated
	outcomeFailed
)

type groupResult struct {
	outcome outcome
	err     *ResolutionError
}

// Resolve applies choices to conflicts for one user and entity. Groups
// without a choice, or with skip, are left untouched on both sides. A
// failing group is recorded and the rest continue.
func (r *Resolver) Resolve(ctx context.Context, apiKey string, conflicts []model.Conflict, choices []model.ResolutionChoice, userID string, entity model.EntityType) (*Result, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	byConflict := make(map[string]model.ResolutionChoice, len(choices))
	for _, ch := range choices {
		if _, err := model.ParseStrategy(string(ch.Strategy)); err != nil {
			return nil, err
		}
		byConflict[ch.ConflictID] = ch
	}

	groups := groupConflicts(conflicts)
	results := make([]groupResult, len(groups))

	if r.exec == nil {
		for i, g := range groups {
			results[i] = r.resolveGroup(ctx, apiKey, g, byConflict, userID, e)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, r.inFlight)
		for i, g := range groups {
			sem <- struct{}{}
			wg.Add(1)
			go func(i int, g *group) {
				defer func() {
					<-sem
					wg.Done()
				}()
				results[i] = r.resolveGroup(ctx, apiKey, g, byConflict, userID, e)
			}(i, g)
		}
		wg.Wait()
	}

	res := &Result{Errors: []ResolutionError{}}
	for _, gr := range results {
		switch gr.outcome {
		case outcomeUpdated:
			res.RecordsUpdated++
		case outcomeSkipped:
			res.RecordsSkipped++
		case outcomeFailed:
			res.Errors = append(res.Errors, *gr.err)
		}
	}
	res.Success = len(res.Errors) == 0

	r.log.Info().
		Str("user_id", userID).
		Str("entity", string(entity)).
		Int("groups", len(groups)).
		Int("updated", res.RecordsUpdated).
		Int("skipped", res.RecordsSkipped).
		Int("failed", len(res.Errors)).
		Msg("conflicts resolved")
	return res, nil
}

func (r *Resolver) resolveGroup(ctx context.Context, apiKey string, g *group, choices map[string]model.ResolutionChoice, userID string, e *schema.Entity) groupResult {
	choice, ok := g.choiceFor(choices)
	if !ok || choice.Strategy == model.StrategySkip {
		metrics.Resolutions.WithLabelValues(string(e.Type), strategyLabel(choice.Strategy), "skipped").Inc()
		return groupResult{outcome: outcomeSkipped}
	}

	// The job may run more than once; it only records the id it wrote.
	var (
		touchedID atomic.Value
		ran       atomic.Bool
	)
	job := shardqueue.JobFunc(func(ctx context.Context) error {
		ran.Store(true)
		id, err := r.apply(ctx, apiKey, g, choice, userID, e)
		if id != "" {
			touchedID.Store(id)
		}
		return err
	})

	var err error
	if r.exec != nil {
		err = r.exec.Do(ctx, string(e.Type)+"/"+g.key, job)
	} else {
		err = job.Run(ctx)
	}

	if err != nil {
		// a job that never ran left the record as it was
		touched, _ := touchedID.Load().(string)
		if touched == "" && ran.Load() {
			touched = g.localID()
		}
		if touched != "" {
			if markErr := r.store.SyncStatus().MarkFailed(ctx, e.Type, userID, touched, err.Error()); markErr != nil && !errors.Is(markErr, model.ErrNotFound) {
				r.log.Warn().Err(markErr).Str("record_id", touched).Msg("could not record sync failure")
			}
		}
		r.log.Error().Err(err).
			Str("entity", string(e.Type)).
			Str("record_key", g.key).
			Str("strategy", string(choice.Strategy)).
			Msg("conflict resolution failed")
		metrics.Resolutions.WithLabelValues(string(e.Type), string(choice.Strategy), "failed").Inc()
		return groupResult{outcome: outcomeFailed, err: &ResolutionError{ConflictID: choice.ConflictID, Message: err.Error()}}
	}

	metrics.Resolutions.WithLabelValues(string(e.Type), string(choice.Strategy), "updated").Inc()
	return groupResult{outcome: outcomeUpdated}
}

// apply performs the writes for one group and returns the local record id it
// touched.
func (r *Resolver) apply(ctx context.Context, apiKey string, g *group, choice model.ResolutionChoice, userID string, e *schema.Entity) (string, error) {
	localID := g.localID()
	switch choice.Strategy {
	case model.StrategyPreferLocal:
		if localID == "" {
			return "", fmt.Errorf("%w: no local record to push for page %s", model.ErrNotFound, g.pageID())
		}
		return localID, r.pushLocal(ctx, apiKey, g, userID, e, localID, nil)

	case model.StrategyPreferRemote:
		if localID == "" {
			return r.insertRemote(ctx, g, userID, e)
		}
		return localID, r.pullRemote(ctx, g, userID, e, localID)

	case model.StrategyMerge:
		if localID == "" {
			// only the remote side exists
			return r.insertRemote(ctx, g, userID, e)
		}
		return localID, r.merge(ctx, apiKey, g, choice, userID, e, localID)
	}
	return "", fmt.Errorf("%w: unknown strategy %q", model.ErrValidation, choice.Strategy)
}

// pushLocal overwrites the remote page with the stored record, after first
// applying the given local changes.
func (r *Resolver) pushLocal(ctx context.Context, apiKey string, g *group, userID string, e *schema.Entity, localID string, changes map[string]any) error {
	if err := r.store.SyncStatus().MarkPending(ctx, e.Type, userID, localID); err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	var (
		rec *model.Record
		err error
	)
	if len(changes) > 0 {
		rec, err = r.store.Records().UpdateFields(ctx, e.Type, userID, localID, changes)
	} else {
		rec, err = r.store.Records().Get(ctx, e.Type, userID, localID)
	}
	if err != nil {
		return fmt.Errorf("load local record: %w", err)
	}
	props, err := transform.ToRemote(rec.Fields, e.Type)
	if err != nil {
		return err
	}
	page, err := r.notion.UpdatePage(ctx, apiKey, g.pageID(), props)
	if err != nil {
		return fmt.Errorf("update notion page: %w", err)
	}
	at := r.now().UTC()
	if page != nil && page.LastEditedTime.After(at) {
		at = page.LastEditedTime.UTC()
	}
	if err := r.store.SyncStatus().MarkSynced(ctx, e.Type, userID, localID, g.pageID(), at); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// pullRemote overwrites the important local columns with the remote values.
func (r *Resolver) pullRemote(ctx context.Context, g *group, userID string, e *schema.Entity, localID string) error {
	remote := g.remoteData()
	if remote == nil {
		return fmt.Errorf("%w: conflict carries no remote data", model.ErrValidation)
	}
	if err := r.store.SyncStatus().MarkPending(ctx, e.Type, userID, localID); err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	fields := make(map[string]any, len(e.Important))
	for _, col := range e.Important {
		fields[col] = remote[col]
	}
	if _, err := r.store.Records().UpdateFields(ctx, e.Type, userID, localID, fields); err != nil {
		return fmt.Errorf("update local record: %w", err)
	}
	if err := r.store.SyncStatus().MarkSynced(ctx, e.Type, userID, localID, g.pageID(), r.now().UTC()); err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

// insertRemote creates a local record from a remote page that has no local
// counterpart. The page id is written with the row so a repeated attempt
// fails on the unique link instead of creating a duplicate.
func (r *Resolver) insertRemote(ctx context.Context, g *group, userID string, e *schema.Entity) (string, error) {
	remote := g.remoteData()
	if remote == nil {
		return "", fmt.Errorf("%w: conflict carries no remote data", model.ErrValidation)
	}
	fields := make(map[string]any, len(e.Fields))
	for _, col := range e.Columns() {
		if v, ok := remote[col]; ok {
			fields[col] = v
		}
	}
	pageID := g.pageID()
	// one instant for every timestamp so the row never looks edited after
	// its own sync
	now := r.now().UTC()
	rec, err := r.store.Records().Insert(ctx, e.Type, &model.Record{
		UserID:         userID,
		Fields:         fields,
		ExternalPageID: &pageID,
		SyncStatus:     model.SyncStatusSynced,
		SyncedAt:       &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return "", fmt.Errorf("insert local record: %w", err)
	}
	return rec.ID, nil
}

// merge takes each conflicting field from the chosen side (local when
// unspecified), stores the result and pushes it to the remote page.
func (r *Resolver) merge(ctx context.Context, apiKey string, g *group, choice model.ResolutionChoice, userID string, e *schema.Entity, localID string) error {
	changes := make(map[string]any)
	for _, c := range g.conflicts {
		if c.Type != model.ConflictField || c.Field == nil {
			continue
		}
		side := choice.FieldChoices[*c.Field]
		if side == "" {
			side = model.SideLocal
		}
		if side == model.SideRemote {
			changes[*c.Field] = c.RemoteValue
		}
	}
	return r.pushLocal(ctx, apiKey, g, userID, e, localID, changes)
}

// Link marks clean title matches as synced so that later runs match them by
// page id. Matches that already carry a page id, or that are not title
// matches, are ignored. It returns how many records were linked.
func (r *Resolver) Link(ctx context.Context, userID string, entity model.EntityType, matches []model.MatchResult) (int, error) {
	linked := 0
	for _, m := range matches {
		if m.Demoted || m.MatchType != model.MatchTitle || m.LocalRecord == nil || m.LocalRecord.HasExternalID() {
			continue
		}
		at := r.now().UTC()
		if err := r.store.SyncStatus().MarkSynced(ctx, entity, userID, m.LocalRecord.ID, m.RemotePage.ID, at); err != nil {
			if errors.Is(err, model.ErrConflict) {
				r.log.Warn().Err(err).Str("record_id", m.LocalRecord.ID).Msg("page already linked to another record")
				continue
			}
			return linked, err
		}
		linked++
	}
	return linked, nil
}

// ChoicesFor applies one strategy to every record group in conflicts.
func ChoicesFor(conflicts []model.Conflict, strategy model.Strategy) []model.ResolutionChoice {
	groups := groupConflicts(conflicts)
	out := make([]model.ResolutionChoice, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.ResolutionChoice{ConflictID: g.conflicts[0].ID, Strategy: strategy})
	}
	return out
}

// Irrecoverable reports resolution errors that retrying cannot fix. Rate
// limits, Notion 5xx responses and network failures are retried.
func Irrecoverable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if apiErr, ok := notion.AsAPIError(err); ok {
		return !(apiErr.RateLimited() || apiErr.StatusCode >= 500)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return false
	}
	return true
}

// RetryAfter returns the server's Retry-After hint carried by err, or zero.
func RetryAfter(err error) time.Duration {
	if apiErr, ok := notion.AsAPIError(err); ok {
		return apiErr.RetryAfter
	}
	return 0
}

func strategyLabel(s model.Strategy) string {
	if s == "" {
		return "none"
	}
	return string(s)
}
