// Package store defines the persistence operations the sync engine needs.
// Implementations live under internal/store/<driver>/.
package store

import (
	"context"
	"time"

	"github.com/bondcrm/notionsync/internal/model"
)

// Store exposes entity records and their sync metadata.
type Store interface {
	Records() Records
	SyncStatus() SyncStatus
}

// Records reads and writes the mapped columns of an entity table. Missing
// rows are reported as model.ErrNotFound.
type Records interface {
	Get(ctx context.Context, entity model.EntityType, userID, id string) (*model.Record, error)
	List(ctx context.Context, entity model.EntityType, userID string) ([]*model.Record, error)
	// Insert assigns an id and timestamps when absent and returns the stored row.
	Insert(ctx context.Context, entity model.EntityType, rec *model.Record) (*model.Record, error)
	// UpdateFields overwrites the given columns and bumps updated_at.
	UpdateFields(ctx context.Context, entity model.EntityType, userID, id string, fields map[string]any) (*model.Record, error)
}

// SyncStatus maintains the notion_* bookkeeping columns. Linking a page id
// that another row already owns yields model.ErrConflict.
type SyncStatus interface {
	MarkPending(ctx context.Context, entity model.EntityType, userID, id string) error
	MarkSynced(ctx context.Context, entity model.EntityType, userID, id, pageID string, at time.Time) error
	MarkFailed(ctx context.Context, entity model.EntityType, userID, id, message string) error
}
