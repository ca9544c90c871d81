// Package storetest is a compliance suite shared by every store.Store driver.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/store"
)

// Run exercises the suite against a clean, migrated store returned by makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()
	userID := "u-" + uuid.New().String()
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("insert and get", func(t *testing.T) {
		rec, err := s.Records().Insert(ctx, model.EntityTasks, &model.Record{
			UserID: userID,
			Fields: map[string]any{
				"title":       "Water plants",
				"status":      "pending",
				"due_date":    due,
				"point_value": 5,
				"tags":        []string{"home", "daily"},
			},
		})
		require.NoError(t, err)
		require.NotEmpty(t, rec.ID)
		assert.False(t, rec.CreatedAt.IsZero())
		assert.Nil(t, rec.ExternalPageID)
		assert.Nil(t, rec.SyncedAt)

		got, err := s.Records().Get(ctx, model.EntityTasks, userID, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, "Water plants", got.Fields["title"])
		assert.Equal(t, "pending", got.Fields["status"])
		assert.Equal(t, 5.0, got.Fields["point_value"])
		assert.Equal(t, []string{"home", "daily"}, got.Fields["tags"])
		gotDue, ok := got.Fields["due_date"].(time.Time)
		require.True(t, ok, "due_date is %T", got.Fields["due_date"])
		assert.True(t, due.Equal(gotDue))
		assert.Nil(t, got.Fields["description"])
	})

	t.Run("checkbox columns", func(t *testing.T) {
		rec, err := s.Records().Insert(ctx, model.EntityRules, &model.Record{
			UserID: userID,
			Fields: map[string]any{"title": "Bedtime", "is_active": false},
		})
		require.NoError(t, err)
		assert.Equal(t, false, rec.Fields["is_active"])

		upd, err := s.Records().UpdateFields(ctx, model.EntityRules, userID, rec.ID, map[string]any{"is_active": true})
		require.NoError(t, err)
		assert.Equal(t, true, upd.Fields["is_active"])
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Records().Get(ctx, model.EntityTasks, userID, "does-not-exist")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("list is scoped to user", func(t *testing.T) {
		other := "u-" + uuid.New().String()
		_, err := s.Records().Insert(ctx, model.EntityIdeas, &model.Record{UserID: other, Fields: map[string]any{"title": "Theirs"}})
		require.NoError(t, err)
		for _, title := range []string{"First", "Second"} {
			_, err := s.Records().Insert(ctx, model.EntityIdeas, &model.Record{UserID: userID, Fields: map[string]any{"title": title}})
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		lst, err := s.Records().List(ctx, model.EntityIdeas, userID)
		require.NoError(t, err)
		require.Len(t, lst, 2)
		assert.Equal(t, "First", lst[0].Fields["title"])
		assert.Equal(t, "Second", lst[1].Fields["title"])
	})

	t.Run("update fields bumps updated_at", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).UTC()
		rec, err := s.Records().Insert(ctx, model.EntityTasks, &model.Record{
			UserID:    userID,
			Fields:    map[string]any{"title": "Laundry", "status": "pending"},
			CreatedAt: past,
			UpdatedAt: past,
		})
		require.NoError(t, err)

		upd, err := s.Records().UpdateFields(ctx, model.EntityTasks, userID, rec.ID, map[string]any{"status": "completed", "description": nil})
		require.NoError(t, err)
		assert.Equal(t, "completed", upd.Fields["status"])
		assert.Equal(t, "Laundry", upd.Fields["title"])
		assert.True(t, upd.UpdatedAt.After(past))
		assert.WithinDuration(t, past, upd.CreatedAt, time.Millisecond)
	})

	t.Run("update rejects unknown columns", func(t *testing.T) {
		rec, err := s.Records().Insert(ctx, model.EntityTasks, &model.Record{UserID: userID, Fields: map[string]any{"title": "x"}})
		require.NoError(t, err)
		_, err = s.Records().UpdateFields(ctx, model.EntityTasks, userID, rec.ID, map[string]any{"bogus": 1})
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("update missing", func(t *testing.T) {
		_, err := s.Records().UpdateFields(ctx, model.EntityTasks, userID, "nope", map[string]any{"title": "x"})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("sync status lifecycle", func(t *testing.T) {
		rec, err := s.Records().Insert(ctx, model.EntityJournal, &model.Record{UserID: userID, Fields: map[string]any{"title": "Day one"}})
		require.NoError(t, err)

		require.NoError(t, s.SyncStatus().MarkPending(ctx, model.EntityJournal, userID, rec.ID))
		got, err := s.Records().Get(ctx, model.EntityJournal, userID, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusPending, got.SyncStatus)

		require.NoError(t, s.SyncStatus().MarkFailed(ctx, model.EntityJournal, userID, rec.ID, "notion: HTTP 500"))
		got, err = s.Records().Get(ctx, model.EntityJournal, userID, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusFailed, got.SyncStatus)
		require.NotNil(t, got.SyncError)
		assert.Equal(t, "notion: HTTP 500", *got.SyncError)

		at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
		pageID := "page-" + uuid.New().String()
		require.NoError(t, s.SyncStatus().MarkSynced(ctx, model.EntityJournal, userID, rec.ID, pageID, at))
		got, err = s.Records().Get(ctx, model.EntityJournal, userID, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SyncStatusSynced, got.SyncStatus)
		require.NotNil(t, got.ExternalPageID)
		assert.Equal(t, pageID, *got.ExternalPageID)
		require.NotNil(t, got.SyncedAt)
		assert.True(t, at.Equal(*got.SyncedAt))
		assert.Nil(t, got.SyncError)
	})

	t.Run("page id links one record", func(t *testing.T) {
		a, err := s.Records().Insert(ctx, model.EntityCalendar, &model.Record{UserID: userID, Fields: map[string]any{"title": "A"}})
		require.NoError(t, err)
		b, err := s.Records().Insert(ctx, model.EntityCalendar, &model.Record{UserID: userID, Fields: map[string]any{"title": "B"}})
		require.NoError(t, err)

		pageID := "page-" + uuid.New().String()
		require.NoError(t, s.SyncStatus().MarkSynced(ctx, model.EntityCalendar, userID, a.ID, pageID, time.Now()))
		err = s.SyncStatus().MarkSynced(ctx, model.EntityCalendar, userID, b.ID, pageID, time.Now())
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrConflict), "got %v", err)
	})

	t.Run("mark missing record", func(t *testing.T) {
		err := s.SyncStatus().MarkPending(ctx, model.EntityTasks, userID, "ghost")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := s.Records().List(ctx, model.EntityType("nope"), userID)
		assert.ErrorIs(t, err, model.ErrUnknownEntity)
	})
}
