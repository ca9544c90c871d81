package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/notion"
	"github.com/bondcrm/notionsync/internal/resolution"
	"github.com/bondcrm/notionsync/internal/store"
	"github.com/bondcrm/notionsync/internal/store/sqlite"
)

type fakeRetriever struct {
	pages []model.RemotePage
	errs  []string
	err   error

	gotKey string
	gotDB  string
}

func (f *fakeRetriever) RetrieveAll(_ context.Context, apiKey, databaseID string, onProgress notion.ProgressFunc) (*notion.RetrieveResult, error) {
	f.gotKey, f.gotDB = apiKey, databaseID
	if f.err != nil {
		return nil, f.err
	}
	n := len(f.pages)
	if onProgress != nil {
		onProgress(n, &n)
	}
	return &notion.RetrieveResult{Pages: f.pages, TotalRetrieved: n, Errors: f.errs}, nil
}

type fakeUpdater struct {
	mu    sync.Mutex
	pages []string
}

func (f *fakeUpdater) UpdatePage(_ context.Context, _ string, pageID string, props map[string]model.PropertyValue) (*model.RemotePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, pageID)
	return &model.RemotePage{ID: pageID, LastEditedTime: time.Now().UTC(), Properties: props}, nil
}

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Bootstrap(context.Background(), db))
	return sqlite.NewWithDB(db)
}

func taskPage(id, title, status string) model.RemotePage {
	return model.RemotePage{
		ID:             id,
		LastEditedTime: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Properties: map[string]model.PropertyValue{
			"Title":  {Title: []model.RichText{{PlainText: title}}},
			"Status": {Select: &model.SelectOption{Name: status}},
		},
	}
}

func insertTask(t *testing.T, st store.Store, title, status string) *model.Record {
	t.Helper()
	rec, err := st.Records().Insert(context.Background(), model.EntityTasks, &model.Record{
		UserID: "u1",
		Fields: map[string]any{"title": title, "status": status},
	})
	require.NoError(t, err)
	return rec
}

func newService(st store.Store, r PageRetriever, up resolution.PageUpdater) *SyncService {
	res := resolution.NewResolver(st, up, nil, zerolog.Nop())
	return NewSyncService(st, r, res, StaticToken("secret"), StaticRegistry{model.EntityTasks: "db-tasks"}, zerolog.Nop())
}

func TestPreview_ReportsConflictsWithoutWriting(t *testing.T) {
	st := newSQLiteStore(t)
	rec := insertTask(t, st, "Do dishes", "pending")
	r := &fakeRetriever{
		pages: []model.RemotePage{taskPage("p1", "Do dishes", "Completed"), taskPage("p2", "Walk dog", "Pending")},
		errs:  []string{"page at cursor \"c2\": boom"},
	}
	svc := newService(st, r, &fakeUpdater{})

	p, err := svc.Preview(context.Background(), PreviewRequest{UserID: "u1", Entity: model.EntityTasks})
	require.NoError(t, err)
	assert.Equal(t, "secret", r.gotKey)
	assert.Equal(t, "db-tasks", r.gotDB)
	assert.Equal(t, 2, p.PagesRetrieved)
	assert.Equal(t, 1, p.LocalRecords)
	assert.Equal(t, MatchSummary{Total: 2, Title: 1, None: 1}, p.Matches)
	assert.Equal(t, 1, p.Detection.MissingRecords)
	assert.Equal(t, 1, p.Detection.RecordConflicts)
	assert.Equal(t, []string{"page at cursor \"c2\": boom"}, p.RetrievalErrors)

	got, err := st.Records().Get(context.Background(), model.EntityTasks, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Fields["status"])
	assert.Nil(t, got.ExternalPageID)
}

func TestPreview_ExplicitCredentialsWin(t *testing.T) {
	st := newSQLiteStore(t)
	r := &fakeRetriever{}
	svc := NewSyncService(st, r, resolution.NewResolver(st, &fakeUpdater{}, nil, zerolog.Nop()), nil, nil, zerolog.Nop())

	_, err := svc.Preview(context.Background(), PreviewRequest{UserID: "u1", Entity: model.EntityTasks, APIKey: "k", DatabaseID: "db"})
	require.NoError(t, err)
	assert.Equal(t, "k", r.gotKey)
	assert.Equal(t, "db", r.gotDB)
}

func TestPreview_Validation(t *testing.T) {
	st := newSQLiteStore(t)
	svc := newService(st, &fakeRetriever{}, &fakeUpdater{})
	ctx := context.Background()

	_, err := svc.Preview(ctx, PreviewRequest{Entity: model.EntityTasks})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Preview(ctx, PreviewRequest{UserID: "u1", Entity: "widgets"})
	assert.ErrorIs(t, err, model.ErrUnknownEntity)

	_, err = svc.Preview(ctx, PreviewRequest{UserID: "u1", Entity: model.EntityRules})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPreview_RetrievalFailure(t *testing.T) {
	st := newSQLiteStore(t)
	r := &fakeRetriever{err: errors.Join(errors.New("retrieve db-tasks"), notion.ErrDatabaseNotFound)}
	svc := newService(st, r, &fakeUpdater{})

	_, err := svc.Preview(context.Background(), PreviewRequest{UserID: "u1", Entity: model.EntityTasks})
	assert.ErrorIs(t, err, notion.ErrDatabaseNotFound)
}

func TestSync_PreferRemoteEndToEnd(t *testing.T) {
	st := newSQLiteStore(t)
	rec := insertTask(t, st, "Do dishes", "pending")
	insertTask(t, st, "Water plants", "pending")
	r := &fakeRetriever{pages: []model.RemotePage{
		taskPage("p1", "Do dishes", "Completed"),
		taskPage("p2", "Walk dog", "Pending"),
		taskPage("p3", "Water plants", "Pending"),
	}}
	up := &fakeUpdater{}
	svc := newService(st, r, up)
	ctx := context.Background()

	report, err := svc.Sync(ctx, SyncRequest{UserID: "u1", Entity: model.EntityTasks, Strategy: model.StrategyPreferRemote})
	require.NoError(t, err)
	assert.True(t, report.Resolution.Success)
	assert.Equal(t, 2, report.Resolution.RecordsUpdated)
	assert.Equal(t, 1, report.Linked)
	assert.Empty(t, up.pages)

	got, err := st.Records().Get(ctx, model.EntityTasks, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Fields["status"])
	assert.Equal(t, model.SyncStatusSynced, got.SyncStatus)
	require.NotNil(t, got.ExternalPageID)
	assert.Equal(t, "p1", *got.ExternalPageID)

	all, err := st.Records().List(ctx, model.EntityTasks, "u1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, r := range all {
		assert.True(t, r.HasExternalID(), r.Fields["title"])
	}

	// a second run sees everything in sync
	p, err := svc.Preview(ctx, PreviewRequest{UserID: "u1", Entity: model.EntityTasks})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Matches.ExternalID)
	assert.Empty(t, p.Detection.Conflicts)
	assert.Equal(t, 3, p.Detection.InSync)
}

func TestSync_SkipWritesNothing(t *testing.T) {
	st := newSQLiteStore(t)
	rec := insertTask(t, st, "Do dishes", "pending")
	r := &fakeRetriever{pages: []model.RemotePage{taskPage("p1", "Do dishes", "Completed")}}
	svc := newService(st, r, &fakeUpdater{})

	report, err := svc.Sync(context.Background(), SyncRequest{UserID: "u1", Entity: model.EntityTasks, Strategy: model.StrategySkip})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Resolution.RecordsUpdated)
	assert.Equal(t, 1, report.Resolution.RecordsSkipped)
	assert.Equal(t, 0, report.Linked)

	got, err := st.Records().Get(context.Background(), model.EntityTasks, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Fields["status"])
	assert.Empty(t, got.SyncStatus)
}

func TestSync_SkipLeavesCleanMatchesUnlinked(t *testing.T) {
	st := newSQLiteStore(t)
	rec := insertTask(t, st, "Do dishes", "completed")
	r := &fakeRetriever{pages: []model.RemotePage{taskPage("p1", "Do dishes", "Completed")}}
	svc := newService(st, r, &fakeUpdater{})

	report, err := svc.Sync(context.Background(), SyncRequest{UserID: "u1", Entity: model.EntityTasks, Strategy: model.StrategySkip})
	require.NoError(t, err)
	assert.Empty(t, report.Preview.Detection.Conflicts)
	assert.True(t, report.Resolution.Success)
	assert.Equal(t, 0, report.Linked)

	got, err := st.Records().Get(context.Background(), model.EntityTasks, "u1", rec.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExternalPageID)
	assert.Empty(t, got.SyncStatus)
	assert.Nil(t, got.SyncedAt)
}

func TestSync_NoConflictsSkipsResolution(t *testing.T) {
	st := newSQLiteStore(t)
	insertTask(t, st, "Do dishes", "completed")
	up := &fakeUpdater{}
	svc := newService(st, &fakeRetriever{pages: []model.RemotePage{taskPage("p1", "Do dishes", "Completed")}}, up)

	report, err := svc.Sync(context.Background(), SyncRequest{UserID: "u1", Entity: model.EntityTasks, Strategy: model.StrategyPreferLocal})
	require.NoError(t, err)
	assert.True(t, report.Resolution.Success)
	assert.Equal(t, 0, report.Resolution.RecordsUpdated)
	assert.Equal(t, 0, report.Resolution.RecordsSkipped)
	assert.Equal(t, 1, report.Linked)
	assert.Empty(t, up.pages)
}

func TestSync_RemoteEditAfterInsertIsNotAConflict(t *testing.T) {
	st := newSQLiteStore(t)
	r := &fakeRetriever{pages: []model.RemotePage{taskPage("p1", "Walk dog", "Pending")}}
	svc := newService(st, r, &fakeUpdater{})
	ctx := context.Background()

	report, err := svc.Sync(ctx, SyncRequest{UserID: "u1", Entity: model.EntityTasks, Strategy: model.StrategyPreferRemote})
	require.NoError(t, err)
	require.Equal(t, 1, report.Resolution.RecordsUpdated)

	// only Notion changes after the insert
	edited := taskPage("p1", "Walk dog", "Completed")
	edited.LastEditedTime = time.Now().UTC().Add(time.Hour)
	r.pages = []model.RemotePage{edited}

	p, err := svc.Preview(ctx, PreviewRequest{UserID: "u1", Entity: model.EntityTasks})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Matches.ExternalID)
	assert.Equal(t, 0, p.Detection.RecordConflicts)
	assert.Empty(t, p.Detection.Conflicts)
}

func TestSync_PreferLocalPushes(t *testing.T) {
	st := newSQLiteStore(t)
	insertTask(t, st, "Do dishes", "pending")
	up := &fakeUpdater{}
	svc := newService(st, &fakeRetriever{pages: []model.RemotePage{taskPage("p1", "Do dishes", "Completed")}}, up)

	report, err := svc.Sync(context.Background(), SyncRequest{UserID: "u1", Entity: model.EntityTasks, Strategy: model.StrategyPreferLocal})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Resolution.RecordsUpdated)
	assert.Equal(t, []string{"p1"}, up.pages)
}

func TestSync_UnknownStrategy(t *testing.T) {
	st := newSQLiteStore(t)
	svc := newService(st, &fakeRetriever{}, &fakeUpdater{})
	_, err := svc.Sync(context.Background(), SyncRequest{UserID: "u1", Entity: model.EntityTasks, Strategy: "newest"})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestResolve_RequiresToken(t *testing.T) {
	st := newSQLiteStore(t)
	svc := NewSyncService(st, &fakeRetriever{}, resolution.NewResolver(st, &fakeUpdater{}, nil, zerolog.Nop()), StaticToken(""), nil, zerolog.Nop())
	_, err := svc.Resolve(context.Background(), ResolveRequest{UserID: "u1", Entity: model.EntityTasks})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestNewStaticRegistry(t *testing.T) {
	reg, err := NewStaticRegistry(map[string]string{"tasks": " db1 ", "journal": "db2"})
	require.NoError(t, err)
	id, err := reg.DatabaseID(context.Background(), "u1", model.EntityTasks)
	require.NoError(t, err)
	assert.Equal(t, "db1", id)

	_, err = NewStaticRegistry(map[string]string{"widgets": "x"})
	assert.ErrorIs(t, err, model.ErrUnknownEntity)
}
