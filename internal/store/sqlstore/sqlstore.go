// Package sqlstore implements store.Store over database/sql for any dialect
// in schema.Dialect. Driver packages supply the connection and error mapping.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/schema"
	"github.com/bondcrm/notionsync/internal/store"
	"github.com/bondcrm/notionsync/internal/transform"
)

// Options configures a Store.
type Options struct {
	Dialect schema.Dialect
	// MapError translates driver errors, such as unique violations, into
	// model errors. Nil leaves errors untouched apart from an attached stack.
	MapError func(error) error
	// Now defaults to time.Now.
	Now func() time.Time
}

// Store is a database/sql backed store.Store.
type Store struct {
	db   *sql.DB
	opts Options
}

func New(db *sql.DB, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	mapErr := opts.MapError
	if mapErr == nil {
		mapErr = func(err error) error { return err }
	}
	// driver errors leave the store carrying a stack for the logger
	opts.MapError = func(err error) error { return pkgerrors.WithStack(mapErr(err)) }
	return &Store{db: db, opts: opts}
}

func (s *Store) Records() store.Records       { return &records{s} }
func (s *Store) SyncStatus() store.SyncStatus { return &syncStatus{s} }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates every entity table and index that does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema.AllDDLStatements(s.opts.Dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// sqliteTimeLayout has fixed width so TEXT ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) now() time.Time { return s.opts.Now().UTC() }

// placeholder returns the n-th (1-based) bind parameter.
func (s *Store) placeholder(n int) string {
	if s.opts.Dialect == schema.DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) selectColumns(e *schema.Entity) []string {
	cols := []string{schema.ColID, schema.ColUserID}
	cols = append(cols, e.Columns()...)
	return append(cols,
		schema.ColCreatedAt, schema.ColUpdatedAt,
		schema.ColNotionPageID, schema.ColSyncStatus, schema.ColSyncedAt, schema.ColSyncError,
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecord(row rowScanner, e *schema.Entity) (*model.Record, error) {
	cols := s.selectColumns(e)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := &model.Record{Fields: make(map[string]any, len(e.Fields))}
	for i, col := range cols {
		v := vals[i]
		switch col {
		case schema.ColID:
			rec.ID = asString(v)
		case schema.ColUserID:
			rec.UserID = asString(v)
		case schema.ColCreatedAt:
			rec.CreatedAt, _ = asTime(v)
		case schema.ColUpdatedAt:
			rec.UpdatedAt, _ = asTime(v)
		case schema.ColNotionPageID:
			rec.ExternalPageID = optString(v)
		case schema.ColSyncStatus:
			rec.SyncStatus = model.SyncStatus(asString(v))
		case schema.ColSyncedAt:
			if t, ok := asTime(v); ok {
				rec.SyncedAt = &t
			}
		case schema.ColSyncError:
			rec.SyncError = optString(v)
		default:
			rec.Fields[col] = v
		}
	}
	fields, err := transform.Normalize(rec.Fields, e.Type)
	if err != nil {
		return nil, err
	}
	rec.Fields = fields
	return rec, nil
}

// encode converts a normalized field value into a driver argument.
func (s *Store) encode(kind model.PropertyKind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case model.KindMultiSelect:
		return encodeList(v)
	case model.KindDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%w: expected time, got %T", model.ErrValidation, v)
		}
		return s.encodeTime(t), nil
	case model.KindCheckbox:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected bool, got %T", model.ErrValidation, v)
		}
		if s.opts.Dialect == schema.DialectSQLite {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return b, nil
	}
	return v, nil
}

func (s *Store) encodeTime(t time.Time) any {
	t = t.UTC()
	if s.opts.Dialect == schema.DialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

func (s *Store) encodeOptTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.encodeTime(*t)
}

// prepareFields validates column names and normalizes values for entity e.
func prepareFields(e *schema.Entity, fields map[string]any) (map[string]any, error) {
	for col := range fields {
		if _, ok := e.Field(col); !ok {
			return nil, fmt.Errorf("%w: unknown column %q for %s", model.ErrValidation, col, e.Type)
		}
	}
	return transform.Normalize(fields, e.Type)
}

// --- Records ---

type records struct{ s *Store }

func (r *records) Get(ctx context.Context, entity model.EntityType, userID, id string) (*model.Record, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	s := r.s
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s AND %s = %s",
		strings.Join(s.selectColumns(e), ", "), e.Table,
		schema.ColUserID, s.placeholder(1), schema.ColID, s.placeholder(2))
	rec, err := s.scanRecord(s.db.QueryRowContext(ctx, q, userID, id), e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", model.ErrNotFound, entity, id)
	}
	if err != nil {
		return nil, s.opts.MapError(err)
	}
	return rec, nil
}

func (r *records) List(ctx context.Context, entity model.EntityType, userID string) ([]*model.Record, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	s := r.s
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s, %s",
		strings.Join(s.selectColumns(e), ", "), e.Table,
		schema.ColUserID, s.placeholder(1), schema.ColCreatedAt, schema.ColID)
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, s.opts.MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := []*model.Record{}
	for rows.Next() {
		rec, err := s.scanRecord(rows, e)
		if err != nil {
			return nil, s.opts.MapError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.opts.MapError(err)
	}
	return out, nil
}

func (r *records) Insert(ctx context.Context, entity model.EntityType, rec *model.Record) (*model.Record, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrValidation)
	}
	fields, err := prepareFields(e, rec.Fields)
	if err != nil {
		return nil, err
	}

	s := r.s
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now()
	created, updated := rec.CreatedAt, rec.UpdatedAt
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	var status any
	if rec.SyncStatus != "" {
		status = string(rec.SyncStatus)
	}

	cols := []string{schema.ColID, schema.ColUserID}
	args := []any{id, rec.UserID}
	for _, f := range e.Fields {
		v, err := s.encode(f.Kind, fields[f.Column])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Column, err)
		}
		cols = append(cols, f.Column)
		args = append(args, v)
	}
	cols = append(cols, schema.ColCreatedAt, schema.ColUpdatedAt,
		schema.ColNotionPageID, schema.ColSyncStatus, schema.ColSyncedAt, schema.ColSyncError)
	args = append(args, s.encodeTime(created), s.encodeTime(updated),
		optArg(rec.ExternalPageID), status, s.encodeOptTime(rec.SyncedAt), optArg(rec.SyncError))

	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = s.placeholder(i + 1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", e.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, s.opts.MapError(err)
	}
	return r.Get(ctx, entity, rec.UserID, id)
}

func (r *records) UpdateFields(ctx context.Context, entity model.EntityType, userID, id string, fields map[string]any) (*model.Record, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	norm, err := prepareFields(e, fields)
	if err != nil {
		return nil, err
	}
	if len(norm) == 0 {
		return r.Get(ctx, entity, userID, id)
	}

	s := r.s
	var (
		sets []string
		args []any
	)
	// Declaration order keeps the statement text stable.
	for _, f := range e.Fields {
		v, ok := norm[f.Column]
		if !ok {
			continue
		}
		enc, err := s.encode(f.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Column, err)
		}
		args = append(args, enc)
		sets = append(sets, fmt.Sprintf("%s = %s", f.Column, s.placeholder(len(args))))
	}
	args = append(args, s.encodeTime(s.now()))
	sets = append(sets, fmt.Sprintf("%s = %s", schema.ColUpdatedAt, s.placeholder(len(args))))
	args = append(args, userID, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s AND %s = %s", e.Table, strings.Join(sets, ", "),
		schema.ColUserID, s.placeholder(len(args)-1), schema.ColID, s.placeholder(len(args)))
	if err := s.execOne(ctx, q, args, entity, id); err != nil {
		return nil, err
	}
	return r.Get(ctx, entity, userID, id)
}

// execOne runs an UPDATE that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, q string, args []any, entity model.EntityType, id string) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return s.opts.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.opts.MapError(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", model.ErrNotFound, entity, id)
	}
	return nil
}

// --- Sync status ---

type syncStatus struct{ s *Store }

func (m *syncStatus) update(ctx context.Context, entity model.EntityType, userID, id string, sets []string, args []any) error {
	e, err := schema.Lookup(entity)
	if err != nil {
		return err
	}
	s := m.s
	assign := make([]string, len(sets))
	for i, col := range sets {
		assign[i] = fmt.Sprintf("%s = %s", col, s.placeholder(i+1))
	}
	args = append(args, userID, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s AND %s = %s", e.Table, strings.Join(assign, ", "),
		schema.ColUserID, s.placeholder(len(args)-1), schema.ColID, s.placeholder(len(args)))
	return s.execOne(ctx, q, args, entity, id)
}

func (m *syncStatus) MarkPending(ctx context.Context, entity model.EntityType, userID, id string) error {
	return m.update(ctx, entity, userID, id,
		[]string{schema.ColSyncStatus, schema.ColSyncError},
		[]any{string(model.SyncStatusPending), nil})
}

func (m *syncStatus) MarkSynced(ctx context.Context, entity model.EntityType, userID, id, pageID string, at time.Time) error {
	if pageID == "" {
		return fmt.Errorf("%w: page id is required", model.ErrValidation)
	}
	return m.update(ctx, entity, userID, id,
		[]string{schema.ColNotionPageID, schema.ColSyncStatus, schema.ColSyncedAt, schema.ColSyncError},
		[]any{pageID, string(model.SyncStatusSynced), m.s.encodeTime(at), nil})
}

func (m *syncStatus) MarkFailed(ctx context.Context, entity model.EntityType, userID, id, message string) error {
	return m.update(ctx, entity, userID, id,
		[]string{schema.ColSyncStatus, schema.ColSyncError},
		[]any{string(model.SyncStatusFailed), message})
}
