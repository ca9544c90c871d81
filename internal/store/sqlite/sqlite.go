// Package sqlite backs store.Store with an embedded SQLite file for local
// builds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/schema"
	"github.com/bondcrm/notionsync/internal/store/sqlstore"
)

// Open opens (or creates) the database at path with WAL journaling.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	// avoid SQLITE_CANTOPEN when the parent directory is missing
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a store over an open connection.
func NewWithDB(db *sql.DB) *sqlstore.Store {
	return sqlstore.New(db, sqlstore.Options{Dialect: schema.DialectSQLite, MapError: mapError})
}

// Bootstrap creates any missing entity tables.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	return NewWithDB(db).Migrate(ctx)
}

func mapError(err error) error {
	var sqErr *msqlite.Error
	if errors.As(err, &sqErr) && sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%w: %s", model.ErrConflict, sqErr.Error())
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", model.ErrConflict, err)
	}
	return err
}
