// Package postgres backs store.Store with PostgreSQL via the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/schema"
	"github.com/bondcrm/notionsync/internal/store/sqlstore"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Open opens a PostgreSQL connection and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
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
	return sqlstore.New(db, sqlstore.Options{Dialect: schema.DialectPostgres, MapError: mapError})
}

// Bootstrap pings the database and creates any missing entity tables.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	return NewWithDB(db).Migrate(ctx)
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", model.ErrConflict, pgErr.ConstraintName)
	}
	return err
}
