package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bondcrm/notionsync/internal/config"
	"github.com/bondcrm/notionsync/internal/store"
	storepg "github.com/bondcrm/notionsync/internal/store/postgres"
	storesqlite "github.com/bondcrm/notionsync/internal/store/sqlite"
)

// NewStore returns the store.Store selected by cfg.DBDriver.
// Postgres bootstraps asynchronously so startup stays fast; SQLite is a
// local file and bootstraps before returning.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	bootstrapTimeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second

	switch cfg.DBDriver {
	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("%s_POSTGRES_DSN is required when DB_DRIVER=postgres", config.Prefix)
		}
		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}
		go func() {
			bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
			defer cancel()
			if err := storepg.Bootstrap(bootstrapCtx, db); err != nil {
				log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap failed")
			} else {
				log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap completed")
			}
		}()
		return storepg.NewWithDB(db), nil

	case "sqlite":
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		defer cancel()
		if err := storesqlite.Bootstrap(bootstrapCtx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite bootstrap: %w", err)
		}
		log.Debug().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return storesqlite.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
