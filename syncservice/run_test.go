package syncservice

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/config"
	"github.com/bondcrm/notionsync/internal/factory"
)

func TestCalculateStartupHealthTimeout(t *testing.T) {
	assert.Equal(t, 60, calculateStartupHealthTimeout(5))
	assert.Equal(t, 60, calculateStartupHealthTimeout(30))
	assert.Equal(t, 120, calculateStartupHealthTimeout(60))
}

func TestBuildSyncService(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "sync.db")
	cfg.NotionDatabases = map[string]string{"tasks": "db1"}
	st, err := factory.NewStore(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	svc, closeFn, err := buildSyncService(cfg, st, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, svc)
	closeFn()

	cfg.NotionDatabases = map[string]string{"widgets": "x"}
	_, _, err = buildSyncService(cfg, st, zerolog.Nop())
	assert.Error(t, err)
}
