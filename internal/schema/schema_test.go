package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bondcrm/notionsync/internal/model"
)

func TestRegistryCoversEveryEntity(t *testing.T) {
	require.Len(t, All(), len(model.EntityTypes))
	for _, et := range model.EntityTypes {
		e, err := Lookup(et)
		require.NoError(t, err, et)
		assert.Equal(t, et, e.Type)

		title, ok := e.Field(e.TitleColumn)
		require.True(t, ok, "%s title column", et)
		assert.Equal(t, model.KindTitle, title.Kind)

		for _, col := range e.Important {
			_, ok := e.Field(col)
			assert.True(t, ok, "%s important column %s is mapped", et, col)
		}

		seen := map[string]bool{}
		for _, f := range e.Fields {
			assert.False(t, seen[f.Property], "%s duplicate property %s", et, f.Property)
			seen[f.Property] = true
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("widgets")
	assert.ErrorIs(t, err, model.ErrUnknownEntity)
	assert.Panics(t, func() { MustLookup("widgets") })
}

func TestEnumMap(t *testing.T) {
	assert.Equal(t, "in_progress", TaskStatusLabels.Local("In Progress"))
	assert.Equal(t, "in_progress", TaskStatusLabels.Local("  in progress "))
	assert.Equal(t, "In Progress", TaskStatusLabels.Remote("in_progress"))

	// unknown values pass through
	assert.Equal(t, "blocked", TaskStatusLabels.Local("Blocked"))
	assert.Equal(t, "blocked", TaskStatusLabels.Remote("blocked"))

	assert.Equal(t, string(TaskCompleted), TaskStatusLabels.Local("COMPLETED"))
}

func TestDDLStatements(t *testing.T) {
	e := MustLookup(model.EntityTasks)

	pg := DDLStatements(e, DialectPostgres)
	require.Len(t, pg, 3)
	assert.Contains(t, pg[0], "CREATE TABLE IF NOT EXISTS tasks")
	assert.Contains(t, pg[0], "due_date TIMESTAMPTZ")
	assert.Contains(t, pg[0], "tags JSONB")
	assert.Contains(t, pg[2], "UNIQUE INDEX")
	assert.Contains(t, pg[2], "WHERE notion_page_id IS NOT NULL")

	lite := DDLStatements(e, DialectSQLite)
	assert.Contains(t, lite[0], "due_date TEXT")
	assert.Contains(t, lite[0], "point_value REAL")

	all := AllDDLStatements(DialectSQLite)
	assert.Len(t, all, 3*len(model.EntityTypes))
	for _, s := range all {
		assert.True(t, strings.HasPrefix(s, "CREATE "), s)
	}
}
