package schema

import (
	"fmt"
	"strings"

	"github.com/bondcrm/notionsync/internal/model"
)

// Dialect selects SQL column types and placeholder syntax.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Sync metadata columns shared by every entity table.
const (
	ColID           = "id"
	ColUserID       = "user_id"
	ColCreatedAt    = "created_at"
	ColUpdatedAt    = "updated_at"
	ColNotionPageID = "notion_page_id"
	ColSyncStatus   = "notion_sync_status"
	ColSyncedAt     = "notion_synced_at"
	ColSyncError    = "notion_sync_error"
)

// ColumnType returns the SQL type used for a field of kind k.
func (d Dialect) ColumnType(k model.PropertyKind) string {
	switch k {
	case model.KindNumber:
		if d == DialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case model.KindCheckbox:
		if d == DialectPostgres {
			return "BOOLEAN"
		}
		return "INTEGER"
	case model.KindDate:
		if d == DialectPostgres {
			return "TIMESTAMPTZ"
		}
		return "TEXT"
	case model.KindMultiSelect:
		if d == DialectPostgres {
			return "JSONB"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

func (d Dialect) timestampType() string {
	if d == DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "TEXT"
}

// DDLStatements returns the CREATE TABLE / INDEX statements for e.
func DDLStatements(e *Entity, d Dialect) []string {
	ts := d.timestampType()
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", e.Table)
	fmt.Fprintf(&b, "    %s TEXT PRIMARY KEY,\n", ColID)
	fmt.Fprintf(&b, "    %s TEXT NOT NULL,\n", ColUserID)
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "    %s %s,\n", f.Column, d.ColumnType(f.Kind))
	}
	fmt.Fprintf(&b, "    %s %s NOT NULL,\n", ColCreatedAt, ts)
	fmt.Fprintf(&b, "    %s %s NOT NULL,\n", ColUpdatedAt, ts)
	fmt.Fprintf(&b, "    %s TEXT,\n", ColNotionPageID)
	fmt.Fprintf(&b, "    %s TEXT,\n", ColSyncStatus)
	fmt.Fprintf(&b, "    %s %s,\n", ColSyncedAt, ts)
	fmt.Fprintf(&b, "    %s TEXT\n", ColSyncError)
	b.WriteString(")")

	return []string{
		b.String(),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_user ON %s (%s)", e.Table, e.Table, ColUserID),
		// One local row per remote page.
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS uq_%s_notion_page ON %s (%s) WHERE %s IS NOT NULL",
			e.Table, e.Table, ColNotionPageID, ColNotionPageID),
	}
}

// AllDDLStatements returns the statements for every entity table.
func AllDDLStatements(d Dialect) []string {
	var out []string
	for _, e := range All() {
		out = append(out, DDLStatements(e, d)...)
	}
	return out
}
