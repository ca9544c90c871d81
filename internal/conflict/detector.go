// Package conflict decides whether a matched remote page and local record
// disagree, at record and field granularity.
package conflict

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/schema"
	"github.com/bondcrm/notionsync/internal/transform"
)

// Summary aggregates detection over one sync cycle.
type Summary struct {
	Conflicts         []model.Conflict `json:"conflicts"`
	TotalMatches      int              `json:"totalMatches"`
	RecordConflicts   int              `json:"recordConflicts"`
	FieldConflicts    int              `json:"fieldConflicts"`
	MissingRecords    int              `json:"missingRecords"`
	SkippedDuplicates int              `json:"skippedDuplicates"`
	InSync            int              `json:"inSync"`
}

// HasConflicts reports whether anything needs a user decision.
func (s *Summary) HasConflicts() bool { return len(s.Conflicts) > 0 }

type Detector struct {
	log zerolog.Logger
}

func NewDetector(log zerolog.Logger) *Detector {
	return &Detector{log: log}
}

// Detect returns the conflicts for one match. Demoted duplicate matches
// produce none so that resolution never acts on them.
func (d *Detector) Detect(m model.MatchResult, entity model.EntityType) ([]model.Conflict, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	if m.Demoted {
		return nil, nil
	}
	remote, err := transform.ToLocal(m.RemotePage, entity)
	if err != nil {
		return nil, err
	}
	remoteTS := m.RemotePage.LastEditedTime
	pageID := m.RemotePage.ID

	if m.LocalRecord == nil {
		return []model.Conflict{{
			ID:              pageID + ":missing",
			Type:            model.ConflictMissing,
			RemoteValue:     remote,
			RemoteTimestamp: timePtr(remoteTS),
			Severity:        model.SeverityMedium,
			Description:     fmt.Sprintf("%q exists in Notion but not locally", transform.Title(remote, entity)),
			RemotePageID:    pageID,
			RemoteData:      remote,
		}}, nil
	}

	local := m.LocalRecord
	localTS := local.UpdatedAt

	var (
		recordConflict bool
		severity       model.Severity
		reason         string
	)
	if local.SyncedAt != nil {
		synced := *local.SyncedAt
		recordConflict = remoteTS.After(synced) && localTS.After(synced)
		severity = model.SeverityHigh
		reason = fmt.Sprintf("both sides changed since last sync at %s", synced.UTC().Format(time.RFC3339))
	} else {
		recordConflict = !Equivalent(remote, local.Fields, e.Important)
		severity = model.SeverityMedium
		reason = "never synced and the two versions differ"
	}

	var out []model.Conflict
	if recordConflict {
		out = append(out, model.Conflict{
			ID:              pageID + ":record",
			Type:            model.ConflictRecord,
			RemoteValue:     pick(remote, e.Important),
			LocalValue:      pick(local.Fields, e.Important),
			RemoteTimestamp: timePtr(remoteTS),
			LocalTimestamp:  timePtr(localTS),
			Severity:        severity,
			Description:     fmt.Sprintf("%q: %s", transform.Title(local.Fields, entity), reason),
			RemotePageID:    pageID,
			LocalRecordID:   local.ID,
			RemoteData:      remote,
		})
	}

	if recordConflict || local.SyncedAt == nil {
		for _, col := range e.Important {
			rv, lv := remote[col], local.Fields[col]
			if Equal(rv, lv) {
				continue
			}
			field := col
			out = append(out, model.Conflict{
				ID:              pageID + ":field:" + col,
				Type:            model.ConflictField,
				Field:           &field,
				RemoteValue:     rv,
				LocalValue:      lv,
				RemoteTimestamp: timePtr(remoteTS),
				LocalTimestamp:  timePtr(localTS),
				Severity:        FieldSeverity(e, col),
				Description:     fmt.Sprintf("%s differs: Notion has %v, local has %v", col, display(rv), display(lv)),
				RemotePageID:    pageID,
				LocalRecordID:   local.ID,
				RemoteData:      remote,
			})
		}
	}

	if len(out) > 0 {
		d.log.Debug().
			Str("entity", string(entity)).
			Str("remote_page_id", pageID).
			Str("local_id", local.ID).
			Int("conflicts", len(out)).
			Msg("conflicts detected")
	}
	return out, nil
}

// DetectAll runs Detect over every match and aggregates the counts.
func (d *Detector) DetectAll(matches []model.MatchResult, entity model.EntityType) (*Summary, error) {
	s := &Summary{Conflicts: []model.Conflict{}, TotalMatches: len(matches)}
	for _, m := range matches {
		if m.Demoted {
			s.SkippedDuplicates++
			continue
		}
		cs, err := d.Detect(m, entity)
		if err != nil {
			return nil, err
		}
		if len(cs) == 0 {
			s.InSync++
			continue
		}
		for _, c := range cs {
			switch c.Type {
			case model.ConflictMissing:
				s.MissingRecords++
			case model.ConflictRecord:
				s.RecordConflicts++
			case model.ConflictField:
				s.FieldConflicts++
			}
		}
		s.Conflicts = append(s.Conflicts, cs...)
	}
	return s, nil
}

// Equivalent reports whether a and b agree on every listed column.
func Equivalent(a, b map[string]any, columns []string) bool {
	for _, col := range columns {
		if !Equal(a[col], b[col]) {
			return false
		}
	}
	return true
}

// FieldSeverity weights a column by how visible a disagreement is.
func FieldSeverity(e *schema.Entity, column string) model.Severity {
	if column == e.TitleColumn {
		return model.SeverityHigh
	}
	switch column {
	case "title", "name", "status", "priority", "category":
		return model.SeverityHigh
	case "content", "description", "bio":
		return model.SeverityMedium
	default:
		return model.SeverityMedium
	}
}

func pick(fields map[string]any, columns []string) map[string]any {
	out := make(map[string]any, len(columns))
	for _, c := range columns {
		out[c] = fields[c]
	}
	return out
}

func display(v any) string {
	if v == nil {
		return "nothing"
	}
	if t, ok := v.(time.Time); ok {
		return transform.FormatDate(t)
	}
	return fmt.Sprintf("%q", fmt.Sprint(v))
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
