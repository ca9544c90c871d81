package model

import (
	"fmt"
	"time"
)

// EntityType names one synchronized table / Notion database pairing.
type EntityType string

const (
	EntityTasks            EntityType = "tasks"
	EntityRules            EntityType = "rules"
	EntityContracts        EntityType = "contracts"
	EntityJournal          EntityType = "journal"
	EntityCalendar         EntityType = "calendar"
	EntityKinksters        EntityType = "kinksters"
	EntityIdeas            EntityType = "ideas"
	EntityImageGenerations EntityType = "image_generations"
)

// EntityTypes lists every supported entity in a stable order.
var EntityTypes = []EntityType{
	EntityTasks,
	EntityRules,
	EntityContracts,
	EntityJournal,
	EntityCalendar,
	EntityKinksters,
	EntityIdeas,
	EntityImageGenerations,
}

// ParseEntityType validates s against the closed entity set.
func ParseEntityType(s string) (EntityType, error) {
	for _, e := range EntityTypes {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// SyncStatus tracks the outcome of the last reconciliation of a record.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusError   SyncStatus = "error"
)

// Record is one local row of an entity table plus its sync metadata.
// Fields holds normalized values keyed by column name: string, float64,
// bool, []string, time.Time or nil.
type Record struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	ExternalPageID *string    `json:"externalPageId,omitempty"`
	SyncStatus     SyncStatus `json:"syncStatus,omitempty"`
	SyncedAt       *time.Time `json:"syncedAt,omitempty"`
	SyncError      *string    `json:"syncError,omitempty"`
}

// Field returns the value stored under column, or nil.
func (r *Record) Field(column string) any {
	if r == nil || r.Fields == nil {
		return nil
	}
	return r.Fields[column]
}

// HasExternalID reports whether the record is already linked to a remote page.
func (r *Record) HasExternalID() bool {
	return r != nil && r.ExternalPageID != nil && *r.ExternalPageID != ""
}

type MatchType string

const (
	MatchExternalID MatchType = "external_id"
	MatchTitle      MatchType = "title"
	MatchNone       MatchType = "none"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences; higher is better.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// MatchResult pairs a remote page with at most one local record.
type MatchResult struct {
	RemotePage      RemotePage `json:"remotePage"`
	LocalRecord     *Record    `json:"localRecord,omitempty"`
	MatchType       MatchType  `json:"matchType"`
	Confidence      Confidence `json:"confidence"`
	TitleSimilarity *float64   `json:"titleSimilarity,omitempty"`
	// Demoted is set when another remote page won the same local record.
	Demoted bool `json:"demoted,omitempty"`
}

type ConflictType string

const (
	ConflictRecord  ConflictType = "record"
	ConflictField   ConflictType = "field"
	ConflictMissing ConflictType = "missing"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Conflict is a disagreement between a remote page and the local store,
// presented to a user for arbitration.
type Conflict struct {
	ID              string       `json:"id"`
	Type            ConflictType `json:"type"`
	Field           *string      `json:"field,omitempty"`
	RemoteValue     any          `json:"remoteValue,omitempty"`
	LocalValue      any          `json:"localValue,omitempty"`
	RemoteTimestamp *time.Time   `json:"remoteTimestamp,omitempty"`
	LocalTimestamp  *time.Time   `json:"localTimestamp,omitempty"`
	Severity        Severity     `json:"severity"`
	Description     string       `json:"description"`

	RemotePageID  string `json:"remotePageId"`
	LocalRecordID string `json:"localRecordId,omitempty"`
	// RemoteData is the remote page transformed into local field shape.
	RemoteData map[string]any `json:"remoteData,omitempty"`
}

// RecordKey identifies the record a conflict belongs to: the local id when
// linked, the remote page id otherwise.
func (c Conflict) RecordKey() string {
	if c.LocalRecordID != "" {
		return c.LocalRecordID
	}
	return c.RemotePageID
}

type Strategy string

const (
	StrategyPreferLocal  Strategy = "prefer_local"
	StrategyPreferRemote Strategy = "prefer_remote"
	StrategyMerge        Strategy = "merge"
	StrategySkip         Strategy = "skip"
)

// ParseStrategy validates s against the known resolution strategies.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPreferLocal, StrategyPreferRemote, StrategyMerge, StrategySkip:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrValidation, s)
}

// Side picks one store during a merge.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// ResolutionChoice is the user's decision for the record a conflict belongs to.
type ResolutionChoice struct {
	ConflictID   string          `json:"conflictId"`
	Strategy     Strategy        `json:"strategy"`
	FieldChoices map[string]Side `json:"fieldChoices,omitempty"`
}
