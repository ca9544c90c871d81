package schema

import "strings"

// Enum translates a select value between its local key and its Notion label.
// Unknown remote labels fall back to the lower-cased raw label; unknown local
// values are emitted unchanged.
type Enum interface {
	Local(remote string) string
	Remote(local string) string
}

// EnumMap is a fixed dictionary over a closed set of local keys.
type EnumMap[K ~string] struct {
	byLocal  map[K]string
	byRemote map[string]K
}

// NewEnumMap builds the two-way dictionary from local key → Notion label.
func NewEnumMap[K ~string](labels map[K]string) EnumMap[K] {
	m := EnumMap[K]{
		byLocal:  make(map[K]string, len(labels)),
		byRemote: make(map[string]K, len(labels)),
	}
	for k, label := range labels {
		m.byLocal[k] = label
		m.byRemote[strings.ToLower(label)] = k
	}
	return m
}

func (m EnumMap[K]) Local(remote string) string {
	if k, ok := m.byRemote[strings.ToLower(strings.TrimSpace(remote))]; ok {
		return string(k)
	}
	return strings.ToLower(strings.TrimSpace(remote))
}

func (m EnumMap[K]) Remote(local string) string {
	if label, ok := m.byLocal[K(local)]; ok {
		return label
	}
	return local
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

type RuleCategory string

const (
	RuleStanding    RuleCategory = "standing"
	RuleSituational RuleCategory = "situational"
	RuleTemporary   RuleCategory = "temporary"
	RuleProtocol    RuleCategory = "protocol"
)

type ContractStatus string

const (
	ContractDraft            ContractStatus = "draft"
	ContractPendingSignature ContractStatus = "pending_signature"
	ContractActive           ContractStatus = "active"
	ContractExpired          ContractStatus = "expired"
	ContractArchived         ContractStatus = "archived"
)

type JournalEntryType string

const (
	JournalPersonal  JournalEntryType = "personal"
	JournalShared    JournalEntryType = "shared"
	JournalGratitude JournalEntryType = "gratitude"
	JournalSceneLog  JournalEntryType = "scene_log"
)

type EventType string

const (
	EventScene        EventType = "scene"
	EventTaskDeadline EventType = "task_deadline"
	EventCheckIn      EventType = "check_in"
	EventOther        EventType = "other"
)

type KinksterRole string

const (
	RoleDominant   KinksterRole = "dominant"
	RoleSubmissive KinksterRole = "submissive"
	RoleSwitch     KinksterRole = "switch"
)

type IdeaStatus string

const (
	IdeaNew        IdeaStatus = "new"
	IdeaInProgress IdeaStatus = "in_progress"
	IdeaCompleted  IdeaStatus = "completed"
	IdeaArchived   IdeaStatus = "archived"
)

type ImageStyle string

const (
	StylePhotoreal    ImageStyle = "photoreal"
	StyleIllustration ImageStyle = "illustration"
	StyleAnime        ImageStyle = "anime"
	StylePainterly    ImageStyle = "painterly"
)

var (
	PriorityLabels = NewEnumMap(map[Priority]string{
		PriorityLow:    "Low",
		PriorityMedium: "Medium",
		PriorityHigh:   "High",
		PriorityUrgent: "Urgent",
	})
	TaskStatusLabels = NewEnumMap(map[TaskStatus]string{
		TaskPending:    "Pending",
		TaskInProgress: "In Progress",
		TaskCompleted:  "Completed",
		TaskCancelled:  "Cancelled",
	})
	RuleCategoryLabels = NewEnumMap(map[RuleCategory]string{
		RuleStanding:    "Standing",
		RuleSituational: "Situational",
		RuleTemporary:   "Temporary",
		RuleProtocol:    "Protocol",
	})
	ContractStatusLabels = NewEnumMap(map[ContractStatus]string{
		ContractDraft:            "Draft",
		ContractPendingSignature: "Pending Signature",
		ContractActive:           "Active",
		ContractExpired:          "Expired",
		ContractArchived:         "Archived",
	})
	JournalEntryTypeLabels = NewEnumMap(map[JournalEntryType]string{
		JournalPersonal:  "Personal",
		JournalShared:    "Shared",
		JournalGratitude: "Gratitude",
		JournalSceneLog:  "Scene Log",
	})
	EventTypeLabels = NewEnumMap(map[EventType]string{
		EventScene:        "Scene",
		EventTaskDeadline: "Task Deadline",
		EventCheckIn:      "Check-in",
		EventOther:        "Other",
	})
	KinksterRoleLabels = NewEnumMap(map[KinksterRole]string{
		RoleDominant:   "Dominant",
		RoleSubmissive: "Submissive",
		RoleSwitch:     "Switch",
	})
	IdeaStatusLabels = NewEnumMap(map[IdeaStatus]string{
		IdeaNew:        "New",
		IdeaInProgress: "In Progress",
		IdeaCompleted:  "Completed",
		IdeaArchived:   "Archived",
	})
	ImageStyleLabels = NewEnumMap(map[ImageStyle]string{
		StylePhotoreal:    "Photoreal",
		StyleIllustration: "Illustration",
		StyleAnime:        "Anime",
		StylePainterly:    "Painterly",
	})
)
