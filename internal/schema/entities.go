// Package schema holds the fixed per-entity tables that describe how a local
// table maps onto a Notion database.
package schema

import (
	"fmt"

	"github.com/bondcrm/notionsync/internal/model"
)

// Field maps one local column onto one Notion property.
type Field struct {
	Column   string
	Property string
	Kind     model.PropertyKind
	// Enum translates select values; nil means the raw label is kept.
	Enum Enum
}

// Entity describes a synchronized table.
type Entity struct {
	Type        model.EntityType
	Table       string
	TitleColumn string
	Fields      []Field
	// Important lists the columns compared during conflict detection and
	// overwritten when the remote side wins.
	Important []string
}

// Field returns the mapping for column.
func (e *Entity) Field(column string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// Columns lists the mapped columns in declaration order.
func (e *Entity) Columns() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Column
	}
	return out
}

// Lookup returns the table for entity type t.
func Lookup(t model.EntityType) (*Entity, error) {
	e, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownEntity, t)
	}
	return e, nil
}

// MustLookup is Lookup for package-level tables known to exist.
func MustLookup(t model.EntityType) *Entity {
	e, err := Lookup(t)
	if err != nil {
		panic(err)
	}
	return e
}

// All returns every entity table in model.EntityTypes order.
func All() []*Entity {
	out := make([]*Entity, 0, len(model.EntityTypes))
	for _, t := range model.EntityTypes {
		out = append(out, registry[t])
	}
	return out
}

var registry = map[model.EntityType]*Entity{
	model.EntityTasks: {
		Type:        model.EntityTasks,
		Table:       "tasks",
		TitleColumn: "title",
		Fields: []Field{
			{Column: "title", Property: "Title", Kind: model.KindTitle},
			{Column: "description", Property: "Description", Kind: model.KindRichText},
			{Column: "priority", Property: "Priority", Kind: model.KindSelect, Enum: PriorityLabels},
			{Column: "status", Property: "Status", Kind: model.KindSelect, Enum: TaskStatusLabels},
			{Column: "due_date", Property: "Due Date", Kind: model.KindDate},
			{Column: "point_value", Property: "Points", Kind: model.KindNumber},
			{Column: "tags", Property: "Tags", Kind: model.KindMultiSelect},
		},
		Important: []string{"title", "description", "priority", "status", "due_date"},
	},
	model.EntityRules: {
		Type:        model.EntityRules,
		Table:       "rules",
		TitleColumn: "title",
		Fields: []Field{
			{Column: "title", Property: "Title", Kind: model.KindTitle},
			{Column: "description", Property: "Description", Kind: model.KindRichText},
			{Column: "category", Property: "Category", Kind: model.KindSelect, Enum: RuleCategoryLabels},
			{Column: "priority", Property: "Priority", Kind: model.KindSelect, Enum: PriorityLabels},
			{Column: "is_active", Property: "Active", Kind: model.KindCheckbox},
			{Column: "tags", Property: "Tags", Kind: model.KindMultiSelect},
		},
		Important: []string{"title", "description", "category", "priority", "is_active"},
	},
	model.EntityContracts: {
		Type:        model.EntityContracts,
		Table:       "contracts",
		TitleColumn: "title",
		Fields: []Field{
			{Column: "title", Property: "Title", Kind: model.KindTitle},
			{Column: "content", Property: "Content", Kind: model.KindRichText},
			{Column: "status", Property: "Status", Kind: model.KindSelect, Enum: ContractStatusLabels},
			{Column: "effective_date", Property: "Effective Date", Kind: model.KindDate},
			{Column: "end_date", Property: "End Date", Kind: model.KindDate},
			{Column: "version", Property: "Version", Kind: model.KindNumber},
		},
		Important: []string{"title", "content", "status", "effective_date", "end_date"},
	},
	model.EntityJournal: {
		Type:        model.EntityJournal,
		Table:       "journal_entries",
		TitleColumn: "title",
		Fields: []Field{
			{Column: "title", Property: "Title", Kind: model.KindTitle},
			{Column: "content", Property: "Content", Kind: model.KindRichText},
			{Column: "entry_type", Property: "Entry Type", Kind: model.KindSelect, Enum: JournalEntryTypeLabels},
			{Column: "mood", Property: "Mood", Kind: model.KindSelect},
			{Column: "tags", Property: "Tags", Kind: model.KindMultiSelect},
			{Column: "entry_date", Property: "Date", Kind: model.KindDate},
		},
		Important: []string{"title", "content", "entry_type", "tags"},
	},
	model.EntityCalendar: {
		Type:        model.EntityCalendar,
		Table:       "calendar_events",
		TitleColumn: "title",
		Fields: []Field{
			{Column: "title", Property: "Title", Kind: model.KindTitle},
			{Column: "description", Property: "Description", Kind: model.KindRichText},
			{Column: "event_type", Property: "Event Type", Kind: model.KindSelect, Enum: EventTypeLabels},
			{Column: "start_date", Property: "Start", Kind: model.KindDate},
			{Column: "end_date", Property: "End", Kind: model.KindDate},
			{Column: "all_day", Property: "All Day", Kind: model.KindCheckbox},
		},
		Important: []string{"title", "description", "event_type", "start_date", "end_date"},
	},
	model.EntityKinksters: {
		Type:        model.EntityKinksters,
		Table:       "kinksters",
		TitleColumn: "name",
		Fields: []Field{
			{Column: "name", Property: "Name", Kind: model.KindTitle},
			{Column: "bio", Property: "Bio", Kind: model.KindRichText},
			{Column: "role", Property: "Role", Kind: model.KindSelect, Enum: KinksterRoleLabels},
			{Column: "archetypes", Property: "Archetypes", Kind: model.KindMultiSelect},
			{Column: "avatar_url", Property: "Avatar URL", Kind: model.KindURL},
			{Column: "is_active", Property: "Active", Kind: model.KindCheckbox},
		},
		Important: []string{"name", "bio", "role", "archetypes"},
	},
	model.EntityIdeas: {
		Type:        model.EntityIdeas,
		Table:       "ideas",
		TitleColumn: "title",
		Fields: []Field{
			{Column: "title", Property: "Title", Kind: model.KindTitle},
			{Column: "description", Property: "Description", Kind: model.KindRichText},
			{Column: "category", Property: "Category", Kind: model.KindSelect},
			{Column: "status", Property: "Status", Kind: model.KindSelect, Enum: IdeaStatusLabels},
			{Column: "priority", Property: "Priority", Kind: model.KindSelect, Enum: PriorityLabels},
			{Column: "tags", Property: "Tags", Kind: model.KindMultiSelect},
		},
		Important: []string{"title", "description", "category", "status", "priority"},
	},
	model.EntityImageGenerations: {
		Type:        model.EntityImageGenerations,
		Table:       "image_generations",
		TitleColumn: "prompt",
		Fields: []Field{
			{Column: "prompt", Property: "Prompt", Kind: model.KindTitle},
			{Column: "model", Property: "Model", Kind: model.KindSelect},
			{Column: "style", Property: "Style", Kind: model.KindSelect, Enum: ImageStyleLabels},
			{Column: "image_url", Property: "Image URL", Kind: model.KindURL},
			{Column: "tags", Property: "Tags", Kind: model.KindMultiSelect},
		},
		Important: []string{"prompt", "model", "style", "image_url"},
	},
}
