package model

import (
	"strings"
	"time"
)

// RemotePage is one row of a Notion database as returned by the query API.
// Values are never mutated after retrieval.
type RemotePage struct {
	ID             string                   `json:"id"`
	URL            string                   `json:"url,omitempty"`
	CreatedTime    time.Time                `json:"created_time"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	Archived       bool                     `json:"archived"`
	InTrash        bool                     `json:"in_trash,omitempty"`
	Properties     map[string]PropertyValue `json:"properties"`
}

// Property returns the named property and whether it was present.
func (p RemotePage) Property(name string) (PropertyValue, bool) {
	v, ok := p.Properties[name]
	return v, ok
}

// PropertyKind is the tag of a PropertyValue.
type PropertyKind string

const (
	KindTitle       PropertyKind = "title"
	KindRichText    PropertyKind = "rich_text"
	KindSelect      PropertyKind = "select"
	KindMultiSelect PropertyKind = "multi_select"
	KindNumber      PropertyKind = "number"
	KindCheckbox    PropertyKind = "checkbox"
	KindDate        PropertyKind = "date"
	KindURL         PropertyKind = "url"
	KindUnknown     PropertyKind = ""
)

// PropertyValue mirrors the Notion property value object. Exactly one member
// is expected to be populated; Type is optional on input and left empty on
// output.
type PropertyValue struct {
	ID          string         `json:"id,omitempty"`
	Type        PropertyKind   `json:"type,omitempty"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Number      *float64       `json:"number,omitempty"`
	Checkbox    *bool          `json:"checkbox,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
	URL         *string        `json:"url,omitempty"`
}

type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
}

type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type DateValue struct {
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
	TimeZone *string `json:"time_zone,omitempty"`
}

// Kind reports the tag, inferring it from the populated member when the
// type field is absent.
func (v PropertyValue) Kind() PropertyKind {
	if v.Type != "" {
		return v.Type
	}
	switch {
	case v.Title != nil:
		return KindTitle
	case v.RichText != nil:
		return KindRichText
	case v.Select != nil:
		return KindSelect
	case v.MultiSelect != nil:
		return KindMultiSelect
	case v.Number != nil:
		return KindNumber
	case v.Checkbox != nil:
		return KindCheckbox
	case v.Date != nil:
		return KindDate
	case v.URL != nil:
		return KindURL
	}
	return KindUnknown
}

// PlainText concatenates the text of a title or rich_text property.
func (v PropertyValue) PlainText() (string, bool) {
	var parts []RichText
	switch v.Kind() {
	case KindTitle:
		parts = v.Title
	case KindRichText:
		parts = v.RichText
	default:
		return "", false
	}
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return b.String(), true
}

// SelectName returns the option name of a select property.
func (v PropertyValue) SelectName() (string, bool) {
	if v.Kind() != KindSelect || v.Select == nil || v.Select.Name == "" {
		return "", false
	}
	return v.Select.Name, true
}

// MultiSelectNames returns the option names of a multi_select property.
func (v PropertyValue) MultiSelectNames() ([]string, bool) {
	if v.Kind() != KindMultiSelect {
		return nil, false
	}
	out := make([]string, 0, len(v.MultiSelect))
	for _, o := range v.MultiSelect {
		if o.Name != "" {
			out = append(out, o.Name)
		}
	}
	return out, true
}

func (v PropertyValue) NumberValue() (float64, bool) {
	if v.Kind() != KindNumber || v.Number == nil {
		return 0, false
	}
	return *v.Number, true
}

func (v PropertyValue) CheckboxValue() (bool, bool) {
	if v.Kind() != KindCheckbox || v.Checkbox == nil {
		return false, false
	}
	return *v.Checkbox, true
}

// DateStart returns the start of a date property as sent by Notion.
func (v PropertyValue) DateStart() (string, bool) {
	if v.Kind() != KindDate || v.Date == nil || v.Date.Start == "" {
		return "", false
	}
	return v.Date.Start, true
}

func (v PropertyValue) URLValue() (string, bool) {
	if v.Kind() != KindURL || v.URL == nil || *v.URL == "" {
		return "", false
	}
	return *v.URL, true
}
