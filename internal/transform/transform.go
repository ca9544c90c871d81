// Package transform converts between Notion page properties and local
// record fields using the entity tables in package schema.
package transform

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/schema"
)

// maxTextChunk is the Notion limit for one rich text object's content.
const maxTextChunk = 2000

// ToLocal extracts every mapped property of page into local field shape.
// A property that is absent or carries an unexpected tag yields nil for its
// column; only an unknown entity type is an error.
func ToLocal(page model.RemotePage, entity model.EntityType) (map[string]any, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(e.Fields))
	for _, f := range e.Fields {
		prop, ok := page.Property(f.Property)
		if !ok {
			out[f.Column] = nil
			continue
		}
		out[f.Column] = extract(f, prop)
	}
	return out, nil
}

func extract(f schema.Field, prop model.PropertyValue) any {
	if prop.Kind() != f.Kind {
		return nil
	}
	switch f.Kind {
	case model.KindTitle, model.KindRichText:
		s, ok := prop.PlainText()
		if !ok || strings.TrimSpace(s) == "" {
			return nil
		}
		return s
	case model.KindSelect:
		name, ok := prop.SelectName()
		if !ok {
			return nil
		}
		if f.Enum != nil {
			return f.Enum.Local(name)
		}
		return name
	case model.KindMultiSelect:
		names, ok := prop.MultiSelectNames()
		if !ok || len(names) == 0 {
			return nil
		}
		return names
	case model.KindNumber:
		if n, ok := prop.NumberValue(); ok {
			return n
		}
	case model.KindCheckbox:
		if b, ok := prop.CheckboxValue(); ok {
			return b
		}
	case model.KindDate:
		if s, ok := prop.DateStart(); ok {
			if t, ok := ParseDate(s); ok {
				return t
			}
		}
	case model.KindURL:
		if u, ok := prop.URLValue(); ok {
			return u
		}
	}
	return nil
}

// ToRemote builds the Notion property map for fields. Nil or empty values
// are omitted entirely; multi-select entries are sanitized.
func ToRemote(fields map[string]any, entity model.EntityType) (map[string]model.PropertyValue, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.PropertyValue, len(e.Fields))
	for _, f := range e.Fields {
		v, ok := fields[f.Column]
		if !ok || v == nil {
			continue
		}
		if prop, ok := build(f, v); ok {
			out[f.Property] = prop
		}
	}
	return out, nil
}

func build(f schema.Field, v any) (model.PropertyValue, bool) {
	v = normalizeValue(f.Kind, v)
	if v == nil {
		return model.PropertyValue{}, false
	}
	switch f.Kind {
	case model.KindTitle:
		return model.PropertyValue{Title: textChunks(v.(string))}, true
	case model.KindRichText:
		return model.PropertyValue{RichText: textChunks(v.(string))}, true
	case model.KindSelect:
		name := v.(string)
		if f.Enum != nil {
			name = f.Enum.Remote(name)
		}
		name = sanitizeOption(name)
		if name == "" {
			return model.PropertyValue{}, false
		}
		return model.PropertyValue{Select: &model.SelectOption{Name: name}}, true
	case model.KindMultiSelect:
		names := SanitizeTags(v.([]string))
		if len(names) == 0 {
			return model.PropertyValue{}, false
		}
		opts := make([]model.SelectOption, len(names))
		for i, n := range names {
			opts[i] = model.SelectOption{Name: n}
		}
		return model.PropertyValue{MultiSelect: opts}, true
	case model.KindNumber:
		n := v.(float64)
		return model.PropertyValue{Number: &n}, true
	case model.KindCheckbox:
		b := v.(bool)
		return model.PropertyValue{Checkbox: &b}, true
	case model.KindDate:
		return model.PropertyValue{Date: &model.DateValue{Start: FormatDate(v.(time.Time))}}, true
	case model.KindURL:
		u := v.(string)
		return model.PropertyValue{URL: &u}, true
	}
	return model.PropertyValue{}, false
}

// SanitizeTags strips commas (not allowed in multi-select option names),
// trims, and drops empty and repeated entries.
func SanitizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = sanitizeOption(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func sanitizeOption(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}

// textChunks splits s into rich text objects no longer than maxTextChunk runes.
func textChunks(s string) []model.RichText {
	var out []model.RichText
	for len(s) > 0 {
		cut := len(s)
		if utf8.RuneCountInString(s) > maxTextChunk {
			cut = 0
			for i := 0; i < maxTextChunk; i++ {
				_, size := utf8.DecodeRuneInString(s[cut:])
				cut += size
			}
		}
		out = append(out, model.RichText{Type: "text", Text: &model.TextContent{Content: s[:cut]}})
		s = s[cut:]
	}
	return out
}

// Title returns the display title of a record's fields for entity.
func Title(fields map[string]any, entity model.EntityType) string {
	e, err := schema.Lookup(entity)
	if err != nil {
		return ""
	}
	s, _ := fields[e.TitleColumn].(string)
	return s
}

// RemoteTitle returns the plain-text title of a remote page for entity.
func RemoteTitle(page model.RemotePage, entity model.EntityType) string {
	e, err := schema.Lookup(entity)
	if err != nil {
		return ""
	}
	f, ok := e.Field(e.TitleColumn)
	if !ok {
		return ""
	}
	prop, ok := page.Property(f.Property)
	if !ok {
		return ""
	}
	s, _ := prop.PlainText()
	return s
}
