package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/schema"
)

// dateLayouts are tried in order when parsing Notion and stored dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date formats produced by Notion and by the SQL drivers.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders t the way Notion expects: a bare date when there is no
// time-of-day component, RFC 3339 otherwise.
func FormatDate(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

// Normalize coerces loosely typed values (for example decoded JSON) into the
// canonical Go type of each column's kind. Unknown columns pass through.
// Values that cannot be coerced become nil.
func Normalize(fields map[string]any, entity model.EntityType) (map[string]any, error) {
	e, err := schema.Lookup(entity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		f, ok := e.Field(k)
		if !ok {
			out[k] = v
			continue
		}
		out[k] = normalizeValue(f.Kind, v)
	}
	return out, nil
}

func normalizeValue(kind model.PropertyKind, v any) any {
	if v == nil {
		return nil
	}
	switch kind {
	case model.KindTitle, model.KindRichText, model.KindSelect, model.KindURL:
		s, ok := asString(v)
		if !ok || s == "" {
			return nil
		}
		return s
	case model.KindMultiSelect:
		list, ok := asStrings(v)
		if !ok || len(list) == 0 {
			return nil
		}
		return list
	case model.KindNumber:
		n, ok := asFloat(v)
		if !ok {
			return nil
		}
		return n
	case model.KindCheckbox:
		b, ok := asBool(v)
		if !ok {
			return nil
		}
		return b
	case model.KindDate:
		t, ok := asTime(v)
		if !ok {
			return nil
		}
		return t
	}
	return v
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case fmt.Stringer:
		return t.String(), true
	}
	return "", false
}

func asStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := asString(e)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// Stored JSON arrays arrive as text from some drivers.
		var out []string
		if err := json.Unmarshal([]byte(t), &out); err == nil {
			return out, true
		}
		return nil, false
	case []byte:
		var out []string
		if err := json.Unmarshal(t, &out); err == nil {
			return out, true
		}
		return nil, false
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f, err == nil
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case int:
		return t != 0, true
	case float64:
		return t != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		return ParseDate(t)
	case []byte:
		return ParseDate(string(t))
	}
	return time.Time{}, false
}
