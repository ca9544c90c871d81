package conflict

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/bondcrm/notionsync/internal/transform"
)

// Equal compares two field values the way a user would: nil and empty are
// the same, lists ignore order, dates compare as ISO strings, strings ignore
// case and surrounding whitespace.
func Equal(a, b any) bool {
	a, b = emptyToNil(a), emptyToNil(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if la, ok := asList(a); ok {
		lb, ok := asList(b)
		return ok && la == lb
	}

	ta, aIsTime := a.(time.Time)
	tb, bIsTime := b.(time.Time)
	if aIsTime || bIsTime {
		if !aIsTime {
			s, ok := a.(string)
			if !ok {
				return false
			}
			if ta, ok = transform.ParseDate(s); !ok {
				return false
			}
		}
		if !bIsTime {
			s, ok := b.(string)
			if !ok {
				return false
			}
			if tb, ok = transform.ParseDate(s); !ok {
				return false
			}
		}
		return isoString(ta) == isoString(tb)
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && strings.ToLower(strings.TrimSpace(sa)) == strings.ToLower(strings.TrimSpace(sb))
	}

	if fa, ok := asNumber(a); ok {
		fb, ok := asNumber(b)
		return ok && fa == fb
	}

	return reflect.DeepEqual(a, b)
}

func emptyToNil(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
	case []string:
		if len(t) == 0 {
			return nil
		}
	case []any:
		if len(t) == 0 {
			return nil
		}
	case time.Time:
		if t.IsZero() {
			return nil
		}
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		return *t
	}
	return v
}

// asList renders a list as its sorted, joined string form.
func asList(v any) (string, bool) {
	var items []string
	switch t := v.(type) {
	case []string:
		items = append(items, t...)
	case []any:
		for _, e := range t {
			items = append(items, fmt.Sprint(e))
		}
	default:
		return "", false
	}
	sort.Strings(items)
	return strings.Join(items, ","), true
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func isoString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
