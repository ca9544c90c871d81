package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/transform"
)

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func optString(v any) *string {
	s := asString(v)
	if s == "" {
		return nil
	}
	return &s
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), !t.IsZero()
	case string:
		return transform.ParseDate(t)
	case []byte:
		return transform.ParseDate(string(t))
	}
	return time.Time{}, false
}

func optArg(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// encodeList stores tag lists as JSON text; Postgres casts it into JSONB.
func encodeList(v any) (any, error) {
	list, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("%w: expected string list, got %T", model.ErrValidation, v)
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
