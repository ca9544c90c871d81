package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bondcrm/notionsync/internal/model"
)

// TokenProvider supplies the Notion bearer token for a user.
type TokenProvider interface {
	Token(ctx context.Context, userID string) (string, error)
}

// DatabaseRegistry maps a user's entity type to a Notion database id.
type DatabaseRegistry interface {
	DatabaseID(ctx context.Context, userID string, entity model.EntityType) (string, error)
}

// StaticToken serves one integration token to every user.
type StaticToken string

func (t StaticToken) Token(_ context.Context, userID string) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", fmt.Errorf("%w: no notion token configured for user %s", model.ErrValidation, userID)
	}
	return string(t), nil
}

// StaticRegistry resolves database ids from configuration shared by all
// users.
type StaticRegistry map[model.EntityType]string

// NewStaticRegistry validates entity names in a config map.
func NewStaticRegistry(m map[string]string) (StaticRegistry, error) {
	out := make(StaticRegistry, len(m))
	for k, v := range m {
		et, err := model.ParseEntityType(strings.TrimSpace(k))
		if err != nil {
			return nil, err
		}
		out[et] = strings.TrimSpace(v)
	}
	return out, nil
}

func (r StaticRegistry) DatabaseID(_ context.Context, _ string, entity model.EntityType) (string, error) {
	id, ok := r[entity]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: no notion database linked for %s", model.ErrNotFound, entity)
	}
	return id, nil
}
