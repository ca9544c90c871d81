package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bondcrm/notionsync/internal/api/respond"
	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/resolution"
	"github.com/bondcrm/notionsync/internal/services"
)

// SyncService is the subset of services.SyncService served over HTTP.
type SyncService interface {
	Preview(ctx context.Context, req services.PreviewRequest) (*services.Preview, error)
	Resolve(ctx context.Context, req services.ResolveRequest) (*resolution.Result, error)
	Sync(ctx context.Context, req services.SyncRequest) (*services.SyncReport, error)
}

// SyncHandler provides HTTP transport for sync operations.
type SyncHandler struct {
	svc SyncService
}

func NewSyncHandler(svc SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

type previewBody struct {
	DatabaseID string `json:"databaseId,omitempty"`
}

type resolveBody struct {
	Conflicts []model.Conflict         `json:"conflicts"`
	Choices   []model.ResolutionChoice `json:"choices"`
}

type syncBody struct {
	Strategy   model.Strategy `json:"strategy"`
	DatabaseID string         `json:"databaseId,omitempty"`
}

// target reads the path variables and bearer token shared by every route.
func target(w http.ResponseWriter, r *http.Request) (userID string, entity model.EntityType, apiKey string, ok bool) {
	vars := mux.Vars(r)
	userID = vars["userId"]
	entity, err := model.ParseEntityType(vars["entity"])
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return "", "", "", false
	}
	apiKey, err = ExtractAPIKey(r)
	if err != nil {
		respond.WriteError(w, http.StatusUnauthorized, err.Error())
		return "", "", "", false
	}
	return userID, entity, apiKey, true
}

// decode reads an optional JSON body into v.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Preview POST /api/users/{userId}/sync/{entity}/preview
func (h *SyncHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, entity, apiKey, ok := target(w, r)
	if !ok {
		return
	}
	var body previewBody
	if err := decode(r, &body); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	p, err := h.svc.Preview(r.Context(), services.PreviewRequest{
		UserID:     userID,
		Entity:     entity,
		DatabaseID: body.DatabaseID,
		APIKey:     apiKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// Resolve POST /api/users/{userId}/sync/{entity}/resolve
func (h *SyncHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, entity, apiKey, ok := target(w, r)
	if !ok {
		return
	}
	var body resolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	res, err := h.svc.Resolve(r.Context(), services.ResolveRequest{
		UserID:    userID,
		Entity:    entity,
		APIKey:    apiKey,
		Conflicts: body.Conflicts,
		Choices:   body.Choices,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// Sync POST /api/users/{userId}/sync/{entity}
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, entity, apiKey, ok := target(w, r)
	if !ok {
		return
	}
	var body syncBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	report, err := h.svc.Sync(r.Context(), services.SyncRequest{
		UserID:     userID,
		Entity:     entity,
		Strategy:   body.Strategy,
		DatabaseID: body.DatabaseID,
		APIKey:     apiKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, report)
}
