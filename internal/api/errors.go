package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bondcrm/notionsync/internal/api/respond"
	"github.com/bondcrm/notionsync/internal/model"
	"github.com/bondcrm/notionsync/internal/notion"
)

// writeServiceError maps domain and Notion errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrUnknownEntity):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, notion.ErrDatabaseNotFound):
		respond.WriteErrorHint(w, http.StatusNotFound, err.Error(), "re-link the Notion database")
	case errors.Is(err, model.ErrNotFound):
		respond.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		respond.WriteError(w, http.StatusConflict, err.Error())
	default:
		if apiErr, ok := notion.AsAPIError(err); ok {
			switch {
			case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
				respond.WriteErrorHint(w, http.StatusUnauthorized, apiErr.Error(), "check the Notion integration token")
			case apiErr.RateLimited():
				respond.WriteRateLimited(w, apiErr.Error(), apiErr.RetryAfter)
			default:
				respond.WriteError(w, http.StatusBadGateway, apiErr.Error())
			}
			return
		}
		log.Error().Stack().Err(err).Msg("sync request failed")
		respond.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
