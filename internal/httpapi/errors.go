package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/fieldmarcel/recipe-cache/internal/recipes"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// writeError maps application errors to their status; anything else is a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *recipes.Error
	if errors.As(err, &appErr) {
		writeAPIError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
	writeAPIError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
