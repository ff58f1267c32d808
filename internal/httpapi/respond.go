// Package httpapi exposes the catalog control facade: trigger/cancel a
// sync, inspect its status, load an account's category tree, flip the
// catalog-mode kill switch, and enrich a single work on demand. It is the
// thin HTTP surface in front of internal/catalogsync, internal/killswitch
// and internal/enrichment.
package httpapi

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/karlokarate/nxcatalog/internal/logging"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(apiResponse{Success: status < 400, Data: data}); err != nil {
		logging.Error().Err(err).Msg("httpapi: failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(apiResponse{Error: err.Error()}); encErr != nil {
		logging.Error().Err(encErr).Msg("httpapi: failed to write JSON error response")
	}
}
