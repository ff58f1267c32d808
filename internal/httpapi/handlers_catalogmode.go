package httpapi

import (
	"errors"
	"net/http"

	"github.com/karlokarate/nxcatalog/internal/nx"
)

type catalogModeRequest struct {
	Path     string `json:"path"`     // "read" or "write"
	Mode     string `json:"mode"`     // "LEGACY", "DUAL", or "NEW"
	Rollback bool   `json:"rollback"` // if true, path/mode are ignored
}

var errCatalogModeUnavailable = errors.New("catalog-mode kill switch is not configured")

// HandleSetCatalogMode serves POST /catalog-mode, flipping the kill switch's
// read or write backend, or rolling both back to LEGACY when rollback is
// requested.
func (h *Handler) HandleSetCatalogMode(w http.ResponseWriter, r *http.Request) {
	if h.gate == nil {
		respondError(w, http.StatusServiceUnavailable, errCatalogModeUnavailable)
		return
	}

	var body catalogModeRequest
	if err := decodeJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if body.Rollback {
		if err := h.gate.Rollback(r.Context()); err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, h.currentCatalogMode())
		return
	}

	path := nx.CatalogModePath(body.Path)
	if path != nx.CatalogModePathRead && path != nx.CatalogModePathWrite {
		respondError(w, http.StatusBadRequest, errors.New("path must be \"read\" or \"write\""))
		return
	}

	mode := nx.CatalogMode(body.Mode)
	switch mode {
	case nx.CatalogModeLegacy, nx.CatalogModeDual, nx.CatalogModeNew:
	default:
		respondError(w, http.StatusBadRequest, errors.New("mode must be LEGACY, DUAL, or NEW"))
		return
	}

	if err := h.gate.SetMode(r.Context(), path, mode); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, h.currentCatalogMode())
}

func (h *Handler) currentCatalogMode() map[string]string {
	return map[string]string{
		"read":  string(h.gate.ReadMode()),
		"write": string(h.gate.WriteMode()),
	}
}
