package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karlokarate/nxcatalog/internal/dispatcher"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

var errEnrichmentUnavailable = errors.New("enrichment service is not configured")

// HandleEnrichWork serves POST /works/{workKey}/enrich. Priority defaults
// to HIGH_USER_ACTION, matching an operator- or UI-triggered enrich call;
// pass {"priority":"CRITICAL_PLAYBACK"} to use the foreground-preempting
// slot instead.
func (h *Handler) HandleEnrichWork(w http.ResponseWriter, r *http.Request) {
	if h.enrich == nil {
		respondError(w, http.StatusServiceUnavailable, errEnrichmentUnavailable)
		return
	}

	workKey := chi.URLParam(r, "workKey")
	if workKey == "" {
		respondError(w, http.StatusBadRequest, errWorkKeyRequired)
		return
	}

	var body struct {
		Priority string `json:"priority"`
	}
	if err := decodeJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	priority := dispatcher.HighUserAction
	if body.Priority != "" {
		priority = dispatcher.Priority(body.Priority)
	}

	work, err := h.enrich.Enrich(r.Context(), workKey, priority)
	if err != nil {
		if errors.Is(err, nx.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusBadGateway, err)
		return
	}

	respondJSON(w, http.StatusOK, work)
}
