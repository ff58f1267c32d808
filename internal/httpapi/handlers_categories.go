package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karlokarate/nxcatalog/internal/nx"
)

// HandleListCategories serves GET /categories/{accountKey}, loading the
// account's category tree from its provider and persisting it, per
// catalogsync.Service.LoadCategories.
func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	accountKey := chi.URLParam(r, "accountKey")
	if accountKey == "" {
		respondError(w, http.StatusBadRequest, errAccountKeyRequired)
		return
	}

	account, err := h.store.SourceAccounts().Get(r.Context(), accountKey)
	if err != nil {
		if err == nx.ErrNotFound {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	categories, err := h.sync.LoadCategories(r.Context(), accountKey, account.ProviderType)
	if err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}

	respondJSON(w, http.StatusOK, categories)
}
