package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/karlokarate/nxcatalog/internal/catalogsync"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

type syncRequest struct {
	ForceFull bool     `json:"force_full"`
	Phases    []string `json:"phases,omitempty"`
}

// HandleStartSync triggers POST /sync/{accountKey}. The account's provider
// type is looked up from its SourceAccount record so callers don't need to
// repeat it on every call.
func (h *Handler) HandleStartSync(w http.ResponseWriter, r *http.Request) {
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

	var body syncRequest
	_ = decodeJSONBody(r, &body)

	req := catalogsync.Request{
		AccountKey: accountKey,
		SourceType: account.ProviderType,
		ForceFull:  body.ForceFull,
	}

	statuses := h.sync.Sync(context.Background(), req)
	go h.drainAndRecord(accountKey, statuses)

	respondJSON(w, http.StatusAccepted, map[string]string{"account_key": accountKey, "state": "started"})
}

// HandleCancelSync triggers POST /sync/{accountKey}/cancel.
func (h *Handler) HandleCancelSync(w http.ResponseWriter, r *http.Request) {
	accountKey := chi.URLParam(r, "accountKey")
	if accountKey == "" {
		respondError(w, http.StatusBadRequest, errAccountKeyRequired)
		return
	}

	cancelled := h.sync.Cancel(accountKey)
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

type syncStatusResponse struct {
	AccountKey     string `json:"account_key"`
	Kind           string `json:"kind"`
	Phase          string `json:"phase,omitempty"`
	Processed      int    `json:"processed,omitempty"`
	Total          int    `json:"total,omitempty"`
	WasIncremental bool   `json:"was_incremental,omitempty"`
	ErrorType      string `json:"error_type,omitempty"`
	Message        string `json:"message,omitempty"`
}

var statusKindNames = map[catalogsync.StatusKind]string{
	catalogsync.Started:    "started",
	catalogsync.InProgress: "in_progress",
	catalogsync.Completed:  "completed",
	catalogsync.Cancelled:  "cancelled",
	catalogsync.Error:      "error",
}

// HandleSyncStatus serves GET /sync/{accountKey}/status, returning the most
// recently observed status emission for that account's last Sync call.
func (h *Handler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	accountKey := chi.URLParam(r, "accountKey")
	if accountKey == "" {
		respondError(w, http.StatusBadRequest, errAccountKeyRequired)
		return
	}

	status, ok := h.lastStatus(accountKey)
	if !ok {
		respondJSON(w, http.StatusOK, syncStatusResponse{AccountKey: accountKey, Kind: "idle"})
		return
	}

	respondJSON(w, http.StatusOK, syncStatusResponse{
		AccountKey:     accountKey,
		Kind:           statusKindNames[status.Kind],
		Phase:          string(status.Phase),
		Processed:      status.Processed,
		Total:          status.Total,
		WasIncremental: status.WasIncremental,
		ErrorType:      status.ErrorType,
		Message:        status.Message,
	})
}
