package httpapi

import (
	"sync"

	"github.com/karlokarate/nxcatalog/internal/catalogsync"
	"github.com/karlokarate/nxcatalog/internal/enrichment"
	"github.com/karlokarate/nxcatalog/internal/killswitch"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// Handler wires catalog control-plane endpoints over the services that do
// the actual work. It holds no state of its own beyond the latest status
// seen per account, which Sync's channel doesn't otherwise make queryable.
type Handler struct {
	store  nx.EntityStore
	sync   *catalogsync.Service
	gate   *killswitch.Gate
	enrich *enrichment.Service

	statusMu sync.RWMutex
	status   map[string]catalogsync.Status
}

// NewHandler builds a Handler. gate and enrich may be nil, disabling the
// catalog-mode and enrich endpoints respectively.
func NewHandler(store nx.EntityStore, syncSvc *catalogsync.Service, gate *killswitch.Gate, enrich *enrichment.Service) *Handler {
	return &Handler{
		store:  store,
		sync:   syncSvc,
		gate:   gate,
		enrich: enrich,
		status: make(map[string]catalogsync.Status),
	}
}

func (h *Handler) recordStatus(accountKey string, status catalogsync.Status) {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	h.status[accountKey] = status
}

func (h *Handler) lastStatus(accountKey string) (catalogsync.Status, bool) {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	s, ok := h.status[accountKey]
	return s, ok
}

// drainAndRecord consumes a Sync status stream to completion, recording
// each emission so a concurrent status poll sees live progress rather than
// nothing until the sync finishes.
func (h *Handler) drainAndRecord(accountKey string, statuses <-chan catalogsync.Status) {
	for status := range statuses {
		h.recordStatus(accountKey, status)
	}
}
