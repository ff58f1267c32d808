// Package ledger appends one IngestLedger entry per ingest candidate
// (INV-01), recording the decision and reason code the ingest pipeline
// reached for it. Append is write-only in normal operation; Recent exists
// for diagnostics only.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/karlokarate/nxcatalog/internal/metrics"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// Writer appends ledger entries to an nx.EntityStore and mirrors each
// reason code into the ingest-reason Prometheus counter.
type Writer struct {
	store nx.EntityStore
}

// New builds a ledger Writer over store.
func New(store nx.EntityStore) *Writer {
	return &Writer{store: store}
}

// Accept records an ACCEPTED decision. resolvedWorkKey must be non-empty
// (INV-02).
func (w *Writer) Accept(ctx context.Context, sourceKey, reasonCode, detail, resolvedWorkKey string) error {
	if resolvedWorkKey == "" {
		return fmt.Errorf("ledger: accept %q: resolvedWorkKey must not be empty", sourceKey)
	}
	return w.append(ctx, nx.IngestLedger{
		SourceKey:       sourceKey,
		Decision:        nx.DecisionAccepted,
		ReasonCode:      reasonCode,
		Detail:          detail,
		ResolvedWorkKey: resolvedWorkKey,
	})
}

// Reject records a REJECTED decision.
func (w *Writer) Reject(ctx context.Context, sourceKey, reasonCode, detail string) error {
	return w.append(ctx, nx.IngestLedger{
		SourceKey:  sourceKey,
		Decision:   nx.DecisionRejected,
		ReasonCode: reasonCode,
		Detail:     detail,
	})
}

// Skip records a SKIPPED decision.
func (w *Writer) Skip(ctx context.Context, sourceKey, reasonCode, detail string) error {
	return w.append(ctx, nx.IngestLedger{
		SourceKey:  sourceKey,
		Decision:   nx.DecisionSkipped,
		ReasonCode: reasonCode,
		Detail:     detail,
	})
}

func (w *Writer) append(ctx context.Context, entry nx.IngestLedger) error {
	entry.ID = uuid.NewString()
	entry.IngestedAtMs = time.Now().UnixMilli()

	if err := w.store.IngestLedgers().Upsert(ctx, entry); err != nil {
		return fmt.Errorf("ledger: append %q: %w", entry.SourceKey, err)
	}
	metrics.RecordIngestReason(entry.ReasonCode)
	return nil
}

// Recent returns up to limit of the most recently written ledger entries,
// for diagnostics. limit <= 0 means unbounded.
func (w *Writer) Recent(ctx context.Context, limit int) ([]nx.IngestLedger, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch, err := w.store.IngestLedgers().ObserveByType(subCtx, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent: %w", err)
	}
	var out []nx.IngestLedger
	for ev := range ch {
		out = append(out, ev.Value)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
