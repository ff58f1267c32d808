package ledger

import (
	"context"
	"testing"

	"github.com/karlokarate/nxcatalog/internal/nx"
)

func TestWriter_AcceptRequiresResolvedWorkKey(t *testing.T) {
	w := New(nx.NewMemEntityStore())
	if err := w.Accept(context.Background(), "src:xtream:acct1:vod:1", nx.ReasonAcceptedNewWork, "", ""); err == nil {
		t.Fatal("expected error for empty resolvedWorkKey")
	}
}

func TestWriter_AcceptRejectSkip(t *testing.T) {
	ctx := context.Background()
	store := nx.NewMemEntityStore()
	w := New(store)

	if err := w.Accept(ctx, "src:xtream:acct1:vod:1", nx.ReasonAcceptedNewWork, "", "movie:a:2000"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := w.Reject(ctx, "src:xtream:acct1:vod:2", nx.ReasonRejectedTooShort, "duration below minimum"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := w.Skip(ctx, "src:xtream:acct1:vod:3", nx.ReasonSkippedUnchangedFingerprint, ""); err != nil {
		t.Fatalf("skip: %v", err)
	}

	entries, err := w.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(entries))
	}

	var sawAccepted, sawRejected, sawSkipped bool
	for _, e := range entries {
		switch e.Decision {
		case nx.DecisionAccepted:
			sawAccepted = e.ResolvedWorkKey == "movie:a:2000"
		case nx.DecisionRejected:
			sawRejected = e.ReasonCode == nx.ReasonRejectedTooShort
		case nx.DecisionSkipped:
			sawSkipped = e.ReasonCode == nx.ReasonSkippedUnchangedFingerprint
		}
	}
	if !sawAccepted || !sawRejected || !sawSkipped {
		t.Fatalf("missing expected entries: accepted=%v rejected=%v skipped=%v", sawAccepted, sawRejected, sawSkipped)
	}
}
