package decider

import (
	"context"
	"testing"
	"time"

	"github.com/karlokarate/nxcatalog/internal/checkpoint"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/kvstore"
)

func newTestDecider(t *testing.T) (*Decider, *checkpoint.Store) {
	t.Helper()
	kv, err := kvstore.Open("")
	if err != nil {
		t.Fatalf("open kvstore: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	ckpts := checkpoint.New(kv)
	return New(ckpts).WithMinimumInterval(50 * time.Millisecond), ckpts
}

func TestDecide_ForceFullAlwaysWins(t *testing.T) {
	d, ckpts := newTestDecider(t)
	ctx := context.Background()
	_ = ckpts.MarkSuccess(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, time.Now().UnixMilli(), 1)

	got, err := d.Decide(ctx, keycodec.SourceXtream, "acct1", keycodec.KindVod, true)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Strategy != FullSync {
		t.Fatalf("expected FullSync, got %v", got.Strategy)
	}
}

func TestDecide_NoPriorSuccessIsFull(t *testing.T) {
	d, _ := newTestDecider(t)
	got, err := d.Decide(context.Background(), keycodec.SourceXtream, "acct1", keycodec.KindVod, false)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Strategy != FullSync {
		t.Fatalf("expected FullSync, got %v", got.Strategy)
	}
}

func TestDecide_RecentSuccessSkips(t *testing.T) {
	d, ckpts := newTestDecider(t)
	ctx := context.Background()
	_ = ckpts.MarkSuccess(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, time.Now().UnixMilli(), 1)

	got, err := d.Decide(ctx, keycodec.SourceXtream, "acct1", keycodec.KindVod, false)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Strategy != SkipSync {
		t.Fatalf("expected SkipSync, got %v", got.Strategy)
	}
}

func TestDecide_OldSuccessIsIncremental(t *testing.T) {
	d, ckpts := newTestDecider(t)
	ctx := context.Background()
	staleMs := time.Now().Add(-time.Hour).UnixMilli()
	_ = ckpts.MarkSuccess(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, staleMs, 1)

	got, err := d.Decide(ctx, keycodec.SourceXtream, "acct1", keycodec.KindVod, false)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if got.Strategy != IncrementalSync {
		t.Fatalf("expected IncrementalSync, got %v", got.Strategy)
	}
	if got.SinceMs != staleMs {
		t.Fatalf("expected sinceMs=%d, got %d", staleMs, got.SinceMs)
	}
}
