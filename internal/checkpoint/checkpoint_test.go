package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/kvstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := kvstore.Open("")
	if err != nil {
		t.Fatalf("open kvstore: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return New(kv)
}

func TestGet_NoPriorSync(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "acct1", keycodec.SourceXtream, keycodec.KindVod)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected no checkpoint for a never-synced scope")
	}
}

func TestMarkPhaseCompleted_Accumulates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.MarkPhaseCompleted(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, "live"); err != nil {
		t.Fatalf("mark live: %v", err)
	}
	if err := s.MarkPhaseCompleted(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, "vod"); err != nil {
		t.Fatalf("mark vod: %v", err)
	}

	cp, ok, err := s.Get(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !cp.HasCompletedPhase("live") || !cp.HasCompletedPhase("vod") {
		t.Fatalf("expected both phases recorded: %+v", cp)
	}
	if cp.HasCompletedPhase("series") {
		t.Fatal("did not expect series to be completed")
	}
}

func TestMarkSuccess_ClearsInProgressPhases(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.MarkPhaseCompleted(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, "live")
	if err := s.MarkSuccess(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, time.Now().UnixMilli(), 5); err != nil {
		t.Fatalf("markSuccess: %v", err)
	}

	cp, ok, err := s.Get(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(cp.CompletedPhases) != 0 {
		t.Fatalf("expected cleared phase list, got %v", cp.CompletedPhases)
	}
	if cp.LastGeneration != 5 {
		t.Fatalf("expected generation 5, got %d", cp.LastGeneration)
	}
}

func TestClearAccount_RemovesAllScopesForAccount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_ = s.MarkSuccess(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod, 100, 1)
	_ = s.MarkSuccess(ctx, "acct1", keycodec.SourceXtream, keycodec.KindLive, 100, 1)
	_ = s.MarkSuccess(ctx, "acct2", keycodec.SourceXtream, keycodec.KindVod, 100, 1)

	if err := s.ClearAccount(ctx, "acct1"); err != nil {
		t.Fatalf("clearAccount: %v", err)
	}

	if _, ok, _ := s.Get(ctx, "acct1", keycodec.SourceXtream, keycodec.KindVod); ok {
		t.Fatal("expected acct1 vod checkpoint to be cleared")
	}
	if _, ok, _ := s.Get(ctx, "acct1", keycodec.SourceXtream, keycodec.KindLive); ok {
		t.Fatal("expected acct1 live checkpoint to be cleared")
	}
	if _, ok, _ := s.Get(ctx, "acct2", keycodec.SourceXtream, keycodec.KindVod); !ok {
		t.Fatal("expected acct2 checkpoint to survive")
	}
}

func TestCompactor_StartStopIsRunning(t *testing.T) {
	kv, err := kvstore.Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer kv.Close()

	c := NewCompactor(kv).WithInterval(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.IsRunning() {
		t.Fatal("expected running after Start")
	}
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	if c.IsRunning() {
		t.Fatal("expected not running after Stop")
	}
}
