package kvstore

import (
	"context"
	"testing"
)

type record struct {
	Value int `json:"value"`
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Put(ctx, "k1", record{Value: 42}); err != nil {
		t.Fatalf("put: %v", err)
	}

	var got record
	if err := s.Get(ctx, "k1", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != 42 {
		t.Fatalf("got %+v", got)
	}

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Get(ctx, "k1", &got); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_PrefixScanAndDeletePrefix(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for _, k := range []string{"fp:acc1:1", "fp:acc1:2", "fp:acc2:1"} {
		if err := s.Put(ctx, k, record{Value: 1}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	count := 0
	if err := s.PrefixScan(ctx, "fp:acc1:", func(string, []byte) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 matches, got %d", count)
	}

	if err := s.DeletePrefix(ctx, "fp:acc1:"); err != nil {
		t.Fatalf("deletePrefix: %v", err)
	}
	var got record
	if err := s.Get(ctx, "fp:acc2:1", &got); err != nil {
		t.Fatalf("expected acc2 key to survive: %v", err)
	}
	if err := s.Get(ctx, "fp:acc1:1", &got); err != ErrNotFound {
		t.Fatalf("expected acc1 keys to be gone, got %v", err)
	}
}
