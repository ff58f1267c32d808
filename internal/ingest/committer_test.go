package ingest

import (
	"context"
	"testing"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/ledger"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

func testCandidate(id, title, workKey string) Candidate {
	return Candidate{
		Raw: normalize.RawRecord{
			OriginalTitle: title,
			MediaKind:     keycodec.KindVod,
			Year:          2020,
			SourceType:    keycodec.SourceXtream,
			AccountKey:    "acct1",
			SourceID:      id,
			PlaybackHints: map[string]string{"quality": "1080p", "language": "en", "method": "direct"},
		},
		Normalized: normalize.NormalizedRecord{CanonicalTitle: title, WorkKeyCandidate: workKey},
		SourceKey:  "src:xtream:acct1:vod:" + id,
		AccountKey: "acct1",
		SourceType: keycodec.SourceXtream,
	}
}

func TestCommitter_CommitsWorkSourceRefAndVariant(t *testing.T) {
	store := nx.NewMemEntityStore()
	c := NewCommitter(store, ledger.New(store))

	cand := testCandidate("1", "Movie One", "movie:movie-one:2020")
	if err := c.commitBatch(context.Background(), []Candidate{cand}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	work, err := store.Works().Get(context.Background(), cand.Normalized.WorkKeyCandidate)
	if err != nil {
		t.Fatalf("get work: %v", err)
	}
	if work.CanonicalTitle != "Movie One" {
		t.Fatalf("unexpected work: %+v", work)
	}

	if _, err := store.WorkSourceRefs().Get(context.Background(), cand.SourceKey); err != nil {
		t.Fatalf("expected source ref to be committed: %v", err)
	}
}

func TestCommitter_TwoCandidatesSameWorkLinkNotDuplicate(t *testing.T) {
	store := nx.NewMemEntityStore()
	c := NewCommitter(store, ledger.New(store))

	workKey := "movie:shared:2021"
	candA := testCandidate("1", "Shared", workKey)
	candB := testCandidate("2", "Shared", workKey)

	if err := c.commitBatch(context.Background(), []Candidate{candA, candB}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := store.Works().Get(context.Background(), workKey); err != nil {
		t.Fatalf("expected work committed: %v", err)
	}
	if _, err := store.WorkSourceRefs().Get(context.Background(), candA.SourceKey); err != nil {
		t.Fatalf("expected first source ref: %v", err)
	}
	if _, err := store.WorkSourceRefs().Get(context.Background(), candB.SourceKey); err != nil {
		t.Fatalf("expected second source ref: %v", err)
	}
}

func TestCommitter_RunConsumer_DrainsBufferOnClose(t *testing.T) {
	store := nx.NewMemEntityStore()
	c := NewCommitter(store, ledger.New(store))
	buf := NewBuffer[Candidate]("test", 10)

	cand := testCandidate("1", "Movie One", "movie:movie-one:2020")
	_ = buf.Send(context.Background(), cand)
	buf.Close()

	if err := c.RunConsumer(context.Background(), buf, 50); err != nil {
		t.Fatalf("run consumer: %v", err)
	}

	if _, err := store.Works().Get(context.Background(), cand.Normalized.WorkKeyCandidate); err != nil {
		t.Fatalf("expected work committed after consumer drained buffer: %v", err)
	}
}
