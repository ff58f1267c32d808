package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/karlokarate/nxcatalog/internal/dispatcher"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/provider"
)

type fakeDetailSource struct {
	sourceType keycodec.SourceType
	record     provider.DetailRecord
	err        error
	calls      int
}

func (f *fakeDetailSource) SourceType() keycodec.SourceType { return f.sourceType }

func (f *fakeDetailSource) FetchDetail(ctx context.Context, accountKey string, kind keycodec.SourceKind, providerItemID string) (provider.DetailRecord, error) {
	f.calls++
	return f.record, f.err
}

type fakeAuthoritySource struct {
	record provider.DetailRecord
	err    error
	calls  int
}

func (f *fakeAuthoritySource) FetchByAuthority(ctx context.Context, authorityKey string) (provider.DetailRecord, error) {
	f.calls++
	return f.record, f.err
}

func newSourceRef(t *testing.T, workKey string, sourceType keycodec.SourceType, accountKey string, kind keycodec.SourceKind, providerItemID string) nx.WorkSourceRef {
	t.Helper()
	sourceKey, err := keycodec.FormatSource(sourceType, accountKey, kind, providerItemID)
	if err != nil {
		t.Fatalf("format source key: %v", err)
	}
	return nx.WorkSourceRef{SourceKey: sourceKey, WorkKey: workKey, SourceType: sourceType, AccountKey: accountKey, ProviderItemID: providerItemID}
}

func TestEnrich_FastPathReturnsUnchangedWhenPlotAlreadySet(t *testing.T) {
	store := nx.NewMemEntityStore()
	ctx := context.Background()
	if err := store.Works().Upsert(ctx, nx.Work{WorkKey: "movie:x:2020", Plot: "already known"}); err != nil {
		t.Fatalf("upsert work: %v", err)
	}

	xtream := &fakeDetailSource{sourceType: keycodec.SourceXtream}
	svc := New(store, dispatcher.New(), []provider.DetailSource{xtream}, nil)

	work, err := svc.Enrich(ctx, "movie:x:2020", dispatcher.HighUserAction)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if work.Plot != "already known" {
		t.Fatalf("expected plot to remain unchanged, got %q", work.Plot)
	}
	if xtream.calls != 0 {
		t.Fatal("expected the fast path to skip the provider detail source entirely")
	}
}

func TestEnrich_PrefersProviderDetailOverAuthority(t *testing.T) {
	store := nx.NewMemEntityStore()
	ctx := context.Background()
	if err := store.Works().Upsert(ctx, nx.Work{WorkKey: "movie:x:2020", CanonicalTitle: "X", AuthorityRefs: []string{"tmdb:movie:603"}}); err != nil {
		t.Fatalf("upsert work: %v", err)
	}
	ref := newSourceRef(t, "movie:x:2020", keycodec.SourceXtream, "acct1", keycodec.KindVod, "42")
	if err := store.WorkSourceRefs().Upsert(ctx, ref); err != nil {
		t.Fatalf("upsert source ref: %v", err)
	}

	xtream := &fakeDetailSource{sourceType: keycodec.SourceXtream, record: provider.DetailRecord{Plot: "from xtream"}}
	authority := &fakeAuthoritySource{record: provider.DetailRecord{Plot: "from authority"}}
	svc := New(store, dispatcher.New(), []provider.DetailSource{xtream}, authority)

	work, err := svc.Enrich(ctx, "movie:x:2020", dispatcher.HighUserAction)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if work.Plot != "from xtream" {
		t.Fatalf("expected provider detail to win, got %q", work.Plot)
	}
	if work.CanonicalTitle != "X" {
		t.Fatalf("expected canonical title to be preserved, got %q", work.CanonicalTitle)
	}
	if authority.calls != 0 {
		t.Fatal("expected the authority fallback to be skipped when a provider source ref exists")
	}

	stored, err := store.Works().Get(ctx, "movie:x:2020")
	if err != nil {
		t.Fatalf("get work: %v", err)
	}
	if stored.Plot != "from xtream" {
		t.Fatalf("expected the enriched work to be persisted, got %q", stored.Plot)
	}
}

func TestEnrich_FallsBackToAuthorityWhenNoProviderSourceRef(t *testing.T) {
	store := nx.NewMemEntityStore()
	ctx := context.Background()
	if err := store.Works().Upsert(ctx, nx.Work{WorkKey: "movie:y:2021", AuthorityRefs: []string{"tmdb:movie:1"}}); err != nil {
		t.Fatalf("upsert work: %v", err)
	}

	authority := &fakeAuthoritySource{record: provider.DetailRecord{Plot: "from authority"}}
	svc := New(store, dispatcher.New(), nil, authority)

	work, err := svc.Enrich(ctx, "movie:y:2021", dispatcher.HighUserAction)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if work.Plot != "from authority" {
		t.Fatalf("expected authority fallback to supply plot, got %q", work.Plot)
	}
	if authority.calls != 1 {
		t.Fatalf("expected exactly one authority fetch, got %d", authority.calls)
	}
}

func TestEnrich_NoSourceLeavesWorkUnenriched(t *testing.T) {
	store := nx.NewMemEntityStore()
	ctx := context.Background()
	if err := store.Works().Upsert(ctx, nx.Work{WorkKey: "movie:z:2022"}); err != nil {
		t.Fatalf("upsert work: %v", err)
	}

	svc := New(store, dispatcher.New(), nil, nil)

	work, err := svc.Enrich(ctx, "movie:z:2022", dispatcher.HighUserAction)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if work.Plot != "" {
		t.Fatalf("expected no plot without any source, got %q", work.Plot)
	}
}

func TestEnrich_CriticalPriorityUsesDispatcherCriticalSlot(t *testing.T) {
	store := nx.NewMemEntityStore()
	ctx := context.Background()
	if err := store.Works().Upsert(ctx, nx.Work{WorkKey: "movie:w:2023"}); err != nil {
		t.Fatalf("upsert work: %v", err)
	}
	ref := newSourceRef(t, "movie:w:2023", keycodec.SourceXtream, "acct1", keycodec.KindVod, "7")
	if err := store.WorkSourceRefs().Upsert(ctx, ref); err != nil {
		t.Fatalf("upsert source ref: %v", err)
	}

	xtream := &fakeDetailSource{sourceType: keycodec.SourceXtream, record: provider.DetailRecord{ContainerExt: "mp4"}}
	disp := dispatcher.New()
	svc := New(store, disp, []provider.DetailSource{xtream}, nil)

	if _, err := svc.Enrich(ctx, "movie:w:2023", dispatcher.CriticalPlayback); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if disp.ShouldYield() {
		t.Fatal("expected the critical slot to be released once Enrich returns")
	}
}

func TestEnrich_ProviderErrorFallsThroughToAuthority(t *testing.T) {
	store := nx.NewMemEntityStore()
	ctx := context.Background()
	if err := store.Works().Upsert(ctx, nx.Work{WorkKey: "movie:v:2024", AuthorityRefs: []string{"tmdb:movie:99"}}); err != nil {
		t.Fatalf("upsert work: %v", err)
	}
	ref := newSourceRef(t, "movie:v:2024", keycodec.SourceXtream, "acct1", keycodec.KindVod, "9")
	if err := store.WorkSourceRefs().Upsert(ctx, ref); err != nil {
		t.Fatalf("upsert source ref: %v", err)
	}

	xtream := &fakeDetailSource{sourceType: keycodec.SourceXtream, err: errors.New("upstream unavailable")}
	authority := &fakeAuthoritySource{record: provider.DetailRecord{Plot: "rescued by authority"}}
	svc := New(store, dispatcher.New(), []provider.DetailSource{xtream}, authority)

	work, err := svc.Enrich(ctx, "movie:v:2024", dispatcher.HighUserAction)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if work.Plot != "rescued by authority" {
		t.Fatalf("expected authority fallback after provider error, got %q", work.Plot)
	}
}
