// Package enrichment implements the detail enrichment service: on UI
// request for a single Work, fetch richer metadata than ingest discovered
// and upsert it, per spec.md §4.9. Calls that reach a network hop are
// routed through the priority dispatcher at the caller's chosen priority
// (HIGH for a catalog-detail screen, CRITICAL when the field is needed for
// immediate playback, e.g. container extension).
package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/karlokarate/nxcatalog/internal/dispatcher"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/metrics"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/provider"
)

// AuthoritySource resolves detail for a Work's linked external-metadata
// authority entry (e.g. a TMDB id) when no provider DetailSource can serve
// it directly. It is the lowest-fidelity fallback spec.md §4.9 names.
type AuthoritySource interface {
	FetchByAuthority(ctx context.Context, authorityKey string) (provider.DetailRecord, error)
}

// Service enriches Works on demand. The zero value is not usable;
// construct with New.
type Service struct {
	store      nx.EntityStore
	dispatcher *dispatcher.Dispatcher
	detail     map[keycodec.SourceType]provider.DetailSource
	authority  AuthoritySource
}

// New builds a Service. detailSources is indexed by SourceType, so at most
// one DetailSource per provider is consulted; authority may be nil, in
// which case works with no usable provider source ref are left unenriched.
func New(store nx.EntityStore, disp *dispatcher.Dispatcher, detailSources []provider.DetailSource, authority AuthoritySource) *Service {
	detail := make(map[keycodec.SourceType]provider.DetailSource, len(detailSources))
	for _, ds := range detailSources {
		detail[ds.SourceType()] = ds
	}
	return &Service{store: store, dispatcher: disp, detail: detail, authority: authority}
}

// Enrich fetches and merges richer detail into the Work identified by
// workKey. If the Work already has a non-empty Plot, it is returned
// unchanged without consulting any source (fast path) and without
// consuming a dispatcher slot. The canonical title is never overwritten.
func (s *Service) Enrich(ctx context.Context, workKey string, priority dispatcher.Priority) (nx.Work, error) {
	work, err := s.store.Works().Get(ctx, workKey)
	if err != nil {
		return nx.Work{}, fmt.Errorf("enrichment: load work %s: %w", workKey, err)
	}
	if work.Plot != "" {
		return work, nil
	}

	var enriched nx.Work
	runFn := func(ctx context.Context) error {
		var fetchErr error
		enriched, fetchErr = s.fetchAndMerge(ctx, work)
		return fetchErr
	}

	var dispatchErr error
	switch priority {
	case dispatcher.CriticalPlayback:
		dispatchErr = s.withCritical(ctx, runFn)
	default:
		dispatchErr = s.withHigh(ctx, runFn)
	}
	if dispatchErr != nil {
		return nx.Work{}, dispatchErr
	}

	if err := s.store.Works().Upsert(ctx, enriched); err != nil {
		return nx.Work{}, fmt.Errorf("enrichment: upsert work %s: %w", workKey, err)
	}
	return enriched, nil
}

func (s *Service) withCritical(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.dispatcher == nil {
		return fn(ctx)
	}
	return s.dispatcher.WithCritical(ctx, fn)
}

func (s *Service) withHigh(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.dispatcher == nil {
		return fn(ctx)
	}
	return s.dispatcher.WithHigh(ctx, fn)
}

// fetchAndMerge resolves the best available DetailRecord for work and
// returns work with that record merged in. It prefers a provider
// DetailSource over the authority fallback, per spec.md §4.9.
func (s *Service) fetchAndMerge(ctx context.Context, work nx.Work) (nx.Work, error) {
	start := time.Now()

	detail, source, err := s.fetchProviderDetail(ctx, work)
	if err != nil {
		return nx.Work{}, err
	}
	if source == "" && s.authority != nil {
		detail, source, err = s.fetchAuthorityDetail(ctx, work)
		if err != nil {
			return nx.Work{}, err
		}
	}
	if source == "" {
		metrics.RecordEnrichment("none", "skipped", time.Since(start))
		logging.Debug().Str("work_key", work.WorkKey).Msg("enrichment: no source available")
		return work, nil
	}

	metrics.RecordEnrichment(source, "ok", time.Since(start))
	logging.Info().Str("work_key", work.WorkKey).Str("source", source).Msg("enrichment: detail fetched")
	return mergeDetail(work, detail), nil
}

// fetchProviderDetail looks for a WorkSourceRef whose provider has a
// registered DetailSource and fetches detail from it. It returns an empty
// source string, not an error, when no matching source ref exists.
func (s *Service) fetchProviderDetail(ctx context.Context, work nx.Work) (provider.DetailRecord, string, error) {
	refs, err := s.store.WorkSourceRefsByWork(ctx, work.WorkKey)
	if err != nil {
		return provider.DetailRecord{}, "", fmt.Errorf("enrichment: load source refs for %s: %w", work.WorkKey, err)
	}

	for _, ref := range refs {
		ds, ok := s.detail[ref.SourceType]
		if !ok {
			continue
		}
		parsed, err := keycodec.ParseSource(ref.SourceKey)
		if err != nil {
			logging.Warn().Str("source_key", ref.SourceKey).Err(err).Msg("enrichment: malformed source key")
			continue
		}
		record, err := ds.FetchDetail(ctx, ref.AccountKey, parsed.Kind, parsed.ProviderItemID)
		if err != nil {
			metrics.RecordEnrichment(string(ref.SourceType), "error", 0)
			logging.Warn().Str("work_key", work.WorkKey).Str("source_type", string(ref.SourceType)).Err(err).Msg("enrichment: provider detail fetch failed")
			continue
		}
		return record, string(ref.SourceType), nil
	}
	return provider.DetailRecord{}, "", nil
}

// fetchAuthorityDetail is the lowest-fidelity fallback: the first linked
// authority entry, if any.
func (s *Service) fetchAuthorityDetail(ctx context.Context, work nx.Work) (provider.DetailRecord, string, error) {
	if len(work.AuthorityRefs) == 0 {
		return provider.DetailRecord{}, "", nil
	}
	record, err := s.authority.FetchByAuthority(ctx, work.AuthorityRefs[0])
	if err != nil {
		metrics.RecordEnrichment("authority", "error", 0)
		logging.Warn().Str("work_key", work.WorkKey).Str("authority_key", work.AuthorityRefs[0]).Err(err).Msg("enrichment: authority fetch failed")
		return provider.DetailRecord{}, "", nil
	}
	return record, "authority", nil
}

// mergeDetail layers a fetched DetailRecord onto work. Every field is
// filled only when the record supplies a non-zero value, so a
// lower-fidelity source never blanks out data a higher-fidelity source
// already set. CanonicalTitle is untouched: the provider's raw title never
// overwrites it.
func mergeDetail(work nx.Work, detail provider.DetailRecord) nx.Work {
	if detail.Plot != "" {
		work.Plot = detail.Plot
	}
	if detail.Rating != 0 {
		work.Rating = detail.Rating
	}
	if len(detail.Genres) > 0 {
		work.Genres = detail.Genres
	}
	if len(detail.Cast) > 0 {
		work.Cast = detail.Cast
	}
	if detail.Director != "" {
		work.Director = detail.Director
	}
	if detail.Poster != "" {
		work.Poster = detail.Poster
	}
	if detail.Backdrop != "" {
		work.Backdrop = detail.Backdrop
	}
	if detail.Trailer != "" {
		work.Trailer = detail.Trailer
	}
	if detail.DurationMs != 0 {
		ms := detail.DurationMs
		work.DurationMs = &ms
	}
	work.UpdatedAtMs = time.Now().UnixMilli()
	return work
}
