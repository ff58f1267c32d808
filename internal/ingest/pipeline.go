package ingest

import (
	"context"
	"fmt"

	"github.com/karlokarate/nxcatalog/internal/dispatcher"
	"github.com/karlokarate/nxcatalog/internal/fingerprint"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/ledger"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/provider"
)

// RuleEngine is consulted once per candidate, before it is committed, so a
// profile-level content policy can block an item at ingest time rather
// than only at read/play time. Implementations must be safe to call
// concurrently. A nil RuleEngine allows everything.
type RuleEngine interface {
	AllowedAtIngest(ctx context.Context, accountKey string, candidate normalize.RawRecord) (allowed bool, reasonDetail string, err error)
}

// MinTitleLength is the shortest OriginalTitle the pipeline will accept;
// shorter titles are almost always scan artifacts rather than real items.
const MinTitleLength = 2

// Pipeline runs one provider scan for one account/phase, applying the
// tier-4 fingerprint filter and normalization to each discovered item and
// pushing survivors onto a Buffer for parallel consumers to commit. The
// tier-3 timestamp filter lives in the provider's own Scan implementation,
// since only the provider knows each item's addedAt field before it is
// normalized.
type Pipeline struct {
	source      provider.CatalogSource
	normalizer  *normalize.Normalizer
	resolver    normalize.AuthorityResolver
	fingerprint *fingerprint.Store
	ledger      *ledger.Writer
	rules       RuleEngine
	dispatcher  *dispatcher.Dispatcher
}

// NewPipeline builds a Pipeline. resolver, rules, and dispatcher may all be
// nil: a nil resolver falls back to the title+year+kind slug rule, a nil
// rules engine allows everything, and a nil dispatcher never yields.
func NewPipeline(
	source provider.CatalogSource,
	normalizer *normalize.Normalizer,
	resolver normalize.AuthorityResolver,
	fingerprintStore *fingerprint.Store,
	ledgerWriter *ledger.Writer,
	rules RuleEngine,
	disp *dispatcher.Dispatcher,
) *Pipeline {
	return &Pipeline{
		source:      source,
		normalizer:  normalizer,
		resolver:    resolver,
		fingerprint: fingerprintStore,
		ledger:      ledgerWriter,
		rules:       rules,
		dispatcher:  disp,
	}
}

// RunResult summarizes one Run call's outcome.
type RunResult struct {
	Totals    provider.ScanCounts
	Cancelled bool
}

// Run scans accountKey's phase starting from sinceMs, filters and
// normalizes each item, and sends survivors to out. It closes out when the
// scan completes, errors, or ctx is cancelled. Between any two items it
// checks the dispatcher so foreground (CRITICAL/HIGH) work is never
// starved by a long background scan.
func (p *Pipeline) Run(ctx context.Context, accountKey string, phase provider.Phase, sinceMs, generation int64, out *Buffer[Candidate]) (RunResult, error) {
	defer out.Close()

	events, err := p.source.Scan(ctx, accountKey, phase, sinceMs)
	if err != nil {
		return RunResult{}, fmt.Errorf("ingest: start scan for %s/%s: %w", accountKey, phase, err)
	}

	var totals provider.ScanCounts
	for {
		select {
		case <-ctx.Done():
			return RunResult{Totals: totals, Cancelled: true}, ctx.Err()
		case ev, open := <-events:
			if !open {
				return RunResult{Totals: totals}, nil
			}

			switch ev.Kind {
			case provider.ScanCompleted:
				totals = ev.Totals
			case provider.ScanError:
				return RunResult{Totals: totals}, fmt.Errorf("ingest: scan error for %s/%s: %w", accountKey, phase, ev.Err)
			case provider.ItemDiscovered:
				if err := p.handleItem(ctx, accountKey, ev.Item, generation, out); err != nil {
					return RunResult{Totals: totals}, err
				}
			}
		}

		if p.dispatcher != nil && p.dispatcher.ShouldYield() {
			if err := p.dispatcher.AwaitLowPriorityClear(ctx); err != nil {
				return RunResult{Totals: totals, Cancelled: true}, err
			}
		}
	}
}

func (p *Pipeline) handleItem(ctx context.Context, accountKey string, raw normalize.RawRecord, generation int64, out *Buffer[Candidate]) error {
	sourceKey, err := keycodec.FormatSource(raw.SourceType, raw.AccountKey, raw.MediaKind, raw.SourceID)
	if err != nil {
		return p.ledgerOrErr(p.ledger.Reject(ctx, fmt.Sprintf("%s:%s:%s", raw.SourceType, accountKey, raw.SourceID), nx.ReasonRejectedInvalidID, err.Error()))
	}

	if len(raw.OriginalTitle) < MinTitleLength {
		return p.ledgerOrErr(p.ledger.Reject(ctx, sourceKey, nx.ReasonRejectedTooShort, "title shorter than minimum"))
	}

	if p.rules != nil {
		allowed, detail, err := p.rules.AllowedAtIngest(ctx, accountKey, raw)
		if err != nil {
			return fmt.Errorf("ingest: rule check for %s: %w", sourceKey, err)
		}
		if !allowed {
			return p.ledgerOrErr(p.ledger.Reject(ctx, sourceKey, nx.ReasonRejectedBlockedByRule, detail))
		}
	}

	unchanged, err := p.fingerprint.CheckAndAdvance(ctx, raw.SourceType, accountKey, raw.MediaKind, raw.SourceID, fingerprintFields(raw), generation)
	if err != nil {
		return fmt.Errorf("ingest: fingerprint check for %s: %w", sourceKey, err)
	}
	if unchanged {
		return p.ledgerOrErr(p.ledger.Skip(ctx, sourceKey, nx.ReasonSkippedUnchangedFingerprint, ""))
	}

	normalized, err := p.normalizer.Normalize(ctx, raw, p.resolver)
	if err != nil {
		return fmt.Errorf("ingest: normalize %s: %w", sourceKey, err)
	}

	candidate := Candidate{
		Raw:        raw,
		Normalized: normalized,
		SourceKey:  sourceKey,
		AccountKey: accountKey,
		SourceType: raw.SourceType,
	}

	return out.Send(ctx, candidate)
}

func fingerprintFields(raw normalize.RawRecord) fingerprint.Fields {
	var authorityIDs []string
	for _, id := range []string{raw.ExternalIDs.TMDB, raw.ExternalIDs.IMDB, raw.ExternalIDs.TVDB} {
		if id != "" {
			authorityIDs = append(authorityIDs, id)
		}
	}
	return fingerprint.Fields{
		OriginalTitle: raw.OriginalTitle,
		Year:          raw.Year,
		Season:        raw.Season,
		Episode:       raw.Episode,
		DurationMs:    raw.DurationMs,
		AuthorityIDs:  authorityIDs,
	}
}

// ledgerOrErr turns a ledger-write failure into a pipeline error while
// treating a successful ledger write as "handled, keep scanning."
func (p *Pipeline) ledgerOrErr(err error) error {
	if err != nil {
		return fmt.Errorf("ingest: write ledger entry: %w", err)
	}
	return nil
}
