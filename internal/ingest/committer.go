package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/ledger"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// DefaultBatchSize and LowRAMBatchSize are the two consumer batch-size
// profiles: 200 candidates per batch by default, 50 under memory
// pressure.
const (
	DefaultBatchSize = 200
	LowRAMBatchSize  = 50
)

// Committer turns accepted Candidates into Work/WorkSourceRef/WorkVariant
// upserts. A Work is not created unless the commit also produces at least
// one SourceRef and one Variant for it in the same batch (INV-10, INV-11).
type Committer struct {
	store  nx.EntityStore
	ledger *ledger.Writer
}

// NewCommitter builds a Committer over store, writing ACCEPTED ledger
// entries through ledgerWriter.
func NewCommitter(store nx.EntityStore, ledgerWriter *ledger.Writer) *Committer {
	return &Committer{store: store, ledger: ledgerWriter}
}

// RunConsumer drains buf in batches of up to batchSize, committing each
// batch atomically, until buf reports closed-and-drained or ctx is
// cancelled. It is safe to run several RunConsumer calls over the same buf
// concurrently.
func (c *Committer) RunConsumer(ctx context.Context, buf *Buffer[Candidate], batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	batch := make([]Candidate, 0, batchSize)
	for {
		item, ok, err := buf.Receive(ctx)
		if err != nil {
			return fmt.Errorf("ingest: consumer receive: %w", err)
		}
		if !ok {
			return c.commitBatch(ctx, batch)
		}

		batch = append(batch, item)
		if len(batch) >= batchSize {
			if err := c.commitBatch(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
}

func (c *Committer) commitBatch(ctx context.Context, batch []Candidate) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	works := make(map[string]nx.Work, len(batch))
	var sourceRefs []nx.WorkSourceRef
	var variants []nx.WorkVariant

	for _, cand := range batch {
		workKey := cand.Normalized.WorkKeyCandidate

		existing, err := c.store.Works().Get(ctx, workKey)
		isNew := err == nx.ErrNotFound
		if err != nil && !isNew {
			return fmt.Errorf("ingest: lookup work %s: %w", workKey, err)
		}

		work, ok := works[workKey]
		switch {
		case ok:
			// already staged earlier in this batch
		case isNew:
			work = newWork(workKey, cand)
		default:
			work = existing
		}
		work.UpdatedAtMs = now
		works[workKey] = work

		sourceRefs = append(sourceRefs, nx.WorkSourceRef{
			SourceKey:      cand.SourceKey,
			WorkKey:        workKey,
			SourceType:     cand.SourceType,
			AccountKey:     cand.AccountKey,
			ProviderItemID: cand.Raw.SourceID,
			RawTitle:       cand.Raw.OriginalTitle,
			UpdatedAtMs:    now,
		})

		variant, err := buildVariant(cand, now)
		if err != nil {
			return fmt.Errorf("ingest: build variant for %s: %w", cand.SourceKey, err)
		}
		variants = append(variants, variant)

		reason := nx.ReasonAcceptedNewWork
		if !isNew {
			reason = nx.ReasonAcceptedLinkedExisting
		}
		if err := c.ledger.Accept(ctx, cand.SourceKey, reason, "", workKey); err != nil {
			return fmt.Errorf("ingest: ledger accept %s: %w", cand.SourceKey, err)
		}
	}

	workList := make([]nx.Work, 0, len(works))
	for _, w := range works {
		workList = append(workList, w)
	}

	if err := c.store.Works().UpsertBatch(ctx, workList); err != nil {
		return fmt.Errorf("ingest: commit works: %w", err)
	}
	if err := c.store.WorkSourceRefs().UpsertBatch(ctx, sourceRefs); err != nil {
		return fmt.Errorf("ingest: commit source refs: %w", err)
	}
	if err := c.store.WorkVariants().UpsertBatch(ctx, variants); err != nil {
		return fmt.Errorf("ingest: commit variants: %w", err)
	}
	return nil
}

func newWork(workKey string, cand Candidate) nx.Work {
	work := nx.Work{
		WorkKey:        workKey,
		CanonicalTitle: cand.Normalized.CanonicalTitle,
		Year:           cand.Raw.Year,
	}

	switch cand.Raw.MediaKind {
	case keycodec.KindVod:
		work.WorkType = keycodec.WorkMovie
	case keycodec.KindSeries:
		work.WorkType = keycodec.WorkSeries
	case keycodec.KindEpisode:
		work.WorkType = keycodec.WorkEpisode
		season, episode := cand.Normalized.Season, cand.Normalized.Episode
		work.Season = &season
		work.Episode = &episode
	case keycodec.KindLive:
		work.WorkType = keycodec.WorkLive
	}

	if cand.Raw.DurationMs > 0 {
		duration := cand.Raw.DurationMs
		work.DurationMs = &duration
	}
	return work
}

func buildVariant(cand Candidate, now int64) (nx.WorkVariant, error) {
	quality := cand.Raw.PlaybackHints["quality"]
	language := cand.Raw.PlaybackHints["language"]

	variantKey, err := keycodec.FormatVariant(cand.SourceKey, quality, language)
	if err != nil {
		return nx.WorkVariant{}, err
	}

	return nx.WorkVariant{
		VariantKey:  variantKey,
		SourceKey:   cand.SourceKey,
		Method:      cand.Raw.PlaybackHints["method"],
		Container:   cand.Raw.PlaybackHints["container"],
		Codec:       cand.Raw.PlaybackHints["codec"],
		Language:    language,
		Quality:     quality,
		UpdatedAtMs: now,
	}, nil
}
