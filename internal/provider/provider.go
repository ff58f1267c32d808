// Package provider defines the capability interfaces that let the ingest
// pipeline and sync service operate over either upstream source without
// depending on a concrete provider, per spec.md §4.6 and the REDESIGN
// FLAGS' "polymorphism over capabilities" guidance.
package provider

import (
	"context"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// ScanEventKind tags a ScanEvent's payload, mirroring spec.md §4.6's cold
// event stream: ScanStarted, ItemDiscovered, ScanProgress, ScanCompleted,
// ScanError.
type ScanEventKind int

const (
	ScanStarted ScanEventKind = iota
	ItemDiscovered
	ScanProgress
	ScanCompleted
	ScanError
)

// ScanCounts tracks per-phase totals for progress reporting and final
// summaries.
type ScanCounts struct {
	Discovered int
	Accepted   int
	Rejected   int
	Skipped    int
}

// ScanEvent is one element of a CatalogSource scan stream. Only the
// fields relevant to Kind are populated.
type ScanEvent struct {
	Kind     ScanEventKind
	Item     normalize.RawRecord
	Progress ScanCounts
	Totals   ScanCounts
	Err      error
}

// Phase identifies which of §4.6's four scan phases a scan call covers.
type Phase string

const (
	PhaseLive     Phase = "live"
	PhaseVOD      Phase = "vod"
	PhaseSeries   Phase = "series"
	PhaseEpisodes Phase = "episodes"
)

// CatalogSource scans one provider's catalog for one account, emitting a
// cold, cancellable stream of ScanEvents. sinceMs is the incremental
// cutoff from the decider (§4.4); callers pass 0 for a full scan.
type CatalogSource interface {
	SourceType() keycodec.SourceType
	ListCategories(ctx context.Context, accountKey string) ([]nx.Category, error)
	Scan(ctx context.Context, accountKey string, phase Phase, sinceMs int64) (<-chan ScanEvent, error)
}

// SeriesEpisodeSource is an optional capability: providers whose episode
// listing requires a parent series identifier implement this in addition
// to CatalogSource.
type SeriesEpisodeSource interface {
	ScanEpisodesForSeries(ctx context.Context, accountKey, seriesProviderItemID string, sinceMs int64) (<-chan ScanEvent, error)
}

// DetailRecord is the enrichment payload a DetailSource returns for a
// single provider item, per spec.md §4.9.
type DetailRecord struct {
	Plot         string
	Rating       float64
	Genres       []string
	Cast         []string
	Director     string
	Poster       string
	Backdrop     string
	Trailer      string
	ContainerExt string
	DurationMs   int64
}

// DetailSource fetches high-fidelity detail for a single provider item on
// demand, used by the detail enrichment service (§4.9). Calls must be
// routed through the priority dispatcher by the caller; DetailSource
// itself performs no prioritization.
type DetailSource interface {
	SourceType() keycodec.SourceType
	FetchDetail(ctx context.Context, accountKey string, kind keycodec.SourceKind, providerItemID string) (DetailRecord, error)
}

// UrlBuilder constructs the opaque stream URI handed off to the external
// player for a given source item, per spec.md §6's two preserved URL
// shapes.
type UrlBuilder interface {
	BuildPlaybackURL(accountKey string, kind keycodec.SourceKind, providerItemID, container string) (string, error)
}
