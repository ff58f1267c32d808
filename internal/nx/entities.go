package nx

import (
	"strconv"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
)

// Entity is implemented by every persisted record kind in the store. Each
// entity knows its own unique key, as defined by the key formats owned by
// keycodec or, for entities without a formatted string key, a deterministic
// composite built from their natural identity fields.
type Entity interface {
	EntityKey() string
}

// Work is the UI source of truth for a single canonical title: a movie,
// series, episode, or live channel. It is created by the normalizer on
// first ACCEPTED ingest and never deleted; superseded works are redirected
// via WorkRedirect instead.
type Work struct {
	WorkKey             string
	WorkType            keycodec.WorkType
	CanonicalTitle      string
	CanonicalTitleLower string
	Year                int
	Season              *int
	Episode             *int
	DurationMs          *int64
	Plot                string
	Rating              float64
	Genres              []string
	Cast                []string
	Director            string
	Poster              string
	Backdrop            string
	Trailer             string
	AuthorityRefs       []string // authorityKey values this Work is linked to
	IsAdult             bool
	NeedsReview         bool
	UpdatedAtMs         int64
}

func (w Work) EntityKey() string { return w.WorkKey }

// WorkSourceRef binds one upstream provider item to the Work it was
// ingested into. A Work is not UI-visible until it has at least one
// SourceRef (INV-10).
type WorkSourceRef struct {
	SourceKey      string
	WorkKey        string
	SourceType     keycodec.SourceType
	AccountKey     string
	ProviderItemID string
	RawTitle       string
	ContainerHint  string
	EpgChannelID   string
	HasCatchup     bool
	CategoryID     string
	UpdatedAtMs    int64
}

func (r WorkSourceRef) EntityKey() string { return r.SourceKey }

// WorkVariant is one playable rendition of a SourceRef (a quality/language
// pair with the hints needed to build a playback URL). A Work is not
// UI-visible until it has at least one Variant (INV-11).
type WorkVariant struct {
	VariantKey  string
	SourceKey   string
	Method      string // direct, hls, mpd, ...
	URLPattern  string
	Container   string
	Codec       string
	BitrateKbps int
	Language    string
	Quality     string
	UpdatedAtMs int64
}

func (v WorkVariant) EntityKey() string { return v.VariantKey }

// RelationKind enumerates the WorkRelation kinds.
type RelationKind string

const (
	RelationSeriesEpisode RelationKind = "series_episode"
	RelationNext          RelationKind = "next"
	RelationPrev          RelationKind = "prev"
	RelationRelated       RelationKind = "related"
)

// WorkRelation links two works, most commonly a series to one of its
// episodes. Season/episode are duplicated here from the child Work for
// query efficiency and must be kept in sync with it.
type WorkRelation struct {
	ParentWorkKey string
	ChildWorkKey  string
	Kind          RelationKind
	Season        *int
	Episode       *int
	SortOrder     int
}

func (r WorkRelation) EntityKey() string { return r.ParentWorkKey + "->" + r.ChildWorkKey }

// WorkUserState is per-profile, per-work playback and preference state. It
// is keyed by workKey rather than sourceKey so that resume position and
// favorite status survive source churn. ResumePercent is the source of
// truth for cross-source resume (scenario 6 in the testable-properties
// catalog); TotalDurationMs is a denormalized convenience copy of
// Work.DurationMs kept for fast "continue watching" queries and must be
// kept in sync whenever Work.DurationMs changes.
type WorkUserState struct {
	ProfileKey       string
	WorkKey          string
	ResumePositionMs int64
	ResumePercent    float64
	TotalDurationMs  int64
	IsFavorite       bool
	IsWatched        bool
	WatchCount       int
	UserRating       int // 1..5, 0 = unrated
	LastVariantKey   string
	LastWatchedAtMs  int64
}

func (s WorkUserState) EntityKey() string { return s.ProfileKey + "|" + s.WorkKey }

// WorkRuntimeState is transient, evictable availability tracking for a
// Work — whether its sources currently resolve, and the last probe
// outcome. It carries no history and may be dropped and recomputed freely.
type WorkRuntimeState struct {
	WorkKey      string
	Availability string
	LastErrorCode string
	LastProbeAtMs int64
}

func (s WorkRuntimeState) EntityKey() string { return s.WorkKey }

// IngestDecision is the outcome recorded for an ingest candidate.
type IngestDecision string

const (
	DecisionAccepted IngestDecision = "ACCEPTED"
	DecisionRejected IngestDecision = "REJECTED"
	DecisionSkipped  IngestDecision = "SKIPPED"
)

// Ledger reason codes (spec §4.3 minimum set).
const (
	ReasonAcceptedNewWork         = "ACCEPTED_NEW_WORK"
	ReasonAcceptedLinkedExisting  = "ACCEPTED_LINKED_EXISTING"
	ReasonRejectedTooShort        = "REJECTED_TOO_SHORT"
	ReasonRejectedInvalidID       = "REJECTED_INVALID_ID"
	ReasonRejectedBlockedByRule   = "REJECTED_BLOCKED_BY_RULE"
	ReasonSkippedUnchangedFingerprint = "SKIPPED_UNCHANGED_FINGERPRINT"
	ReasonSkippedRateLimited      = "SKIPPED_RATE_LIMITED"
	ReasonSkippedCancelled        = "SKIPPED_CANCELLED"
)

// IngestLedger is an append-only record of every ingest decision. Exactly
// one ledger entry is written per ingest candidate (INV-01); ACCEPTED
// entries always carry a non-null ResolvedWorkKey (INV-02).
type IngestLedger struct {
	ID              string
	SourceKey       string
	Decision        IngestDecision
	ReasonCode      string
	Detail          string
	ResolvedWorkKey string
	IngestedAtMs    int64
}

func (l IngestLedger) EntityKey() string { return l.ID }

// ProfileKind enumerates the Profile kinds.
type ProfileKind string

const (
	ProfileOwner ProfileKind = "owner"
	ProfileGuest ProfileKind = "guest"
	ProfileKid   ProfileKind = "kid"
)

// Profile is one viewer identity within an installation.
type Profile struct {
	ProfileKey  string
	Kind        ProfileKind
	DisplayName string
}

func (p Profile) EntityKey() string { return p.ProfileKey }

// ProfileRule is a per-profile content policy, enforced by the rules
// engine before a Work is surfaced or played for that profile.
type ProfileRule struct {
	ProfileKey      string
	RuleKind        string
	AllowList       []string
	DenyList        []string
	RatingCap       string
	CategoryFilters []string
}

func (r ProfileRule) EntityKey() string { return r.ProfileKey + "|" + r.RuleKind }

// ProfileUsage is a daily rollup of a profile's watch activity.
type ProfileUsage struct {
	ProfileKey       string
	EpochDay         int
	WatchTimeMs      int64
	ItemsWatched     int
	LastActivityAtMs int64
}

func (u ProfileUsage) EntityKey() string { return fmtProfileUsageKey(u.ProfileKey, u.EpochDay) }

// SourceAccount is one configured upstream account (a provider endpoint
// plus its credential handle and capability set).
type SourceAccount struct {
	AccountKey        string
	ProviderType      keycodec.SourceType
	Endpoint          string
	CredentialsHandle string
	Capabilities      []string
}

func (a SourceAccount) EntityKey() string { return a.AccountKey }

// Category is a provider-side content grouping. IsSelected drives scoped
// sync: only selected categories are included in a catalog sync phase.
type Category struct {
	AccountKey       string
	SourceType       keycodec.SourceType
	SourceCategoryID string
	DisplayName      string
	ParentID         string
	SortOrder        int
	IsSelected       bool
}

// CategoryKey is Category's composite key, also used as the right-hand
// side of WorkCategoryRef.
func (c Category) CategoryKey() string {
	return string(c.SourceType) + ":" + c.AccountKey + ":" + c.SourceCategoryID
}

func (c Category) EntityKey() string { return c.CategoryKey() }

// WorkCategoryRef is a many-to-many link between a Work and a Category.
type WorkCategoryRef struct {
	WorkKey     string
	CategoryKey string
}

func (r WorkCategoryRef) EntityKey() string { return r.WorkKey + "|" + r.CategoryKey }

// WorkEmbedding holds a similarity-search vector for a Work, produced by a
// named model/version pair. Kept separate from Work so that embedding
// refreshes never churn the Work's own change stream.
type WorkEmbedding struct {
	WorkKey     string
	Model       string
	Version     string
	Vector      []byte
	UpdatedAtMs int64
}

func (e WorkEmbedding) EntityKey() string { return e.WorkKey + "|" + e.Model + "|" + e.Version }

// WorkRedirect records a canonical merge: ObsoleteWorkKey no longer holds
// a live Work and should be transitively resolved (cap 10 hops, see
// keycodec.ResolveThroughRedirects) to TargetWorkKey.
type WorkRedirect struct {
	ObsoleteWorkKey string
	TargetWorkKey   string
	CreatedAtMs     int64
}

func (r WorkRedirect) EntityKey() string { return r.ObsoleteWorkKey }

// CloudOutboxEvent is a queued event awaiting delivery to an external
// change-stream transport.
type CloudOutboxEvent struct {
	ID          string
	Payload     []byte
	Kind        string
	CreatedAtMs int64
	Attempts    int
}

func (e CloudOutboxEvent) EntityKey() string { return e.ID }

// CatalogModePath distinguishes the kill-switch gate's two independent
// toggles.
type CatalogModePath string

const (
	CatalogModePathRead  CatalogModePath = "read"
	CatalogModePathWrite CatalogModePath = "write"
)

// CatalogMode enumerates the kill-switch gate's three backend states.
type CatalogMode string

const (
	CatalogModeLegacy CatalogMode = "LEGACY"
	CatalogModeDual   CatalogMode = "DUAL"
	CatalogModeNew    CatalogMode = "NEW"
)

// CatalogModeState is the kill-switch gate's persisted mode for one path
// (read or write), so a restart resumes the last mode a rollback or an
// operator toggle left it in rather than falling back to config defaults.
type CatalogModeState struct {
	Path        CatalogModePath
	Mode        CatalogMode
	UpdatedAtMs int64
}

func (s CatalogModeState) EntityKey() string { return string(s.Path) }

func fmtProfileUsageKey(profileKey string, epochDay int) string {
	return profileKey + "|" + strconv.Itoa(epochDay)
}
