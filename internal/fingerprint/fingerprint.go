// Package fingerprint computes and stores per-item identity fingerprints,
// letting the ingest pipeline skip items whose identity-shaping fields
// have not changed since the last sync (spec.md §4.3, tier-4 filter).
package fingerprint

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/karlokarate/nxcatalog/internal/cache"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/kvstore"
)

// Fields are the identity-shaping fields that make up a fingerprint, in
// the fixed order spec.md §4.3 requires: original title, year, season,
// episode, duration, poster hash, authority ids.
type Fields struct {
	OriginalTitle string
	Year          int
	Season        int
	Episode       int
	DurationMs    int64
	PosterHash    string
	AuthorityIDs  []string
}

// Compute returns the stable 32-bit hash of f. Any hash function meeting
// the "stable 32-bit over the named `|`-joined fields" contract is
// acceptable per spec.md §9; FNV-1a is used here since it's already the
// teacher's choice for short-string hashing duty (see
// internal/cache/bloom.go's hash functions) and needs no external dependency.
func Compute(f Fields) uint32 {
	joined := strings.Join([]string{
		f.OriginalTitle,
		strconv.Itoa(f.Year),
		strconv.Itoa(f.Season),
		strconv.Itoa(f.Episode),
		strconv.FormatInt(f.DurationMs, 10),
		f.PosterHash,
		strings.Join(f.AuthorityIDs, ","),
	}, "|")

	h := fnv.New32a()
	_, _ = h.Write([]byte(joined))
	return h.Sum32()
}

// Entry is the persisted fingerprint record for one provider item.
type Entry struct {
	Fingerprint    uint32 `json:"fingerprint"`
	SyncGeneration int64  `json:"syncGeneration"`
	UpdatedAtMs    int64  `json:"updatedAtMs"`
}

// Store maps (sourceType, accountKey, contentType, providerItemId) to the
// last-seen fingerprint, backed by Badger via internal/kvstore, fronted by
// an exact-match dedup cache to skip the KV round-trip for items re-seen
// within the same process lifetime.
//
// The dedup-cache choice (ExactLRU over BloomLRU) is an explicit Open
// Question decision: see DESIGN.md, favoring zero false positives over a
// smaller memory footprint, since a false-positive "unchanged" verdict
// here means silently dropping a real update.
type Store struct {
	kv    *kvstore.Store
	dedup *cache.ExactLRU
}

// New builds a fingerprint store. dedup may be nil to disable the
// in-process cache and always consult Badger directly.
func New(kv *kvstore.Store, dedup *cache.ExactLRU) *Store {
	return &Store{kv: kv, dedup: dedup}
}

func nowMs() int64 { return time.Now().UnixMilli() }

func storeKey(sourceType keycodec.SourceType, accountKey string, contentType keycodec.SourceKind, providerItemID string) string {
	return fmt.Sprintf("fp:%s:%s:%s:%s", sourceType, accountKey, contentType, providerItemID)
}

// CheckAndAdvance computes the fingerprint for fields, compares it to the
// stored value, and persists the (possibly unchanged) result tagged with
// generation. It returns true when the item is unchanged since the last
// sync (the caller should record SKIPPED_UNCHANGED_FINGERPRINT and stop).
func (s *Store) CheckAndAdvance(ctx context.Context, sourceType keycodec.SourceType, accountKey string, contentType keycodec.SourceKind, providerItemID string, fields Fields, generation int64) (unchanged bool, err error) {
	fp := Compute(fields)
	key := storeKey(sourceType, accountKey, contentType, providerItemID)
	dedupKey := fmt.Sprintf("%s|%d|%d", key, fp, generation)

	if s.dedup != nil && s.dedup.IsDuplicate(dedupKey) {
		return true, nil
	}

	var existing Entry
	getErr := s.kv.Get(ctx, key, &existing)
	unchanged = getErr == nil && existing.Fingerprint == fp

	entry := Entry{Fingerprint: fp, SyncGeneration: generation, UpdatedAtMs: nowMs()}
	if err := s.kv.Put(ctx, key, entry); err != nil {
		return false, fmt.Errorf("fingerprint: advance %q: %w", key, err)
	}

	return unchanged, nil
}

// Sweep deletes every fingerprint entry for (sourceType, accountKey,
// contentType) whose SyncGeneration is older than currentGeneration —
// items that were not observed in the most recent full sync and are
// therefore obsolete. Returns the number of entries removed.
func (s *Store) Sweep(ctx context.Context, sourceType keycodec.SourceType, accountKey string, contentType keycodec.SourceKind, currentGeneration int64) (int, error) {
	prefix := fmt.Sprintf("fp:%s:%s:%s:", sourceType, accountKey, contentType)

	var stale []string
	err := s.kv.PrefixScan(ctx, prefix, func(key string, raw []byte) error {
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("fingerprint: sweep decode %q: %w", key, err)
		}
		if e.SyncGeneration < currentGeneration {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, key := range stale {
		if err := s.kv.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("fingerprint: sweep delete %q: %w", key, err)
		}
	}
	return len(stale), nil
}
