/*
Package cache provides thread-safe, dependency-free in-memory data
structures shared by the ingest and read paths.

# Overview

Three families of structure live here:

  - Cache: a generic TTL map. No other package in this module uses it
    at present.
  - LRUCache, ExactLRU, BloomLRU: deduplication caches. The fingerprint
    store fronts its Badger-backed authoritative map with an ExactLRU
    so a hot re-sync of unchanged items never round-trips through the
    KV store; BloomLRU trades exactness for a smaller footprint where
    an approximate check is acceptable.
  - AhoCorasick: multi-pattern string matching, used by the normalizer's
    title cleaner to strip scene-tag, quality, and codec tokens
    ("1080p", "x264", "WEB-DL", bracket groups) in a single pass instead
    of a chain of regexes.

None of these types know about the entity model; they are generic
building blocks composed by internal/normalize and internal/fingerprint.

# Usage Example

	c := cache.New(5 * time.Minute)
	c.Set("authority:tmdb:603", movie)
	if v, ok := c.Get("authority:tmdb:603"); ok {
	    // use cached lookup
	}

Fingerprint fast-path:

	seen := cache.NewLRUCache(50000, 24*time.Hour)
	if seen.IsDuplicate(fingerprintHash) {
	    return nx.ReasonSkippedUnchangedFingerprint
	}

# Thread Safety

All exported types are safe for concurrent use; Cache and LRUCache use
sync.RWMutex, AhoCorasick guards its automaton with the same.

# See Also

  - internal/fingerprint: authoritative fingerprint store built on Badger
  - internal/normalize: title cleaning via AhoCorasick
*/
package cache
