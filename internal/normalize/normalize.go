// Package normalize converts provider-agnostic raw records into canonical
// works, assigning deterministic identity per spec.md §4.5. It performs no
// network I/O; authority lookups are supplied by an injected resolver.
package normalize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/karlokarate/nxcatalog/internal/cache"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
)

// ExternalIDs carries the authority identifiers a raw record may already
// know about, gathered from provider metadata rather than resolved.
type ExternalIDs struct {
	TMDB string
	IMDB string
	TVDB string
}

func (e ExternalIDs) empty() bool {
	return e.TMDB == "" && e.IMDB == "" && e.TVDB == ""
}

// RawRecord is the provider-agnostic shape every CatalogSource produces.
type RawRecord struct {
	OriginalTitle string
	MediaKind     keycodec.SourceKind
	Year          int
	Season        int
	Episode       int
	DurationMs    int64
	ExternalIDs   ExternalIDs
	SourceType    keycodec.SourceType
	AccountKey    string
	SourceID      string
	PlaybackHints map[string]string
}

// NormalizedRecord is the normalizer's output: a canonical title and a
// workKey candidate, with season/episode passed through unchanged for
// episode records.
type NormalizedRecord struct {
	CanonicalTitle   string
	WorkKeyCandidate string
	Season           int
	Episode          int
	IsLive           bool
}

// AuthorityMatch is what an AuthorityResolver returns when it can link a
// raw record's external IDs to a known authority entry.
type AuthorityMatch struct {
	Authority      keycodec.Authority
	ID             string
	CanonicalTitle string
	Year           int
}

// AuthorityResolver looks up authority-linked canonical titles for a raw
// record's external IDs. Implementations must not perform network I/O
// synchronously on the ingest hot path without their own caching; the
// normalizer calls this on every record that carries external IDs.
type AuthorityResolver interface {
	Resolve(ctx context.Context, ids ExternalIDs, mediaKind keycodec.SourceKind) (AuthorityMatch, bool, error)
}

var (
	bracketGroup = regexp.MustCompile(`[\[\(\{][^\]\)\}]*[\]\)\}]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// defaultStripTokens are scene-release / quality / codec tokens stripped
// from titles before slugging. The list is deliberately conservative:
// entries that could plausibly be part of a real title are left alone.
var defaultStripTokens = []string{
	"bluray", "blu-ray", "webrip", "web-dl", "webdl", "hdtv", "hdrip", "dvdrip",
	"brrip", "bdrip", "hdcam", "camrip", "ts", "tc",
	"2160p", "1080p", "720p", "480p", "4k", "uhd", "hdr", "hdr10", "dolby vision",
	"x264", "x265", "h264", "h265", "hevc", "avc",
	"aac", "ac3", "dts", "5.1", "7.1",
	"extended", "unrated", "directors cut", "remastered", "proper", "repack",
}

// Normalizer applies title cleaning and identity assignment. The zero
// value is not usable; construct with New.
type Normalizer struct {
	stripTokens *cache.AhoCorasick
}

// New builds a Normalizer with the default strip-token set.
func New() *Normalizer {
	return NewWithStripTokens(defaultStripTokens)
}

// NewWithStripTokens builds a Normalizer with a caller-supplied strip-token
// set, replacing the default list entirely.
func NewWithStripTokens(tokens []string) *Normalizer {
	ac := cache.NewAhoCorasick()
	ac.AddPatterns(tokens, nil)
	ac.Build()
	return &Normalizer{stripTokens: ac}
}

// Normalize converts raw into a NormalizedRecord. resolver may be nil, in
// which case normalization always falls through to the title+year+kind
// slug rule.
func (n *Normalizer) Normalize(ctx context.Context, raw RawRecord, resolver AuthorityResolver) (NormalizedRecord, error) {
	cleaned := n.cleanTitle(raw.OriginalTitle)

	if raw.MediaKind == keycodec.KindLive {
		workKey, err := keycodec.FormatWork(keycodec.WorkLive, cleaned, 0, true)
		if err != nil {
			return NormalizedRecord{}, fmt.Errorf("normalize: live workKey: %w", err)
		}
		return NormalizedRecord{CanonicalTitle: cleaned, WorkKeyCandidate: workKey, IsLive: true}, nil
	}

	year := raw.Year
	title := cleaned

	if resolver != nil && !raw.ExternalIDs.empty() {
		match, ok, err := resolver.Resolve(ctx, raw.ExternalIDs, raw.MediaKind)
		if err != nil {
			return NormalizedRecord{}, fmt.Errorf("normalize: resolve authority: %w", err)
		}
		if ok && match.CanonicalTitle != "" {
			title = match.CanonicalTitle
			year = match.Year
		}
	}

	workKey, err := n.buildWorkKey(raw.MediaKind, title, year, raw.Season, raw.Episode)
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("normalize: build workKey: %w", err)
	}

	return NormalizedRecord{
		CanonicalTitle:   title,
		WorkKeyCandidate: workKey,
		Season:           raw.Season,
		Episode:          raw.Episode,
	}, nil
}

func (n *Normalizer) buildWorkKey(kind keycodec.SourceKind, title string, year, season, episode int) (string, error) {
	if kind == keycodec.KindEpisode {
		return keycodec.FormatEpisodeWork(title, year, season, episode)
	}
	workType, err := workTypeForKind(kind)
	if err != nil {
		return "", err
	}
	return keycodec.FormatWork(workType, title, year, false)
}

func workTypeForKind(kind keycodec.SourceKind) (keycodec.WorkType, error) {
	switch kind {
	case keycodec.KindVod:
		return keycodec.WorkMovie, nil
	case keycodec.KindSeries:
		return keycodec.WorkSeries, nil
	case keycodec.KindEpisode:
		return keycodec.WorkEpisode, nil
	case keycodec.KindLive:
		return keycodec.WorkLive, nil
	default:
		return "", fmt.Errorf("normalize: unknown source kind %q", kind)
	}
}

// cleanTitle strips bracketed release-group annotations and known
// scene/quality/codec tokens, then collapses whitespace. Diacritics are
// left untouched; only bracketed groups and known tokens are removed.
func (n *Normalizer) cleanTitle(title string) string {
	cleaned := bracketGroup.ReplaceAllString(title, " ")

	for _, m := range n.stripTokens.Search(cleaned) {
		cleaned = replaceFold(cleaned, m.Pattern, " ")
	}

	cleaned = whitespace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// replaceFold removes every case-insensitive occurrence of needle from s,
// preserving the surrounding text's original casing.
func replaceFold(s, needle, repl string) string {
	if needle == "" {
		return s
	}
	lowerS := strings.ToLower(s)
	lowerNeedle := strings.ToLower(needle)

	var b strings.Builder
	rest := s
	restLower := lowerS
	for {
		idx := strings.Index(restLower, lowerNeedle)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:idx])
		b.WriteString(repl)
		rest = rest[idx+len(needle):]
		restLower = restLower[idx+len(lowerNeedle):]
	}
	return b.String()
}
