package xtream

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/provider"
)

// Source implements provider.CatalogSource, provider.DetailSource,
// provider.SeriesEpisodeSource and provider.UrlBuilder over a Client.
type Source struct {
	client *Client
}

// NewSource wraps client as a provider.CatalogSource/DetailSource/UrlBuilder.
func NewSource(client *Client) *Source { return &Source{client: client} }

var (
	_ provider.CatalogSource       = (*Source)(nil)
	_ provider.DetailSource        = (*Source)(nil)
	_ provider.SeriesEpisodeSource = (*Source)(nil)
	_ provider.UrlBuilder          = (*Source)(nil)
)

// SourceType identifies this as the xtream provider.
func (s *Source) SourceType() keycodec.SourceType { return keycodec.SourceXtream }

// ListCategories merges the live/vod/series category listings into the
// canonical nx.Category shape.
func (s *Source) ListCategories(ctx context.Context, accountKey string) ([]nx.Category, error) {
	actions := []string{"get_live_categories", "get_vod_categories", "get_series_categories"}
	var out []nx.Category
	for _, action := range actions {
		raw, err := s.client.getCategories(ctx, accountKey, action)
		if err != nil {
			return nil, fmt.Errorf("xtream: %s: %w", action, err)
		}
		for _, rc := range raw {
			out = append(out, nx.Category{
				AccountKey:       accountKey,
				SourceType:       keycodec.SourceXtream,
				SourceCategoryID: rc.CategoryID,
				DisplayName:      rc.CategoryName,
				ParentID:         rc.ParentID,
			})
		}
	}
	return out, nil
}

// Scan runs the requested phase's listing call and emits it as a
// ScanEvent stream on a buffered channel. The goroutine closes the
// channel when the listing call returns or ctx is cancelled.
func (s *Source) Scan(ctx context.Context, accountKey string, phase provider.Phase, sinceMs int64) (<-chan provider.ScanEvent, error) {
	out := make(chan provider.ScanEvent, 64)

	go func() {
		defer close(out)

		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ScanStarted}) {
			return
		}

		var counts provider.ScanCounts
		var scanErr error

		switch phase {
		case provider.PhaseLive:
			scanErr = s.scanLive(ctx, accountKey, sinceMs, out, &counts)
		case provider.PhaseVOD:
			scanErr = s.scanVOD(ctx, accountKey, sinceMs, out, &counts)
		case provider.PhaseSeries:
			scanErr = s.scanSeries(ctx, accountKey, out, &counts)
		default:
			scanErr = fmt.Errorf("xtream: unsupported phase %q (episodes scanned via ScanEpisodesForSeries)", phase)
		}

		if scanErr != nil {
			emit(ctx, out, provider.ScanEvent{Kind: provider.ScanError, Err: scanErr})
			return
		}
		emit(ctx, out, provider.ScanEvent{Kind: provider.ScanCompleted, Totals: counts})
	}()

	return out, nil
}

// emit sends evt on out, returning false if ctx was cancelled first.
func emit(ctx context.Context, out chan<- provider.ScanEvent, evt provider.ScanEvent) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Source) scanLive(ctx context.Context, accountKey string, sinceMs int64, out chan<- provider.ScanEvent, counts *provider.ScanCounts) error {
	streams, err := s.client.getLiveStreams(ctx, accountKey, "")
	if err != nil {
		return err
	}
	for _, ls := range streams {
		counts.Discovered++
		addedMs := parseAddedMs(ls.Added)
		if sinceMs > 0 && addedMs > 0 && addedMs < sinceMs {
			counts.Skipped++
			continue
		}
		raw := normalize.RawRecord{
			OriginalTitle: ls.Name,
			MediaKind:     keycodec.KindLive,
			SourceType:    keycodec.SourceXtream,
			AccountKey:    accountKey,
			SourceID:      strconv.Itoa(ls.StreamID),
			PlaybackHints: map[string]string{
				"epgChannelId": ls.EPGChannelID,
				"tvArchive":    strconv.Itoa(ls.TVArchive),
			},
		}
		counts.Accepted++
		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ItemDiscovered, Item: raw}) {
			return ctx.Err()
		}
		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ScanProgress, Progress: *counts}) {
			return ctx.Err()
		}
	}
	return nil
}

func (s *Source) scanVOD(ctx context.Context, accountKey string, sinceMs int64, out chan<- provider.ScanEvent, counts *provider.ScanCounts) error {
	streams, err := s.client.getVODStreams(ctx, accountKey, "")
	if err != nil {
		return err
	}
	for _, vs := range streams {
		counts.Discovered++
		id := vs.resolvedID()
		if id == "" {
			counts.Rejected++
			continue
		}
		addedMs := parseAddedMs(vs.Added)
		if sinceMs > 0 && addedMs > 0 && addedMs < sinceMs {
			counts.Skipped++
			continue
		}
		raw := normalize.RawRecord{
			OriginalTitle: vs.Name,
			MediaKind:     keycodec.KindVod,
			SourceType:    keycodec.SourceXtream,
			AccountKey:    accountKey,
			SourceID:      id,
			PlaybackHints: map[string]string{"containerExtension": vs.ContainerExt},
		}
		counts.Accepted++
		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ItemDiscovered, Item: raw}) {
			return ctx.Err()
		}
		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ScanProgress, Progress: *counts}) {
			return ctx.Err()
		}
	}
	return nil
}

func (s *Source) scanSeries(ctx context.Context, accountKey string, out chan<- provider.ScanEvent, counts *provider.ScanCounts) error {
	series, err := s.client.getSeries(ctx, accountKey, "")
	if err != nil {
		return err
	}
	for _, sr := range series {
		counts.Discovered++
		if sr.SeriesID == 0 {
			counts.Rejected++
			continue
		}
		raw := normalize.RawRecord{
			OriginalTitle: sr.Name,
			MediaKind:     keycodec.KindSeries,
			SourceType:    keycodec.SourceXtream,
			AccountKey:    accountKey,
			SourceID:      strconv.Itoa(sr.SeriesID),
		}
		counts.Accepted++
		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ItemDiscovered, Item: raw}) {
			return ctx.Err()
		}
		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ScanProgress, Progress: *counts}) {
			return ctx.Err()
		}
	}
	return nil
}

// ScanEpisodesForSeries lists every episode of one series via
// get_series_info, the optional and expensive episode phase (§4.6).
func (s *Source) ScanEpisodesForSeries(ctx context.Context, accountKey, seriesProviderItemID string, sinceMs int64) (<-chan provider.ScanEvent, error) {
	out := make(chan provider.ScanEvent, 64)

	go func() {
		defer close(out)

		if !emit(ctx, out, provider.ScanEvent{Kind: provider.ScanStarted}) {
			return
		}

		info, err := s.client.getSeriesInfo(ctx, accountKey, seriesProviderItemID)
		if err != nil {
			emit(ctx, out, provider.ScanEvent{Kind: provider.ScanError, Err: err})
			return
		}

		var counts provider.ScanCounts
		for _, episodes := range info.Episodes {
			for _, ep := range episodes {
				counts.Discovered++
				if ep.ID == "" || ep.Season == 0 || ep.Episode == 0 {
					counts.Rejected++
					continue
				}
				raw := normalize.RawRecord{
					OriginalTitle: firstNonEmpty(ep.Title, info.Info.Name),
					MediaKind:     keycodec.KindEpisode,
					Season:        ep.Season,
					Episode:       ep.Episode,
					DurationMs:    parseDurationSecsMs(ep.Info.DurationSecs),
					SourceType:    keycodec.SourceXtream,
					AccountKey:    accountKey,
					SourceID:      ep.ID,
				}
				counts.Accepted++
				if !emit(ctx, out, provider.ScanEvent{Kind: provider.ItemDiscovered, Item: raw}) {
					return
				}
			}
		}
		emit(ctx, out, provider.ScanEvent{Kind: provider.ScanCompleted, Totals: counts})
	}()

	return out, nil
}

// FetchDetail implements provider.DetailSource for vod/series kinds.
func (s *Source) FetchDetail(ctx context.Context, accountKey string, kind keycodec.SourceKind, providerItemID string) (provider.DetailRecord, error) {
	switch kind {
	case keycodec.KindVod:
		info, err := s.client.getVODInfo(ctx, accountKey, providerItemID)
		if err != nil {
			return provider.DetailRecord{}, err
		}
		backdrop := ""
		if len(info.Info.Backdrop) > 0 {
			backdrop = info.Info.Backdrop[0]
		}
		rating, _ := strconv.ParseFloat(info.Info.Rating, 64)
		return provider.DetailRecord{
			Plot:         info.Info.Plot,
			Rating:       rating,
			Genres:       splitComma(info.Info.Genre),
			Cast:         splitComma(info.Info.Cast),
			Director:     info.Info.Director,
			Poster:       info.Info.Poster,
			Backdrop:     backdrop,
			Trailer:      info.Info.Trailer,
			ContainerExt: info.MovieData.ContainerExtension,
			DurationMs:   parseDurationSecsMs(info.Info.DurationSecs),
		}, nil
	case keycodec.KindSeries:
		info, err := s.client.getSeriesInfo(ctx, accountKey, providerItemID)
		if err != nil {
			return provider.DetailRecord{}, err
		}
		return provider.DetailRecord{
			Plot:     info.Info.Plot,
			Genres:   splitComma(info.Info.Genre),
			Cast:     splitComma(info.Info.Cast),
			Director: info.Info.Director,
			Poster:   info.Info.Cover,
		}, nil
	default:
		return provider.DetailRecord{}, fmt.Errorf("xtream: detail fetch not supported for kind %q", kind)
	}
}

// BuildPlaybackURL builds the provider-A stream URI shape preserved by
// spec.md §6: <scheme>://<host>:<port>/{live|movie|series}/<user>/<pass>/<id>.<ext>.
func (s *Source) BuildPlaybackURL(accountKey string, kind keycodec.SourceKind, providerItemID, container string) (string, error) {
	creds, err := s.client.resolver.Resolve(context.Background(), accountKey)
	if err != nil {
		return "", fmt.Errorf("xtream: resolve credentials for playback url: %w", err)
	}

	segment, err := urlSegmentForKind(kind)
	if err != nil {
		return "", err
	}
	ext := container
	if ext == "" {
		ext = "ts"
	}
	base := strings.TrimSuffix(creds.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", base, segment, creds.Username, creds.Password, providerItemID, ext), nil
}

func urlSegmentForKind(kind keycodec.SourceKind) (string, error) {
	switch kind {
	case keycodec.KindLive:
		return "live", nil
	case keycodec.KindVod:
		return "movie", nil
	case keycodec.KindSeries, keycodec.KindEpisode:
		return "series", nil
	default:
		return "", fmt.Errorf("xtream: unknown kind %q for playback url", kind)
	}
}

func parseAddedMs(added string) int64 {
	secs, err := strconv.ParseInt(added, 10, 64)
	if err != nil {
		return 0
	}
	return secs * 1000
}

func parseDurationSecsMs(secs string) int64 {
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return 0
	}
	return n * int64(time.Second/time.Millisecond)
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
