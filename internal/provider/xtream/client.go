package xtream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/karlokarate/nxcatalog/internal/logging"
)

// Client is a low-level player_api.php client for one account. It is
// wrapped by CatalogSource/DetailSource/UrlBuilder, which add resilience
// and map raw JSON into the canonical shapes.
type Client struct {
	httpClient *http.Client
	resolver   CredentialResolver
	res        *resilience
}

// NewClient builds a Client. requestsPerSecond/burst size the per-account
// rate limiter; spec.md gives no fixed default, so callers size it to
// their account's known API quota.
func NewClient(resolver CredentialResolver, requestsPerSecond float64, burst int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		resolver:   resolver,
		res:        newResilience(requestsPerSecond, burst),
	}
}

// rawCategory is the wire shape of get_*_categories entries.
type rawCategory struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	ParentID     string `json:"parent_id"`
}

// rawLiveStream is the wire shape of one get_live_streams entry.
type rawLiveStream struct {
	StreamID     int    `json:"stream_id"`
	Name         string `json:"name"`
	StreamIcon   string `json:"stream_icon"`
	EPGChannelID string `json:"epg_channel_id"`
	TVArchive    int    `json:"tv_archive"`
	CategoryID   string `json:"category_id"`
	Added        string `json:"added"`
}

// rawVODStream is the wire shape of one get_vod_streams entry. Providers
// disagree on which id field they populate; all four aliases are kept.
type rawVODStream struct {
	Name              string `json:"name"`
	VodID             int    `json:"vod_id"`
	MovieID           int    `json:"movie_id"`
	ID                int    `json:"id"`
	StreamID          int    `json:"stream_id"`
	StreamIcon        string `json:"stream_icon"`
	CategoryID        string `json:"category_id"`
	ContainerExt      string `json:"container_extension"`
	Added             string `json:"added"`
}

// resolvedID returns the first non-zero id alias, per spec.md §6.
func (r rawVODStream) resolvedID() string {
	return firstNonZeroID(
		strconv.Itoa(r.VodID),
		strconv.Itoa(r.MovieID),
		strconv.Itoa(r.ID),
		strconv.Itoa(r.StreamID),
	)
}

// rawSeries is the wire shape of one get_series entry.
type rawSeries struct {
	SeriesID   int    `json:"series_id"`
	Name       string `json:"name"`
	Cover      string `json:"cover"`
	CategoryID string `json:"category_id"`
}

// rawVODInfo is the wire shape of get_vod_info.
type rawVODInfo struct {
	Info struct {
		Plot         string   `json:"plot"`
		Rating       string   `json:"rating"`
		Genre        string   `json:"genre"`
		Cast         string   `json:"cast"`
		Director     string   `json:"director"`
		DurationSecs string   `json:"duration_secs"`
		Poster       string   `json:"movie_image"`
		Backdrop     []string `json:"backdrop_path"`
		Trailer      string   `json:"youtube_trailer"`
	} `json:"info"`
	MovieData struct {
		ContainerExtension string `json:"container_extension"`
	} `json:"movie_data"`
}

// rawSeriesInfo is the wire shape of get_series_info.
type rawSeriesInfo struct {
	Info struct {
		Name     string `json:"name"`
		Plot     string `json:"plot"`
		Cast     string `json:"cast"`
		Director string `json:"director"`
		Genre    string `json:"genre"`
		Cover    string `json:"cover"`
	} `json:"info"`
	Seasons  []struct {
		SeasonNumber int `json:"season_number"`
	} `json:"seasons"`
	Episodes map[string][]struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Season  int    `json:"season"`
		Episode int    `json:"episode_num"`
		Info    struct {
			DurationSecs string `json:"duration_secs"`
		} `json:"info"`
	} `json:"episodes"`
}

func (c *Client) playerAPIURL(creds Credentials, action string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("username", creds.Username)
	q.Set("password", creds.Password)
	q.Set("action", action)
	return strings.TrimSuffix(creds.BaseURL, "/") + "/player_api.php?" + q.Encode()
}

// doAction performs one player_api.php call through the account's
// rate limiter and circuit breaker, retrying on 5xx/connect failures.
func (c *Client) doAction(ctx context.Context, accountKey, action string, params url.Values) ([]byte, error) {
	creds, err := c.resolver.Resolve(ctx, accountKey)
	if err != nil {
		return nil, fmt.Errorf("xtream: resolve credentials: %w", err)
	}

	result, err := c.res.call(ctx, accountKey, action, func() (any, error) {
		return withRetry(ctx, func() ([]byte, error) {
			return c.rawRequest(ctx, creds, action, params)
		})
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) rawRequest(ctx context.Context, creds Credentials, action string, params url.Values) ([]byte, error) {
	fullURL := c.playerAPIURL(creds, action, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("xtream: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Warn().Str("action", action).Str("url", redactQuery(fullURL)).Err(err).Msg("xtream request failed")
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("xtream: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Warn().Str("action", action).Int("status", resp.StatusCode).
			Str("url", redactQuery(fullURL)).Msg("xtream non-2xx response")
		return nil, &HTTPError{StatusCode: resp.StatusCode, Action: action}
	}
	return body, nil
}

// listWithCategoryFallback tries category_id=categoryID first when
// categoryID is non-empty; when it is empty, tries "*", then "0", then
// omits the parameter entirely, per spec.md §6.
func (c *Client) listWithCategoryFallback(ctx context.Context, accountKey, action, categoryID string, decodeInto func([]byte) error) error {
	if categoryID != "" {
		body, err := c.doAction(ctx, accountKey, action, url.Values{"category_id": {categoryID}})
		if err != nil {
			return err
		}
		return c.decodeOrParseError(action, body, decodeInto)
	}

	var lastErr error
	for _, fallback := range []string{"*", "0", ""} {
		params := url.Values{}
		if fallback != "" {
			params.Set("category_id", fallback)
		}
		body, err := c.doAction(ctx, accountKey, action, params)
		if err != nil {
			lastErr = err
			continue
		}
		if err := c.decodeOrParseError(action, body, decodeInto); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (c *Client) decodeOrParseError(action string, body []byte, decodeInto func([]byte) error) error {
	if err := decodeInto(body); err != nil {
		return &ParseError{Action: action, Snippet: redactedSnippet(body), Cause: err}
	}
	return nil
}

func (c *Client) getCategories(ctx context.Context, accountKey, action string) ([]rawCategory, error) {
	body, err := c.doAction(ctx, accountKey, action, url.Values{})
	if err != nil {
		return nil, err
	}
	var out []rawCategory
	if err := c.decodeOrParseError(action, body, func(b []byte) error { return json.Unmarshal(b, &out) }); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getLiveStreams(ctx context.Context, accountKey, categoryID string) ([]rawLiveStream, error) {
	var out []rawLiveStream
	err := c.listWithCategoryFallback(ctx, accountKey, "get_live_streams", categoryID, func(b []byte) error {
		return json.Unmarshal(b, &out)
	})
	return out, err
}

func (c *Client) getVODStreams(ctx context.Context, accountKey, categoryID string) ([]rawVODStream, error) {
	var out []rawVODStream
	err := c.listWithCategoryFallback(ctx, accountKey, "get_vod_streams", categoryID, func(b []byte) error {
		return json.Unmarshal(b, &out)
	})
	return out, err
}

func (c *Client) getSeries(ctx context.Context, accountKey, categoryID string) ([]rawSeries, error) {
	var out []rawSeries
	err := c.listWithCategoryFallback(ctx, accountKey, "get_series", categoryID, func(b []byte) error {
		return json.Unmarshal(b, &out)
	})
	return out, err
}

func (c *Client) getVODInfo(ctx context.Context, accountKey, vodID string) (rawVODInfo, error) {
	body, err := c.doAction(ctx, accountKey, "get_vod_info", url.Values{"vod_id": {vodID}})
	if err != nil {
		return rawVODInfo{}, err
	}
	var out rawVODInfo
	err = c.decodeOrParseError("get_vod_info", body, func(b []byte) error { return json.Unmarshal(b, &out) })
	return out, err
}

func (c *Client) getSeriesInfo(ctx context.Context, accountKey, seriesID string) (rawSeriesInfo, error) {
	body, err := c.doAction(ctx, accountKey, "get_series_info", url.Values{"series_id": {seriesID}})
	if err != nil {
		return rawSeriesInfo{}, err
	}
	var out rawSeriesInfo
	err = c.decodeOrParseError("get_series_info", body, func(b []byte) error { return json.Unmarshal(b, &out) })
	return out, err
}
