// Package xtream implements provider A: the xtream-style HTTP catalog API
// (spec.md §6). It provides CatalogSource, DetailSource, and UrlBuilder
// against `player_api.php?action=…` endpoints, wrapped in a per-account
// circuit breaker and rate limiter.
package xtream

import (
	"context"
	"net/url"
	"strings"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
)

// Credentials is the resolved secret a CredentialResolver hands back for
// one account. Never logged; callers must redact before any log call
// that might include a full request URL.
type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

// CredentialResolver resolves an account key to its live endpoint and
// username/password pair. Implementations look up the account's
// CredentialsHandle (from nx.SourceAccount) and exchange it for the real
// secret wherever that secret actually lives; nx itself never stores it.
type CredentialResolver interface {
	Resolve(ctx context.Context, accountKey string) (Credentials, error)
}

// SourceType always returns keycodec.SourceXtream.
func SourceType() keycodec.SourceType { return keycodec.SourceXtream }

// redactQuery strips username/password query parameters from a URL
// string for safe inclusion in logs, preserving everything else.
func redactQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable-url>"
	}
	q := u.Query()
	if q.Has("username") {
		q.Set("username", "REDACTED")
	}
	if q.Has("password") {
		q.Set("password", "REDACTED")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// firstNonZeroID returns the first alias that parses as a non-zero,
// non-negative-as-unset integer-like string, per spec.md §6's
// vod_id|movie_id|id|stream_id fallback list. Returns "" if none match.
func firstNonZeroID(aliases ...string) string {
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a != "" && a != "0" {
			return a
		}
	}
	return ""
}
