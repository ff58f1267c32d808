package tg

import (
	"context"
	"fmt"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/provider"
)

// MessageLookup resolves a previously-ingested export message by its
// provider item id (the stringified messageId), for DetailSource and
// UrlBuilder calls made after ingest.
type MessageLookup interface {
	Lookup(ctx context.Context, accountKey, providerItemID string) (ExportMessage, bool, error)
}

// Source implements provider.DetailSource and provider.UrlBuilder for
// provider B. It performs no network I/O; both calls resolve against
// already-ingested message metadata.
type Source struct {
	lookup MessageLookup
}

// NewSource builds a Source backed by lookup.
func NewSource(lookup MessageLookup) *Source { return &Source{lookup: lookup} }

var (
	_ provider.DetailSource = (*Source)(nil)
	_ provider.UrlBuilder   = (*Source)(nil)
)

// SourceType identifies this as the messaging-platform provider.
func (s *Source) SourceType() keycodec.SourceType { return keycodec.SourceTG }

// FetchDetail returns the best already-known text for a message.
// Messaging exports carry no separate detail endpoint; spec.md §4.9
// only routes enrichment here as a fallback target when no richer
// source (xtream, then authority) is available.
func (s *Source) FetchDetail(ctx context.Context, accountKey string, kind keycodec.SourceKind, providerItemID string) (provider.DetailRecord, error) {
	msg, ok, err := s.lookup.Lookup(ctx, accountKey, providerItemID)
	if err != nil {
		return provider.DetailRecord{}, fmt.Errorf("tg: lookup message: %w", err)
	}
	if !ok {
		return provider.DetailRecord{}, fmt.Errorf("tg: no cached message for item %q", providerItemID)
	}
	return provider.DetailRecord{Plot: firstNonEmpty(msg.Caption, msg.ExportText)}, nil
}

// BuildPlaybackURL builds the tg:// media URI for a previously-ingested
// message.
func (s *Source) BuildPlaybackURL(accountKey string, kind keycodec.SourceKind, providerItemID, container string) (string, error) {
	msg, ok, err := s.lookup.Lookup(context.Background(), accountKey, providerItemID)
	if err != nil {
		return "", fmt.Errorf("tg: lookup message: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("tg: no cached message for item %q", providerItemID)
	}
	return buildMediaURI(msg.ChatID, msg.MessageID, msg.FileID, msg.RemoteID, msg.MimeType)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
