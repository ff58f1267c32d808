package tg

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/supervisor"
)

// ExportSource yields newly available messages for one channel since the
// given messageId cursor (0 for everything). Implementations wrap
// whatever delivers the actual JSON export (file drop, polling endpoint,
// webhook buffer); ExportSource itself is push-agnostic.
type ExportSource interface {
	FetchMessages(ctx context.Context, chatID int64, sinceMessageID int64) ([]ExportMessage, error)
}

// RecordSink receives normalized-input records discovered by a
// ChannelService, typically the channel sync buffer feeding the ingest
// pipeline.
type RecordSink interface {
	Submit(ctx context.Context, record normalize.RawRecord) error
}

// ChannelService is one messaging-platform channel's long-running
// ingestion service: it polls ExportSource for new messages and submits
// each as a RawRecord to sink, per spec.md §6's "raw media metadata
// passed through unmodified" rule.
type ChannelService struct {
	chatID        int64
	accountKey    string
	source        ExportSource
	sink          RecordSink
	pollInterval  time.Duration
	lastMessageID int64
}

// NewChannelService builds a ChannelService for chatID.
func NewChannelService(chatID int64, accountKey string, source ExportSource, sink RecordSink, pollInterval time.Duration) *ChannelService {
	return &ChannelService{
		chatID:       chatID,
		accountKey:   accountKey,
		source:       source,
		sink:         sink,
		pollInterval: pollInterval,
	}
}

// Serve implements suture.Service: poll until ctx is cancelled, emitting
// one RawRecord per new message on every tick.
func (c *ChannelService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	if err := c.pollOnce(ctx); err != nil {
		logging.Warn().Int64("chatId", c.chatID).Err(err).Msg("tg channel service initial poll failed")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.pollOnce(ctx); err != nil {
				logging.Warn().Int64("chatId", c.chatID).Err(err).Msg("tg channel service poll failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture's service identification.
func (c *ChannelService) String() string {
	return fmt.Sprintf("tg-channel-%d", c.chatID)
}

func (c *ChannelService) pollOnce(ctx context.Context) error {
	messages, err := c.source.FetchMessages(ctx, c.chatID, c.lastMessageID)
	if err != nil {
		return fmt.Errorf("tg: fetch messages for chat %d: %w", c.chatID, err)
	}

	for _, msg := range messages {
		record := toRawRecord(c.accountKey, msg)
		if err := c.sink.Submit(ctx, record); err != nil {
			return fmt.Errorf("tg: submit message %d: %w", msg.MessageID, err)
		}
		if msg.MessageID > c.lastMessageID {
			c.lastMessageID = msg.MessageID
		}
	}
	return nil
}

// toRawRecord converts an export message to the provider-agnostic
// RawRecord shape, unmodified and uncleaned per spec.md §6.
func toRawRecord(accountKey string, msg ExportMessage) normalize.RawRecord {
	return normalize.RawRecord{
		OriginalTitle: resolveTitle(msg),
		MediaKind:     keycodec.KindVod,
		SourceType:    keycodec.SourceTG,
		AccountKey:    accountKey,
		SourceID:      providerItemID(msg),
		PlaybackHints: map[string]string{
			"exportVideo":    msg.ExportVideo,
			"exportOtherRaw": msg.ExportOtherRaw,
			"mimeType":       msg.MimeType,
		},
	}
}

// Listener adapts a ChannelService factory to supervisor.ChannelListener.
type Listener struct {
	accountKey   string
	source       ExportSource
	sink         RecordSink
	pollInterval time.Duration
}

// NewListener builds a supervisor.ChannelListener that creates one
// ChannelService per chatID handed to it by the ChannelSupervisor.
func NewListener(accountKey string, source ExportSource, sink RecordSink, pollInterval time.Duration) *Listener {
	return &Listener{accountKey: accountKey, source: source, sink: sink, pollInterval: pollInterval}
}

var _ supervisor.ChannelListener = (*Listener)(nil)

// NewChannelService implements supervisor.ChannelListener.
func (l *Listener) NewChannelService(chatID int64) suture.Service {
	return NewChannelService(chatID, l.accountKey, l.source, l.sink, l.pollInterval)
}
