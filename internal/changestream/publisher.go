//go:build nats

package changestream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/karlokarate/nxcatalog/internal/metrics"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// Publisher forwards CloudOutboxEvent rows to NATS JetStream over Watermill,
// behind a circuit breaker so a degraded broker fails fast instead of
// piling up blocked retry goroutines.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher dials NATS and builds a resilient Watermill JetStream
// publisher with message-ID tracking enabled for broker-side deduplication.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ReconnectBufSize(cfg.ReconnectBuffer),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    cfg.EnableTrackMsgID,
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "changestream-publisher",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Publisher{publisher: pub, breaker: breaker}, nil
}

// subject maps an outbox event's Kind to a hierarchical NATS subject under
// catalog.>, matching the stream's subject filter.
func subject(kind string) string {
	if kind == "" {
		kind = "unknown"
	}
	return "catalog." + kind
}

// Publish implements outbox.Publisher. The event's ID is used as the
// Watermill message UUID and the Nats-Msg-Id header, so a redelivered
// outbox row is deduplicated by JetStream rather than double-applied by
// downstream consumers.
func (p *Publisher) Publish(ctx context.Context, event nx.CloudOutboxEvent) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("changestream publisher is closed")
	}
	p.mu.RUnlock()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, event.ID)
	msg.Metadata.Set("kind", event.Kind)

	topic := subject(event.Kind)
	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	metrics.RecordNATSPublish()
	return nil
}

// rawPublisher exposes the underlying Watermill publisher so the router's
// poison-queue middleware can republish exhausted messages through it.
func (p *Publisher) rawPublisher() message.Publisher {
	return p.publisher
}

// Close shuts the underlying Watermill publisher down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
