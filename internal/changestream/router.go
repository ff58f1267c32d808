//go:build nats

package changestream

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	natsgo "github.com/nats-io/nats.go"

	"github.com/karlokarate/nxcatalog/internal/metrics"
)

// newSubscriber builds a durable JetStream subscriber bound to the catalog
// change stream, for use by the observer handler registered in NewRouter.
func newSubscriber(cfg SubscriberConfig, streamName string) (message.Subscriber, error) {
	logger := watermill.NewStdLogger(false, false)

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
	}
	autoProvision := true
	if streamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(streamName))
		autoProvision = false
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(cfg.MaxReconnects),
			natsgo.ReconnectWait(cfg.ReconnectWait),
		},
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}

// Router wraps a Watermill Router pre-configured with panic recovery, retry
// and poison-queue middleware, and one consumer handler that records NATS
// consume metrics for every catalog change it observes. It exists so
// operators can see change-stream traffic flowing without requiring a
// dedicated external consumer to be running.
type Router struct {
	router  *message.Router
	running bool
}

// NewRouter builds a Router subscribed to the given stream's subjects. When
// subCfg.PoisonQueueTopic is set, messages exhausting retries are republished
// there instead of being dropped, using poisonPub (nil disables poisoning).
func NewRouter(subCfg SubscriberConfig, streamName string, poisonPub message.Publisher) (*Router, error) {
	logger := watermill.NewStdLogger(false, false)

	closeTimeout := subCfg.RouterCloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 10 * time.Second
	}
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: closeTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}
	wmRouter.AddMiddleware(middleware.Recoverer)

	retryCount := subCfg.RouterRetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	retry := middleware.Retry{MaxRetries: retryCount, InitialInterval: time.Second, MaxInterval: time.Minute, Multiplier: 2.0, Logger: logger}
	wmRouter.AddMiddleware(retry.Middleware)

	if poisonPub != nil && subCfg.PoisonQueueTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(poisonPub, subCfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	sub, err := newSubscriber(subCfg, streamName)
	if err != nil {
		return nil, err
	}

	wmRouter.AddConsumerHandler("change-observer", "catalog.>", sub, func(msg *message.Message) error {
		metrics.RecordNATSConsume()
		metrics.RecordNATSProcessed()
		return nil
	})

	return &Router{router: wmRouter}, nil
}

// Run blocks until ctx is canceled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running = true
	defer func() { r.running = false }()
	return r.router.Run(ctx)
}

// RunAsync starts the router in a goroutine, returning a channel that
// closes once the router is actually running.
func (r *Router) RunAsync(ctx context.Context) <-chan struct{} {
	running := make(chan struct{})
	go func() {
		go func() { _ = r.Run(ctx) }()
		<-r.router.Running()
		close(running)
	}()
	return running
}

// IsRunning reports whether the router is currently processing messages.
func (r *Router) IsRunning() bool { return r.running }

// Close stops the router, waiting up to its configured CloseTimeout.
func (r *Router) Close() error {
	return r.router.Close()
}
