//go:build nats

package changestream

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/karlokarate/nxcatalog/internal/config"
	"github.com/karlokarate/nxcatalog/internal/logging"
)

// Components holds every NATS-related piece the catalog process needs: the
// optional embedded server, the JetStream connection and stream, the
// outbox-facing Publisher, and the change-observer Router. It satisfies
// internal/supervisor/services.NATSComponentsRunner.
type Components struct {
	embedded  *EmbeddedServer
	conn      *natsgo.Conn
	streams   *StreamManager
	publisher *Publisher
	router    *Router

	mu      sync.Mutex
	running bool
}

// Init wires an embedded (or external) NATS server, ensures the catalog
// change stream exists, and builds the publisher and observer router. It
// does not start the router; call Start for that.
func Init(cfg config.NATSConfig) (*Components, error) {
	c := &Components{}

	url := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(ServerConfigFrom(cfg))
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		c.embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("changestream: embedded NATS server started")
	}

	conn, err := natsgo.Connect(url, natsgo.RetryOnFailedConnect(true), natsgo.MaxReconnects(-1), natsgo.ReconnectWait(2*time.Second))
	if err != nil {
		c.shutdownPartial(context.Background())
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	c.conn = conn

	streamCfg := StreamConfigFrom(cfg)
	streams, err := NewStreamManager(conn, streamCfg)
	if err != nil {
		c.shutdownPartial(context.Background())
		return nil, err
	}
	c.streams = streams
	if _, err := streams.EnsureStream(context.Background()); err != nil {
		c.shutdownPartial(context.Background())
		return nil, fmt.Errorf("ensure change stream: %w", err)
	}

	pub, err := NewPublisher(PublisherConfigFrom(url, cfg))
	if err != nil {
		c.shutdownPartial(context.Background())
		return nil, err
	}
	c.publisher = pub

	router, err := NewRouter(SubscriberConfigFrom(url, cfg), streamCfg.Name, pub.rawPublisher())
	if err != nil {
		c.shutdownPartial(context.Background())
		return nil, err
	}
	c.router = router

	return c, nil
}

// Publisher returns the outbox-facing publisher. The returned value
// structurally satisfies internal/outbox.Publisher.
func (c *Components) Publisher() *Publisher { return c.publisher }

// Start begins the observer router. Start is idempotent.
func (c *Components) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	running := c.router.RunAsync(ctx)
	select {
	case <-running:
		logging.Info().Msg("changestream: router started")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context canceled while starting changestream router: %w", ctx.Err())
	}
}

// Shutdown stops the router, publisher, connection and embedded server in
// that order, so in-flight publishes complete before the transport closes.
func (c *Components) Shutdown(ctx context.Context) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.shutdownPartial(ctx)
}

func (c *Components) shutdownPartial(ctx context.Context) {
	if c.router != nil {
		if err := c.router.Close(); err != nil {
			logging.Error().Err(err).Msg("changestream: error closing router")
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("changestream: error closing publisher")
		}
	}
	if c.conn != nil {
		c.conn.Close()
	}
	if c.embedded != nil {
		if err := c.embedded.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("changestream: error shutting down embedded server")
		}
	}
}

// IsRunning reports whether the router is active.
func (c *Components) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
