//go:build nats

package main

import (
	"github.com/karlokarate/nxcatalog/internal/changestream"
	"github.com/karlokarate/nxcatalog/internal/config"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/outbox"
)

// ChangeStreamComponents is *changestream.Components under the nats build
// tag; see changestream_init_stub.go for the no-op alternative.
type ChangeStreamComponents = changestream.Components

// InitChangeStream starts the embedded/external NATS connection, ensures
// the catalog.> JetStream stream, and wires the Watermill router, per
// cfg.NATS. Returns nil, nil if NATS publishing is disabled in config.
func InitChangeStream(cfg *config.Config) (*ChangeStreamComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS change stream disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	components, err := changestream.Init(cfg.NATS)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("url", cfg.NATS.URL).Bool("embedded", cfg.NATS.EmbeddedServer).Msg("NATS change stream initialized")
	return components, nil
}

// OutboxPublisher returns components's Publisher as the outbox.Publisher
// interface, or nil if components is nil.
func OutboxPublisher(components *ChangeStreamComponents) outbox.Publisher {
	if components == nil {
		return nil
	}
	return components.Publisher()
}
