//go:build !nats

package main

import (
	"context"

	"github.com/karlokarate/nxcatalog/internal/config"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/outbox"
)

// ChangeStreamComponents is a stub for builds without NATS support.
type ChangeStreamComponents struct{}

// InitChangeStream is a no-op stub for non-NATS builds.
func InitChangeStream(cfg *config.Config) (*ChangeStreamComponents, error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but NATS support not compiled (build with -tags nats)")
	}
	return nil, nil
}

// Start is a no-op stub.
func (c *ChangeStreamComponents) Start(_ context.Context) error { return nil }

// Shutdown is a no-op stub.
func (c *ChangeStreamComponents) Shutdown(_ context.Context) {}

// IsRunning returns false for non-NATS builds.
func (c *ChangeStreamComponents) IsRunning() bool { return false }

// OutboxPublisher returns nil for non-NATS builds.
func OutboxPublisher(_ *ChangeStreamComponents) outbox.Publisher { return nil }
