//go:build !wal

package main

import (
	"github.com/karlokarate/nxcatalog/internal/kvstore"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/outbox"
)

// OutboxComponents is a stub for builds without the wal tag.
type OutboxComponents struct{}

// InitOutbox is a no-op stub for builds without the wal tag.
func InitOutbox(_ nx.EntityStore, _ *kvstore.Store, _ outbox.Publisher) *OutboxComponents {
	logging.Info().Msg("outbox retry loop not available (built without -tags wal)")
	return nil
}
