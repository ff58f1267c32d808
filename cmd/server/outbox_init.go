//go:build wal

package main

import (
	"context"
	"errors"

	"github.com/karlokarate/nxcatalog/internal/checkpoint"
	"github.com/karlokarate/nxcatalog/internal/kvstore"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/outbox"
)

// errNoPublisher is returned by noopPublisher so the retry loop's normal
// backoff-and-log path handles a NATS-disabled build instead of dereferencing
// a nil outbox.Publisher.
var errNoPublisher = errors.New("outbox: no change-stream publisher configured")

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, nx.CloudOutboxEvent) error { return errNoPublisher }

// OutboxComponents bundles the outbox retry loop and the checkpoint
// compactor: the two background data-layer loops that need Badger and an
// outbox.Publisher to run.
type OutboxComponents struct {
	RetryLoop *outbox.RetryLoop
	Compactor *checkpoint.Compactor
}

// InitOutbox builds the retry loop and compactor. publisher may be nil
// (NATS disabled); the retry loop then always fails its publish attempts
// and leaves events queued for operator inspection rather than dropping
// them.
func InitOutbox(store nx.EntityStore, kv *kvstore.Store, publisher outbox.Publisher) *OutboxComponents {
	if publisher == nil {
		logging.Warn().Msg("outbox publisher unavailable (NATS disabled); CloudOutboxEvents will queue without draining")
		publisher = noopPublisher{}
	}
	return &OutboxComponents{
		RetryLoop: outbox.NewRetryLoop(store, publisher),
		Compactor: checkpoint.NewCompactor(kv),
	}
}
