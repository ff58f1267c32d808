//go:build wal

package main

import (
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/supervisor"
	"github.com/karlokarate/nxcatalog/internal/supervisor/services"
)

// AddOutboxToSupervisor adds the outbox retry loop and checkpoint compactor
// to the supervisor tree's data layer. No-op if components is nil.
func AddOutboxToSupervisor(tree *supervisor.SupervisorTree, components *OutboxComponents) {
	if components == nil {
		return
	}
	tree.AddDataService(services.NewWALRetryLoopService(components.RetryLoop))
	tree.AddDataService(services.NewWALCompactorService(components.Compactor))
	logging.Info().Msg("outbox retry loop and checkpoint compactor added to supervisor tree (data layer)")
}
