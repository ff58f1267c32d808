//go:build nats

package main

import (
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/supervisor"
	"github.com/karlokarate/nxcatalog/internal/supervisor/services"
)

// AddChangeStreamToSupervisor adds the NATS change-stream component group
// to the supervisor tree's messaging layer. No-op if components is nil
// (NATS disabled via config).
func AddChangeStreamToSupervisor(tree *supervisor.SupervisorTree, components *ChangeStreamComponents) {
	if components == nil {
		return
	}
	tree.AddMessagingService(services.NewNATSComponentsService(components))
	logging.Info().Msg("NATS change stream added to supervisor tree (messaging layer)")
}
