//go:build !wal

package main

import (
	"github.com/karlokarate/nxcatalog/internal/supervisor"
)

// AddOutboxToSupervisor is a no-op stub for builds without the wal tag.
func AddOutboxToSupervisor(_ *supervisor.SupervisorTree, _ *OutboxComponents) {}
