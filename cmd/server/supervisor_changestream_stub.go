//go:build !nats

package main

import (
	"github.com/karlokarate/nxcatalog/internal/supervisor"
)

// AddChangeStreamToSupervisor is a no-op stub for non-NATS builds.
func AddChangeStreamToSupervisor(_ *supervisor.SupervisorTree, _ *ChangeStreamComponents) {}
