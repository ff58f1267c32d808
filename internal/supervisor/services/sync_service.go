
package services

import (
	"context"
	"fmt"
)

// StartStopManager interface matches the catalog sync service's lifecycle.
//
// This interface abstracts the sync service's Start/Stop pattern, allowing the
// SyncService wrapper to adapt it to suture's Serve pattern without importing
// the catalogsync package, avoiding circular dependencies.
//
// Satisfied by *catalogsync.Service from internal/catalogsync.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService wraps the catalog sync service as a supervised service.
//
// It adapts the Start/Stop lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to begin polling the xtream-style provider and draining
//     the channel sync buffer
//  2. Waits for context cancellation
//  3. Calls Stop() for graceful shutdown
//
// The sync service handles its own goroutines internally via WaitGroup,
// so this wrapper simply orchestrates the lifecycle transitions.
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService creates a new sync service wrapper.
//
// Example usage:
//
//	syncSvc := catalogsync.NewService(store, providerAClient, decider)
//	svc := services.NewSyncService(syncSvc)
//	tree.AddMessagingService(svc)
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "catalog-sync",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the catalog sync service (which spawns its internal goroutines)
//  2. Blocks until the context is canceled
//  3. Stops the catalog sync service (which waits for its goroutines to complete)
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (s *SyncService) Serve(ctx context.Context) error {
	// Start the service - this spawns internal goroutines but returns immediately
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("catalog sync start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Stop the service - this blocks until all internal goroutines complete
	if err := s.manager.Stop(); err != nil {
		// Log but don't return the error - we're shutting down anyway
		// and the context error is the primary cause
		return fmt.Errorf("catalog sync stop failed: %w", err)
	}

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *SyncService) String() string {
	return s.name
}
