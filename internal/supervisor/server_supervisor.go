
// Package supervisor provides Suture-based process supervision for the
// catalog aggregation engine.
// This file implements the ChannelSupervisor for dynamic messaging-platform
// channel ingestion management.
//
// ChannelSupervisor manages one channel sync service per configured
// messaging-platform channel (chatId). Services can be added, removed, and
// restarted at runtime without touching the other channels' services, each
// getting its own Suture-supervised service for fault isolation.
//
// Example Usage:
//
//	supervisor := NewChannelSupervisor(tree, listener)
//	if err := supervisor.StartAll(ctx, cfg.ProviderB.ChatIDs); err != nil {
//	    log.Error().Err(err).Msg("some channels failed to start")
//	}
//
//	if err := supervisor.AddChannel(ctx, chatID); err != nil {
//	    log.Error().Err(err).Msg("failed to add channel")
//	}
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/karlokarate/nxcatalog/internal/logging"
)

// Errors for ChannelSupervisor.
var (
	ErrChannelAlreadyExists = errors.New("channel already managed by supervisor")
	ErrChannelNotRunning    = errors.New("channel is not running")
	ErrNilSupervisorTree    = errors.New("supervisor tree cannot be nil")
	ErrNilChannelListener   = errors.New("channel listener cannot be nil")
)

// ChannelStatus represents the current status of a managed channel.
type ChannelStatus struct {
	ChatID         int64      `json:"chat_id"`
	Running        bool       `json:"running"`
	Status         string     `json:"status"` // connected, syncing, error, disabled
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus string     `json:"last_sync_status,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
}

// managedChannel holds metadata about a running per-channel service.
type managedChannel struct {
	token     suture.ServiceToken
	chatID    int64
	service   suture.Service
	startedAt time.Time
}

// ChannelListener creates the long-running service that listens to a single
// messaging-platform channel and feeds its messages into the channel sync
// buffer.
type ChannelListener interface {
	NewChannelService(chatID int64) suture.Service
}

// ChannelSupervisor manages ingestion services for all configured
// messaging-platform channels.
//
// Thread Safety:
//   - All operations are protected by a read-write mutex
//   - The channels map is safe for concurrent access
//   - Individual services handle their own internal concurrency
type ChannelSupervisor struct {
	tree     *SupervisorTree
	listener ChannelListener
	channels map[int64]*managedChannel
	mu       sync.RWMutex
}

// NewChannelSupervisor creates a new channel supervisor.
func NewChannelSupervisor(tree *SupervisorTree, listener ChannelListener) (*ChannelSupervisor, error) {
	if tree == nil {
		return nil, ErrNilSupervisorTree
	}
	if listener == nil {
		return nil, ErrNilChannelListener
	}

	return &ChannelSupervisor{
		tree:     tree,
		listener: listener,
		channels: make(map[int64]*managedChannel),
	}, nil
}

// StartAll starts ingestion services for every configured chat ID.
// This should be called during application startup.
func (s *ChannelSupervisor) StartAll(ctx context.Context, chatIDs []int64) error {
	logging.Info().Int("count", len(chatIDs)).Msg("starting channel sync services")

	var startErrors []error
	for _, chatID := range chatIDs {
		if err := s.AddChannel(ctx, chatID); err != nil {
			logging.Warn().
				Int64("chat_id", chatID).
				Err(err).
				Msg("failed to start channel sync service")
			startErrors = append(startErrors, err)
		}
	}

	if len(startErrors) > 0 {
		return fmt.Errorf("failed to start %d channels", len(startErrors))
	}

	logging.Info().Int("count", len(chatIDs)).Msg("all channel sync services started")
	return nil
}

// AddChannel adds a new channel to the supervisor and starts its ingestion service.
//
// If the channel is already managed, returns ErrChannelAlreadyExists.
// The service is automatically restarted by Suture if it crashes.
func (s *ChannelSupervisor) AddChannel(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.channels[chatID]; exists {
		return ErrChannelAlreadyExists
	}

	svc := s.listener.NewChannelService(chatID)
	token := s.tree.AddMessagingService(svc)

	now := time.Now()
	s.channels[chatID] = &managedChannel{
		token:     token,
		chatID:    chatID,
		service:   svc,
		startedAt: now,
	}

	logging.Info().Int64("chat_id", chatID).Msg("channel sync service added to supervisor")
	return nil
}

// RemoveChannel stops and removes a channel's ingestion service.
//
// Returns ErrChannelNotRunning if the channel is not currently managed.
// The removal is graceful - Suture waits for the service to stop.
func (s *ChannelSupervisor) RemoveChannel(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	managed, exists := s.channels[chatID]
	if !exists {
		return ErrChannelNotRunning
	}

	if err := s.tree.RemoveMessagingService(managed.token); err != nil {
		return fmt.Errorf("failed to remove service from supervisor: %w", err)
	}

	delete(s.channels, chatID)

	logging.Info().Int64("chat_id", chatID).Msg("channel sync service removed from supervisor")
	return nil
}

// RestartChannel stops and restarts a channel's ingestion service, e.g. after
// a session handle rotation.
func (s *ChannelSupervisor) RestartChannel(ctx context.Context, chatID int64) error {
	s.mu.RLock()
	_, exists := s.channels[chatID]
	s.mu.RUnlock()

	if !exists {
		return s.AddChannel(ctx, chatID)
	}

	if err := s.RemoveChannel(ctx, chatID); err != nil {
		return fmt.Errorf("failed to remove old service: %w", err)
	}

	if err := s.AddChannel(ctx, chatID); err != nil {
		return fmt.Errorf("failed to add restarted service: %w", err)
	}

	logging.Info().Int64("chat_id", chatID).Msg("channel sync service restarted")
	return nil
}

// GetChannelStatus returns the current status of a managed channel.
func (s *ChannelSupervisor) GetChannelStatus(chatID int64) (*ChannelStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	managed, exists := s.channels[chatID]
	if !exists {
		return nil, ErrChannelNotRunning
	}

	return &ChannelStatus{
		ChatID:    managed.chatID,
		Running:   true,
		Status:    "connected",
		StartedAt: &managed.startedAt,
	}, nil
}

// GetAllChannelStatuses returns status for all managed channels.
func (s *ChannelSupervisor) GetAllChannelStatuses() []ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]ChannelStatus, 0, len(s.channels))
	for _, managed := range s.channels {
		statuses = append(statuses, ChannelStatus{
			ChatID:    managed.chatID,
			Running:   true,
			Status:    "connected",
			StartedAt: &managed.startedAt,
		})
	}

	return statuses
}

// IsChannelRunning checks if a channel's ingestion service is currently running.
func (s *ChannelSupervisor) IsChannelRunning(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.channels[chatID]
	return exists
}

// StopAll stops all managed channel ingestion services.
// This should be called during application shutdown.
func (s *ChannelSupervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stopErrors []error
	for chatID, managed := range s.channels {
		if err := s.tree.RemoveMessagingService(managed.token); err != nil {
			logging.Warn().
				Int64("chat_id", chatID).
				Err(err).
				Msg("failed to stop channel sync service")
			stopErrors = append(stopErrors, err)
		}
	}

	s.channels = make(map[int64]*managedChannel)

	if len(stopErrors) > 0 {
		return fmt.Errorf("failed to stop %d channels", len(stopErrors))
	}

	logging.Info().Msg("all channel sync services stopped")
	return nil
}
