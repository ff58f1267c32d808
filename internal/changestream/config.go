//go:build nats

// Package changestream fans CloudOutboxEvent rows out to NATS JetStream via
// Watermill, and exposes a Watermill Router so external consumers can watch
// catalog changes as they land. It is the NATS half of the outbox pattern;
// internal/outbox drives when an event is attempted, changestream is how it
// actually leaves the process.
package changestream

import (
	"time"

	"github.com/karlokarate/nxcatalog/internal/config"
)

// ServerConfig configures the optional embedded NATS server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// ServerConfigFrom derives a ServerConfig from the application's NATSConfig.
func ServerConfigFrom(cfg config.NATSConfig) ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          cfg.StoreDir,
		JetStreamMaxMem:   cfg.MaxMemory,
		JetStreamMaxStore: cfg.MaxStore,
	}
}

// PublisherConfig configures the resilient JetStream publisher.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool
}

// PublisherConfigFrom derives a PublisherConfig from url and cfg.
func PublisherConfigFrom(url string, cfg config.NATSConfig) PublisherConfig {
	reconnectWait := cfg.RouterRetryInitialInterval
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1,
		ReconnectWait:    reconnectWait,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: cfg.RouterDeduplicationEnabled,
	}
}

// StreamConfig defines the catalog change-event stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// StreamConfigFrom derives a StreamConfig from the application's NATSConfig.
// Subjects are hierarchical per outbox event kind: catalog.work,
// catalog.category, catalog.account, so a consumer can subscribe narrowly
// (catalog.work) or broadly (catalog.>).
func StreamConfigFrom(cfg config.NATSConfig) StreamConfig {
	retention := time.Duration(cfg.StreamRetentionDays) * 24 * time.Hour
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return StreamConfig{
		Name:            "NXCATALOG_CHANGES",
		Subjects:        []string{"catalog.>"},
		MaxAge:          retention,
		MaxBytes:        10 * 1024 * 1024 * 1024,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// SubscriberConfig configures a durable JetStream consumer.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
	StreamName       string

	RouterRetryCount   int
	RouterCloseTimeout time.Duration
	PoisonQueueTopic   string
}

// SubscriberConfigFrom derives a SubscriberConfig from url and cfg.
func SubscriberConfigFrom(url string, cfg config.NATSConfig) SubscriberConfig {
	closeTimeout := cfg.RouterCloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 10 * time.Second
	}
	retryCount := cfg.RouterRetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	return SubscriberConfig{
		URL:                url,
		DurableName:        cfg.DurableName,
		QueueGroup:         cfg.QueueGroup,
		SubscribersCount:   max(cfg.SubscribersCount, 1),
		AckWaitTimeout:     30 * time.Second,
		MaxDeliver:         5,
		MaxAckPending:      1000,
		CloseTimeout:       10 * time.Second,
		MaxReconnects:      -1,
		ReconnectWait:      2 * time.Second,
		RouterRetryCount:   retryCount,
		RouterCloseTimeout: closeTimeout,
		PoisonQueueTopic:   cfg.RouterPoisonQueueTopic,
	}
}
