// Package main is the entry point for the nxcatalog server.
//
// nxcatalog aggregates an xtream-style HTTP provider and a messaging-
// platform export provider into one canonical media catalog: deterministic
// keys, an ingest pipeline with fingerprint dedup and rule enforcement, an
// incremental-sync decider, a priority dispatcher arbitrating provider API
// access, and a detail enrichment service, all exposed over a control-plane
// HTTP API.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Storage: Open the Badger key-value store and the DuckDB entity store
//  3. Credentials: Build the AES-GCM credential encryptor and seed the configured
//     provider account
//  4. Rule engine: Load the Casbin-backed ingest/profile rule enforcer
//  5. Catalog-mode gate: Load the persisted LEGACY/DUAL/NEW read and write modes
//  6. Catalog sync service: Wire the xtream provider into the ingest pipeline
//  7. Enrichment service: Wire detail sources for on-demand metadata fetch
//  8. NATS change stream (optional): JetStream-backed outbox event fan-out
//  9. Outbox retry loop (optional): Badger-backed durable publish retry
//  10. HTTP API: Control-plane REST endpoints
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/server      # Enable NATS JetStream change stream
//	go build -tags "wal" ./cmd/server       # Enable Badger-backed outbox retry loop
//	go build -tags "nats,wal" ./cmd/server  # Enable both
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM, draining the
// supervisor tree within its configured shutdown timeout.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karlokarate/nxcatalog/internal/cache"
	"github.com/karlokarate/nxcatalog/internal/catalogsync"
	"github.com/karlokarate/nxcatalog/internal/checkpoint"
	"github.com/karlokarate/nxcatalog/internal/config"
	"github.com/karlokarate/nxcatalog/internal/credential"
	"github.com/karlokarate/nxcatalog/internal/decider"
	"github.com/karlokarate/nxcatalog/internal/dispatcher"
	"github.com/karlokarate/nxcatalog/internal/enrichment"
	"github.com/karlokarate/nxcatalog/internal/fingerprint"
	"github.com/karlokarate/nxcatalog/internal/httpapi"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/killswitch"
	"github.com/karlokarate/nxcatalog/internal/kvstore"
	"github.com/karlokarate/nxcatalog/internal/ledger"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/nx/duckdb"
	"github.com/karlokarate/nxcatalog/internal/provider"
	"github.com/karlokarate/nxcatalog/internal/provider/xtream"
	"github.com/karlokarate/nxcatalog/internal/rules"
	"github.com/karlokarate/nxcatalog/internal/supervisor"
	"github.com/karlokarate/nxcatalog/internal/supervisor/services"
)

// defaultAccountKey is the AccountKey seeded for the single xtream account
// described by the ProviderA config block. Multi-account deployments
// provision additional SourceAccount rows out of band; this server only
// bootstraps the one it was configured for.
const defaultAccountKey = "provider-a-default"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("starting nxcatalog with supervisor tree")

	kv, err := kvstore.Open(cfg.KVStore.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open kvstore")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing kvstore")
		}
	}()

	store, err := duckdb.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open entity store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing entity store")
		}
	}()
	logging.Info().Str("path", cfg.Database.Path).Msg("entity store initialized")

	encryptor, err := credential.NewEncryptor(cfg.Credential.MasterKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize credential encryptor")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sources := make(map[keycodec.SourceType]provider.CatalogSource)
	var detailSources []provider.DetailSource

	if cfg.ProviderA.Enabled {
		if err := seedProviderAAccount(ctx, store, encryptor, cfg.ProviderA); err != nil {
			logging.Fatal().Err(err).Msg("failed to seed provider_a account")
		}
		resolver := newAccountCredentialResolver(store, encryptor)
		client := xtream.NewClient(resolver, cfg.ProviderA.RateLimitRPS, cfg.ProviderA.RateLimitBurst)
		xtreamSource := xtream.NewSource(client)
		sources[keycodec.SourceXtream] = xtreamSource
		detailSources = append(detailSources, xtreamSource)
		logging.Info().Str("base_url", cfg.ProviderA.BaseURL).Msg("provider_a (xtream) configured")
	} else {
		logging.Info().Msg("provider_a disabled")
	}

	if cfg.ProviderB.Enabled {
		logging.Warn().Msg("provider_b (messaging-platform export) is enabled in configuration but has no wired transport in this build; chat_ids will not be synced")
	}

	ruleEngine, err := rules.NewWithConfig(store, cfg.Rules)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load rule engine")
	}

	disp := dispatcher.New()

	gate, err := killswitch.New(ctx, cfg.KillSwitch, store, disp)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize catalog-mode gate")
	}
	logging.Info().
		Str("read_mode", string(gate.ReadMode())).
		Str("write_mode", string(gate.WriteMode())).
		Msg("catalog-mode gate initialized")

	normalizer := normalize.New()
	dedupCache := cache.NewExactLRU(cfg.KVStore.FingerprintFrontLRU, cfg.KVStore.FingerprintTTL)
	fingerprintStore := fingerprint.New(kv, dedupCache)
	ledgerWriter := ledger.New(store)
	checkpoints := checkpoint.New(kv)
	dec := decider.New(checkpoints)

	opts := catalogsync.DefaultOptions()
	if cfg.Sync.LowRAMMode {
		opts = catalogsync.LowRAMOptions()
	}
	opts.BufferCapacity = cfg.Sync.ChannelBufferCapacity

	syncSvc := catalogsync.New(
		sources,
		normalizer,
		noopAuthorityResolver{},
		fingerprintStore,
		ledgerWriter,
		checkpoints,
		dec,
		store,
		ruleEngine,
		disp,
		opts,
	)

	enrichSvc := enrichment.New(store, disp, detailSources, nil)

	changeStream, err := InitChangeStream(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize change stream")
	}
	publisher := OutboxPublisher(changeStream)
	outboxComponents := InitOutbox(store, kv, publisher)

	handler := httpapi.NewHandler(store, syncSvc, gate, enrichSvc)
	httpServer := httpapi.NewServer(cfg.Server, handler)

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	tree.AddMessagingService(services.NewSyncService(syncSvc))
	logging.Info().Msg("catalog sync service added to supervisor tree")

	AddChangeStreamToSupervisor(tree, changeStream)
	AddOutboxToSupervisor(tree, outboxComponents)

	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("http server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("nxcatalog stopped gracefully")
}

// seedProviderAAccount upserts the single SourceAccount described by the
// ProviderA config block, encrypting its username/password into a fresh
// CredentialsHandle on every call. This lets operators configure xtream credentials the same way
// as every other setting (env vars / config file) while the rest of the
// system only ever sees an opaque encrypted handle.
func seedProviderAAccount(ctx context.Context, store nx.EntityStore, enc *credential.Encryptor, cfg config.ProviderAConfig) error {
	handle, err := encryptXtreamCredentials(enc, cfg.Username, cfg.Password)
	if err != nil {
		return fmt.Errorf("encrypt provider_a credentials: %w", err)
	}
	account := nx.SourceAccount{
		AccountKey:        defaultAccountKey,
		ProviderType:      keycodec.SourceXtream,
		Endpoint:          cfg.BaseURL,
		CredentialsHandle: handle,
		Capabilities:      []string{"live", "vod", "series"},
	}
	if err := store.SourceAccounts().Upsert(ctx, account); err != nil {
		return fmt.Errorf("upsert provider_a account: %w", err)
	}
	return nil
}

// noopAuthorityResolver never links a raw record to an external metadata
// authority at ingest time; authority linking for this deployment happens
// later, on demand, through enrichment.Service's AuthoritySource instead of
// synchronously on the ingest hot path.
type noopAuthorityResolver struct{}

func (noopAuthorityResolver) Resolve(context.Context, normalize.ExternalIDs, keycodec.SourceKind) (normalize.AuthorityMatch, bool, error) {
	return normalize.AuthorityMatch{}, false, nil
}
