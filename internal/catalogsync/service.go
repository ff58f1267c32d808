package catalogsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/karlokarate/nxcatalog/internal/checkpoint"
	"github.com/karlokarate/nxcatalog/internal/decider"
	"github.com/karlokarate/nxcatalog/internal/dispatcher"
	"github.com/karlokarate/nxcatalog/internal/fingerprint"
	"github.com/karlokarate/nxcatalog/internal/ingest"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/ledger"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/normalize"
	"github.com/karlokarate/nxcatalog/internal/nx"
	"github.com/karlokarate/nxcatalog/internal/provider"
)

// accountObserveBufferSize bounds the SourceAccounts() observe snapshot
// Start subscribes to. It must stay within the entity store's fixed
// subscriber buffer so the initial snapshot send cannot outrun a reader
// that has not started ranging yet.
const accountObserveBufferSize = 32

// standardPhases is the full phase set a newly-seen or changed account is
// synced across, per spec.md §5's fixed phase order.
var standardPhases = []provider.Phase{provider.PhaseLive, provider.PhaseVOD, provider.PhaseSeries, provider.PhaseEpisodes}

// Default and low-RAM consumer-pool sizing, per spec.md §4.8.
const (
	DefaultConsumerCount = 3
	LowRAMConsumerCount  = 2
)

// Request describes one sync(config) call.
type Request struct {
	AccountKey string
	SourceType keycodec.SourceType
	Phases     []provider.Phase
	ForceFull  bool
}

// Options tunes a Service's resource profile.
type Options struct {
	BufferCapacity int
	ConsumerCount  int
	BatchSize      int
}

// DefaultOptions returns the non-low-RAM profile's sizing.
func DefaultOptions() Options {
	return Options{
		BufferCapacity: ingest.DefaultCapacity,
		ConsumerCount:  DefaultConsumerCount,
		BatchSize:      ingest.DefaultBatchSize,
	}
}

// LowRAMOptions returns the low-memory profile's sizing.
func LowRAMOptions() Options {
	return Options{
		BufferCapacity: ingest.LowRAMCapacity,
		ConsumerCount:  LowRAMConsumerCount,
		BatchSize:      ingest.LowRAMBatchSize,
	}
}

// Service is the catalog sync service: sync/cancel/loadCategories/
// clearCheckpoint over a set of provider sources.
type Service struct {
	sources     map[keycodec.SourceType]provider.CatalogSource
	normalizer  *normalize.Normalizer
	resolver    normalize.AuthorityResolver
	fingerprint *fingerprint.Store
	ledger      *ledger.Writer
	checkpoints *checkpoint.Store
	decider     *decider.Decider
	store       nx.EntityStore
	rules       ingest.RuleEngine
	dispatcher  *dispatcher.Dispatcher
	opts        Options

	mu               sync.Mutex
	cancels          map[string]context.CancelFunc
	backgroundCancel context.CancelFunc
	wg               sync.WaitGroup
}

// New builds a Service. rules and disp may be nil (see ingest.Pipeline's
// own nil-handling).
func New(
	sources map[keycodec.SourceType]provider.CatalogSource,
	normalizer *normalize.Normalizer,
	resolver normalize.AuthorityResolver,
	fingerprintStore *fingerprint.Store,
	ledgerWriter *ledger.Writer,
	checkpoints *checkpoint.Store,
	dec *decider.Decider,
	store nx.EntityStore,
	rules ingest.RuleEngine,
	disp *dispatcher.Dispatcher,
	opts Options,
) *Service {
	if opts.BufferCapacity <= 0 {
		opts = DefaultOptions()
	}
	return &Service{
		sources:     sources,
		normalizer:  normalizer,
		resolver:    resolver,
		fingerprint: fingerprintStore,
		ledger:      ledgerWriter,
		checkpoints: checkpoints,
		decider:     dec,
		store:       store,
		rules:       rules,
		dispatcher:  disp,
		opts:        opts,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Start begins the background account watcher: it subscribes to
// SourceAccounts changes and triggers a full-phase Sync for every account
// it is first notified of or sees change, so a newly registered or
// reconfigured account starts catching up without an explicit Sync call.
// Start is idempotent; calling it twice without an intervening Stop is a
// no-op satisfying supervisor.StartStopManager.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.backgroundCancel != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.backgroundCancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.watchAccounts(runCtx)
	return nil
}

// Stop cancels the background account watcher and waits for it to exit.
func (s *Service) Stop() error {
	s.mu.Lock()
	cancel := s.backgroundCancel
	s.backgroundCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Service) watchAccounts(ctx context.Context) {
	defer s.wg.Done()

	ch, err := s.store.SourceAccounts().ObserveByType(ctx, accountObserveBufferSize)
	if err != nil {
		logging.Error().Err(err).Msg("catalogsync: subscribe to source accounts failed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Deleted {
				continue
			}
			s.triggerBackgroundSync(ctx, ev.Value)
		}
	}
}

// triggerBackgroundSync kicks off a standard-phase Sync for account,
// draining its status stream in the background. registerRun already
// guards against overlapping runs for the same account, so a burst of
// change notifications collapses to at most one active sync per account.
func (s *Service) triggerBackgroundSync(ctx context.Context, account nx.SourceAccount) {
	req := Request{AccountKey: account.AccountKey, SourceType: account.ProviderType, Phases: standardPhases}
	statusCh := s.Sync(ctx, req)

	go func() {
		for status := range statusCh {
			if status.Kind == Error {
				logging.Warn().Str("account_key", account.AccountKey).Str("error_type", status.ErrorType).Str("message", status.Message).Msg("catalogsync: background sync reported an error")
			}
		}
	}()
}

// Sync starts a sync for req and returns a stream of Status values. The
// returned channel is closed once the sync reaches a terminal state
// (Completed, Cancelled, or Error). Only one sync per AccountKey may run
// at a time; starting a second returns a channel with a single Error
// status.
func (s *Service) Sync(ctx context.Context, req Request) <-chan Status {
	out := make(chan Status, 8)

	runCtx, cancel := context.WithCancel(ctx)
	if !s.registerRun(req.AccountKey, cancel) {
		cancel()
		go func() {
			out <- Status{Kind: Error, ErrorType: "already_running", Message: fmt.Sprintf("sync already in progress for %s", req.AccountKey), CanRetry: false}
			close(out)
		}()
		return out
	}

	go func() {
		defer close(out)
		defer s.unregisterRun(req.AccountKey)
		s.run(runCtx, req, out)
	}()

	return out
}

// Cancel requests the in-flight sync for accountKey to stop. It reports
// whether a running sync was found.
func (s *Service) Cancel(accountKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[accountKey]
	if ok {
		cancel()
	}
	return ok
}

func (s *Service) registerRun(accountKey string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.cancels[accountKey]; running {
		return false
	}
	s.cancels[accountKey] = cancel
	return true
}

func (s *Service) unregisterRun(accountKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cancels, accountKey)
}

// LoadCategories fetches accountKey's category tree from its provider and
// upserts it into the entity store.
func (s *Service) LoadCategories(ctx context.Context, accountKey string, sourceType keycodec.SourceType) ([]nx.Category, error) {
	source, ok := s.sources[sourceType]
	if !ok {
		return nil, fmt.Errorf("catalogsync: no source registered for %s", sourceType)
	}
	categories, err := source.ListCategories(ctx, accountKey)
	if err != nil {
		return nil, fmt.Errorf("catalogsync: load categories for %s: %w", accountKey, err)
	}
	if err := s.store.Categories().UpsertBatch(ctx, categories); err != nil {
		return nil, fmt.Errorf("catalogsync: persist categories for %s: %w", accountKey, err)
	}
	return categories, nil
}

// ClearCheckpoint resets all resume state for accountKey, forcing the
// next sync to run full regardless of recency.
func (s *Service) ClearCheckpoint(ctx context.Context, accountKey string) error {
	return s.checkpoints.ClearAccount(ctx, accountKey)
}

func (s *Service) run(ctx context.Context, req Request, out chan<- Status) {
	out <- Status{Kind: Started}

	source, ok := s.sources[req.SourceType]
	if !ok {
		out <- Status{Kind: Error, ErrorType: "unknown_source", Message: fmt.Sprintf("no source registered for %s", req.SourceType), CanRetry: false}
		return
	}

	generation := time.Now().UnixMilli()

	for _, phase := range req.Phases {
		if err := ctx.Err(); err != nil {
			out <- Status{Kind: Cancelled, Phase: phase, Reason: "cancelled before phase start", CanResume: true}
			return
		}

		if !s.runPhase(ctx, source, req, phase, generation, out) {
			return
		}
	}
}

// runPhase runs one phase to completion, reporting status along the way.
// It returns false if the overall sync should stop (cancellation or a
// terminal error already reported).
func (s *Service) runPhase(ctx context.Context, source provider.CatalogSource, req Request, phase provider.Phase, generation int64, out chan<- Status) bool {
	contentKind := phaseToKind(phase)

	decision, err := s.decider.Decide(ctx, req.SourceType, req.AccountKey, contentKind, req.ForceFull)
	if err != nil {
		out <- Status{Kind: Error, Phase: phase, ErrorType: "decider_error", Message: err.Error(), CanRetry: true}
		return false
	}
	if decision.Strategy == decider.SkipSync {
		out <- Status{Kind: InProgress, Phase: phase, Reason: decision.Reason}
		return true
	}

	sinceMs := decision.SinceMs
	wasIncremental := decision.Strategy == decider.IncrementalSync

	buf := ingest.NewBuffer[ingest.Candidate](req.AccountKey+":"+string(phase), s.opts.BufferCapacity)
	pipeline := ingest.NewPipeline(source, s.normalizer, s.resolver, s.fingerprint, s.ledger, s.rules, s.dispatcher)
	committer := ingest.NewCommitter(s.store, s.ledger)

	start := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)

	var result ingest.RunResult
	group.Go(func() error {
		r, err := pipeline.Run(groupCtx, req.AccountKey, phase, sinceMs, generation, buf)
		result = r
		return err
	})
	for i := 0; i < s.opts.ConsumerCount; i++ {
		group.Go(func() error {
			return committer.RunConsumer(groupCtx, buf, s.opts.BatchSize)
		})
	}

	runErr := group.Wait()
	if runErr != nil {
		if ctx.Err() != nil {
			out <- Status{Kind: Cancelled, Phase: phase, Processed: result.Totals.Discovered, Reason: "cancelled", CanResume: true}
			return false
		}
		out <- Status{Kind: Error, Phase: phase, ErrorType: "phase_error", Message: runErr.Error(), Processed: result.Totals.Discovered, CanRetry: true}
		return false
	}

	if err := s.checkpoints.MarkPhaseCompleted(ctx, req.AccountKey, req.SourceType, contentKind, string(phase)); err != nil {
		out <- Status{Kind: Error, Phase: phase, ErrorType: "checkpoint_error", Message: err.Error(), CanRetry: true}
		return false
	}

	if !wasIncremental {
		if _, err := s.fingerprint.Sweep(ctx, req.SourceType, req.AccountKey, contentKind, generation); err != nil {
			out <- Status{Kind: Error, Phase: phase, ErrorType: "sweep_error", Message: err.Error(), CanRetry: true}
			return false
		}
	}

	if err := s.checkpoints.MarkSuccess(ctx, req.AccountKey, req.SourceType, contentKind, time.Now().UnixMilli(), generation); err != nil {
		out <- Status{Kind: Error, Phase: phase, ErrorType: "checkpoint_error", Message: err.Error(), CanRetry: true}
		return false
	}

	out <- Status{
		Kind:           Completed,
		Phase:          phase,
		Totals:         result.Totals,
		DurationMs:     time.Since(start).Milliseconds(),
		WasIncremental: wasIncremental,
	}
	return true
}

func phaseToKind(phase provider.Phase) keycodec.SourceKind {
	switch phase {
	case provider.PhaseLive:
		return keycodec.KindLive
	case provider.PhaseVOD:
		return keycodec.KindVod
	case provider.PhaseSeries:
		return keycodec.KindSeries
	case provider.PhaseEpisodes:
		return keycodec.KindEpisode
	default:
		return keycodec.KindVod
	}
}
