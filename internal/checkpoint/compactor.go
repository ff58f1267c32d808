package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/karlokarate/nxcatalog/internal/kvstore"
	"github.com/karlokarate/nxcatalog/internal/logging"
)

// DefaultCompactInterval matches the teacher's WAL compactor default.
const DefaultCompactInterval = 5 * time.Minute

// DefaultDiscardRatio is Badger's own recommended value-log GC threshold.
const DefaultDiscardRatio = 0.5

// Compactor periodically runs Badger's value-log garbage collection
// against the checkpoint/fingerprint key space. It satisfies the
// WALStartStopper interface expected by
// internal/supervisor/services.WALCompactorService.
type Compactor struct {
	kv       *kvstore.Store
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	lastRun time.Time
}

// NewCompactor builds a Compactor over kv with the default interval.
func NewCompactor(kv *kvstore.Store) *Compactor {
	return &Compactor{kv: kv, interval: DefaultCompactInterval}
}

// WithInterval overrides the default compaction interval.
func (c *Compactor) WithInterval(d time.Duration) *Compactor {
	c.interval = d
	return c
}

// Start begins the background GC loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	logging.Info().Dur("interval", c.interval).Msg("checkpoint compactor started")
	return nil
}

// Stop gracefully stops the GC loop.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("checkpoint compactor stopped")
}

// IsRunning reports whether the compactor's loop is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compactor) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.compactOnce()
		}
	}
}

func (c *Compactor) compactOnce() {
	start := time.Now()
	if err := c.kv.RunValueLogGC(DefaultDiscardRatio); err != nil {
		logging.Error().Err(err).Msg("checkpoint compactor GC error")
		return
	}

	c.mu.Lock()
	c.lastRun = time.Now()
	c.mu.Unlock()

	logging.Debug().Dur("duration", time.Since(start)).Msg("checkpoint compactor GC pass complete")
}

// RunNow triggers an immediate compaction pass, bypassing the ticker.
func (c *Compactor) RunNow() error {
	c.compactOnce()
	return nil
}

// LastRun returns the time of the most recently completed GC pass.
func (c *Compactor) LastRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}
