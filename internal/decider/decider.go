// Package decider computes the incremental-sync strategy for one scan
// scope from checkpoint timing, per spec.md §4.4.
package decider

import (
	"context"
	"fmt"
	"time"

	"github.com/karlokarate/nxcatalog/internal/checkpoint"
	"github.com/karlokarate/nxcatalog/internal/keycodec"
)

// MinimumInterval is the minimum time that must have elapsed since the
// last successful sync before a non-forced sync is allowed to proceed
// rather than being skipped.
const MinimumInterval = 60 * time.Second

// Strategy is the sealed set of decisions the decider can return.
type Strategy int

const (
	// SkipSync means no work is needed; too little time has passed.
	SkipSync Strategy = iota
	// IncrementalSync means scan only items added/changed since SinceMs.
	IncrementalSync
	// FullSync means scan the entire catalog for this scope.
	FullSync
)

func (s Strategy) String() string {
	switch s {
	case SkipSync:
		return "skip"
	case IncrementalSync:
		return "incremental"
	case FullSync:
		return "full"
	default:
		return "unknown"
	}
}

// Decision is the decider's output: a Strategy plus the reason (for
// SkipSync/FullSync) or the cutoff timestamp (for IncrementalSync).
type Decision struct {
	Strategy Strategy
	Reason   string // populated for SkipSync and FullSync
	SinceMs  int64  // populated for IncrementalSync
}

// Decider consults the checkpoint store to compute a Decision.
type Decider struct {
	checkpoints *checkpoint.Store
	minInterval time.Duration
}

// New builds a Decider backed by checkpoints, using the default minimum
// interval.
func New(checkpoints *checkpoint.Store) *Decider {
	return &Decider{checkpoints: checkpoints, minInterval: MinimumInterval}
}

// WithMinimumInterval overrides the default minimum interval (tests only;
// production deployments should use the spec default).
func (d *Decider) WithMinimumInterval(interval time.Duration) *Decider {
	d.minInterval = interval
	return d
}

// Decide computes the sync strategy for one (sourceType, accountKey,
// contentType) scope.
func (d *Decider) Decide(ctx context.Context, sourceType keycodec.SourceType, accountKey string, contentType keycodec.SourceKind, forceFull bool) (Decision, error) {
	if forceFull {
		return Decision{Strategy: FullSync, Reason: "forced"}, nil
	}

	cp, hasPrior, err := d.checkpoints.Get(ctx, accountKey, sourceType, contentType)
	if err != nil {
		return Decision{}, fmt.Errorf("decider: get checkpoint: %w", err)
	}
	if !hasPrior || cp.LastSuccessAtMs == 0 {
		return Decision{Strategy: FullSync, Reason: "no prior successful sync"}, nil
	}

	age := time.Since(time.UnixMilli(cp.LastSuccessAtMs))
	if age < d.minInterval {
		return Decision{Strategy: SkipSync, Reason: "last success within minimum interval"}, nil
	}

	return Decision{Strategy: IncrementalSync, SinceMs: cp.LastSuccessAtMs}, nil
}
