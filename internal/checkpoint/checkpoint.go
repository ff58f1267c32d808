// Package checkpoint tracks per-source sync progress: the last successful
// run timestamp the incremental-sync decider consults, and the set of
// phases completed within the current run. MarkSuccess clears that set and
// internal/catalogsync does not read it, so a resumed sync does not skip
// phases by it; every phase goes through the decider again.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/kvstore"
)

// Checkpoint is the persisted progress marker for one
// (accountKey, sourceType, contentType) scan.
type Checkpoint struct {
	AccountKey      string              `json:"accountKey"`
	SourceType      keycodec.SourceType `json:"sourceType"`
	ContentType     keycodec.SourceKind `json:"contentType"`
	LastSuccessAtMs int64               `json:"lastSuccessAtMs"`
	LastGeneration  int64               `json:"lastGeneration"`
	CompletedPhases []string            `json:"completedPhases"`
}

// HasCompletedPhase reports whether phase was already completed in the
// current (not-yet-finalized) sync attempt.
func (c Checkpoint) HasCompletedPhase(phase string) bool {
	for _, p := range c.CompletedPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// Store persists Checkpoint values in Badger via internal/kvstore, keyed
// "ckpt:<accountKey>:<sourceType>:<contentType>" so that ClearAccount can
// remove every checkpoint for an account with a single prefix delete.
type Store struct {
	kv *kvstore.Store
}

// New builds a checkpoint store over kv.
func New(kv *kvstore.Store) *Store {
	return &Store{kv: kv}
}

func storeKey(accountKey string, sourceType keycodec.SourceType, contentType keycodec.SourceKind) string {
	return fmt.Sprintf("ckpt:%s:%s:%s", accountKey, sourceType, contentType)
}

// Get returns the checkpoint for the given scan scope, or the zero value
// and false if no sync has ever run for it.
func (s *Store) Get(ctx context.Context, accountKey string, sourceType keycodec.SourceType, contentType keycodec.SourceKind) (Checkpoint, bool, error) {
	var cp Checkpoint
	err := s.kv.Get(ctx, storeKey(accountKey, sourceType, contentType), &cp)
	if err == kvstore.ErrNotFound {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("checkpoint: get: %w", err)
	}
	return cp, true, nil
}

// MarkPhaseCompleted records that phase finished within the current sync
// attempt, without advancing LastSuccessAtMs (the sync as a whole may
// still be cancelled or fail in a later phase).
func (s *Store) MarkPhaseCompleted(ctx context.Context, accountKey string, sourceType keycodec.SourceType, contentType keycodec.SourceKind, phase string) error {
	cp, _, err := s.Get(ctx, accountKey, sourceType, contentType)
	if err != nil {
		return err
	}
	cp.AccountKey, cp.SourceType, cp.ContentType = accountKey, sourceType, contentType
	if !cp.HasCompletedPhase(phase) {
		cp.CompletedPhases = append(cp.CompletedPhases, phase)
	}
	return s.put(ctx, cp)
}

// MarkSuccess finalizes a fully completed sync: records the success
// timestamp and generation, and clears the in-progress phase list (the
// next sync starts fresh rather than "resuming" a sync that already
// finished).
func (s *Store) MarkSuccess(ctx context.Context, accountKey string, sourceType keycodec.SourceType, contentType keycodec.SourceKind, atMs int64, generation int64) error {
	cp := Checkpoint{
		AccountKey:      accountKey,
		SourceType:      sourceType,
		ContentType:     contentType,
		LastSuccessAtMs: atMs,
		LastGeneration:  generation,
	}
	return s.put(ctx, cp)
}

func (s *Store) put(ctx context.Context, cp Checkpoint) error {
	if err := s.kv.Put(ctx, storeKey(cp.AccountKey, cp.SourceType, cp.ContentType), cp); err != nil {
		return fmt.Errorf("checkpoint: put: %w", err)
	}
	return nil
}

// ClearAccount resets all resume state for an account across every
// sourceType/contentType combination (the catalog sync service's
// clearCheckpoint(accountKey) operation).
func (s *Store) ClearAccount(ctx context.Context, accountKey string) error {
	if err := s.kv.DeletePrefix(ctx, fmt.Sprintf("ckpt:%s:", accountKey)); err != nil {
		return fmt.Errorf("checkpoint: clearAccount: %w", err)
	}
	return nil
}
