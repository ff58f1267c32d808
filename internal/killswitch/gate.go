// Package killswitch implements the catalog-mode gate (spec.md §4.10): two
// independent runtime modes, ReadMode and WriteMode, each LEGACY/DUAL/NEW,
// persisted so a restart resumes the last mode rather than falling back to
// config defaults, and changeable without restart. Every read and write to
// the catalog is meant to pass through Read/Write, which dispatch to the
// legacy or new backend closures the caller supplies.
package killswitch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/karlokarate/nxcatalog/internal/config"
	"github.com/karlokarate/nxcatalog/internal/dispatcher"
	"github.com/karlokarate/nxcatalog/internal/logging"
	"github.com/karlokarate/nxcatalog/internal/metrics"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// Gate holds the live read/write modes in atomic in-process values (never
// re-read from config after startup) and persists every transition as an
// nx.CatalogModeState so the gate survives a restart. The zero value is
// not usable; construct with New.
type Gate struct {
	store      nx.EntityStore
	dispatcher *dispatcher.Dispatcher

	readMode  atomic.Value // nx.CatalogMode
	writeMode atomic.Value // nx.CatalogMode
}

// New builds a Gate, loading each path's persisted mode if one exists and
// otherwise seeding it from cfg and persisting that seed.
func New(ctx context.Context, cfg config.KillSwitchConfig, store nx.EntityStore, disp *dispatcher.Dispatcher) (*Gate, error) {
	g := &Gate{store: store, dispatcher: disp}

	readMode, err := loadOrSeed(ctx, store, nx.CatalogModePathRead, parseMode(cfg.ReadMode))
	if err != nil {
		return nil, fmt.Errorf("killswitch: load read mode: %w", err)
	}
	writeMode, err := loadOrSeed(ctx, store, nx.CatalogModePathWrite, parseMode(cfg.WriteMode))
	if err != nil {
		return nil, fmt.Errorf("killswitch: load write mode: %w", err)
	}

	g.readMode.Store(readMode)
	g.writeMode.Store(writeMode)
	metrics.SetKillSwitchMode(string(nx.CatalogModePathRead), string(readMode))
	metrics.SetKillSwitchMode(string(nx.CatalogModePathWrite), string(writeMode))

	return g, nil
}

func loadOrSeed(ctx context.Context, store nx.EntityStore, path nx.CatalogModePath, seed nx.CatalogMode) (nx.CatalogMode, error) {
	state, err := store.CatalogModeStates().Get(ctx, string(path))
	if err == nil {
		return state.Mode, nil
	}
	if err != nx.ErrNotFound {
		return "", err
	}
	if err := store.CatalogModeStates().Upsert(ctx, nx.CatalogModeState{Path: path, Mode: seed, UpdatedAtMs: time.Now().UnixMilli()}); err != nil {
		return "", err
	}
	return seed, nil
}

func parseMode(s string) nx.CatalogMode {
	switch s {
	case "new":
		return nx.CatalogModeNew
	case "dual":
		return nx.CatalogModeDual
	default:
		return nx.CatalogModeLegacy
	}
}

// ReadMode reports the gate's current read-path mode.
func (g *Gate) ReadMode() nx.CatalogMode { return g.readMode.Load().(nx.CatalogMode) }

// WriteMode reports the gate's current write-path mode.
func (g *Gate) WriteMode() nx.CatalogMode { return g.writeMode.Load().(nx.CatalogMode) }

// SetMode transitions one path to mode. Per the dispatcher-guarded mode
// swap decision, the transition itself runs holding the dispatcher's
// CRITICAL slot so no in-flight Read/Write call can observe a torn
// transition between loading the old mode and committing the new one.
func (g *Gate) SetMode(ctx context.Context, path nx.CatalogModePath, mode nx.CatalogMode) error {
	return g.withCritical(ctx, func(ctx context.Context) error {
		return g.setModeLocked(ctx, path, mode)
	})
}

// Rollback atomically returns both ReadMode and WriteMode to LEGACY,
// holding a single CRITICAL slot for both transitions together so neither
// path is observed updated without the other.
func (g *Gate) Rollback(ctx context.Context) error {
	return g.withCritical(ctx, func(ctx context.Context) error {
		if err := g.setModeLocked(ctx, nx.CatalogModePathRead, nx.CatalogModeLegacy); err != nil {
			return err
		}
		return g.setModeLocked(ctx, nx.CatalogModePathWrite, nx.CatalogModeLegacy)
	})
}

func (g *Gate) withCritical(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.dispatcher == nil {
		return fn(ctx)
	}
	return g.dispatcher.WithCritical(ctx, fn)
}

func (g *Gate) setModeLocked(ctx context.Context, path nx.CatalogModePath, mode nx.CatalogMode) error {
	var current *atomic.Value
	switch path {
	case nx.CatalogModePathRead:
		current = &g.readMode
	case nx.CatalogModePathWrite:
		current = &g.writeMode
	default:
		return fmt.Errorf("killswitch: unknown path %q", path)
	}

	from, _ := current.Load().(nx.CatalogMode)
	if from == mode {
		return nil
	}

	if err := g.store.CatalogModeStates().Upsert(ctx, nx.CatalogModeState{Path: path, Mode: mode, UpdatedAtMs: time.Now().UnixMilli()}); err != nil {
		return fmt.Errorf("killswitch: persist %s mode: %w", path, err)
	}
	current.Store(mode)

	metrics.SetKillSwitchMode(string(path), string(mode))
	metrics.RecordKillSwitchTransition(string(path), string(from), string(mode))
	logging.Info().Str("path", string(path)).Str("from", string(from)).Str("to", string(mode)).Msg("catalog-mode transition")
	return nil
}

// Read dispatches to legacy or newBackend per the gate's current
// ReadMode. DUAL prefers newBackend, falling back to legacy only if
// newBackend errors.
func Read[T any](ctx context.Context, g *Gate, legacy, newBackend func(ctx context.Context) (T, error)) (T, error) {
	switch g.ReadMode() {
	case nx.CatalogModeNew:
		return newBackend(ctx)
	case nx.CatalogModeDual:
		v, err := newBackend(ctx)
		if err == nil {
			return v, nil
		}
		return legacy(ctx)
	default:
		return legacy(ctx)
	}
}

// Write dispatches to legacy or newBackend per the gate's current
// WriteMode. DUAL writes both, unconditionally attempting both even if
// the first fails so neither backend silently falls behind; the first
// error encountered is returned.
func Write(ctx context.Context, g *Gate, legacy, newBackend func(ctx context.Context) error) error {
	switch g.WriteMode() {
	case nx.CatalogModeNew:
		return newBackend(ctx)
	case nx.CatalogModeDual:
		errLegacy := legacy(ctx)
		errNew := newBackend(ctx)
		if errLegacy != nil {
			return errLegacy
		}
		return errNew
	default:
		return legacy(ctx)
	}
}
