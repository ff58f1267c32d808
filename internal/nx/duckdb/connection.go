// Package duckdb is the durable EntityStore backend: one DuckDB table per
// entity kind, each holding a key/JSON-payload pair, queried through
// database/sql via the duckdb-go/v2 driver. It implements the same
// nx.EntityStore contract as nx.NewMemEntityStore, so callers never branch
// on which backend is wired in.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/goccy/go-json"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/karlokarate/nxcatalog/internal/config"
	"github.com/karlokarate/nxcatalog/internal/nx"
)

// EntityStore is the DuckDB-backed nx.EntityStore: one table[T] per entity
// kind sharing a single connection and prepared-statement cache.
type EntityStore struct {
	conn *sql.DB

	stmtCache map[string]*sql.Stmt
	stmtMu    sync.Mutex

	works             *table[nx.Work]
	workSourceRefs    *table[nx.WorkSourceRef]
	workVariants      *table[nx.WorkVariant]
	workRelations     *table[nx.WorkRelation]
	workUserStates    *table[nx.WorkUserState]
	workRuntimeStates *table[nx.WorkRuntimeState]
	ingestLedgers     *table[nx.IngestLedger]
	profiles          *table[nx.Profile]
	profileRules      *table[nx.ProfileRule]
	profileUsages     *table[nx.ProfileUsage]
	sourceAccounts    *table[nx.SourceAccount]
	categories        *table[nx.Category]
	workCategoryRefs  *table[nx.WorkCategoryRef]
	workEmbeddings    *table[nx.WorkEmbedding]
	workRedirects     *table[nx.WorkRedirect]
	cloudOutboxEvents *table[nx.CloudOutboxEvent]
	catalogModeStates *table[nx.CatalogModeState]
}

// New opens (or creates) the DuckDB file at cfg.Path, creates every entity
// table if absent, and returns a ready EntityStore.
func New(cfg *config.DatabaseConfig) (*EntityStore, error) {
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("duckdb: create data directory %s: %w", dir, err)
			}
		}
	}

	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}
	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, maxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open %s: %w", cfg.Path, err)
	}
	conn.SetMaxOpenConns(1) // DuckDB's single-writer model; see teacher's configureConnectionPool.

	store := &EntityStore{
		conn:      conn,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := store.createTables(cfg.SkipIndexes); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("duckdb: create schema: %w", err)
	}

	store.works = newTable[nx.Work](store, "nx_works")
	store.workSourceRefs = newTable[nx.WorkSourceRef](store, "nx_work_source_refs")
	store.workVariants = newTable[nx.WorkVariant](store, "nx_work_variants")
	store.workRelations = newTable[nx.WorkRelation](store, "nx_work_relations")
	store.workUserStates = newTable[nx.WorkUserState](store, "nx_work_user_states")
	store.workRuntimeStates = newTable[nx.WorkRuntimeState](store, "nx_work_runtime_states")
	store.ingestLedgers = newTable[nx.IngestLedger](store, "nx_ingest_ledgers")
	store.profiles = newTable[nx.Profile](store, "nx_profiles")
	store.profileRules = newTable[nx.ProfileRule](store, "nx_profile_rules")
	store.profileUsages = newTable[nx.ProfileUsage](store, "nx_profile_usages")
	store.sourceAccounts = newTable[nx.SourceAccount](store, "nx_source_accounts")
	store.categories = newTable[nx.Category](store, "nx_categories")
	store.workCategoryRefs = newTable[nx.WorkCategoryRef](store, "nx_work_category_refs")
	store.workEmbeddings = newTable[nx.WorkEmbedding](store, "nx_work_embeddings")
	store.workRedirects = newTable[nx.WorkRedirect](store, "nx_work_redirects")
	store.cloudOutboxEvents = newTable[nx.CloudOutboxEvent](store, "nx_cloud_outbox_events")
	store.catalogModeStates = newTable[nx.CatalogModeState](store, "nx_catalog_mode_states")

	return store, nil
}

func (s *EntityStore) Works() nx.Store[nx.Work]                         { return s.works }
func (s *EntityStore) WorkSourceRefs() nx.Store[nx.WorkSourceRef]       { return s.workSourceRefs }
func (s *EntityStore) WorkVariants() nx.Store[nx.WorkVariant]           { return s.workVariants }
func (s *EntityStore) WorkRelations() nx.Store[nx.WorkRelation]         { return s.workRelations }
func (s *EntityStore) WorkUserStates() nx.Store[nx.WorkUserState]       { return s.workUserStates }
func (s *EntityStore) WorkRuntimeStates() nx.Store[nx.WorkRuntimeState] { return s.workRuntimeStates }
func (s *EntityStore) IngestLedgers() nx.Store[nx.IngestLedger]         { return s.ingestLedgers }
func (s *EntityStore) Profiles() nx.Store[nx.Profile]                   { return s.profiles }
func (s *EntityStore) ProfileRules() nx.Store[nx.ProfileRule]           { return s.profileRules }
func (s *EntityStore) ProfileUsages() nx.Store[nx.ProfileUsage]         { return s.profileUsages }
func (s *EntityStore) SourceAccounts() nx.Store[nx.SourceAccount]       { return s.sourceAccounts }
func (s *EntityStore) Categories() nx.Store[nx.Category]                { return s.categories }
func (s *EntityStore) WorkCategoryRefs() nx.Store[nx.WorkCategoryRef]   { return s.workCategoryRefs }
func (s *EntityStore) WorkEmbeddings() nx.Store[nx.WorkEmbedding]       { return s.workEmbeddings }
func (s *EntityStore) WorkRedirects() nx.Store[nx.WorkRedirect]         { return s.workRedirects }
func (s *EntityStore) CloudOutboxEvents() nx.Store[nx.CloudOutboxEvent] { return s.cloudOutboxEvents }
func (s *EntityStore) CatalogModeStates() nx.Store[nx.CatalogModeState] { return s.catalogModeStates }

// WorkSourceRefsByWork queries nx_work_source_refs by the WorkKey field
// embedded in each row's JSON payload, since entity_key holds SourceKey.
func (s *EntityStore) WorkSourceRefsByWork(ctx context.Context, workKey string) ([]nx.WorkSourceRef, error) {
	stmt, err := s.prepared(ctx, `SELECT payload FROM nx_work_source_refs WHERE json_extract_string(payload, '$.WorkKey') = ?`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, workKey)
	if err != nil {
		return nil, wrapSQLErr("query work_source_refs by work", err)
	}
	defer closeQuietly(rows)

	var out []nx.WorkSourceRef
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapSQLErr("scan work_source_refs by work", err)
		}
		var ref nx.WorkSourceRef
		if err := json.Unmarshal(raw, &ref); err != nil {
			return nil, wrapSQLErr("decode work_source_refs by work", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLErr("iterate work_source_refs by work", err)
	}
	return out, nil
}

// Close releases the shared connection and every cached prepared statement.
func (s *EntityStore) Close() error {
	s.stmtMu.Lock()
	for _, stmt := range s.stmtCache {
		closeQuietly(stmt)
	}
	s.stmtCache = nil
	s.stmtMu.Unlock()

	return s.conn.Close()
}

// prepared returns a cached prepared statement for query, preparing and
// caching it on first use. Mirrors teacher's stmtCache in database.go.
func (s *EntityStore) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()

	if stmt, ok := s.stmtCache[query]; ok {
		return stmt, nil
	}
	stmt, err := s.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("duckdb: prepare statement: %w", err)
	}
	s.stmtCache[query] = stmt
	return stmt, nil
}

func queryTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func closeQuietly(c interface{ Close() error }) {
	if c != nil {
		_ = c.Close()
	}
}
