package duckdb

// Every entity table shares the same shape: a text primary key, a JSON
// payload holding the full entity, and an updated_at epoch-ms column used
// for ObserveByType's most-recently-touched ordering. One table per kind
// keeps each Store[T]'s queries narrow instead of one polymorphic blob
// table, matching teacher's one-table-per-concern schema in
// database_schema.go.
var entityTableNames = []string{
	"nx_works",
	"nx_work_source_refs",
	"nx_work_variants",
	"nx_work_relations",
	"nx_work_user_states",
	"nx_work_runtime_states",
	"nx_ingest_ledgers",
	"nx_profiles",
	"nx_profile_rules",
	"nx_profile_usages",
	"nx_source_accounts",
	"nx_categories",
	"nx_work_category_refs",
	"nx_work_embeddings",
	"nx_work_redirects",
	"nx_cloud_outbox_events",
	"nx_catalog_mode_states",
}

func (s *EntityStore) createTables(skipIndexes bool) error {
	ctx, cancel := queryTimeout()
	defer cancel()

	for _, name := range entityTableNames {
		createStmt := `CREATE TABLE IF NOT EXISTS ` + name + ` (
			entity_key TEXT PRIMARY KEY,
			payload    VARCHAR NOT NULL,
			updated_at BIGINT NOT NULL
		)`
		if _, err := s.conn.ExecContext(ctx, createStmt); err != nil {
			return wrapSQLErr("create table "+name, err)
		}

		if skipIndexes {
			continue
		}
		indexStmt := `CREATE INDEX IF NOT EXISTS idx_` + name + `_updated_at ON ` + name + ` (updated_at)`
		if _, err := s.conn.ExecContext(ctx, indexStmt); err != nil {
			return wrapSQLErr("create index on "+name, err)
		}
	}

	return nil
}
