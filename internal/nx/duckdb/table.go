package duckdb

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/karlokarate/nxcatalog/internal/nx"
)

// subBufferSize matches nx.memStore's buffer size: emissions are
// best-effort, never blocking the writer.
const subBufferSize = 32

// table is a generic nx.Store[T] backed by one DuckDB table. Rows hold the
// entity's own key plus its JSON-encoded payload; change-stream fan-out is
// in-process only (DuckDB has no notification mechanism), mirroring
// nx.memStore's channel-subscriber bookkeeping so both backends behave
// identically from a caller's perspective.
type table[T nx.Entity] struct {
	store *EntityStore
	name  string

	subMu    sync.Mutex
	keySubs  map[string][]chan nx.ChangeEvent[T]
	typeSubs []chan nx.ChangeEvent[T]
}

func newTable[T nx.Entity](store *EntityStore, name string) *table[T] {
	return &table[T]{
		store:   store,
		name:    name,
		keySubs: make(map[string][]chan nx.ChangeEvent[T]),
	}
}

func (t *table[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	stmt, err := t.store.prepared(ctx, `SELECT payload FROM `+t.name+` WHERE entity_key = ?`)
	if err != nil {
		return zero, err
	}

	var raw []byte
	if err := stmt.QueryRowContext(ctx, key).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return zero, nx.ErrNotFound
		}
		return zero, wrapSQLErr("get "+t.name, err)
	}

	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return zero, wrapSQLErr("decode "+t.name, err)
	}
	return entity, nil
}

func (t *table[T]) Upsert(ctx context.Context, entity T) error {
	return t.UpsertBatch(ctx, []T{entity})
}

func (t *table[T]) UpsertBatch(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := t.store.conn.BeginTx(ctx, nil)
	if err != nil {
		return wrapSQLErr("begin upsert tx on "+t.name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a documented no-op

	upsertStmt, err := tx.PrepareContext(ctx, `INSERT INTO `+t.name+` (entity_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (entity_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return wrapSQLErr("prepare upsert on "+t.name, err)
	}
	defer closeQuietly(upsertStmt)

	now := time.Now().UnixMilli()
	events := make([]nx.ChangeEvent[T], 0, len(entities))
	for _, e := range entities {
		payload, err := json.Marshal(e)
		if err != nil {
			return wrapSQLErr("encode "+t.name, err)
		}
		key := e.EntityKey()
		if _, err := upsertStmt.ExecContext(ctx, key, string(payload), now); err != nil {
			return wrapSQLErr("upsert "+t.name, err)
		}
		events = append(events, nx.ChangeEvent[T]{Key: key, Value: e})
	}

	if err := tx.Commit(); err != nil {
		return wrapSQLErr("commit upsert tx on "+t.name, err)
	}

	for _, ev := range events {
		t.publish(ev)
	}
	return nil
}

func (t *table[T]) Delete(ctx context.Context, key string) error {
	stmt, err := t.store.prepared(ctx, `DELETE FROM `+t.name+` WHERE entity_key = ?`)
	if err != nil {
		return err
	}

	result, err := stmt.ExecContext(ctx, key)
	if err != nil {
		return wrapSQLErr("delete "+t.name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapSQLErr("delete "+t.name+" rows affected", err)
	}

	if affected > 0 {
		var zero T
		t.publish(nx.ChangeEvent[T]{Key: key, Value: zero, Deleted: true})
	}
	return nil
}

func (t *table[T]) Observe(ctx context.Context, key string) (<-chan nx.ChangeEvent[T], error) {
	ch := make(chan nx.ChangeEvent[T], subBufferSize)

	current, err := t.Get(ctx, key)
	if err == nil {
		ch <- nx.ChangeEvent[T]{Key: key, Value: current}
	} else if err != nx.ErrNotFound {
		return nil, err
	}

	t.subMu.Lock()
	t.keySubs[key] = append(t.keySubs[key], ch)
	t.subMu.Unlock()

	go func() {
		<-ctx.Done()
		t.subMu.Lock()
		defer t.subMu.Unlock()
		subs := t.keySubs[key]
		for i, c := range subs {
			if c == ch {
				t.keySubs[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (t *table[T]) ObserveByType(ctx context.Context, limit int) (<-chan nx.ChangeEvent[T], error) {
	ch := make(chan nx.ChangeEvent[T], subBufferSize)

	snapshot, err := t.recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	t.subMu.Lock()
	t.typeSubs = append(t.typeSubs, ch)
	t.subMu.Unlock()

	for _, v := range snapshot {
		ch <- nx.ChangeEvent[T]{Key: v.EntityKey(), Value: v}
	}

	go func() {
		<-ctx.Done()
		t.subMu.Lock()
		defer t.subMu.Unlock()
		for i, c := range t.typeSubs {
			if c == ch {
				t.typeSubs = append(t.typeSubs[:i], t.typeSubs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (t *table[T]) recent(ctx context.Context, limit int) ([]T, error) {
	query := `SELECT payload FROM ` + t.name + ` ORDER BY updated_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := t.store.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapSQLErr("list "+t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapSQLErr("scan "+t.name, err)
		}
		var entity T
		if err := json.Unmarshal(raw, &entity); err != nil {
			return nil, wrapSQLErr("decode "+t.name, err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLErr("iterate "+t.name, err)
	}
	return out, nil
}

func (t *table[T]) publish(ev nx.ChangeEvent[T]) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.keySubs[ev.Key] {
		select {
		case ch <- ev:
		default:
		}
	}
	for _, ch := range t.typeSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}
