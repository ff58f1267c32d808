package duckdb

import "fmt"

// wrapSQLErr wraps a database/sql error with the operation that produced
// it, following teacher's fmt.Errorf("%s: %w", op, err) convention in
// database.go rather than a dedicated error type — every caller here
// already expects a plain error from nx.Store[T].
func wrapSQLErr(op string, err error) error {
	return fmt.Errorf("duckdb: %s: %w", op, err)
}
