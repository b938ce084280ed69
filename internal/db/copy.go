package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyFrom bulk-inserts rows into a table using PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

// CopyFromSchema bulk-inserts rows into a schema-qualified table using PostgreSQL COPY protocol.
func CopyFromSchema(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}
	return n, nil
}

// ReplaceTable truncates schema.table and reloads it with rows in one
// transaction. Output tables are rebuilt whole on every run, so a failed load
// leaves the previous release in place.
func ReplaceTable(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s.%s: begin tx", schema, table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	ident := pgx.Identifier{schema, table}
	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s", ident.Sanitize())); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s.%s: truncate", schema, table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace %s.%s: COPY", schema, table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s.%s: commit tx", schema, table)
	}
	return n, nil
}
