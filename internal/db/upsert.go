package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// MergeSpec describes a keyed merge of rows into Schema.Table. Rows whose Key
// already exists overwrite every non-key column; new keys are inserted.
type MergeSpec struct {
	Schema  string
	Table   string
	Columns []string
	Key     []string
}

func (m MergeSpec) String() string {
	if m.Schema == "" {
		return m.Table
	}
	return m.Schema + "." + m.Table
}

func (m MergeSpec) validate() error {
	switch {
	case m.Table == "":
		return eris.New("db: merge: table name is empty")
	case len(m.Columns) == 0:
		return eris.Errorf("db: merge %s: no columns", m)
	case len(m.Key) == 0:
		return eris.Errorf("db: merge %s: no key columns", m)
	}
	have := make(map[string]bool, len(m.Columns))
	for _, c := range m.Columns {
		have[c] = true
	}
	for _, k := range m.Key {
		if !have[k] {
			return eris.Errorf("db: merge %s: key column %q not among columns", m, k)
		}
	}
	return nil
}

func (m MergeSpec) target() pgx.Identifier {
	if m.Schema == "" {
		return pgx.Identifier{m.Table}
	}
	return pgx.Identifier{m.Schema, m.Table}
}

// staging names the session temp table rows are copied into before the merge.
func (m MergeSpec) staging() pgx.Identifier {
	return pgx.Identifier{"_tmp_upsert_" + strings.ReplaceAll(m.String(), ".", "_")}
}

// mergeSQL builds the INSERT ... SELECT ... ON CONFLICT statement. When every
// column is part of the key there is nothing to overwrite and conflicts are
// ignored.
func (m MergeSpec) mergeSQL() string {
	isKey := make(map[string]bool, len(m.Key))
	for _, k := range m.Key {
		isKey[k] = true
	}

	cols := identList(m.Columns)
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(m.target().Sanitize())
	sb.WriteString(" (" + cols + ") SELECT " + cols + " FROM ")
	sb.WriteString(m.staging().Sanitize())
	sb.WriteString(" ON CONFLICT (" + identList(m.Key) + ") ")

	var sets []string
	for _, c := range m.Columns {
		if isKey[c] {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		sets = append(sets, q+" = EXCLUDED."+q)
	}
	if len(sets) == 0 {
		sb.WriteString("DO NOTHING")
	} else {
		sb.WriteString("DO UPDATE SET " + strings.Join(sets, ", "))
	}
	return sb.String()
}

// MergeRows stages rows with COPY into a temp table dropped on commit, then
// merges them into the target in the same transaction. It returns the number
// of rows inserted or updated.
func MergeRows(ctx context.Context, pool Pool, spec MergeSpec, rows [][]any) (int64, error) {
	if err := spec.validate(); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: begin tx", spec)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stage := spec.staging()
	create := "CREATE TEMP TABLE " + stage.Sanitize() +
		" (LIKE " + spec.target().Sanitize() + " INCLUDING DEFAULTS) ON COMMIT DROP"
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: create staging table", spec)
	}
	if _, err := tx.CopyFrom(ctx, stage, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: COPY %d rows into staging", spec, len(rows))
	}

	tag, err := tx.Exec(ctx, spec.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: insert on conflict", spec)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: merge %s: commit tx", spec)
	}
	return tag.RowsAffected(), nil
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
