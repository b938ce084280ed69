package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/smelt-cli/internal/export"
	"github.com/sells-group/smelt-cli/internal/geo"
	"github.com/sells-group/smelt-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It holds both
// output tables and the run log in one local file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	error        TEXT,
	metadata     TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteType(k export.Kind) string {
	switch k {
	case export.KindInt:
		return "INTEGER"
	case export.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

type sqliteColumn struct {
	name string
	typ  string
}

// replaceTable drops and recreates table, then inserts rows, in one
// transaction.
func (s *SQLiteStore) replaceTable(ctx context.Context, table string, cols []sqliteColumn, rows [][]any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace %s: begin tx", table)
	}
	defer tx.Rollback() //nolint:errcheck

	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.name)
		defs[i] = names[i] + " " + c.typ
		marks[i] = "?"
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace %s: drop", table)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace %s: create", table)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace %s: prepare insert", table)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: replace %s: insert row %d", table, i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace %s: commit tx", table)
	}
	return int64(len(rows)), nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLiteStore) WriteDevelopmentProjects(ctx context.Context, table string, cols []export.Column, recs []*model.DevelopmentRecord) (int64, error) {
	defs := make([]sqliteColumn, 0, len(cols)+1)
	for _, c := range cols {
		defs = append(defs, sqliteColumn{columnName(c.Name), sqliteType(c.Kind)})
	}
	defs = append(defs, sqliteColumn{"geom", "BLOB"})

	rows := make([][]any, len(recs))
	for i, r := range recs {
		pt, err := geo.EncodePoint(r.PointX, r.PointY, pointSRID)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: encode point of record %d", r.DevelopmentProjectsID)
		}
		rows[i] = append(export.Values(cols, r), pt)
	}
	return s.replaceTable(ctx, table, defs, rows)
}

func (s *SQLiteStore) WriteCapacity(ctx context.Context, parcels []*model.ParcelCapacity) (int64, error) {
	names := export.CapacityColumns()
	kinds := export.CapacityKinds()
	defs := make([]sqliteColumn, len(names))
	for i, n := range names {
		defs[i] = sqliteColumn{columnName(n), sqliteType(kinds[i])}
	}
	rows := make([][]any, len(parcels))
	for i, p := range parcels {
		rows[i] = export.CapacityValues(p)
	}
	return s.replaceTable(ctx, "parcel_capacity", defs, rows)
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(kind), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start %s run", kind)
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, metadata map[string]any) error {
	var metaJSON sql.NullString
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run metadata")
		}
		metaJSON = sql.NullString{String: string(data), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, metadata = ? WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC(), metaJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, started_at, completed_at, error, metadata FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var kind, status string
	var completedAt sql.NullTime
	var errStr, metaJSON sql.NullString

	if err := row.Scan(&r.ID, &kind, &status, &r.StartedAt, &completedAt, &errStr, &metaJSON); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	r.Error = errStr.String
	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &r.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run metadata")
		}
	}
	return &r, nil
}
