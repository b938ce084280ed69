package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/db"
	"github.com/sells-group/smelt-cli/internal/export"
	"github.com/sells-group/smelt-cli/internal/geo"
	"github.com/sells-group/smelt-cli/internal/model"
	"github.com/sells-group/smelt-cli/internal/resilience"
)

// pointSRID is the SRID of the geom column of the output tables.
const pointSRID = 4326

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	schema  string
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. Tables live
// in schema.
func NewPostgres(ctx context.Context, connString, schema string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 5
	retry.OnRetry = resilience.RetryLogger("store", "ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, schema: schemaOrDefault(schema), closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool, schema string) *PostgresStore {
	return &PostgresStore{pool: pool, schema: schemaOrDefault(schema)}
}

func schemaOrDefault(schema string) string {
	if schema == "" {
		return "basemap"
	}
	return schema
}

// Pool returns the underlying database pool, for the PostGIS parcel locator.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migrateSchema(ctx, s.pool, s.schema)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func pgType(k export.Kind) string {
	switch k {
	case export.KindInt:
		return "BIGINT"
	case export.KindFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// ensureColumns adds any output column the table lacks, such as scen<id>
// columns for a scenario list the migrations did not define.
func (s *PostgresStore) ensureColumns(ctx context.Context, table string, cols []export.Column) error {
	clauses := make([]string, len(cols))
	for i, c := range cols {
		clauses[i] = fmt.Sprintf("ADD COLUMN IF NOT EXISTS %s %s", pgx.Identifier{columnName(c.Name)}.Sanitize(), pgType(c.Kind))
	}
	sql := fmt.Sprintf("ALTER TABLE %s %s", s.table(table), strings.Join(clauses, ", "))
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return eris.Wrapf(err, "postgres: ensure columns of %s", table)
	}
	return nil
}

func (s *PostgresStore) WriteDevelopmentProjects(ctx context.Context, table string, cols []export.Column, recs []*model.DevelopmentRecord) (int64, error) {
	if err := s.ensureColumns(ctx, table, cols); err != nil {
		return 0, err
	}

	names := append(columnNames(export.Names(cols)), "geom")
	rows := make([][]any, len(recs))
	for i, r := range recs {
		pt, err := geo.EncodePoint(r.PointX, r.PointY, pointSRID)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: encode point of record %d", r.DevelopmentProjectsID)
		}
		rows[i] = append(export.Values(cols, r), pt)
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("store", "write_"+table)
	n, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int64, error) {
		return db.ReplaceTable(ctx, s.pool, s.schema, table, names, rows)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: write %s", table)
	}
	return n, nil
}

func (s *PostgresStore) WriteCapacity(ctx context.Context, parcels []*model.ParcelCapacity) (int64, error) {
	rows := make([][]any, len(parcels))
	for i, p := range parcels {
		rows[i] = export.CapacityValues(p)
	}
	n, err := db.MergeRows(ctx, s.pool, db.MergeSpec{
		Schema:  s.schema,
		Table:   "parcel_capacity",
		Columns: columnNames(export.CapacityColumns()),
		Key:     []string{"parcel_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: write parcel capacity")
	}
	return n, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	run := &model.Run{ID: uuid.New().String(), Kind: kind, Status: model.RunStatusRunning}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO "+s.table("runs")+" (id, kind, status, started_at) VALUES ($1, $2, $3, now()) RETURNING started_at",
		run.ID, string(kind), string(model.RunStatusRunning),
	).Scan(&run.StartedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start %s run", kind)
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, metadata map[string]any) error {
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run metadata")
		}
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE "+s.table("runs")+" SET status = $1, completed_at = now(), metadata = $2 WHERE id = $3",
		string(model.RunStatusComplete), metaJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE "+s.table("runs")+" SET status = $1, completed_at = now(), error = $2 WHERE id = $3",
		string(model.RunStatusFailed), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := "SELECT id, kind, status, started_at, completed_at, error, metadata FROM " + s.table("runs") + " WHERE 1=1"
	var args []any
	argN := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argN)
		args = append(args, string(filter.Kind))
		argN++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, string(filter.Status))
		argN++
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var kind, status string
		var errStr *string
		var metaJSON []byte
		if err := rows.Scan(&r.ID, &kind, &status, &r.StartedAt, &r.CompletedAt, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.Status = model.RunStatus(status)
		if errStr != nil {
			r.Error = *errStr
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &r.Metadata)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
