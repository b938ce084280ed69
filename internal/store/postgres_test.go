package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/smelt-cli/internal/export"
	"github.com/sells-group/smelt-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock, ""), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(migrationLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "basemap"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename FROM "basemap"\.schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_runs.sql"))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "basemap"\.pipeline`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO "basemap"\.schema_migrations`).WithArgs("002_development_projects.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "basemap"\.parcel_capacity`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO "basemap"\.schema_migrations`).WithArgs("003_parcel_capacity.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(migrationLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_ApplyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE SCHEMA`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(`SELECT filename`).WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "basemap"\.runs`).WillReturnError(errors.New("permission denied"))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_runs.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationFiles_Sorted(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_runs.sql", "002_development_projects.sql", "003_parcel_capacity.sql"}, names)
}

func TestPostgresStore_WriteDevelopmentProjects(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cols := export.DevprojColumns([]int{1, 7})
	recs := []*model.DevelopmentRecord{
		{DevelopmentProjectsID: 1, Action: model.ActionBuild, PointX: model.Ptr(-122.27), PointY: model.Ptr(37.8)},
		{DevelopmentProjectsID: 2, Action: model.ActionBuild},
	}
	names := append(columnNames(export.Names(cols)), "geom")

	mock.ExpectExec(`ALTER TABLE "basemap"\."pipeline" ADD COLUMN IF NOT EXISTS "development_projects_id" BIGINT, .*"scen7" BIGINT, .*"x" DOUBLE PRECISION`).
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE "basemap"\."pipeline"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"basemap", "pipeline"}, names).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := s.WriteDevelopmentProjects(context.Background(), "pipeline", cols, recs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteDevelopmentProjects_AlterError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ALTER TABLE`).WillReturnError(errors.New("relation does not exist"))

	_, err := s.WriteDevelopmentProjects(context.Background(), "pipeline", export.DevprojColumns(nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure columns of pipeline")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteCapacity(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	p := &model.ParcelCapacity{ParcelID: 42, Acres: model.Ptr(1.5)}
	p.Source(model.CapacityBasis).MaxDUA = model.Ptr(20.0)
	p.Source(model.CapacityPBA40)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_basemap_parcel_capacity"}, columnNames(export.CapacityColumns())).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "basemap"\."parcel_capacity" .* ON CONFLICT \("parcel_id"\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.WriteCapacity(context.Background(), []*model.ParcelCapacity{p})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO "basemap"\."runs"`).
		WithArgs(pgxmock.AnyArg(), "devproj", "running").
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(started))

	run, err := s.StartRun(context.Background(), model.RunKindDevproj)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, started, run.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE "basemap"\."runs" SET status = \$1, completed_at = now\(\), metadata = \$2`).
		WithArgs("complete", []byte(`{"pipeline":12}`), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteRun(context.Background(), "run-1", map[string]any{"pipeline": 12}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE "basemap"\."runs"`).
		WithArgs("complete", []byte(nil), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE "basemap"\."runs" SET status = \$1, completed_at = now\(\), error = \$2`).
		WithArgs("failed", "parcels: open", "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.FailRun(context.Background(), "run-1", "parcels: open"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(time.Minute)

	rows := pgxmock.NewRows([]string{"id", "kind", "status", "started_at", "completed_at", "error", "metadata"}).
		AddRow("run-2", "capacity", "complete", started, &completed, (*string)(nil), []byte(`{"parcels":3}`))

	mock.ExpectQuery(`FROM "basemap"\."runs" WHERE 1=1 AND kind = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("capacity", 5).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Kind: model.RunKindCapacity, Limit: 5})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, model.RunKindCapacity, runs[0].Kind)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].CompletedAt)
	assert.Equal(t, completed, *runs[0].CompletedAt)
	assert.Equal(t, float64(3), runs[0].Metadata["parcels"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgType(t *testing.T) {
	assert.Equal(t, "BIGINT", pgType(export.KindInt))
	assert.Equal(t, "DOUBLE PRECISION", pgType(export.KindFloat))
	assert.Equal(t, "TEXT", pgType(export.KindText))
}
