package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/smelt-cli/internal/config"
	"github.com/sells-group/smelt-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("RunLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.StartRun(ctx, model.RunKindDevproj)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		require.NoError(t, s.CompleteRun(ctx, run.ID, map[string]any{"pipeline": 12}))

		runs, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindDevproj})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, run.ID, runs[0].ID)
		assert.Equal(t, model.RunStatusComplete, runs[0].Status)
		assert.Equal(t, float64(12), runs[0].Metadata["pipeline"])
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, kind := range []model.RunKind{model.RunKindDevproj, model.RunKindCapacity, model.RunKindCapacity} {
			_, err := s.StartRun(ctx, kind)
			require.NoError(t, err)
		}

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		capacity, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindCapacity})
		require.NoError(t, err)
		assert.Len(t, capacity, 2)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		assert.Empty(t, complete)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)

	s, err = Open(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "smelt.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StoreConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "oracle"`)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var s Store = Nop{}

	n, err := s.WriteDevelopmentProjects(ctx, "pipeline", nil, []*model.DevelopmentRecord{{}})
	require.NoError(t, err)
	assert.Zero(t, n)

	run, err := s.StartRun(ctx, model.RunKindCapacity)
	require.NoError(t, err)
	assert.Equal(t, model.RunKindCapacity, run.Kind)
	assert.NoError(t, s.CompleteRun(ctx, run.ID, nil))
	assert.NoError(t, s.Migrate(ctx))
	assert.NoError(t, s.Close())
}

func TestColumnNames(t *testing.T) {
	assert.Equal(t, []string{"parcel_id", "acres", "hs_basis"}, columnNames([]string{"PARCEL_ID", "ACRES", "HS_basis"}))
}
