// Package store persists output tables and the run log to Postgres or SQLite.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/config"
	"github.com/sells-group/smelt-cli/internal/export"
	"github.com/sells-group/smelt-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the batch runs.
type Store interface {
	// Output tables. Each write replaces the table contents.
	WriteDevelopmentProjects(ctx context.Context, table string, cols []export.Column, recs []*model.DevelopmentRecord) (int64, error)
	WriteCapacity(ctx context.Context, parcels []*model.ParcelCapacity) (int64, error)

	// Runs
	StartRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, metadata map[string]any) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.Schema, nil)
	case "sqlite":
		return NewSQLite(cfg.SQLitePath)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// Nop discards every write. It backs runs configured without a database.
type Nop struct{}

func (Nop) WriteDevelopmentProjects(context.Context, string, []export.Column, []*model.DevelopmentRecord) (int64, error) {
	return 0, nil
}

func (Nop) WriteCapacity(context.Context, []*model.ParcelCapacity) (int64, error) { return 0, nil }

func (Nop) StartRun(_ context.Context, kind model.RunKind) (*model.Run, error) {
	return &model.Run{Kind: kind, Status: model.RunStatusRunning}, nil
}

func (Nop) CompleteRun(context.Context, string, map[string]any) error { return nil }
func (Nop) FailRun(context.Context, string, string) error             { return nil }

func (Nop) ListRuns(context.Context, RunFilter) ([]model.Run, error) { return nil, nil }
func (Nop) Migrate(context.Context) error                            { return nil }
func (Nop) Close() error                                             { return nil }

// columnName maps an output column to its database column name.
func columnName(name string) string {
	return strings.ToLower(name)
}

func columnNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = columnName(n)
	}
	return out
}
