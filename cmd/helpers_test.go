package main

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/smelt-cli/internal/export"
	"github.com/sells-group/smelt-cli/internal/model"
	"github.com/sells-group/smelt-cli/internal/store"
)

// brokenStore fails every table write.
type brokenStore struct {
	store.Nop
}

var errStoreDown = errors.New("store: connection refused")

func (brokenStore) WriteDevelopmentProjects(context.Context, string, []export.Column, []*model.DevelopmentRecord) (int64, error) {
	return 0, errStoreDown
}

func (brokenStore) WriteCapacity(context.Context, []*model.ParcelCapacity) (int64, error) {
	return 0, errStoreDown
}

// outputFiles lists every regular file under dir.
func outputFiles(t *testing.T, dir string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

// writeCSVFixture writes a headed CSV file named name under dir.
func writeCSVFixture(t *testing.T, dir, name string, header []string, rows ...[]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	w := csv.NewWriter(f)
	require.NoError(t, w.Write(header))
	require.NoError(t, w.WriteAll(rows))
	require.NoError(t, f.Close())
	return path
}
