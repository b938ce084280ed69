package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/smelt-cli/internal/config"
	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
	"github.com/sells-group/smelt-cli/internal/store"
)

// flagRow returns one value per allowed building type with HS set to hs.
func flagRow(hs, rest string) []string {
	out := make([]string, len(model.AllowedBuildingTypes))
	for i, code := range model.AllowedBuildingTypes {
		out[i] = rest
		if code == "HS" {
			out[i] = hs
		}
	}
	return out
}

func lowerTypes() []string {
	out := make([]string, len(model.AllowedBuildingTypes))
	for i, code := range model.AllowedBuildingTypes {
		out[i] = strings.ToLower(code)
	}
	return out
}

func capacityFixture(t *testing.T) config.CapacityConfig {
	t.Helper()
	dir := t.TempDir()

	parcels := writeCSVFixture(t, dir, "p10.csv", []string{"PARCEL_ID", "geom_id_s", "ACRES"},
		[]string{"1", "100", "1.5"},
		[]string{"2", "200", "0.5"},
	)
	pz := writeCSVFixture(t, dir, "zoning_parcels.csv", []string{"geom_id", "zoning_id", "nodev"},
		[]string{"100", "10", "0"},
		[]string{"200", "11", "0"},
	)
	lookup := writeCSVFixture(t, dir, "zoning_lookup.csv",
		append([]string{"id", "max_dua", "max_far", "max_height"}, model.AllowedBuildingTypes...),
		append([]string{"10", "", "1", "22"}, flagRow("1", "0")...),
		append([]string{"11", "", "", ""}, flagRow("0", "0")...),
	)
	basis := writeCSVFixture(t, dir, "boc.csv",
		append(append([]string{"parcel_id", "max_dua", "max_far", "max_height"}, lowerTypes()...),
			"plu_id", "plu_jurisdiction", "plu_description", "building_types_source", "source"),
		append(append([]string{"1", "30", "", ""}, flagRow("1", "0")...), "P-1", "Oakland", "Residential", "code", "ordinance"),
	)

	return config.CapacityConfig{
		ParcelsPath:      parcels,
		PBA40ParcelsPath: pz,
		PBA40LookupPath:  lookup,
		BasisPath:        basis,
		OutputDir:        filepath.Join(dir, "out"),
		Workers:          2,
		WriteQA:          true,
	}
}

func TestRunCapacity_StoreFailureRemovesFiles(t *testing.T) {
	cc := capacityFixture(t)

	_, err := runCapacity(context.Background(), cc, brokenStore{}, time.Now())
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, outputFiles(t, cc.OutputDir))
}

func TestRunCapacity_WritesOutputs(t *testing.T) {
	cc := capacityFixture(t)
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	md, err := runCapacity(context.Background(), cc, store.Nop{}, now)
	require.NoError(t, err)
	assert.Len(t, md["files"], 4)
	assert.Contains(t, md, "tags")

	l, err := layer.ReadCSV(context.Background(), filepath.Join(cc.OutputDir, "2026_03_01_p10_plu_boc_allAttrs.csv"))
	require.NoError(t, err)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, "1", l.Value(0, "PARCEL_ID"))
	assert.Equal(t, "30", l.Value(0, "max_dua_basis"))
	assert.Equal(t, "basis", l.Value(0, "source_dua_basis"))
	assert.Equal(t, "1", l.Value(0, "HS_basis"))

	comp, err := layer.ReadCSV(context.Background(), filepath.Join(cc.OutputDir, "qa", "2026_03_01_devType_comparison.csv"))
	require.NoError(t, err)
	assert.Equal(t, 2, comp.Len())
	assert.Equal(t, "both-allow", comp.Value(0, "HS_comp"))
	assert.Equal(t, "missing-basis-data", comp.Value(1, "HS_comp"))

	missing, err := layer.ReadCSV(context.Background(), filepath.Join(cc.OutputDir, "qa", "2026_03_01_missing_plu_id_basis.csv"))
	require.NoError(t, err)
	require.Equal(t, 1, missing.Len())
	assert.Equal(t, "2", missing.Value(0, "PARCEL_ID"))
}

func TestRunCapacity_NoQA(t *testing.T) {
	cc := capacityFixture(t)
	cc.WriteQA = false

	md, err := runCapacity(context.Background(), cc, store.Nop{}, time.Now())
	require.NoError(t, err)
	assert.Len(t, md["files"], 1)

	_, err = os.Stat(filepath.Join(cc.OutputDir, "qa"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunCapacity_StoresTable(t *testing.T) {
	cc := capacityFixture(t)
	st := newCmdSQLite(t)
	ctx := context.Background()

	err := recordRun(ctx, st, model.RunKindCapacity, func(ctx context.Context) (map[string]any, error) {
		return runCapacity(ctx, cc, st, time.Now())
	})
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, store.RunFilter{Kind: model.RunKindCapacity})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Contains(t, runs[0].Metadata, "joins")
}

func TestRunCapacity_MissingBasisColumn(t *testing.T) {
	cc := capacityFixture(t)
	cc.BasisPath = writeCSVFixture(t, t.TempDir(), "boc.csv", []string{"parcel_id", "max_dua"}, []string{"1", "30"})

	_, err := runCapacity(context.Background(), cc, store.Nop{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "basis table")

	_, statErr := os.Stat(cc.OutputDir)
	assert.True(t, os.IsNotExist(statErr))
}
