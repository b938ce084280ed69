package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capacitySpec() MergeSpec {
	return MergeSpec{
		Schema:  "capacity",
		Table:   "parcel_capacity",
		Columns: []string{"parcel_id", "max_dua"},
		Key:     []string{"parcel_id"},
	}
}

func TestMergeRows_EmptyRows(t *testing.T) {
	n, err := MergeRows(context.TODO(), nil, capacitySpec(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMergeSpec_Validate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*MergeSpec)
		want string
	}{
		{"no table", func(m *MergeSpec) { m.Table = "" }, "table name is empty"},
		{"no columns", func(m *MergeSpec) { m.Columns = nil }, "no columns"},
		{"no key", func(m *MergeSpec) { m.Key = nil }, "no key columns"},
		{"key outside columns", func(m *MergeSpec) { m.Key = []string{"geom_id"} }, `key column "geom_id" not among columns`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := capacitySpec()
			tt.edit(&spec)
			_, err := MergeRows(context.TODO(), nil, spec, [][]any{{1, 2.0}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMergeSpec_SQL(t *testing.T) {
	spec := capacitySpec()
	assert.Equal(t, "capacity.parcel_capacity", spec.String())
	assert.Equal(t, pgx.Identifier{"_tmp_upsert_capacity_parcel_capacity"}, spec.staging())
	assert.Equal(t,
		`INSERT INTO "capacity"."parcel_capacity" ("parcel_id", "max_dua") SELECT "parcel_id", "max_dua" `+
			`FROM "_tmp_upsert_capacity_parcel_capacity" ON CONFLICT ("parcel_id") DO UPDATE SET "max_dua" = EXCLUDED."max_dua"`,
		spec.mergeSQL())
}

func TestMergeSpec_SQLAllKeyColumns(t *testing.T) {
	spec := MergeSpec{Table: "zones", Columns: []string{"zone_id"}, Key: []string{"zone_id"}}
	assert.Equal(t, "zones", spec.String())
	assert.Equal(t, pgx.Identifier{"zones"}, spec.target())
	assert.Equal(t,
		`INSERT INTO "zones" ("zone_id") SELECT "zone_id" FROM "_tmp_upsert_zones" ON CONFLICT ("zone_id") DO NOTHING`,
		spec.mergeSQL())
}

func TestMergeRows_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	spec := capacitySpec()
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_capacity_parcel_capacity" \(LIKE "capacity"\."parcel_capacity"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_capacity_parcel_capacity"}, spec.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "capacity"\."parcel_capacity"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := MergeRows(context.Background(), mock, spec, [][]any{{1, 10.0}, {2, 20.0}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRows_InsertErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	spec := capacitySpec()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_capacity_parcel_capacity"}, spec.Columns).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	_, err = MergeRows(context.Background(), mock, spec, [][]any{{1, 10.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: merge capacity.parcel_capacity: insert on conflict")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeRows_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	spec := capacitySpec()
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_capacity_parcel_capacity"}, spec.Columns).
		WillReturnError(errors.New("bad row"))
	mock.ExpectRollback()

	_, err = MergeRows(context.Background(), mock, spec, [][]any{{1, 10.0}, {2, 3.0}, {3, 1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY 3 rows into staging")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentList(t *testing.T) {
	assert.Equal(t, `"PARCEL_ID", "geom_id", "x"`, identList([]string{"PARCEL_ID", "geom_id", "x"}))
}
