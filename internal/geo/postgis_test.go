package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/smelt-cli/internal/resilience"
)

func TestPostGISLocator_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	geomID := int64(9551692992638)
	x, y := -122.1, 37.4
	units := "40"
	mock.ExpectQuery("ST_Contains").
		WithArgs(-122.0, 37.0, 4326).
		WillReturnRows(pgxmock.NewRows([]string{"parcel_id", "geom_id", "zone_id", "x", "y", "residential_units"}).
			AddRow(int64(77), &geomID, (*int64)(nil), &x, &y, &units))

	loc := NewPostGISLocator(mock, "basemap.p10", WithAttributeColumns("residential_units"))
	p, err := loc.Locate(context.Background(), -122.0, 37.0)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(77), p.ParcelID)
	assert.Equal(t, geomID, *p.GeomID)
	assert.Nil(t, p.ZoneID)
	assert.Equal(t, "40", p.Attr("residential_units"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGISLocator_NoParcel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ST_Contains").WillReturnError(pgx.ErrNoRows)

	p, err := NewPostGISLocator(mock, "p10", WithSRID(2227)).Locate(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPostGISLocator_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ST_Contains").WillReturnError(errors.New("relation does not exist"))

	_, err = NewPostGISLocator(mock, "p10").Locate(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgis locate")
}

func TestPostGISLocator_RetriesTransient(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("ST_Contains").WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectQuery("ST_Contains").
		WillReturnRows(pgxmock.NewRows([]string{"parcel_id", "geom_id", "zone_id", "x", "y"}).
			AddRow(int64(5), (*int64)(nil), (*int64)(nil), (*float64)(nil), (*float64)(nil)))

	loc := NewPostGISLocator(mock, "p10", WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}))
	p, err := loc.Locate(context.Background(), 1, 2)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(5), p.ParcelID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"basemap"."p10"`, quoteTable("basemap.p10"))
	assert.Equal(t, `"p10"`, quoteTable("p10"))
}

func TestEncodePoint(t *testing.T) {
	x, y := -122.4, 37.8
	data, err := EncodePoint(&x, &y, 4326)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 4326, g.SRID())
	assert.Equal(t, []float64{x, y}, g.FlatCoords())

	data, err = EncodePoint(nil, &y, 4326)
	require.NoError(t, err)
	assert.Nil(t, data)
}
