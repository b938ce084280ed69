package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/db"
	"github.com/sells-group/smelt-cli/internal/resilience"
)

// PostGISLocator answers point-in-polygon lookups against a parcel table
// with a geometry column, for parcel sets too large to index in memory.
type PostGISLocator struct {
	pool  db.Pool
	table string
	srid  int
	attrs []string
	retry resilience.RetryConfig
}

// PostGISOption configures a PostGISLocator.
type PostGISOption func(*PostGISLocator)

// WithSRID sets the SRID of incoming point coordinates. Defaults to 4326.
func WithSRID(srid int) PostGISOption {
	return func(l *PostGISLocator) {
		l.srid = srid
	}
}

// WithAttributeColumns selects extra parcel columns, read as text, into the
// returned Parcel's attributes.
func WithAttributeColumns(cols ...string) PostGISOption {
	return func(l *PostGISLocator) {
		l.attrs = append(l.attrs, cols...)
	}
}

// WithRetry sets the retry policy for lookups that fail transiently.
func WithRetry(cfg resilience.RetryConfig) PostGISOption {
	return func(l *PostGISLocator) {
		l.retry = cfg
	}
}

// NewPostGISLocator creates a locator over a schema-qualified parcel table
// with columns parcel_id, geom_id, zone_id, x, y and geom.
func NewPostGISLocator(pool db.Pool, table string, opts ...PostGISOption) *PostGISLocator {
	l := &PostGISLocator{pool: pool, table: table, srid: 4326, retry: resilience.DefaultRetryConfig()}
	l.retry.OnRetry = resilience.RetryLogger("geo", "postgis_locate")
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the lowest parcel_id whose geometry contains the point.
func (l *PostGISLocator) Locate(ctx context.Context, x, y float64) (*Parcel, error) {
	var extra strings.Builder
	for _, c := range l.attrs {
		extra.WriteString(", p." + pgx.Identifier{c}.Sanitize() + "::text")
	}
	query := fmt.Sprintf(`
		SELECT p.parcel_id, p.geom_id, p.zone_id, p.x, p.y%s
		FROM %s p
		WHERE ST_Contains(p.geom, ST_SetSRID(ST_MakePoint($1, $2), $3))
		ORDER BY p.parcel_id
		LIMIT 1`, extra.String(), quoteTable(l.table))

	return resilience.DoVal(ctx, l.retry, func(ctx context.Context) (*Parcel, error) {
		var p Parcel
		attrVals := make([]*string, len(l.attrs))
		dest := []any{&p.ParcelID, &p.GeomID, &p.ZoneID, &p.X, &p.Y}
		for i := range attrVals {
			dest = append(dest, &attrVals[i])
		}

		err := l.pool.QueryRow(ctx, query, x, y, l.srid).Scan(dest...)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "geo: postgis locate")
		}
		for i, c := range l.attrs {
			if attrVals[i] != nil {
				p.setAttr(c, *attrVals[i])
			}
		}
		return &p, nil
	})
}

func quoteTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	return pgx.Identifier(parts).Sanitize()
}
