package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// EncodePoint returns EWKB bytes for a point with the given SRID, for
// loading into a PostGIS geometry column. A nil coordinate yields nil.
func EncodePoint(x, y *float64, srid int) ([]byte, error) {
	if x == nil || y == nil {
		return nil, nil
	}
	pt := geom.NewPointFlat(geom.XY, []float64{*x, *y}).SetSRID(srid)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode point")
	}
	return data, nil
}
