// Package layertest writes small shapefile fixtures for tests.
package layertest

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

// Point is a fixture point with its attribute values in field order.
type Point struct {
	X, Y  float64
	Attrs []string
}

// Polygon is a fixture polygon ring with its attribute values in field order.
type Polygon struct {
	Ring  [][2]float64
	Attrs []string
}

// WritePoints writes a point shapefile named name.shp under dir. Every field
// is written as a 50-character string field.
func WritePoints(t *testing.T, dir, name string, fields []string, points []Point) string {
	t.Helper()
	path := filepath.Join(dir, name+".shp")

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields(stringFields(fields)))

	for _, p := range points {
		row := w.Write(&shp.Point{X: p.X, Y: p.Y})
		writeAttrs(t, w, int(row), p.Attrs)
	}
	w.Close()
	return path
}

// WritePolygons writes a polygon shapefile named name.shp under dir.
func WritePolygons(t *testing.T, dir, name string, fields []string, polys []Polygon) string {
	t.Helper()
	path := filepath.Join(dir, name+".shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields(stringFields(fields)))

	for _, p := range polys {
		pts := make([]shp.Point, len(p.Ring))
		for i, c := range p.Ring {
			pts[i] = shp.Point{X: c[0], Y: c[1]}
		}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{pts}))
		row := w.Write(&poly)
		writeAttrs(t, w, int(row), p.Attrs)
	}
	w.Close()
	return path
}

// Square returns a closed axis-aligned ring with its lower-left corner at
// (x, y).
func Square(x, y, size float64) [][2]float64 {
	return [][2]float64{{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y}}
}

// Itoa is a shorthand for building attribute rows.
func Itoa(v int64) string { return strconv.FormatInt(v, 10) }

func stringFields(names []string) []shp.Field {
	fields := make([]shp.Field, len(names))
	for i, n := range names {
		fields[i] = shp.StringField(n, 50)
	}
	return fields
}

func writeAttrs(t *testing.T, w *shp.Writer, row int, attrs []string) {
	t.Helper()
	for i, v := range attrs {
		require.NoError(t, w.WriteAttribute(row, i, v))
	}
}
