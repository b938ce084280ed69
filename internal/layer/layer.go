// Package layer reads source layers (shapefiles, zipped shapefiles, CSV and
// XLSX tables) into one in-memory feature table.
package layer

import (
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// Feature is one row of a layer. Attrs is aligned with Layer.Columns.
type Feature struct {
	Attrs []string
	Geom  geom.T
}

// Layer is a named, column-addressable set of features.
type Layer struct {
	Name     string
	Columns  []string
	Features []Feature

	colIdx map[string]int
}

// New creates an empty layer with the given column names.
func New(name string, columns []string) *Layer {
	l := &Layer{Name: name, Columns: columns, colIdx: make(map[string]int, len(columns))}
	for i, c := range columns {
		key := normalizeColumn(c)
		// First occurrence wins, matching how shapefile readers resolve
		// truncated duplicate DBF names.
		if _, dup := l.colIdx[key]; !dup {
			l.colIdx[key] = i
		}
	}
	return l
}

// Append adds a feature. Short attribute rows are padded with empty values.
func (l *Layer) Append(attrs []string, g geom.T) {
	if len(attrs) < len(l.Columns) {
		padded := make([]string, len(l.Columns))
		copy(padded, attrs)
		attrs = padded
	}
	l.Features = append(l.Features, Feature{Attrs: attrs, Geom: g})
}

// Len returns the number of features.
func (l *Layer) Len() int { return len(l.Features) }

// Index resolves a column name case-insensitively.
func (l *Layer) Index(col string) (int, bool) {
	i, ok := l.colIdx[normalizeColumn(col)]
	return i, ok
}

// HasColumn reports whether the layer schema contains col.
func (l *Layer) HasColumn(col string) bool {
	_, ok := l.Index(col)
	return ok
}

// Value returns the trimmed text of col for feature i, or "" when the column
// is absent or the cell is empty.
func (l *Layer) Value(i int, col string) string {
	idx, ok := l.Index(col)
	if !ok || idx >= len(l.Features[i].Attrs) {
		return ""
	}
	return strings.TrimSpace(l.Features[i].Attrs[idx])
}

// Point returns the point geometry of feature i. Layers without geometry fall
// back to numeric x/y attribute columns.
func (l *Layer) Point(i int, xCol, yCol string) (x, y float64, ok bool) {
	if p, isPoint := l.Features[i].Geom.(*geom.Point); isPoint && p != nil && len(p.FlatCoords()) >= 2 {
		return p.X(), p.Y(), true
	}
	xs, ys := l.Value(i, xCol), l.Value(i, yCol)
	if xs == "" || ys == "" {
		return 0, 0, false
	}
	xv, errX := strconv.ParseFloat(xs, 64)
	yv, errY := strconv.ParseFloat(ys, 64)
	if errX != nil || errY != nil {
		return 0, 0, false
	}
	return xv, yv, true
}

func normalizeColumn(c string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimRight(c, "\x00")))
}
