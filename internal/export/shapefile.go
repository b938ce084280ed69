package export

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/model"
)

// maxDBFName is the longest field name a DBF header holds.
const maxDBFName = 10

// DBFNames shortens column names to DBF limits. Collisions after truncation
// get a numeric suffix, so names stay unique and in column order.
func DBFNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		short := n
		if len(short) > maxDBFName {
			short = short[:maxDBFName]
		}
		for k := 1; used[strings.ToLower(short)]; k++ {
			suffix := "_" + strconv.Itoa(k)
			base := n
			if len(base) > maxDBFName-len(suffix) {
				base = base[:maxDBFName-len(suffix)]
			}
			short = base + suffix
		}
		used[strings.ToLower(short)] = true
		out[i] = short
	}
	return out
}

func dbfField(name string, kind Kind) shp.Field {
	switch kind {
	case KindInt:
		return shp.NumberField(name, 18)
	case KindFloat:
		return shp.FloatField(name, 24, 6)
	default:
		return shp.StringField(name, 254)
	}
}

// WriteShapefile writes recs as a point shapefile at path (.shp, .shx and
// .dbf) placed at each record's source point, whether or not it fell in a
// parcel. Records without a source point are skipped and counted.
func WriteShapefile(path string, cols []Column, recs []*model.DevelopmentRecord) (written, skipped int, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, 0, eris.Wrap(err, "export: create output dir")
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	names := DBFNames(Names(cols))
	fields := make([]shp.Field, len(cols))
	for i, c := range cols {
		fields[i] = dbfField(names[i], c.Kind)
	}
	if err := w.SetFields(fields); err != nil {
		return 0, 0, eris.Wrap(err, "export: set shapefile fields")
	}

	for _, r := range recs {
		x, y, ok := r.Location()
		if !ok {
			skipped++
			continue
		}
		row := int(w.Write(&shp.Point{X: x, Y: y}))
		for j, c := range cols {
			v := dbfValue(c.Get(r))
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(row, j, v); err != nil {
				return written, skipped, eris.Wrapf(err, "export: write %s", c.Name)
			}
		}
		written++
	}
	return written, skipped, nil
}

// dbfValue converts a column value to a type the DBF writer accepts.
func dbfValue(v any) any {
	switch t := v.(type) {
	case int64:
		return int(t)
	case float64, string:
		return t
	}
	return nil
}
