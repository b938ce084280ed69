package geo

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/smelt-cli/internal/layer"
)

// Parcel layer columns.
const (
	ColParcelID = "PARCEL_ID"
	ColGeomID   = "geom_id"
	ColZoneID   = "ZONE_ID"
	ColX        = "x"
	ColY        = "y"
)

type indexedParcel struct {
	parcel *Parcel
	polys  []*geom.Polygon
	minX   float64
	minY   float64
	maxX   float64
	maxY   float64
}

// ParcelIndex is an in-memory point-in-polygon index over a parcel layer.
// Candidate parcels are found through a uniform grid of bounding boxes and
// confirmed with exact ring containment.
type ParcelIndex struct {
	parcels  []indexedParcel
	byID     map[int64]*Parcel
	cellSize float64
	originX  float64
	originY  float64
	cells    map[[2]int][]int
}

// IndexOption configures a ParcelIndex.
type IndexOption func(*ParcelIndex)

// WithCellSize sets the grid cell size in layer units.
func WithCellSize(size float64) IndexOption {
	return func(ix *ParcelIndex) {
		if size > 0 {
			ix.cellSize = size
		}
	}
}

// NewParcelIndex builds an index from a polygon parcel layer. PARCEL_ID is
// required; geom_id, ZONE_ID and the centroid columns x/y are optional, and
// every other column is kept as a parcel attribute.
func NewParcelIndex(l *layer.Layer, opts ...IndexOption) (*ParcelIndex, error) {
	if !l.HasColumn(ColParcelID) {
		return nil, eris.Errorf("geo: parcel layer %s has no %s column", l.Name, ColParcelID)
	}

	ix := &ParcelIndex{
		byID:  make(map[int64]*Parcel, l.Len()),
		cells: make(map[[2]int][]int),
	}
	for _, opt := range opts {
		opt(ix)
	}

	var noGeom, noID int
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for i := range l.Features {
		id := parseInt64(l.Value(i, ColParcelID))
		if id == nil {
			noID++
			continue
		}
		p := &Parcel{
			ParcelID: *id,
			GeomID:   parseInt64(l.Value(i, ColGeomID)),
			ZoneID:   parseInt64(l.Value(i, ColZoneID)),
			X:        parseFloat(l.Value(i, ColX)),
			Y:        parseFloat(l.Value(i, ColY)),
		}
		for c, col := range l.Columns {
			if c < len(l.Features[i].Attrs) {
				p.setAttr(col, l.Features[i].Attrs[c])
			}
		}
		ix.byID[p.ParcelID] = p

		polys := polygonsOf(l.Features[i].Geom)
		if len(polys) == 0 {
			noGeom++
			continue
		}

		ip := indexedParcel{parcel: p, polys: polys}
		b := l.Features[i].Geom.Bounds()
		ip.minX, ip.minY = b.Min(0), b.Min(1)
		ip.maxX, ip.maxY = b.Max(0), b.Max(1)
		if p.X == nil || p.Y == nil {
			cx, cy := (ip.minX+ip.maxX)/2, (ip.minY+ip.maxY)/2
			p.X, p.Y = &cx, &cy
		}
		ix.parcels = append(ix.parcels, ip)

		minX, minY = math.Min(minX, ip.minX), math.Min(minY, ip.minY)
		maxX, maxY = math.Max(maxX, ip.maxX), math.Max(maxY, ip.maxY)
	}

	if len(ix.parcels) == 0 {
		return nil, eris.Errorf("geo: parcel layer %s has no polygons", l.Name)
	}

	ix.originX, ix.originY = minX, minY
	if ix.cellSize == 0 {
		// Aim for a few parcels per cell on average.
		area := (maxX - minX) * (maxY - minY)
		ix.cellSize = math.Max(math.Sqrt(area/float64(len(ix.parcels))*4), 1e-9)
	}
	for n, ip := range ix.parcels {
		x0, y0 := ix.cell(ip.minX, ip.minY)
		x1, y1 := ix.cell(ip.maxX, ip.maxY)
		for cx := x0; cx <= x1; cx++ {
			for cy := y0; cy <= y1; cy++ {
				ix.cells[[2]int{cx, cy}] = append(ix.cells[[2]int{cx, cy}], n)
			}
		}
	}

	zap.L().Info("geo: parcel index built",
		zap.String("layer", l.Name),
		zap.Int("parcels", len(ix.parcels)),
		zap.Int("cells", len(ix.cells)),
		zap.Int("without_geometry", noGeom),
		zap.Int("without_parcel_id", noID),
	)
	return ix, nil
}

// Len returns the number of indexed parcel polygons.
func (ix *ParcelIndex) Len() int { return len(ix.parcels) }

// Parcel returns a parcel by id.
func (ix *ParcelIndex) Parcel(id int64) (*Parcel, bool) {
	p, ok := ix.byID[id]
	return p, ok
}

// JoinAttributes copies columns of a tabular layer keyed by PARCEL_ID onto
// the indexed parcels. Existing attribute names are overwritten. It returns
// the number of rows that matched a parcel.
func (ix *ParcelIndex) JoinAttributes(l *layer.Layer) (int, error) {
	if !l.HasColumn(ColParcelID) {
		return 0, eris.Errorf("geo: parcel attribute table %s has no %s column", l.Name, ColParcelID)
	}
	matched := 0
	for i := range l.Features {
		id := parseInt64(l.Value(i, ColParcelID))
		if id == nil {
			continue
		}
		p, ok := ix.byID[*id]
		if !ok {
			continue
		}
		matched++
		for c, col := range l.Columns {
			if c < len(l.Features[i].Attrs) {
				p.setAttr(col, l.Features[i].Attrs[c])
			}
		}
	}
	return matched, nil
}

// Locate returns the parcel with the lowest PARCEL_ID whose polygon contains
// (x, y), matching the PostGIS locator. Points in overlapping parcels or on
// a shared edge resolve the same way regardless of layer order.
func (ix *ParcelIndex) Locate(_ context.Context, x, y float64) (*Parcel, error) {
	cx, cy := ix.cell(x, y)
	var best *Parcel
	for _, n := range ix.cells[[2]int{cx, cy}] {
		ip := &ix.parcels[n]
		if x < ip.minX || x > ip.maxX || y < ip.minY || y > ip.maxY {
			continue
		}
		if best != nil && ip.parcel.ParcelID >= best.ParcelID {
			continue
		}
		if containsPoint(ip.polys, x, y) {
			best = ip.parcel
		}
	}
	return best, nil
}

func (ix *ParcelIndex) cell(x, y float64) (int, int) {
	return int(math.Floor((x - ix.originX) / ix.cellSize)), int(math.Floor((y - ix.originY) / ix.cellSize))
}

func polygonsOf(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
		return polys
	default:
		return nil
	}
}

// containsPoint applies even-odd containment across every ring of every
// polygon, so holes written as separate shapefile parts still exclude.
func containsPoint(polys []*geom.Polygon, x, y float64) bool {
	pt := geom.Coord{x, y}
	inside := false
	for _, poly := range polys {
		for r := 0; r < poly.NumLinearRings(); r++ {
			ring := poly.LinearRing(r)
			if xy.IsPointInRing(geom.XY, pt, ring.FlatCoords()) {
				inside = !inside
			}
		}
	}
	return inside
}
