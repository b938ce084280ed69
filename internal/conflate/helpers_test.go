package conflate

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/smelt-cli/internal/geo"
	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// testParcels builds n unit-square parcels along the x axis. Parcel i covers
// x in [i-1, i] and has geom_id 1000+i and 2*i residential units.
func testParcels(t *testing.T, n int) *geo.ParcelIndex {
	t.Helper()
	l := layer.New("p10", []string{"PARCEL_ID", "geom_id", "ZONE_ID", "residential_units"})
	for i := 1; i <= n; i++ {
		x := float64(i - 1)
		flat := []float64{x, 0, x + 1, 0, x + 1, 1, x, 1, x, 0}
		mp := geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}})
		l.Append([]string{strconv.Itoa(i), strconv.Itoa(1000 + i), "7", strconv.Itoa(2 * i)}, mp)
	}
	ix, err := geo.NewParcelIndex(l)
	require.NoError(t, err)
	return ix
}

// inParcel returns x/y text for a point inside parcel i of testParcels.
func inParcel(i int) (string, string) {
	return strconv.FormatFloat(float64(i)-0.5, 'f', -1, 64), "0.5"
}

func testLookups(t *testing.T) *Lookups {
	t.Helper()
	l, err := DefaultLookups()
	require.NoError(t, err)
	return l
}

func testOptions() Options {
	return Options{
		Scenarios:          []int{0, 1, 2},
		EditDate:           20200429,
		Editor:             "MKR",
		Workers:            4,
		SingleFamilyMarker: "sfr",
	}
}

func manualColumns() []string {
	return []string{"manual_dp_id", "building_name", "year_built", "residential_units", "unit_ave_sqft",
		"stories", "Average_Weighted_Rent", "last_sale_year", "last_sale_price", "building_type", "incl", "x", "y"}
}

// manualLayer builds a manual layer with one HM record per parcel id.
func manualLayer(parcels []int, incl []string) *layer.Layer {
	l := layer.New("manual_dp", manualColumns())
	for i, p := range parcels {
		x, y := inParcel(p)
		l.Append([]string{"m" + strconv.Itoa(i), "Project " + strconv.Itoa(i), "2016", "10", "900",
			"4", "", "2017", "1000000", "HM", incl[i], x, y}, nil)
	}
	return l
}

func costarColumns() []string {
	return []string{"PropertyID", "building_name", "Building_Park", "Building_Address", "city", "Zip",
		"County_Name", "year_built", "det_bldg_type", "Rentable_Building_Area", "Number_Of_Units",
		"Avg_Unit_SF", "rent_type", "Number_Of_Stories", "Number_Of_Parking_Spaces",
		"Average_Weighted_Rent", "last_sale_date", "last_sale_price", "incl", "x", "y"}
}

func costarRow(id string, parcel int, bldgType, sqft, units, parking, incl string) []string {
	x, y := inParcel(parcel)
	return []string{id, "CS " + id, "Park", "1 Main St", "Oakland", "94612", "Alameda", "2015", bldgType,
		sqft, units, "850", "Market", "5", parking, "$2,500", "3/14/2016 12:00:00 AM", "5000000", incl, x, y}
}

func redfinColumns() []string {
	return []string{"redfinid", "ADDRESS", "CITY", "COUNTY", "YEAR_BUILT", "SQFT", "UNITS", "SOLD_DATE", "PRICE", "incl", "x", "y"}
}

func redfinRow(id string, parcel int, sqft, units, incl string) []string {
	x, y := inParcel(parcel)
	return []string{id, "2 Elm St", "Napa", "Napa", "2014", sqft, units, "2018-06-01", "750000", incl, x, y}
}

func oppColumns() []string {
	return []string{"raw_id", "year_built", "residential_units", "unit_ave_sqft", "stories",
		"rent_ave_sqft", "rent_ave_unit", "last_sale_year", "last_sale_price", "scen0", "scen1", "scen2", "x", "y"}
}

func oppRow(id string, parcel int, scen0, scen1, scen2 string) []string {
	x, y := inParcel(parcel)
	return []string{id, "2030", "40", "800", "6", "3.5", "2800", "", "", scen0, scen1, scen2, x, y}
}

func rec(parcelID int64) *model.DevelopmentRecord {
	return &model.DevelopmentRecord{Source: model.SourceManual, Action: model.ActionBuild, ParcelID: model.Ptr(parcelID)}
}
