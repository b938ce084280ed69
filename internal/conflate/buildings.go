package conflate

import (
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// Pipeline records built in this window are composed into the 2010 base
// buildings table.
const (
	BuildingsFromYear = 2011
	BuildingsToYear   = 2015
)

// BuildingColumns is the column order of the composed buildings table.
var BuildingColumns = []string{
	"building_id", "parcel_id", "development_type_id", "improvement_value",
	"residential_units", "residential_sqft", "sqft_per_unit", "non_residential_sqft",
	"building_sqft", "nonres_rent_per_sqft", "res_price_per_sqft", "stories", "year_built",
	"redfin_sale_price", "redfin_sale_year", "redfin_home_type", "costar_property_type",
	"costar_rent", "building_type", "building_type_id",
}

var requiredBuildingColumns = []string{"parcel_id", "development_type_id", "residential_units", "non_residential_sqft"}

// BuildingsSummary compares what the build events remove from the base
// table with what they add.
type BuildingsSummary struct {
	BaseRows      int     `json:"base_rows"`
	Added         int     `json:"added"`
	Built         int     `json:"built"`
	Removed       int     `json:"removed"`
	RemovedUnits  int     `json:"removed_units"`
	BuiltUnits    int     `json:"built_units"`
	RemovedNonres float64 `json:"removed_nonres"`
	BuiltNonres   float64 `json:"built_nonres"`
	MissingType   int     `json:"missing_type"`
}

// NetIncrease reports whether build events add both units and
// non-residential area overall.
func (s BuildingsSummary) NetIncrease() bool {
	return s.RemovedUnits < s.BuiltUnits && s.RemovedNonres < s.BuiltNonres
}

// BuildingsTable is the composed buildings table in BuildingColumns order.
type BuildingsTable struct {
	Rows    [][]string
	Summary BuildingsSummary
}

// ComposeBuildings adds 2011-2015 pipeline events to the 2010 base table:
// add events are appended, and parcels with build events lose their base
// buildings before the events are appended.
func ComposeBuildings(base *layer.Layer, pipeline []*model.DevelopmentRecord, b10Types map[int]BuildingType) (*BuildingsTable, error) {
	for _, col := range requiredBuildingColumns {
		if !base.HasColumn(col) {
			return nil, eris.Errorf("conflate: buildings table %q has no column %q", base.Name, col)
		}
	}

	var adds, builds []*model.DevelopmentRecord
	for _, r := range pipeline {
		if r.YearBuilt == nil || *r.YearBuilt < BuildingsFromYear || *r.YearBuilt > BuildingsToYear {
			continue
		}
		if r.Action == model.ActionAdd {
			adds = append(adds, r)
		} else {
			builds = append(builds, r)
		}
	}

	rebuilt := make(map[string]bool)
	for _, r := range builds {
		if r.ParcelID != nil {
			rebuilt[strconv.FormatInt(*r.ParcelID, 10)] = true
		}
	}

	t := &BuildingsTable{}
	t.Summary.BaseRows = base.Len()
	t.Summary.Added = len(adds)
	t.Summary.Built = len(builds)

	// Add events join the base rows first, so an add on a rebuilt parcel is
	// replaced along with the base buildings.
	candidates := make([][]string, 0, base.Len()+len(adds))
	for i := range base.Len() {
		candidates = append(candidates, baseBuildingRow(base, i, b10Types))
	}
	for _, r := range adds {
		candidates = append(candidates, eventBuildingRow(r))
	}
	for _, row := range candidates {
		if rebuilt[normalizeID(row[1])] {
			t.Summary.Removed++
			if n, err := parseNumber(row[4]); err == nil {
				t.Summary.RemovedUnits += int(n)
			}
			if f, err := parseNumber(row[7]); err == nil {
				t.Summary.RemovedNonres += f
			}
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	for _, r := range builds {
		t.Rows = append(t.Rows, eventBuildingRow(r))
		if r.ResidentialUnits != nil {
			t.Summary.BuiltUnits += *r.ResidentialUnits
		}
		if r.NonResidentialSqft != nil {
			t.Summary.BuiltNonres += *r.NonResidentialSqft
		}
	}

	for _, row := range t.Rows {
		if row[18] == "" {
			t.Summary.MissingType++
		}
	}
	return t, nil
}

func baseBuildingRow(base *layer.Layer, i int, b10Types map[int]BuildingType) []string {
	row := make([]string, len(BuildingColumns))
	for c, col := range BuildingColumns {
		row[c] = base.Value(i, col)
	}
	if code, err := parseNumber(row[2]); err == nil {
		if bt, ok := b10Types[int(code)]; ok {
			row[18] = bt.Simple
			row[19] = strconv.Itoa(bt.TypeID)
		}
	}
	return row
}

func eventBuildingRow(r *model.DevelopmentRecord) []string {
	row := make([]string, len(BuildingColumns))
	row[1] = fmtInt64(r.ParcelID)
	row[2] = fmtInt(r.DevelopmentTypeID)
	row[4] = fmtInt(r.ResidentialUnits)
	row[6] = fmtFloat(r.UnitAveSqft)
	row[7] = fmtFloat(r.NonResidentialSqft)
	row[8] = fmtInt64(r.BuildingSqft)
	row[11] = fmtInt(r.Stories)
	row[12] = fmtInt(r.YearBuilt)
	row[13] = fmtFloat(r.LastSalePrice)
	if r.AverageWeightedRent != nil {
		row[17] = *r.AverageWeightedRent
	}
	if r.BuildingType != nil {
		row[18] = *r.BuildingType
	}
	row[19] = fmtInt(r.BuildingTypeID)
	return row
}

// normalizeID renders "123.0" and "123" alike.
func normalizeID(s string) string {
	if f, err := parseNumber(s); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
