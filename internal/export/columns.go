// Package export renders the output tables in their fixed column order and
// writes them as CSV files and point shapefiles.
package export

import (
	"strconv"

	"github.com/sells-group/smelt-cli/internal/model"
)

// Kind is the storage type of an output column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
)

// Column is one output column of the development project tables. Get
// returns nil, int64, float64 or string.
type Column struct {
	Name string
	Kind Kind
	Get  func(r *model.DevelopmentRecord) any
}

func text(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func integer(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func integer64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func float(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func scenarioColumn(id int) Column {
	return Column{
		Name: "scen" + strconv.Itoa(id),
		Kind: KindInt,
		Get: func(r *model.DevelopmentRecord) any {
			v, ok := r.Scenarios[id]
			if !ok {
				return nil
			}
			return int64(v)
		},
	}
}

// DevprojColumns returns the pipeline and development_projects column order
// with one scen<id> column per scenario.
func DevprojColumns(scenarios []int) []Column {
	cols := []Column{
		{"development_projects_id", KindInt, func(r *model.DevelopmentRecord) any { return r.DevelopmentProjectsID }},
		{"raw_id", KindText, func(r *model.DevelopmentRecord) any { return text(r.RawID) }},
		{"building_name", KindText, func(r *model.DevelopmentRecord) any { return text(r.BuildingName) }},
		{"site_name", KindText, func(r *model.DevelopmentRecord) any { return text(r.SiteName) }},
		{"action", KindText, func(r *model.DevelopmentRecord) any { return string(r.Action) }},
	}
	for _, id := range scenarios {
		cols = append(cols, scenarioColumn(id))
	}
	return append(cols, []Column{
		{"address", KindText, func(r *model.DevelopmentRecord) any { return text(r.Address) }},
		{"city", KindText, func(r *model.DevelopmentRecord) any { return text(r.City) }},
		{"zip", KindText, func(r *model.DevelopmentRecord) any { return text(r.Zip) }},
		{"county", KindText, func(r *model.DevelopmentRecord) any { return text(r.County) }},
		{"x", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.X) }},
		{"y", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.Y) }},
		{"geom_id", KindInt, func(r *model.DevelopmentRecord) any { return integer64(r.GeomID) }},
		{"year_built", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.YearBuilt) }},
		{"building_type_det", KindText, func(r *model.DevelopmentRecord) any { return text(r.BuildingTypeDet) }},
		{"building_type", KindText, func(r *model.DevelopmentRecord) any { return text(r.BuildingType) }},
		{"building_type_id", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.BuildingTypeID) }},
		{"development_type_id", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.DevelopmentTypeID) }},
		{"building_sqft", KindInt, func(r *model.DevelopmentRecord) any { return integer64(r.BuildingSqft) }},
		{"non_residential_sqft", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.NonResidentialSqft) }},
		{"residential_units", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.ResidentialUnits) }},
		{"unit_ave_sqft", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.UnitAveSqft) }},
		{"tenure", KindText, func(r *model.DevelopmentRecord) any {
			if r.Tenure == nil {
				return nil
			}
			return string(*r.Tenure)
		}},
		{"rent_type", KindText, func(r *model.DevelopmentRecord) any { return text(r.RentType) }},
		{"stories", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.Stories) }},
		{"parking_spaces", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.ParkingSpaces) }},
		{"average_weighted_rent", KindText, func(r *model.DevelopmentRecord) any { return text(r.AverageWeightedRent) }},
		{"last_sale_year", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.LastSaleYear) }},
		{"last_sale_price", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.LastSalePrice) }},
		{"source", KindText, func(r *model.DevelopmentRecord) any { return string(r.Source) }},
		{"PARCEL_ID", KindInt, func(r *model.DevelopmentRecord) any { return integer64(r.ParcelID) }},
		{"ZONE_ID", KindInt, func(r *model.DevelopmentRecord) any { return integer64(r.ZoneID) }},
		{"edit_date", KindInt, func(r *model.DevelopmentRecord) any { return integer(r.EditDate) }},
		{"editor", KindText, func(r *model.DevelopmentRecord) any { return text(r.Editor) }},
		{"duration", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.Duration) }},
		{"rent_ave_sqft", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.RentAveSqft) }},
		{"rent_ave_unit", KindFloat, func(r *model.DevelopmentRecord) any { return float(r.RentAveUnit) }},
	}...)
}

// Names returns the column names.
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Values returns r's values in column order.
func Values(cols []Column, r *model.DevelopmentRecord) []any {
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = c.Get(r)
	}
	return vals
}

// FormatValue renders a column value for a delimited file. Nil is empty.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case *int:
		if t == nil {
			return ""
		}
		return strconv.Itoa(*t)
	case *int64:
		if t == nil {
			return ""
		}
		return strconv.FormatInt(*t, 10)
	case *float64:
		if t == nil {
			return ""
		}
		return strconv.FormatFloat(*t, 'f', -1, 64)
	}
	return ""
}

// Rows renders records as text rows in column order.
func Rows(cols []Column, recs []*model.DevelopmentRecord) [][]string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = FormatValue(c.Get(r))
		}
		rows[i] = row
	}
	return rows
}
