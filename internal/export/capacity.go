package export

import (
	"github.com/sells-group/smelt-cli/internal/capacity"
	"github.com/sells-group/smelt-cli/internal/model"
)

// CapacityColumns is the column order of the combined parcel capacity table.
func CapacityColumns() []string {
	cols := []string{
		"PARCEL_ID", "county_id", "county_name", "juris_zmod", "ACRES", "zoning_id_pba40", "pba50zoningmodcat_zmod",
		"max_far_basis", "max_far_pba40",
		"source_far_basis", "source_far_pba40",
		"max_dua_basis", "max_dua_pba40",
		"source_dua_basis", "source_dua_pba40",
		"max_height_basis", "max_height_pba40",
		"nodev_zmod", "nodev_pba40",
		"allow_res_basis", "allow_res_pba40",
		"allow_nonres_basis", "allow_nonres_pba40",
		"building_types_source_basis", "source_basis",
		"plu_id_basis", "plu_jurisdiction_basis", "plu_description_basis",
	}
	for _, code := range model.AllowedBuildingTypes {
		cols = append(cols, code+"_basis", code+"_pba40")
	}
	return cols
}

var capacityTextColumns = map[string]bool{
	"county_name": true, "juris_zmod": true, "pba50zoningmodcat_zmod": true,
	"source_far_basis": true, "source_far_pba40": true, "source_dua_basis": true, "source_dua_pba40": true,
	"building_types_source_basis": true, "source_basis": true,
	"plu_id_basis": true, "plu_jurisdiction_basis": true, "plu_description_basis": true,
}

var capacityIntColumns = map[string]bool{
	"PARCEL_ID": true, "county_id": true, "zoning_id_pba40": true, "nodev_zmod": true, "nodev_pba40": true,
}

// CapacityKinds returns the storage kind of each CapacityColumns entry.
func CapacityKinds() []Kind {
	cols := CapacityColumns()
	kinds := make([]Kind, len(cols))
	for i, c := range cols {
		switch {
		case capacityTextColumns[c]:
			kinds[i] = KindText
		case capacityIntColumns[c]:
			kinds[i] = KindInt
		default:
			kinds[i] = KindFloat
		}
	}
	return kinds
}

// CapacityValues returns p's values in CapacityColumns order.
func CapacityValues(p *model.ParcelCapacity) []any {
	basis := sourceOf(p, model.CapacityBasis)
	pba40 := sourceOf(p, model.CapacityPBA40)
	vals := []any{
		p.ParcelID, p.CountyID, p.CountyName, p.Juris, p.Acres, p.ZoningIDPBA40, p.PBA50ZoningModCat,
		basis.MaxFAR, pba40.MaxFAR,
		basis.SourceFAR, pba40.SourceFAR,
		basis.MaxDUA, pba40.MaxDUA,
		basis.SourceDUA, pba40.SourceDUA,
		basis.MaxHeight, pba40.MaxHeight,
		p.NodevZmod, p.NodevPBA40,
		basis.AllowRes, pba40.AllowRes,
		basis.AllowNonres, pba40.AllowNonres,
		p.Basis.BuildingTypesSource, p.Basis.Source,
		p.Basis.PLUID, p.Basis.PLUJurisdiction, p.Basis.PLUDescription,
	}
	for _, code := range model.AllowedBuildingTypes {
		vals = append(vals, flagValue(basis, code), flagValue(pba40, code))
	}
	return vals
}

func sourceOf(p *model.ParcelCapacity, src model.CapacitySource) *model.SourceCapacity {
	if sc, ok := p.Sources[src]; ok {
		return sc
	}
	return &model.SourceCapacity{}
}

func flagValue(sc *model.SourceCapacity, code string) any {
	if v, ok := sc.Allowed[code]; ok {
		return v
	}
	return nil
}

// CapacityRows renders the capacity table.
func CapacityRows(parcels []*model.ParcelCapacity) [][]string {
	rows := make([][]string, len(parcels))
	for i, p := range parcels {
		rows[i] = formatAll(CapacityValues(p))
	}
	return rows
}

// ComparisonColumns is the column order of the development type comparison.
func ComparisonColumns() []string {
	cols := []string{"PARCEL_ID", "county_id", "county_name", "juris_zmod", "ACRES", "nodev_zmod", "nodev_pba40"}
	for _, code := range model.AllowedBuildingTypes {
		cols = append(cols, code+"_comp")
	}
	return cols
}

// ComparisonRows renders the development type comparison table.
func ComparisonRows(rows []capacity.TypeComparison) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		p := r.Parcel
		row := formatAll([]any{p.ParcelID, p.CountyID, p.CountyName, p.Juris, p.Acres, p.NodevZmod, p.NodevPBA40})
		out[i] = append(row, r.Categories...)
	}
	return out
}

// MissingIDColumns is the column order of the plu id completeness reports.
var MissingIDColumns = []string{"PARCEL_ID", "juris_zmod", "zoning_id_pba40", "plu_id_basis", "plu_description_basis"}

// MissingIDRows renders a plu id completeness report.
func MissingIDRows(parcels []*model.ParcelCapacity) [][]string {
	rows := make([][]string, len(parcels))
	for i, p := range parcels {
		rows[i] = formatAll([]any{p.ParcelID, p.Juris, p.ZoningIDPBA40, p.Basis.PLUID, p.Basis.PLUDescription})
	}
	return rows
}

func formatAll(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = FormatValue(v)
	}
	return out
}
