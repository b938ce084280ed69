package conflate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/model"
)

// Source kinds accepted in devproj.sources[].kind.
const (
	KindManual        = "manual"
	KindCostar        = "costar"
	KindBasisPipeline = "basis_pipeline"
	KindBasisNew      = "basis_new"
	KindRedfin        = "redfin"
	KindOpportunity   = "opp"
)

// MappingOptions carries the run-level inputs some mappings depend on.
type MappingOptions struct {
	Lookups *Lookups
	// SingleFamilyMarker in a redfin layer name marks single-family sales.
	SingleFamilyMarker string
}

type mappingBuilder func(MappingOptions) Mapping

var mappings = map[string]mappingBuilder{
	KindManual:        manualMapping,
	KindCostar:        costarMapping,
	KindBasisPipeline: basisPipelineMapping,
	KindBasisNew:      basisNewMapping,
	KindRedfin:        redfinMapping,
	KindOpportunity:   opportunityMapping,
}

// Kinds lists the known source kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(mappings))
	for k := range mappings {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kindSource[kinds[i]].Priority() < kindSource[kinds[j]].Priority()
	})
	return kinds
}

var kindSource = map[string]model.Source{
	KindManual:        model.SourceManual,
	KindCostar:        model.SourceCostar,
	KindBasisPipeline: model.SourceBasisPipeline,
	KindBasisNew:      model.SourceBasisNewConstr,
	KindRedfin:        model.SourceRedfin,
	KindOpportunity:   model.SourceOpportunitySite,
}

// SourceForKind returns the source tag records of a kind carry.
func SourceForKind(kind string) (model.Source, error) {
	src, ok := kindSource[kind]
	if !ok {
		return "", eris.Errorf("conflate: unknown source kind %q", kind)
	}
	return src, nil
}

// MappingFor returns the field mapping for a source kind.
func MappingFor(kind string, opts MappingOptions) (Mapping, error) {
	build, ok := mappings[kind]
	if !ok {
		return Mapping{}, eris.Errorf("conflate: unknown source kind %q", kind)
	}
	if opts.Lookups == nil {
		return Mapping{}, eris.New("conflate: mapping options need lookups")
	}
	if opts.SingleFamilyMarker == "" {
		opts.SingleFamilyMarker = "sfr"
	}
	return build(opts), nil
}

func manualMapping(MappingOptions) Mapping {
	return Mapping{
		Source:     model.SourceManual,
		Scenarios:  AllScenarios,
		InclColumn: "incl",
		Rules: []Rule{
			Copy("raw_id", "manual_dp_id"),
			Copy("building_name", "building_name"),
			CopyIfPresent("site_name", "site_name"),
			CopyIfPresent("action", "action"),
			CopyIfPresent("address", "address"),
			CopyIfPresent("city", "city"),
			CopyIfPresent("zip", "zip"),
			CopyIfPresent("county", "county"),
			Derive("x", parcelLocation),
			Copy("year_built", "year_built"),
			CopyIfPresent("building_type_det", "building_type"),
			CopyIfPresent("building_sqft", "building_sqft"),
			CopyIfPresent("non_residential_sqft", "non_residential_sqft"),
			Copy("residential_units", "residential_units"),
			Copy("unit_ave_sqft", "unit_ave_sqft"),
			CopyIfPresent("tenure", "tenure"),
			CopyIfPresent("rent_type", "rent_type"),
			Copy("stories", "stories"),
			CopyIfPresent("parking_spaces", "parking_spaces"),
			Copy("average_weighted_rent", "Average_Weighted_Rent"),
			Copy("last_sale_year", "last_sale_year"),
			Copy("last_sale_price", "last_sale_price"),
		},
	}
}

func costarMapping(MappingOptions) Mapping {
	return Mapping{
		Source:     model.SourceCostar,
		Scenarios:  AllScenarios,
		InclColumn: "incl",
		Rules: []Rule{
			Copy("raw_id", "PropertyID"),
			Copy("building_name", "building_name"),
			Copy("site_name", "Building_Park"),
			Const("action", string(model.ActionBuild)),
			Copy("address", "Building_Address"),
			Copy("city", "city"),
			Copy("zip", "Zip"),
			Copy("county", "County_Name"),
			Derive("x", parcelLocation),
			Copy("year_built", "year_built"),
			Copy("building_type_det", "det_bldg_type"),
			Copy("building_sqft", "Rentable_Building_Area"),
			// CoStar does not split residential floor area out, so the
			// whole building counts as non-residential until reconciliation.
			Copy("non_residential_sqft", "Rentable_Building_Area"),
			Copy("residential_units", "Number_Of_Units"),
			Copy("unit_ave_sqft", "Avg_Unit_SF"),
			Const("tenure", string(model.TenureRent)),
			Copy("rent_type", "rent_type"),
			Copy("stories", "Number_Of_Stories"),
			Derive("parking_spaces", costarParking, "Number_Of_Parking_Spaces").IfPresent(),
			Copy("average_weighted_rent", "Average_Weighted_Rent"),
			Copy("last_sale_year", "last_sale_date"),
			Copy("last_sale_price", "last_sale_price"),
		},
	}
}

func basisPipelineMapping(MappingOptions) Mapping {
	return Mapping{
		Source:     model.SourceBasisPipeline,
		Scenarios:  AllScenarios,
		InclColumn: "incl",
		Rules: []Rule{
			CopyIfPresent("raw_id", "raw_id"),
			Copy("building_name", "project_name"),
			Const("action", string(model.ActionBuild)),
			Copy("address", "street_address"),
			Copy("city", "mailing_city_name"),
			Copy("county", "county"),
			Derive("x", parcelLocation),
			Copy("year_built", "year_built"),
			Copy("building_type_det", "building_type_det"),
			Copy("building_sqft", "building_sqft"),
			Derive("residential_units", parcelResidentialUnits),
			Const("tenure", string(model.TenureRent)),
			Copy("stories", "stories"),
		},
	}
}

func basisNewMapping(opts MappingOptions) Mapping {
	return Mapping{
		Source:     model.SourceBasisNewConstr,
		Scenarios:  AllScenarios,
		InclColumn: "incl",
		Rules: []Rule{
			CopyIfPresent("raw_id", "raw_id"),
			Const("action", string(model.ActionBuild)),
			Copy("city", "urbansim_parcels_v3_geo_city"),
			Derive("county", countyFromCode(opts.Lookups, "urbansim_parcels_v3_geo_county"), "urbansim_parcels_v3_geo_county"),
			Derive("x", sourceLocation),
			Copy("geom_id", "GEOM_ID_1"),
			Copy("year_built", "year_built"),
			Copy("building_sqft", "building_sqft"),
			Copy("residential_units", "residential_units"),
			Derive("unit_ave_sqft", guardedUnitAverage),
			Copy("last_sale_year", "last_sale_date"),
		},
	}
}

func redfinMapping(opts MappingOptions) Mapping {
	marker := strings.ToLower(opts.SingleFamilyMarker)
	return Mapping{
		Source:     model.SourceRedfin,
		Scenarios:  AllScenarios,
		InclColumn: "incl",
		Rules: []Rule{
			Copy("raw_id", "redfinid"),
			Const("action", string(model.ActionBuild)),
			Copy("address", "ADDRESS"),
			Copy("city", "CITY"),
			Copy("county", "COUNTY"),
			Derive("x", parcelLocation),
			Copy("year_built", "YEAR_BUILT"),
			Derive("building_type_det", func(r Row, rec *model.DevelopmentRecord, _ *Notes) {
				if strings.Contains(strings.ToLower(r.Layer.Name), marker) {
					rec.BuildingTypeDet = model.Ptr("HS")
				} else {
					rec.BuildingTypeDet = model.Ptr("HM")
				}
			}),
			Copy("building_sqft", "SQFT"),
			Const("non_residential_sqft", "0"),
			Copy("residential_units", "UNITS"),
			Derive("unit_ave_sqft", redfinUnitAverage),
			Const("tenure", string(model.TenureSale)),
			Copy("last_sale_year", "SOLD_DATE"),
			Copy("last_sale_price", "PRICE"),
		},
	}
}

func opportunityMapping(MappingOptions) Mapping {
	return Mapping{
		Source:    model.SourceOpportunitySite,
		Scenarios: ScenarioColumns,
		Rules: []Rule{
			CopyIfPresent("raw_id", "raw_id"),
			CopyIfPresent("building_name", "building_name"),
			CopyIfPresent("site_name", "site_name"),
			CopyIfPresent("action", "action"),
			CopyIfPresent("address", "address"),
			CopyIfPresent("city", "city"),
			CopyIfPresent("county", "county"),
			Derive("x", parcelLocation),
			Copy("year_built", "year_built"),
			CopyIfPresent("building_type_det", "building_type"),
			Copy("residential_units", "residential_units"),
			Copy("unit_ave_sqft", "unit_ave_sqft"),
			Copy("stories", "stories"),
			CopyIfPresent("duration", "duration"),
			CopyIfPresent("parking_spaces", "parking_spaces"),
			CopyIfPresent("average_weighted_rent", "Average_Weighted_Rent"),
			Copy("rent_ave_sqft", "rent_ave_sqft"),
			Copy("rent_ave_unit", "rent_ave_unit"),
			Copy("last_sale_year", "last_sale_year"),
			Copy("last_sale_price", "last_sale_price"),
		},
	}
}

// parcelLocation exports the enclosing parcel's centroid and geometry key.
func parcelLocation(r Row, rec *model.DevelopmentRecord, _ *Notes) {
	if r.Parcel == nil {
		return
	}
	rec.X = r.Parcel.X
	rec.Y = r.Parcel.Y
	rec.GeomID = r.Parcel.GeomID
}

// sourceLocation exports the point's own coordinates.
func sourceLocation(r Row, rec *model.DevelopmentRecord, _ *Notes) {
	if x, y, ok := r.Layer.Point(r.Index, "x", "y"); ok {
		rec.X = model.Ptr(x)
		rec.Y = model.Ptr(y)
	}
}

func parcelResidentialUnits(r Row, rec *model.DevelopmentRecord, _ *Notes) {
	if n, ok := r.Parcel.AttrInt("residential_units"); ok {
		rec.ResidentialUnits = &n
	}
}

func countyFromCode(lookups *Lookups, col string) DeriveFunc {
	return func(r Row, rec *model.DevelopmentRecord, notes *Notes) {
		v := r.Value(col)
		if v == "" {
			return
		}
		f, err := parseNumber(v)
		if err != nil || f != float64(int(f)) {
			notes.Add(NoteUnmappedCounty, v)
			return
		}
		name, ok := lookups.CountyName(int(f))
		if !ok {
			notes.Add(NoteUnmappedCounty, strconv.Itoa(int(f)))
			return
		}
		rec.County = model.Ptr(name)
	}
}

// guardedUnitAverage divides building area by units only for a positive
// unit count; anything else leaves unit_ave_sqft null.
func guardedUnitAverage(_ Row, rec *model.DevelopmentRecord, _ *Notes) {
	if rec.BuildingSqft == nil || rec.ResidentialUnits == nil || *rec.ResidentialUnits <= 0 {
		return
	}
	rec.UnitAveSqft = model.Ptr(float64(*rec.BuildingSqft) / float64(*rec.ResidentialUnits))
}

// redfinUnitAverage has no business-rule guard; a zero or missing unit count
// is reported instead of producing Inf or NaN.
func redfinUnitAverage(_ Row, rec *model.DevelopmentRecord, notes *Notes) {
	if rec.BuildingSqft == nil {
		return
	}
	if rec.ResidentialUnits == nil || *rec.ResidentialUnits == 0 {
		notes.Add(NoteUnitDivisionGuarded, "")
		return
	}
	rec.UnitAveSqft = model.Ptr(float64(*rec.BuildingSqft) / float64(*rec.ResidentialUnits))
}

// costarParking keeps parking counts of at most five digits; longer values
// are data-entry errors in the CoStar export.
func costarParking(r Row, rec *model.DevelopmentRecord, notes *Notes) {
	v := r.Value("Number_Of_Parking_Spaces")
	if v == "" {
		return
	}
	f, err := parseNumber(v)
	if err != nil || f != float64(int(f)) {
		notes.Add(NoteUnparsedValue, "parking_spaces")
		return
	}
	if len(strconv.Itoa(int(f))) > 5 {
		return
	}
	rec.ParkingSpaces = model.Ptr(int(f))
}
