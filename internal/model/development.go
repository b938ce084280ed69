// Package model defines the development record, capacity and run types shared
// by the conflation and capacity pipelines.
package model

// Action says whether a development event replaces what stands on a parcel
// (build) or is placed alongside it (add).
type Action string

const (
	ActionBuild Action = "build"
	ActionAdd   Action = "add"
)

// Tenure of the units in a development record.
type Tenure string

const (
	TenureRent Tenure = "Rent"
	TenureSale Tenure = "Sale"
)

// Source is the tag a record carries in the source column of the outputs.
type Source string

const (
	SourceManual          Source = "manual"
	SourceCostar          Source = "cs"
	SourceBasisPipeline   Source = "basis"
	SourceBasisNewConstr  Source = "bas_bp_new"
	SourceRedfin          Source = "rf"
	SourceOpportunitySite Source = "opp"
)

// Priority returns the conflation rank of a source; lower wins parcel
// collisions. Unknown sources rank last.
func (s Source) Priority() int {
	switch s {
	case SourceManual:
		return 0
	case SourceCostar:
		return 1
	case SourceBasisPipeline:
		return 2
	case SourceBasisNewConstr:
		return 3
	case SourceRedfin:
		return 4
	case SourceOpportunitySite:
		return 5
	default:
		return 99
	}
}

// DevelopmentRecord is the canonical row of the pipeline and development
// projects tables. Nil pointers are nulls.
type DevelopmentRecord struct {
	DevelopmentProjectsID int64   `json:"development_projects_id"`
	RawID                 *string `json:"raw_id"`
	BuildingName          *string `json:"building_name"`
	SiteName              *string `json:"site_name"`
	Action                Action  `json:"action"`

	// Scenarios holds scen<id> flags keyed by scenario id. A missing key is null.
	Scenarios map[int]int `json:"scenarios"`

	Address *string  `json:"address"`
	City    *string  `json:"city"`
	Zip     *string  `json:"zip"`
	County  *string  `json:"county"`
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	GeomID  *int64   `json:"geom_id"`

	YearBuilt          *int     `json:"year_built"`
	BuildingTypeDet    *string  `json:"building_type_det"`
	BuildingType       *string  `json:"building_type"`
	BuildingTypeID     *int     `json:"building_type_id"`
	DevelopmentTypeID  *int     `json:"development_type_id"`
	BuildingSqft       *int64   `json:"building_sqft"`
	NonResidentialSqft *float64 `json:"non_residential_sqft"`
	ResidentialUnits   *int     `json:"residential_units"`
	UnitAveSqft        *float64 `json:"unit_ave_sqft"`

	Tenure              *Tenure  `json:"tenure"`
	RentType            *string  `json:"rent_type"`
	Stories             *int     `json:"stories"`
	ParkingSpaces       *int     `json:"parking_spaces"`
	AverageWeightedRent *string  `json:"average_weighted_rent"`
	LastSaleYear        *int     `json:"last_sale_year"`
	LastSalePrice       *float64 `json:"last_sale_price"`

	Source   Source  `json:"source"`
	ParcelID *int64  `json:"PARCEL_ID"`
	ZoneID   *int64  `json:"ZONE_ID"`
	EditDate *int    `json:"edit_date"`
	Editor   *string `json:"editor"`

	// Opportunity-site extras, exported after the canonical columns.
	Duration    *float64 `json:"duration"`
	RentAveSqft *float64 `json:"rent_ave_sqft"`
	RentAveUnit *float64 `json:"rent_ave_unit"`

	// Incl is the source inclusion flag. It is consumed by the inclusion
	// filter and never exported.
	Incl *int `json:"-"`
	// PointX and PointY are the source point location used for the parcel
	// lookup and written as the output geometry. The exported x/y may come
	// from the parcel centroid instead.
	PointX *float64 `json:"-"`
	PointY *float64 `json:"-"`
}

// Location returns the source point of r. ok is false when the source row
// carried no usable point.
func (r *DevelopmentRecord) Location() (x, y float64, ok bool) {
	if r.PointX == nil || r.PointY == nil {
		return 0, 0, false
	}
	return *r.PointX, *r.PointY, true
}

// Clone copies the record and its scenario map. Pointer fields stay shared,
// so stages must assign new pointers rather than write through them.
func (r *DevelopmentRecord) Clone() *DevelopmentRecord {
	c := *r
	if r.Scenarios != nil {
		c.Scenarios = make(map[int]int, len(r.Scenarios))
		for k, v := range r.Scenarios {
			c.Scenarios[k] = v
		}
	}
	return &c
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
