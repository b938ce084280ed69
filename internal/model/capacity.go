package model

// CapacitySource names one of the two zoning capacity datasets.
type CapacitySource string

const (
	CapacityBasis CapacitySource = "basis"
	CapacityPBA40 CapacitySource = "pba40"
)

// CapacitySources lists the capacity datasets in output order.
var CapacitySources = []CapacitySource{CapacityBasis, CapacityPBA40}

// Provenance tags for imputed capacity metrics. A value taken directly from
// the dataset is tagged with the dataset name instead.
const (
	ProvenanceFromFAR         = "imputed-from-far"
	ProvenanceFromFARAsMin    = "imputed-from-far-as-min"
	ProvenanceFromHeight      = "imputed-from-height"
	ProvenanceFromHeightAsMin = "imputed-from-height-as-min"
	ProvenanceMissing         = "missing"
)

// AllowedBuildingTypes are the building type codes zoning can permit.
var AllowedBuildingTypes = []string{"HS", "HT", "HM", "OF", "HO", "SC", "IL", "IW", "IH", "RS", "RB", "MR", "MT", "ME"}

// ResidentialBuildingTypes are summed into allow_res.
var ResidentialBuildingTypes = []string{"HS", "HT", "HM", "MR"}

// NonResidentialBuildingTypes are summed into allow_nonres. MR counts on both sides.
var NonResidentialBuildingTypes = []string{"OF", "HO", "SC", "IL", "IW", "IH", "RS", "RB", "MR", "MT", "ME"}

// SourceCapacity is one dataset's zoning capacity for a parcel.
type SourceCapacity struct {
	MaxDUA    *float64
	MaxFAR    *float64
	MaxHeight *float64
	// Allowed maps building type code to its 0/1 flag. A missing key is null.
	Allowed map[string]float64

	SourceDUA   string
	SourceFAR   string
	AllowRes    float64
	AllowNonres float64
}

// BasisMeta carries the descriptive columns of the basis capacity table.
type BasisMeta struct {
	PLUID               *string
	PLUJurisdiction     *string
	PLUDescription      *string
	BuildingTypesSource *string
	Source              *string
}

// ParcelCapacity is the combined zoning capacity row for one parcel.
type ParcelCapacity struct {
	ParcelID  int64
	GeomID    *string
	Acres     *float64
	LandValue *float64

	ZoningIDPBA40 *int64
	NodevPBA40    *int

	Juris             *string
	PBA50ZoningModCat *string
	NodevZmod         *int
	JurisID           *int
	CountyName        *string
	CountyID          *int

	Basis BasisMeta
	// BasisMatched and PBA40Matched record whether a capacity row joined.
	BasisMatched bool
	PBA40Matched bool

	Sources map[CapacitySource]*SourceCapacity
}

// Source returns the capacity for src, creating an empty entry on first use.
func (p *ParcelCapacity) Source(src CapacitySource) *SourceCapacity {
	if p.Sources == nil {
		p.Sources = make(map[CapacitySource]*SourceCapacity, len(CapacitySources))
	}
	sc, ok := p.Sources[src]
	if !ok {
		sc = &SourceCapacity{Allowed: make(map[string]float64)}
		p.Sources[src] = sc
	}
	return sc
}
