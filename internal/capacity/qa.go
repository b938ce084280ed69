package capacity

import "github.com/sells-group/smelt-cli/internal/model"

// Comparison categories of a building type between the two datasets.
const (
	CompareOnlyBasis      = "only-basis-allows"
	CompareOnlyPBA40      = "only-pba40-allows"
	CompareBoth           = "both-allow"
	CompareNeither        = "neither-allows"
	CompareMissingBasis   = "missing-basis-data"
	CompareMissingPBA40   = "missing-pba40-data"
	CompareNotDevelopable = "not-developable"
)

// CompareType classifies whether basis and pba40 allow a building type on p.
// Flags other than 0 and 1 yield "".
func CompareType(p *model.ParcelCapacity, code string) string {
	if p.NodevZmod != nil && *p.NodevZmod == 1 {
		return CompareNotDevelopable
	}
	pba40, pOK := flag(p, model.CapacityPBA40, code)
	if !pOK {
		return CompareMissingPBA40
	}
	basis, bOK := flag(p, model.CapacityBasis, code)
	if !bOK {
		return CompareMissingBasis
	}
	switch {
	case basis == 1 && pba40 == 1:
		return CompareBoth
	case basis == 0 && pba40 == 0:
		return CompareNeither
	case basis == 1 && pba40 == 0:
		return CompareOnlyBasis
	case basis == 0 && pba40 == 1:
		return CompareOnlyPBA40
	}
	return ""
}

func flag(p *model.ParcelCapacity, src model.CapacitySource, code string) (float64, bool) {
	sc, ok := p.Sources[src]
	if !ok {
		return 0, false
	}
	v, ok := sc.Allowed[code]
	return v, ok
}

// TypeComparison is one row of the development type comparison table.
// Categories is aligned with model.AllowedBuildingTypes.
type TypeComparison struct {
	Parcel     *model.ParcelCapacity
	Categories []string
}

// CompareTypes builds the comparison table and counts categories per type.
func CompareTypes(parcels []*model.ParcelCapacity) ([]TypeComparison, map[string]map[string]int) {
	rows := make([]TypeComparison, len(parcels))
	counts := make(map[string]map[string]int, len(model.AllowedBuildingTypes))
	for _, code := range model.AllowedBuildingTypes {
		counts[code] = make(map[string]int)
	}
	for i, p := range parcels {
		cats := make([]string, len(model.AllowedBuildingTypes))
		for j, code := range model.AllowedBuildingTypes {
			cats[j] = CompareType(p, code)
			counts[code][cats[j]]++
		}
		rows[i] = TypeComparison{Parcel: p, Categories: cats}
	}
	return rows, counts
}

// MissingPLUIDBasis returns parcels with a pba40 zoning id but no basis plu id.
func MissingPLUIDBasis(parcels []*model.ParcelCapacity) []*model.ParcelCapacity {
	var out []*model.ParcelCapacity
	for _, p := range parcels {
		if p.ZoningIDPBA40 != nil && p.Basis.PLUID == nil {
			out = append(out, p)
		}
	}
	return out
}

// MissingZoningIDPBA40 returns parcels with a basis plu id but no pba40 zoning id.
func MissingZoningIDPBA40(parcels []*model.ParcelCapacity) []*model.ParcelCapacity {
	var out []*model.ParcelCapacity
	for _, p := range parcels {
		if p.Basis.PLUID != nil && p.ZoningIDPBA40 == nil {
			out = append(out, p)
		}
	}
	return out
}
