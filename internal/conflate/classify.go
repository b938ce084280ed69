package conflate

import (
	"math"
	"slices"

	"github.com/sells-group/smelt-cli/internal/model"
)

// SqftPerUnit is the floor area assumed per residential unit when a
// multi-family record carries no separate non-residential figure.
const SqftPerUnit = 1400

var reconciledTypes = []string{"HM", "MR"}

// Classify sets the simple type, type id and development type id of r from
// its detailed code. It reports false when the code is null or unknown; the
// derived fields are then null.
func (b BuildingTypes) Classify(r *model.DevelopmentRecord) bool {
	r.BuildingType, r.BuildingTypeID, r.DevelopmentTypeID = nil, nil, nil
	if r.BuildingTypeDet == nil {
		return false
	}
	bt, ok := b.Lookup(*r.BuildingTypeDet)
	if !ok {
		return false
	}
	r.BuildingType = model.Ptr(bt.Simple)
	r.BuildingTypeID = model.Ptr(bt.TypeID)
	if bt.DevelopmentTypeID != nil {
		r.DevelopmentTypeID = model.Ptr(*bt.DevelopmentTypeID)
	}
	return true
}

// Reconcile resolves building_sqft for multi-family and mixed residential
// records whose non-residential area is just a copy of building area:
// building_sqft becomes units*1400 + non_residential_sqft. Every other
// record keeps its value. It reports whether the value changed.
func Reconcile(r *model.DevelopmentRecord) bool {
	if r.BuildingType == nil || !slices.Contains(reconciledTypes, *r.BuildingType) {
		return false
	}
	if r.ResidentialUnits == nil || *r.ResidentialUnits <= 0 {
		return false
	}
	if r.NonResidentialSqft == nil || r.BuildingSqft == nil {
		return false
	}
	nonres := int64(math.Round(*r.NonResidentialSqft))
	if nonres != *r.BuildingSqft {
		return false
	}
	r.BuildingSqft = model.Ptr(int64(*r.ResidentialUnits)*SqftPerUnit + nonres)
	return true
}

// ApplyAddOverrides sets action = add on every record that shares its
// parcel key or its geometry key with another record of recs, and on every
// record whose geometry key appears in allow. It returns the number of
// records changed.
func ApplyAddOverrides(recs []*model.DevelopmentRecord, allow []int64) int {
	geoms := make(map[int64]int)
	parcels := make(map[int64]int)
	for _, r := range recs {
		if r.GeomID != nil {
			geoms[*r.GeomID]++
		}
		if r.ParcelID != nil {
			parcels[*r.ParcelID]++
		}
	}
	for _, g := range allow {
		geoms[g] += 2
	}

	changed := 0
	for _, r := range recs {
		if r.Action == model.ActionAdd {
			continue
		}
		shared := (r.GeomID != nil && geoms[*r.GeomID] >= 2) ||
			(r.ParcelID != nil && parcels[*r.ParcelID] >= 2)
		if !shared {
			continue
		}
		r.Action = model.ActionAdd
		changed++
	}
	return changed
}
