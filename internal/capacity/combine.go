package capacity

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// JoinStats counts the parcels each left join failed to match.
type JoinStats struct {
	Parcels           int `json:"parcels"`
	InvalidParcelIDs  int `json:"invalid_parcel_ids"`
	MissingZoningID   int `json:"missing_zoning_id"`
	MissingPBA40Zone  int `json:"missing_pba40_zone"`
	MissingBasis      int `json:"missing_basis"`
	MissingZoningMods int `json:"missing_zoning_mods"`
	MissingJuris      int `json:"missing_juris"`
	// DuplicateKeys counts repeated join keys per table; the first row wins.
	DuplicateKeys map[string]int `json:"duplicate_keys"`
	// NullBasisFlags counts basis rows with no value per building type.
	NullBasisFlags map[string]int `json:"null_basis_flags"`
}

// keyIndex maps a normalized join key to its first row.
type keyIndex map[string]int

func indexBy(l *layer.Layer, col string) (keyIndex, int) {
	idx := make(keyIndex, l.Len())
	dups := 0
	for i := range l.Len() {
		k := joinKey(l.Value(i, col))
		if k == "" {
			continue
		}
		if _, ok := idx[k]; ok {
			dups++
			continue
		}
		idx[k] = i
	}
	return idx, dups
}

// Combine left-joins the capacity tables onto the parcel table, one row per
// parcel in parcel order.
func Combine(in *Inputs) ([]*model.ParcelCapacity, *JoinStats, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	stats := &JoinStats{
		DuplicateKeys:  make(map[string]int),
		NullBasisFlags: make(map[string]int),
	}

	pz, d := indexBy(in.PBA40Parcels, "geom_id")
	stats.DuplicateKeys["pba40_parcels"] = d
	zones, d := indexBy(in.PBA40Lookup, "id")
	stats.DuplicateKeys["pba40_lookup"] = d
	basis, d := indexBy(in.Basis, "parcel_id")
	stats.DuplicateKeys["basis"] = d

	var zmod, juris keyIndex
	if in.ZoningMods != nil {
		zmod, d = indexBy(in.ZoningMods, "PARCEL_ID")
		stats.DuplicateKeys["zoning_mods"] = d
	}
	if in.Jurisdictions != nil {
		juris, d = indexBy(in.Jurisdictions, "juris_name_full")
		stats.DuplicateKeys["jurisdictions"] = d
	}

	for i := range in.Basis.Len() {
		for _, code := range model.AllowedBuildingTypes {
			if num(in.Basis.Value(i, code)) == nil {
				stats.NullBasisFlags[code]++
			}
		}
	}

	geomCol := parcelGeomColumn(in.Parcels)
	seen := make(map[int64]bool, in.Parcels.Len())
	out := make([]*model.ParcelCapacity, 0, in.Parcels.Len())

	for i := range in.Parcels.Len() {
		id := wholeNum(in.Parcels.Value(i, "PARCEL_ID"))
		if id == nil {
			stats.InvalidParcelIDs++
			continue
		}
		if seen[*id] {
			stats.DuplicateKeys["parcels"]++
			continue
		}
		seen[*id] = true

		p := &model.ParcelCapacity{
			ParcelID:  *id,
			GeomID:    text(in.Parcels.Value(i, geomCol)),
			Acres:     num(in.Parcels.Value(i, "ACRES")),
			LandValue: num(in.Parcels.Value(i, "LAND_VALUE")),
		}
		pid := strconv.FormatInt(*id, 10)

		if p.GeomID != nil {
			if row, ok := pz[joinKey(*p.GeomID)]; ok {
				p.ZoningIDPBA40 = wholeNum(in.PBA40Parcels.Value(row, "zoning_id"))
				p.NodevPBA40 = intPtr(wholeNum(in.PBA40Parcels.Value(row, "nodev")))
			}
		}
		if p.ZoningIDPBA40 == nil {
			stats.MissingZoningID++
		} else if row, ok := zones[strconv.FormatInt(*p.ZoningIDPBA40, 10)]; ok {
			p.PBA40Matched = true
			readCapacity(in.PBA40Lookup, row, p.Source(model.CapacityPBA40))
		} else {
			stats.MissingPBA40Zone++
		}
		p.Source(model.CapacityPBA40)

		if row, ok := basis[pid]; ok {
			p.BasisMatched = true
			readCapacity(in.Basis, row, p.Source(model.CapacityBasis))
			p.Basis = model.BasisMeta{
				PLUID:               text(in.Basis.Value(row, "plu_id")),
				PLUJurisdiction:     text(in.Basis.Value(row, "plu_jurisdiction")),
				PLUDescription:      text(in.Basis.Value(row, "plu_description")),
				BuildingTypesSource: text(in.Basis.Value(row, "building_types_source")),
				Source:              text(in.Basis.Value(row, "source")),
			}
		} else {
			stats.MissingBasis++
		}
		p.Source(model.CapacityBasis)

		if zmod != nil {
			if row, ok := zmod[pid]; ok {
				p.Juris = text(in.ZoningMods.Value(row, "juris"))
				p.PBA50ZoningModCat = text(in.ZoningMods.Value(row, "pba50zoningmodcat"))
				p.NodevZmod = intPtr(wholeNum(in.ZoningMods.Value(row, "nodev")))
			} else {
				stats.MissingZoningMods++
			}
		}
		if juris != nil && p.Juris != nil {
			if row, ok := juris[joinKey(*p.Juris)]; ok {
				p.JurisID = intPtr(wholeNum(in.Jurisdictions.Value(row, "juris_id")))
				p.CountyName = text(in.Jurisdictions.Value(row, "county_name"))
				p.CountyID = intPtr(wholeNum(in.Jurisdictions.Value(row, "county_id")))
			} else {
				stats.MissingJuris++
			}
		}

		out = append(out, p)
	}
	stats.Parcels = len(out)

	if len(out) == 0 {
		return nil, stats, eris.Errorf("capacity: parcels table %q has no usable rows", in.Parcels.Name)
	}
	return out, stats, nil
}

func readCapacity(l *layer.Layer, row int, sc *model.SourceCapacity) {
	sc.MaxDUA = num(l.Value(row, "max_dua"))
	sc.MaxFAR = num(l.Value(row, "max_far"))
	sc.MaxHeight = num(l.Value(row, "max_height"))
	for _, code := range model.AllowedBuildingTypes {
		// Unparseable flags are coerced to null.
		if v := num(l.Value(row, code)); v != nil {
			sc.Allowed[code] = *v
		}
	}
}

// joinKey normalizes a key so "123", "123.0" and " 123 " join alike.
// Non-numeric keys are compared as trimmed text.
func joinKey(s string) string {
	s = strings.TrimSpace(s)
	if n := wholeNum(s); n != nil {
		return strconv.FormatInt(*n, 10)
	}
	return s
}

func num(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func wholeNum(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f := num(s)
	if f == nil || *f != math.Trunc(*f) || math.Abs(*f) > 1<<53 {
		return nil
	}
	n := int64(*f)
	return &n
}

func text(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(v *int64) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
