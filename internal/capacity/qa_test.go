package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/smelt-cli/internal/model"
)

func parcelWith(nodev *int, basis, pba40 map[string]float64) *model.ParcelCapacity {
	p := &model.ParcelCapacity{ParcelID: 1, NodevZmod: nodev}
	if basis != nil {
		p.Source(model.CapacityBasis).Allowed = basis
	}
	if pba40 != nil {
		p.Source(model.CapacityPBA40).Allowed = pba40
	}
	return p
}

func TestCompareType(t *testing.T) {
	one, zero := 1, 0
	tests := []struct {
		name string
		p    *model.ParcelCapacity
		want string
	}{
		{"both", parcelWith(nil, map[string]float64{"HS": 1}, map[string]float64{"HS": 1}), CompareBoth},
		{"neither", parcelWith(&zero, map[string]float64{"HS": 0}, map[string]float64{"HS": 0}), CompareNeither},
		{"only basis", parcelWith(nil, map[string]float64{"HS": 1}, map[string]float64{"HS": 0}), CompareOnlyBasis},
		{"only pba40", parcelWith(nil, map[string]float64{"HS": 0}, map[string]float64{"HS": 1}), CompareOnlyPBA40},
		{"missing basis", parcelWith(nil, map[string]float64{}, map[string]float64{"HS": 1}), CompareMissingBasis},
		{"missing pba40 wins over missing basis", parcelWith(nil, nil, nil), CompareMissingPBA40},
		{"not developable wins", parcelWith(&one, nil, nil), CompareNotDevelopable},
		{"unexpected flag value", parcelWith(nil, map[string]float64{"HS": 2}, map[string]float64{"HS": 1}), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareType(tt.p, "HS"))
		})
	}
}

func TestCompareTypes_Counts(t *testing.T) {
	parcels := []*model.ParcelCapacity{
		parcelWith(nil, map[string]float64{"HS": 1}, map[string]float64{"HS": 1}),
		parcelWith(nil, map[string]float64{"HS": 1}, map[string]float64{"HS": 1}),
		parcelWith(nil, nil, map[string]float64{"HS": 0}),
	}
	rows, counts := CompareTypes(parcels)
	assert.Len(t, rows, 3)
	assert.Len(t, rows[0].Categories, len(model.AllowedBuildingTypes))
	assert.Equal(t, 2, counts["HS"][CompareBoth])
	assert.Equal(t, 1, counts["HS"][CompareMissingBasis])
	assert.Equal(t, 3, counts["HT"][CompareMissingPBA40])
}
