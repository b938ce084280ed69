package conflate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/smelt-cli/internal/model"
)

func TestMerge_DenseIDs(t *testing.T) {
	a := batch(1, 3)
	b := batch(10, 2)
	a[0].DevelopmentProjectsID = 99

	merged := Merge(a, nil, b)
	require.Len(t, merged, 5)

	seen := make(map[int64]bool)
	for i, r := range merged {
		assert.Equal(t, int64(i+1), r.DevelopmentProjectsID)
		assert.False(t, seen[r.DevelopmentProjectsID])
		seen[r.DevelopmentProjectsID] = true
	}
	assert.Equal(t, int64(1), *merged[0].ParcelID)
	assert.Equal(t, int64(10), *merged[3].ParcelID)
}

func TestMerge_ClonesRecords(t *testing.T) {
	a := batch(1, 2)
	a[1].Scenarios = map[int]int{0: 1}
	opp := []*model.DevelopmentRecord{rec(50)}

	pipeline := Merge(a)
	devproj := Merge(a, opp)

	assert.Equal(t, int64(0), a[0].DevelopmentProjectsID, "inputs are not renumbered")
	devproj[1].Scenarios[0] = 0
	devproj[1].Action = model.ActionAdd
	assert.Equal(t, 1, pipeline[1].Scenarios[0])
	assert.Equal(t, model.ActionBuild, pipeline[1].Action)
	assert.Len(t, devproj, 3)
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge())
}
