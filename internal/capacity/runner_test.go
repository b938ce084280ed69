package capacity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/smelt-cli/internal/model"
)

func TestRunner_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	res, err := NewRunner(Options{Workers: 2}).Run(context.Background(), testInputs())
	require.NoError(t, err)
	require.Len(t, res.Parcels, 3)

	p1 := res.Parcels[0]
	basis := p1.Sources[model.CapacityBasis]
	assert.Equal(t, "basis", basis.SourceDUA)
	assert.Equal(t, 30.0, *basis.MaxDUA)
	assert.Equal(t, model.ProvenanceMissing, basis.SourceFAR)
	assert.Equal(t, 2.0, basis.AllowRes)
	assert.Equal(t, 1.0, basis.AllowNonres)

	pba40 := p1.Sources[model.CapacityPBA40]
	assert.Equal(t, model.ProvenanceFromFARAsMin, pba40.SourceDUA)
	assert.InDelta(t, 36.3, *pba40.MaxDUA, 1e-9)
	assert.Equal(t, "pba40", pba40.SourceFAR)
	assert.Equal(t, 1.0, *pba40.MaxFAR)

	// Height only: FAR and DUA both derive from the unimputed height.
	p3 := res.Parcels[2].Sources[model.CapacityBasis]
	assert.Equal(t, model.ProvenanceFromHeight, p3.SourceFAR)
	assert.InDelta(t, 2.5, *p3.MaxFAR, 1e-9)
	assert.Equal(t, model.ProvenanceFromHeight, p3.SourceDUA)
	assert.InDelta(t, 2.5*36.3, *p3.MaxDUA, 1e-9)

	// Unmatched sources exhaust every rule.
	p2 := res.Parcels[1].Sources[model.CapacityPBA40]
	assert.Equal(t, model.ProvenanceMissing, p2.SourceDUA)
	assert.Nil(t, p2.MaxDUA)

	s := res.Summary
	assert.Equal(t, 1, s.Tags["dua_basis"]["basis"])
	assert.Equal(t, 1, s.Tags["dua_basis"][model.ProvenanceFromHeight])
	assert.Equal(t, 1, s.Tags["dua_basis"][model.ProvenanceMissing])
	assert.Equal(t, 2, s.MissingBefore["dua_basis"])
	assert.Equal(t, 3, s.MissingBefore["dua_pba40"])

	require.Len(t, res.Comparison, 3)
	assert.Equal(t, CompareBoth, res.Comparison[0].Categories[0], "HS")
	assert.Equal(t, CompareNotDevelopable, res.Comparison[1].Categories[0])
	assert.Equal(t, CompareMissingPBA40, res.Comparison[2].Categories[0])

	require.Len(t, res.MissingPLUIDBasis, 1)
	assert.Equal(t, int64(2), res.MissingPLUIDBasis[0].ParcelID)
	require.Len(t, res.MissingZoningIDPBA40, 1)
	assert.Equal(t, int64(3), res.MissingZoningIDPBA40[0].ParcelID)
	assert.Equal(t, 1, s.MissingPLUIDBasis)

	md := s.Metadata()
	assert.Contains(t, md, "joins")
	assert.Contains(t, md, "tags")
}

func TestRunner_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(Options{Workers: 1}).Run(ctx, testInputs())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_InvalidInputs(t *testing.T) {
	in := testInputs()
	in.Basis = nil
	_, err := NewRunner(Options{}).Run(context.Background(), in)
	assert.ErrorContains(t, err, "basis table is required")
}
