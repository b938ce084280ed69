package conflate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLookups(t *testing.T) {
	l, err := DefaultLookups()
	require.NoError(t, err)

	assert.Equal(t, 32, l.BuildingTypes.Len())
	assert.Len(t, l.Counties, 9)
	assert.Equal(t, []int64{8016918253805, 9551692992638}, l.AddOverrides)
	assert.Len(t, l.B10Types, 25)

	name, ok := l.CountyName(75)
	require.True(t, ok)
	assert.Equal(t, "San Francisco", name)
	_, ok = l.CountyName(999)
	assert.False(t, ok)

	assert.Equal(t, "IL", l.B10Types[16].Simple)
	assert.Equal(t, 7, l.B10Types[16].TypeID)
}

func TestLoadLookups_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lookups.yaml")
	doc := `
building_types:
  HS: {simple: HS, type_id: 1, development_type_id: 1}
counties:
  1: Alameda
add_overrides: [42]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	l, err := LoadLookups(path)
	require.NoError(t, err)
	assert.Equal(t, 1, l.BuildingTypes.Len())
	assert.Equal(t, []int64{42}, l.AddOverrides)
}

func TestLoadLookups_EmptyPathUsesEmbedded(t *testing.T) {
	l, err := LoadLookups("")
	require.NoError(t, err)
	assert.Equal(t, 32, l.BuildingTypes.Len())
}

func TestParseLookups_Errors(t *testing.T) {
	_, err := ParseLookups([]byte("counties: {1: Alameda}\n"))
	assert.ErrorContains(t, err, "no building_types")

	_, err = ParseLookups([]byte("building_types:\n  HS: {type_id: 1}\n"))
	assert.ErrorContains(t, err, "no simple code")

	_, err = ParseLookups([]byte("building_types: [\n"))
	assert.ErrorContains(t, err, "parse lookups")

	_, err = LoadLookups(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read lookups")
}
