package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"devproj", "capacity", "store", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "smelt-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunName(t *testing.T) {
	assert.Equal(t, "devproj", runName(devprojRunCmd))
	assert.Equal(t, "capacity", runName(capacityRunCmd))
	assert.Equal(t, "runs", runName(runsListCmd))
	assert.Equal(t, "smelt-cli", runName(rootCmd))
}

func TestDevprojCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range devprojCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["types"])
}

func TestDevprojRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"output-dir", "parcels-table", "no-shapefiles"} {
		require.NotNil(t, devprojRunCmd.Flags().Lookup(name), "devproj run should have --%s", name)
	}
}

func TestCapacityRunCommand_Flags(t *testing.T) {
	require.NotNil(t, capacityRunCmd.Flags().Lookup("output-dir"))
	require.NotNil(t, capacityRunCmd.Flags().Lookup("no-qa"))
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
	require.NotNil(t, runsListCmd.Flags().Lookup("kind"))
}
