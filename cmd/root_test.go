package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Metadata(t *testing.T) {
	assert.Equal(t, "flowstate", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "serve", "import", "assign", "unassign", "leads"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestImportCmd_Metadata(t *testing.T) {
	assert.Equal(t, "import", importCmd.Use)
	assert.NotEmpty(t, importCmd.Short)

	fileFlag := importCmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)
	typeFlag := importCmd.Flags().Lookup("lead-type")
	require.NotNil(t, typeFlag)
}

func TestAssignCmd_Metadata(t *testing.T) {
	assert.Equal(t, "assign", assignCmd.Use)
	assert.NotEmpty(t, assignCmd.Short)

	countFlag := assignCmd.Flags().Lookup("count")
	require.NotNil(t, countFlag)
	assert.Equal(t, "10", countFlag.DefValue)
}

func TestUnassignCmd_Metadata(t *testing.T) {
	assert.Equal(t, "unassign", unassignCmd.Use)
	assert.NotEmpty(t, unassignCmd.Short)

	idsFlag := unassignCmd.Flags().Lookup("ids")
	require.NotNil(t, idsFlag)
}

func TestLeadsCmd_Metadata(t *testing.T) {
	assert.Equal(t, "leads", leadsCmd.Use)
	assert.NotEmpty(t, leadsCmd.Short)

	limitFlag := leadsCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "100", limitFlag.DefValue)
}
