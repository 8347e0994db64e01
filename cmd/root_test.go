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
	for _, name := range []string{"serve", "mission"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "mission-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestMissionCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range missionCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"start", "show", "list", "review", "export"} {
		assert.True(t, names[name], "expected mission subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestMissionCommand_Flags(t *testing.T) {
	require.NotNil(t, missionStartCmd.Flags().Lookup("profile"))
	acct := missionStartCmd.Flags().Lookup("account")
	require.NotNil(t, acct)
	assert.Equal(t, "default", acct.DefValue)

	limit := missionListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "20", limit.DefValue)

	for _, name := range []string{"xlsx", "notion", "salesforce"} {
		assert.NotNil(t, missionExportCmd.Flags().Lookup(name), "export should have --%s", name)
	}
}
