package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codequarry/quarry/pkg/version"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// When: executing with --help
	out, err := runCommand(t, "--help")

	// Then: usage and the command surface are shown
	require.NoError(t, err)
	assert.Contains(t, out, "quarry", "Help should mention program name")
	assert.Contains(t, out, "Usage:", "Help should show usage")
	assert.Contains(t, out, "Available Commands:")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	out, err := runCommand(t, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, "quarry version "+version.Version)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	for _, want := range []string{"index", "search", "stats", "serve", "config", "logs", "version"} {
		assert.Contains(t, names, want, "Should have %s subcommand", want)
	}
}

func TestRootCmd_HasDebugFlag(t *testing.T) {
	cmd := NewRootCmd()

	flag := cmd.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag, "Should have --debug persistent flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCmd_HasNoWatchFlag(t *testing.T) {
	cmd := NewRootCmd()

	flag := cmd.Flags().Lookup("no-watch")
	require.NotNil(t, flag, "Should have --no-watch flag")
	assert.Equal(t, "false", flag.DefValue)
}

func TestRootCmd_BareInvocation_NoStdoutOutput(t *testing.T) {
	// The bare command serves MCP over stdio, where stdout carries JSON-RPC
	// frames exclusively. Status output would corrupt the protocol stream.

	// Given: an empty project directory and an isolated home
	isolateHome(t)
	t.Chdir(t.TempDir())

	// When: executing with no arguments (stdin is /dev/null under go test,
	// so the server starts and exits on EOF)
	out, _ := runCommand(t)

	// Then: nothing human-facing reaches the command writers
	assert.NotContains(t, out, "🚀", "Should not write status emojis")
	assert.NotContains(t, out, "Indexing", "Should not write progress output")
	assert.NotContains(t, out, "INFO", "Should not write log lines")
	assert.NotContains(t, out, "DEBUG", "Should not write log lines")
}

func TestSubcommands_ShowHelp(t *testing.T) {
	for _, name := range []string{"index", "search", "stats", "serve", "config", "logs"} {
		out, err := runCommand(t, name, "--help")
		require.NoError(t, err, "%s --help should succeed", name)
		assert.Contains(t, out, name, "%s help should mention the command", name)
		assert.Contains(t, out, "Usage:", "%s help should show usage", name)
	}
}
