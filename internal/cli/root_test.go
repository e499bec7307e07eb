package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "marcq", cmd.Use)
	assert.Contains(t, cmd.Long, "MARCXML")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"detect"},
		{"convert"},
		{"split"},
		{"show"},
		{"normalize"},
		{"build"},
		{"cache"},
		{"cache", "put"},
		{"cache", "get"},
		{"cache", "list"},
		{"cache", "delete"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestConvertCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	convertCmd, _, err := cmd.Find([]string{"convert"})
	require.NoError(t, err)

	toFlag := convertCmd.Flags().Lookup("to")
	require.NotNil(t, toFlag)
	assert.Equal(t, "t", toFlag.Shorthand)

	outFlag := convertCmd.Flags().Lookup("output-dir")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)

	require.NotNil(t, convertCmd.Flags().Lookup("jobs"))
	require.NotNil(t, convertCmd.Flags().Lookup("strict"))
}

func TestCacheCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	listCmd, _, err := cmd.Find([]string{"cache", "list"})
	require.NoError(t, err)

	dbFlag := listCmd.InheritedFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)

	sourceFlag := listCmd.InheritedFlags().Lookup("source")
	require.NotNil(t, sourceFlag)
	assert.Equal(t, "default", sourceFlag.DefValue)

	require.NotNil(t, listCmd.Flags().Lookup("limit"))
	require.NotNil(t, listCmd.Flags().Lookup("all"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, nil, "--format", "invalid", "normalize", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVerboseLogsToStderr(t *testing.T) {
	stdout, stderr, err := execute(t, nil, "--verbose", "normalize", "moby", "dick")
	require.NoError(t, err)
	assert.Equal(t, "moby dick\n", stdout)
	assert.Contains(t, stderr, "advanced syntax: false")
}
