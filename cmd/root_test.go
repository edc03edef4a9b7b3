package main

import (
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"fragments", "build", "evaluate", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "entailgraph", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
	assert.NotEmpty(t, rootCmd.Version)
}

func TestRootCommand_LogFlags(t *testing.T) {
	for _, name := range []string{"log-level", "log-format"} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "root should have --%s", name)
		assert.Equal(t, "", flag.DefValue)
	}
}

func logFlagCmd(t *testing.T, level, format string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("log-format", "", "")
	require.NoError(t, cmd.Flags().Set("log-level", level))
	require.NoError(t, cmd.Flags().Set("log-format", format))
	return cmd
}

func TestSetupConfig_LogFlagsOverrideConfig(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zap.NewNop()))

	c, err := setupConfig(logFlagCmd(t, "debug", "console"))
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "console", c.Log.Format)
	assert.True(t, zap.L().Core().Enabled(zapcore.DebugLevel))
}

func TestSetupConfig_BadLogLevel(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zap.NewNop()))

	_, err := setupConfig(logFlagCmd(t, "loud", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestExperimentCommands_Flags(t *testing.T) {
	for _, flagName := range []string{"plan", "name", "oracle", "thresholds", "strict", "output", "export"} {
		assert.NotNil(t, buildCmd.Flags().Lookup(flagName), "build should have --%s flag", flagName)
		assert.NotNil(t, evaluateCmd.Flags().Lookup(flagName), "evaluate should have --%s flag", flagName)
	}
	assert.NotNil(t, evaluateCmd.Flags().Lookup("single-cluster"))
	assert.Nil(t, buildCmd.Flags().Lookup("single-cluster"))
}

func TestFragmentsCommand_Flags(t *testing.T) {
	flag := fragmentsCmd.Flags().Lookup("window")
	require.NotNil(t, flag)
	assert.Equal(t, "6", flag.DefValue)

	flag = fragmentsCmd.Flags().Lookup("max-modifiers")
	require.NotNil(t, flag)
	assert.Equal(t, "4", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "results", "skips"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}
