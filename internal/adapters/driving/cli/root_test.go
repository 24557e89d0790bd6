package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/pda/internal/logger"
)

// execute runs the root command with args and returns its combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"ingest", "factsheet", "verify", "generate", "job", "serve", "mcp", "settings", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer func() {
		verbose = false
		logger.SetVerbose(false)
	}()

	_, err := execute("--verbose", "version")

	assert.NoError(t, err)
	assert.True(t, logger.IsVerbose())
}

func TestSetVersion_IgnoresEmpty(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
	SetVersion("")
	assert.Equal(t, "1.2.3", version)
}

func TestCommands_ServiceNotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	SetServices(Services{})

	tests := []struct {
		args []string
		want error
	}{
		{[]string{"ingest", "fm-200", "a.pdf"}, errIngestNotConfigured},
		{[]string{"factsheet", "show", "fm-200"}, errFactSheetNotConfigured},
		{[]string{"verify", "fm-200"}, errVerifierNotConfigured},
		{[]string{"generate", "fm-200"}, errGenerationNotConfigured},
		{[]string{"job", "job_1"}, errGenerationNotConfigured},
		{[]string{"settings", "show"}, errSettingsNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := execute(tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
