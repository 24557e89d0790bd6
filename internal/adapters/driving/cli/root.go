// Package cli provides the pda command-line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pda/internal/core/ports/driving"
	"github.com/custodia-labs/pda/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

var verbose bool

// Services set by main before Execute.
var (
	ingestService     driving.IngestService
	factSheetService  driving.FactSheetService
	verifierService   driving.VerifierService
	generationService driving.GenerationService
	settingsService   driving.SettingsService
)

// Services groups the driving ports the commands call.
type Services struct {
	Ingest     driving.IngestService
	FactSheet  driving.FactSheetService
	Verifier   driving.VerifierService
	Generation driving.GenerationService
	Settings   driving.SettingsService
}

var rootCmd = &cobra.Command{
	Use:   "pda",
	Short: "Grounded product content generation",
	Long: `pda turns product source documents into verified marketing drafts.

Sources are chunked and indexed per product, a fact sheet is extracted with
evidence for every value, the fact sheet is audited and verified, and only
then are landing page, FAQ, use case, comparison and SEO drafts written.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServices wires the driving ports used by the commands.
func SetServices(s Services) {
	ingestService = s.Ingest
	factSheetService = s.FactSheet
	verifierService = s.Verifier
	generationService = s.Generation
	settingsService = s.Settings
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var (
	errIngestNotConfigured     = errors.New("ingest service not configured")
	errFactSheetNotConfigured  = errors.New("fact sheet service not configured")
	errVerifierNotConfigured   = errors.New("verifier service not configured")
	errGenerationNotConfigured = errors.New("generation service not configured")
	errSettingsNotConfigured   = errors.New("settings service not configured")
)

// ExecuteContext runs the root command with ctx, which commands use for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
