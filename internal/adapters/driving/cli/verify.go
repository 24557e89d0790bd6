package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pda/internal/core/domain"
)

var (
	verifyJSON         bool
	verifyAllowBlocked bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <product-id>",
	Short: "Run the verifier over the stored fact sheet",
	Long: `Checks the fact sheet for values without evidence, contradictory
specs and spec values without units, and checks stored audit findings for
unsupported recommendations.

Exits with an error when blocking issues are found unless --allow-blocked
is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "output the report as JSON")
	verifyCmd.Flags().BoolVar(&verifyAllowBlocked, "allow-blocked", false, "succeed even when blocking issues are found")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifierService == nil {
		return errVerifierNotConfigured
	}
	report, err := verifierService.Verify(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if verifyJSON {
		if err := printJSON(cmd, report); err != nil {
			return err
		}
	} else {
		outputVerifierReport(cmd, report)
	}

	if report.HasBlocked() && !verifyAllowBlocked {
		return report.Err()
	}
	return nil
}

func outputVerifierReport(cmd *cobra.Command, r *domain.VerifierReport) {
	if !r.HasBlocked() && len(r.Warnings) == 0 {
		cmd.Println("No issues found.")
		return
	}
	printIssues(cmd, "Blocking", r.BlockedIssues)
	printIssues(cmd, "Warnings", r.Warnings)
	if len(r.SuggestedQueries) > 0 {
		cmd.Println("Suggested retrieval queries:")
		for _, q := range r.SuggestedQueries {
			cmd.Printf("  - %s\n", q)
		}
	}
}

func printIssues(cmd *cobra.Command, title string, issues []domain.VerifierIssue) {
	if len(issues) == 0 {
		return
	}
	cmd.Printf("%s (%d):\n", title, len(issues))
	for _, i := range issues {
		if i.FieldPath != "" {
			cmd.Printf("  %s: %s\n", i.FieldPath, i.Message)
		} else {
			cmd.Printf("  %s\n", i.Message)
		}
	}
	cmd.Println()
}
