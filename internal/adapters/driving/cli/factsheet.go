package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pda/internal/core/domain"
)

var factSheetJSON bool

var factSheetCmd = &cobra.Command{
	Use:   "factsheet",
	Short: "Extract or show product fact sheets",
}

var factSheetExtractCmd = &cobra.Command{
	Use:   "extract <product-id>",
	Short: "Extract the fact sheet from indexed sources",
	Long: `Retrieves evidence for the product, asks the completion service for a
fact sheet and repairs malformed JSON a bounded number of times. Values
without evidence are replaced with NOT_FOUND.`,
	Args: cobra.ExactArgs(1),
	RunE: runFactSheetExtract,
}

var factSheetShowCmd = &cobra.Command{
	Use:   "show <product-id>",
	Short: "Show the last extracted fact sheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runFactSheetShow,
}

func init() {
	factSheetCmd.PersistentFlags().BoolVar(&factSheetJSON, "json", false, "output the fact sheet as JSON")
	factSheetCmd.AddCommand(factSheetExtractCmd)
	factSheetCmd.AddCommand(factSheetShowCmd)
	rootCmd.AddCommand(factSheetCmd)
}

func runFactSheetExtract(cmd *cobra.Command, args []string) error {
	if factSheetService == nil {
		return errFactSheetNotConfigured
	}
	artifact, err := factSheetService.Extract(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}
	return outputFactSheet(cmd, artifact)
}

func runFactSheetShow(cmd *cobra.Command, args []string) error {
	if factSheetService == nil {
		return errFactSheetNotConfigured
	}
	artifact, err := factSheetService.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no fact sheet for %s: run 'pda factsheet extract %s' first", args[0], args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to load fact sheet: %w", err)
	}
	return outputFactSheet(cmd, artifact)
}

func outputFactSheet(cmd *cobra.Command, a *domain.FactSheetArtifact) error {
	if factSheetJSON {
		return printJSON(cmd, a)
	}
	s := a.Sheet
	if s == nil {
		cmd.Println("Empty fact sheet.")
		return nil
	}

	cmd.Printf("%s (%s)\n", s.ProductName, s.ProductCategory)
	cmd.Printf("Extracted in %d attempt(s)\n\n", a.Attempts)

	if len(s.KeySpecs) > 0 {
		cmd.Println("Key specs:")
		for _, k := range s.KeySpecs {
			value := k.Value
			if k.Unit != "" && !domain.IsMissing(k.Unit) {
				value += " " + k.Unit
			}
			cmd.Printf("  %-28s %s  [%s]\n", k.Name, value, strings.Join(k.EvidenceChunkIDs, ", "))
		}
		cmd.Println()
	}
	printList(cmd, "Use cases", s.PrimaryUseCases)
	printList(cmd, "Buyer roles", s.TargetBuyerRoles)
	printList(cmd, "Certifications", s.CertificationsStandards)
	printList(cmd, "Integrations", s.IntegrationsInterfaces)

	if len(a.Violations) > 0 {
		cmd.Printf("%d value(s) dropped for missing evidence:\n", len(a.Violations))
		for _, v := range a.Violations {
			cmd.Printf("  %s: %s\n", v.FieldPath, v.Message)
		}
	}
	return nil
}

func printList(cmd *cobra.Command, title string, items []string) {
	if len(items) == 0 {
		return
	}
	cmd.Printf("%s:\n", title)
	for _, it := range items {
		cmd.Printf("  - %s\n", it)
	}
	cmd.Println()
}
