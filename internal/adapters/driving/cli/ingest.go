package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pda/internal/core/ports/driving"
)

var ingestURLFiles []string

var ingestCmd = &cobra.Command{
	Use:   "ingest <product-id> [file...]",
	Short: "Index product sources",
	Long: `Loads, chunks, embeds and stores product sources.

Files are indexed as document sources. Use --url-file for text dumps of
product web pages. Re-ingesting a file replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestURLFiles, "url-file", nil, "text dump of a product web page (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errIngestNotConfigured
	}
	if len(args) < 2 && len(ingestURLFiles) == 0 {
		return fmt.Errorf("no sources given for %s", args[0])
	}

	req := driving.IngestRequest{
		ProductID: args[0],
		Files:     args[1:],
		URLFiles:  ingestURLFiles,
	}
	res, err := ingestService.Ingest(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Indexed %d chunks for %s (%d embedded)\n", res.Chunks, req.ProductID, res.Embedded)
	for _, s := range res.Skipped {
		cmd.Printf("  skipped: %s\n", s)
	}
	return nil
}
