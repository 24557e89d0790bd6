package cli

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/pda/internal/adapters/driving/api"
	"github.com/custodia-labs/pda/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for starting and polling generation jobs.

Routes:
  POST /api/products/:product_id/generate-content
  GET  /api/generation-jobs/:job_id
  GET  /api/products/:product_id/generation-jobs
  GET  /api/products/:product_id/drafts
  GET  /api/products/:product_id/factsheet
  POST /api/products/:product_id/verify
  GET  /healthz

The listen address defaults to server.addr from the config file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("getting addr flag: %w", err)
	}
	if addr == "" && settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			addr = s.ServerAddr
		}
	}
	if addr == "" {
		return fmt.Errorf("no listen address: pass --addr or set server.addr")
	}

	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}

	ports := &api.Ports{
		Generation: generationService,
		FactSheet:  factSheetService,
		Verifier:   verifierService,
	}
	fmt.Fprintf(cmd.OutOrStdout(), "HTTP API listening on http://%s\n", addr)
	return api.Serve(cmd.Context(), addr, ports)
}
