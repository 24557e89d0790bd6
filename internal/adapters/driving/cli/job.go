package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/pda/internal/adapters/driving/tui"
	"github.com/custodia-labs/pda/internal/core/domain"
)

// pollInterval is how often plain-text followers re-read a job.
var pollInterval = time.Second

var jobJSON bool

var jobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show a generation job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJob,
}

var jobWatchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow a generation job until it finishes",
	Long: `Shows live stage progress for a job. On a terminal this opens an
interactive view:

  r  refresh now
  d  toggle details
  ?  toggle help
  q  quit

Otherwise progress is printed one line per stage change.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobWatch,
}

func init() {
	jobCmd.Flags().BoolVar(&jobJSON, "json", false, "output the job as JSON")
	jobCmd.AddCommand(jobWatchCmd)
	rootCmd.AddCommand(jobCmd)
}

func runJob(cmd *cobra.Command, args []string) error {
	if generationService == nil {
		return errGenerationNotConfigured
	}
	job, err := generationService.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("job %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read job: %w", err)
	}
	if jobJSON {
		return printJSON(cmd, job)
	}
	outputJob(cmd, job)
	return nil
}

func runJobWatch(cmd *cobra.Command, args []string) error {
	if generationService == nil {
		return errGenerationNotConfigured
	}
	job, err := followJob(cmd, args[0])
	if err != nil {
		return err
	}
	return reportFinished(cmd, job, false)
}

// followJob blocks until the job reaches a terminal status.
func followJob(cmd *cobra.Command, jobID string) (*domain.GenerationJob, error) {
	if isTerminal(cmd) {
		return watchInteractive(cmd, jobID)
	}
	return pollJob(cmd, jobID)
}

func isTerminal(cmd *cobra.Command) bool {
	out, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(out.Fd()))
}

func watchInteractive(cmd *cobra.Command, jobID string) (*domain.GenerationJob, error) {
	w, err := tui.NewWatch(&tui.Ports{Generation: generationService}, jobID)
	if err != nil {
		return nil, err
	}
	w.WithContext(cmd.Context()).WithInterval(pollInterval)

	if _, err := tea.NewProgram(w, tea.WithContext(cmd.Context())).Run(); err != nil {
		return nil, fmt.Errorf("watch error: %w", err)
	}
	job := w.Job()
	if job == nil || !job.Status.IsTerminal() {
		if w.Err() != nil {
			return nil, w.Err()
		}
		return nil, errors.New("stopped watching before the job finished")
	}
	return job, nil
}

func pollJob(cmd *cobra.Command, jobID string) (*domain.GenerationJob, error) {
	ctx := cmd.Context()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastStage, lastDetail := "", ""
	for {
		job, err := generationService.Get(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to read job: %w", err)
		}
		m := job.Metadata
		if m.Stage != lastStage || m.StageDetail != lastDetail {
			cmd.Printf("[%3d%%] %s", job.Progress, m.Stage)
			if m.StageDetail != "" {
				cmd.Printf(": %s", m.StageDetail)
			}
			cmd.Println()
			lastStage, lastDetail = m.Stage, m.StageDetail
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func outputJob(cmd *cobra.Command, job *domain.GenerationJob) {
	cmd.Printf("Job:      %s\n", job.ID)
	cmd.Printf("Product:  %s\n", job.ProductID)
	cmd.Printf("Status:   %s (%d%%)\n", job.Status, job.Progress)
	cmd.Printf("Stage:    %s\n", job.Metadata.Stage)
	if job.Metadata.StageDetail != "" {
		cmd.Printf("Detail:   %s\n", job.Metadata.StageDetail)
	}
	cmd.Printf("Created:  %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.Status == domain.JobFailed {
		cmd.Printf("Error:    %s\n", job.ErrorMessage)
	}
	if r := job.Metadata.VerifierReport; r != nil {
		cmd.Printf("Verifier: %d blocking, %d warnings\n", len(r.BlockedIssues), len(r.Warnings))
	}
	if job.Drafts != nil {
		cmd.Println()
		outputDraftsSummary(cmd, job.Drafts, job.Metadata.ContentMetadata)
	}
}

func outputDraftsSummary(cmd *cobra.Command, d *domain.ContentDrafts, meta *domain.GenerationMetadata) {
	cmd.Println("Drafts:")
	cmd.Printf("  Landing page: %d benefits, %d specs explained\n",
		len(d.LandingPage.Benefits), len(d.LandingPage.SpecsExplained))
	cmd.Printf("  FAQ:          %d items\n", len(d.FAQ))
	cmd.Printf("  Use cases:    %d pages\n", len(d.UseCasePages))
	cmd.Printf("  Comparisons:  %d\n", len(d.Comparisons))
	cmd.Printf("  SEO title:    %s\n", d.SEO.TitleTag)
	if meta != nil {
		cmd.Printf("  Model:        %s/%s (%d tokens)\n", meta.Provider, meta.Model, meta.TokenUsage.TotalTokens)
		if n := len(meta.GuardrailWarnings); n > 0 {
			cmd.Printf("  Guardrail:    %d repair(s)\n", n)
		}
	}
}
