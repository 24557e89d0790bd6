package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pda/internal/core/domain"
)

var (
	generateTone         string
	generateLength       string
	generateAudience     string
	generateProvider     string
	generateModel        string
	generateAllowBlocked bool
	generateWait         bool
	generateJSON         bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <product-id>",
	Short: "Start a content generation job",
	Long: `Starts an asynchronous job that extracts the fact sheet, audits and
verifies it, then writes landing page, FAQ, use case, comparison and SEO
drafts.

A request identical to a job that is still queued or running returns that
job instead of starting another. Use --wait to follow progress.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateTone, "tone", "", "neutral, technical or marketing (default neutral)")
	f.StringVar(&generateLength, "length", "", "short, medium or long (default medium)")
	f.StringVar(&generateAudience, "audience", "", "engineer, procurement or ops_manager (default ops_manager)")
	f.StringVar(&generateProvider, "provider", "", "completion provider override: anthropic, openai or gemini")
	f.StringVar(&generateModel, "model", "", "completion model override")
	f.BoolVar(&generateAllowBlocked, "allow-blocked", false, "write drafts even when the verifier blocks")
	f.BoolVar(&generateWait, "wait", false, "follow progress until the job finishes")
	f.BoolVar(&generateJSON, "json", false, "print the finished job as JSON")
	rootCmd.AddCommand(generateCmd)
}

// waiter is implemented by generation services that run jobs in-process.
type waiter interface {
	Wait()
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if generationService == nil {
		return errGenerationNotConfigured
	}

	params := domain.GenerationParams{
		Tone:         domain.Tone(generateTone),
		Length:       domain.Length(generateLength),
		Audience:     domain.Audience(generateAudience),
		Provider:     generateProvider,
		Model:        generateModel,
		AllowBlocked: generateAllowBlocked,
	}
	job, created, err := generationService.Start(cmd.Context(), args[0], params)
	if err != nil {
		return fmt.Errorf("failed to start generation: %w", err)
	}
	if created {
		cmd.Printf("Started job %s\n", job.ID)
	} else {
		cmd.Printf("Job %s is already %s\n", job.ID, job.Status)
	}

	if generateWait {
		final, err := followJob(cmd, job.ID)
		if err != nil {
			return err
		}
		return reportFinished(cmd, final, generateJSON)
	}

	// The driver runs inside this process, so exiting now would abandon it.
	if w, ok := generationService.(waiter); ok && created {
		cmd.Printf("Running in the background; check progress with 'pda job %s'\n", job.ID)
		w.Wait()
		final, err := generationService.Get(cmd.Context(), job.ID)
		if err != nil {
			return fmt.Errorf("failed to read job: %w", err)
		}
		return reportFinished(cmd, final, generateJSON)
	}
	return nil
}

// reportFinished prints the outcome of a terminal job and returns an error
// when it failed.
func reportFinished(cmd *cobra.Command, job *domain.GenerationJob, asJSON bool) error {
	if asJSON {
		if err := printJSON(cmd, job); err != nil {
			return err
		}
	} else {
		outputJob(cmd, job)
	}
	if job.Status == domain.JobFailed {
		return fmt.Errorf("job %s failed: %s", job.ID, job.ErrorMessage)
	}
	return nil
}
