package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pda/internal/core/domain"
)

func TestGenerateCmd_PassesParams(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.generation.snaps = []*domain.GenerationJob{succeededJob()}

	_, err := execute("generate", "fm-200",
		"--tone", "technical", "--length", "short", "--audience", "engineer",
		"--provider", "openai", "--model", "gpt-4o", "--allow-blocked")

	require.NoError(t, err)
	assert.Equal(t, domain.GenerationParams{
		Tone:         domain.ToneTechnical,
		Length:       domain.LengthShort,
		Audience:     domain.AudienceEngineer,
		Provider:     "openai",
		Model:        "gpt-4o",
		AllowBlocked: true,
	}, ts.generation.params)
}

func TestGenerateCmd_WaitsForInProcessDriver(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.generation.snaps = []*domain.GenerationJob{succeededJob()}

	out, err := execute("generate", "fm-200")

	require.NoError(t, err)
	assert.True(t, ts.generation.waited)
	assert.Contains(t, out, "Started job job_0123456789abcdef")
	assert.Contains(t, out, "Status:   succeeded (100%)")
	assert.Contains(t, out, "FAQ:          1 items")
	assert.Contains(t, out, "SEO title:    FM-200 Flow Meter")
}

func TestGenerateCmd_ExistingJob(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	job := runningJob()
	job.Status = domain.JobRunning
	ts.generation.started = job
	ts.generation.created = false

	out, err := execute("generate", "fm-200")

	require.NoError(t, err)
	assert.Contains(t, out, "Job job_0123456789abcdef is already running")
	assert.False(t, ts.generation.waited)
}

func TestGenerateCmd_WaitPrintsStages(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	ingest := runningJob()
	ingest.Status = domain.JobRunning
	ingest.Progress = 5
	ingest.Metadata = domain.JobMetadata{Stage: domain.StageIngest, StageDetail: "Indexing 2 sources"}
	facts := runningJob()
	facts.Status = domain.JobRunning
	facts.Progress = 12
	facts.Metadata = domain.JobMetadata{Stage: domain.StageFactSheet, StageDetail: "Extracting fact sheet"}
	ts.generation.snaps = []*domain.GenerationJob{ingest, ingest, facts, succeededJob()}

	out, err := execute("generate", "fm-200", "--wait")

	require.NoError(t, err)
	assert.Contains(t, out, "[  5%] ingest: Indexing 2 sources")
	assert.Contains(t, out, "[ 12%] factsheet: Extracting fact sheet")
	assert.Contains(t, out, "[100%] done: Drafts ready")
	assert.Equal(t, 1, strings.Count(out, "ingest: Indexing"), "unchanged stages print once")
}

func TestGenerateCmd_FailedJobReturnsError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	failed := runningJob()
	failed.Status = domain.JobFailed
	failed.Progress = 12
	failed.ErrorMessage = "Factsheet failed: invalid JSON"
	failed.Metadata.Stage = domain.StageFactSheet
	ts.generation.snaps = []*domain.GenerationJob{failed}

	out, err := execute("generate", "fm-200", "--wait")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Factsheet failed: invalid JSON")
	assert.Contains(t, out, "Error:    Factsheet failed: invalid JSON")
}

func TestGenerateCmd_StartError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.generation.err = &domain.ValidationError{Field: "tone", Reason: "failed oneof"}

	_, err := execute("generate", "fm-200", "--tone", "loud")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
