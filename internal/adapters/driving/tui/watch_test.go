package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pda/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/pda/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pda/internal/core/domain"
)

// mockGeneration serves a scripted sequence of job snapshots.
type mockGeneration struct {
	mu    sync.Mutex
	snaps []*domain.GenerationJob
	err   error
	calls int
}

func (m *mockGeneration) Start(context.Context, string, domain.GenerationParams) (*domain.GenerationJob, bool, error) {
	return nil, false, errors.New("not used")
}

func (m *mockGeneration) Get(context.Context, string) (*domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.snaps) == 0 {
		return nil, domain.ErrNotFound
	}
	i := min(m.calls-1, len(m.snaps)-1)
	return m.snaps[i], nil
}

func (m *mockGeneration) List(context.Context, string) ([]domain.GenerationJob, error) {
	return nil, nil
}

func (m *mockGeneration) LatestDrafts(context.Context, string) (*domain.DraftsArtifact, error) {
	return nil, domain.ErrNotFound
}

func snapshot(status domain.JobStatus, stage string, progress int) *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:        "job_1",
		ProductID: "fm-200",
		Status:    status,
		Progress:  progress,
		Metadata:  domain.JobMetadata{Stage: stage, StageDetail: "detail for " + stage},
	}
}

func TestNewWatch_Validation(t *testing.T) {
	_, err := NewWatch(&Ports{}, "job_1")
	assert.ErrorIs(t, err, ErrMissingGenerationService)

	_, err = NewWatch(&Ports{Generation: &mockGeneration{}}, "  ")
	assert.ErrorIs(t, err, ErrMissingJobID)
}

func TestWatch_PollRunningJob(t *testing.T) {
	gen := &mockGeneration{snaps: []*domain.GenerationJob{snapshot(domain.JobRunning, domain.StageAudit, 40)}}
	w, err := NewWatch(&Ports{Generation: gen}, "job_1")
	require.NoError(t, err)

	msg := w.poll()
	polled, ok := msg.(messages.JobPolled)
	require.True(t, ok)
	require.NoError(t, polled.Err)

	_, cmd := w.Update(polled)

	assert.NotNil(t, cmd, "a running job schedules the next poll")
	assert.Equal(t, 40, w.Job().Progress)
	assert.False(t, w.quitting)

	view := w.View()
	assert.Contains(t, view, "Generation job job_1")
	assert.Contains(t, view, "fm-200")
	assert.Contains(t, view, "RUNNING")
	assert.Contains(t, view, "✓ ")
	assert.Contains(t, view, "Audit and verify")
	assert.Contains(t, view, "detail for audit")
}

func TestWatch_QuitsWhenJobFinishes(t *testing.T) {
	job := snapshot(domain.JobSucceeded, domain.StageDone, 100)
	job.Metadata.ContentMetadata = &domain.GenerationMetadata{
		Provider:          "anthropic",
		Model:             "claude-sonnet-4-5",
		TokenUsage:        domain.TokenUsage{TotalTokens: 1234},
		GuardrailWarnings: []domain.GuardrailWarning{{}},
	}
	w, err := NewWatch(&Ports{Generation: &mockGeneration{snaps: []*domain.GenerationJob{job}}}, "job_1")
	require.NoError(t, err)

	_, cmd := w.Update(w.poll())

	require.NotNil(t, cmd)
	assert.True(t, w.quitting)
	assert.Equal(t, status.StateDone, w.bar.State())

	w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	view := w.View()
	assert.Contains(t, view, "SUCCEEDED")
	assert.Contains(t, view, "anthropic/claude-sonnet-4-5")
	assert.Contains(t, view, "tokens: 1234")
	assert.Contains(t, view, "guardrail warnings: 1")
}

func TestWatch_FailedJobShowsMessage(t *testing.T) {
	job := snapshot(domain.JobFailed, domain.StageFactSheet, 18)
	job.ErrorMessage = "API quota/error during factsheet extraction: insufficient_quota"
	w, err := NewWatch(&Ports{Generation: &mockGeneration{snaps: []*domain.GenerationJob{job}}}, "job_1")
	require.NoError(t, err)

	w.Update(w.poll())

	assert.True(t, w.quitting)
	assert.Equal(t, status.StateFailed, w.bar.State())
	view := w.View()
	assert.Contains(t, view, "✗ Extract fact sheet")
	assert.Contains(t, view, "insufficient_quota")
}

func TestWatch_PollErrorKeepsWatching(t *testing.T) {
	gen := &mockGeneration{err: errors.New("database is locked")}
	w, err := NewWatch(&Ports{Generation: gen}, "job_1")
	require.NoError(t, err)

	_, cmd := w.Update(w.poll())

	assert.NotNil(t, cmd)
	assert.False(t, w.quitting)
	assert.EqualError(t, w.Err(), "database is locked")
	assert.Equal(t, status.StateError, w.bar.State())
	assert.Contains(t, w.View(), "database is locked")
}

func TestWatch_Keys(t *testing.T) {
	gen := &mockGeneration{snaps: []*domain.GenerationJob{snapshot(domain.JobRunning, domain.StageIngest, 5)}}
	w, err := NewWatch(&Ports{Generation: gen}, "job_1")
	require.NoError(t, err)

	_, cmd := w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	_, ok := cmd().(messages.JobPolled)
	assert.True(t, ok, "refresh polls immediately")

	w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, status.StateHelp, w.bar.State())
	w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, status.StateWatching, w.bar.State())

	_, cmd = w.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWatch_WindowResize(t *testing.T) {
	w, err := NewWatch(&Ports{Generation: &mockGeneration{}}, "job_1")
	require.NoError(t, err)

	w.Update(tea.WindowSizeMsg{Width: 200, Height: 40})

	assert.Equal(t, 200, w.bar.Width())
	assert.Equal(t, 80, w.meter.Width)
}

func TestWatch_WithInterval(t *testing.T) {
	w, err := NewWatch(&Ports{Generation: &mockGeneration{}}, "job_1")
	require.NoError(t, err)

	assert.Equal(t, DefaultPollInterval, w.interval)
	w.WithInterval(0)
	assert.Equal(t, DefaultPollInterval, w.interval)
	w.WithInterval(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, w.interval)
}
