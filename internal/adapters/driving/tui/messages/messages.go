// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"time"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// PollRequested asks the model to fetch the job now.
type PollRequested struct{}

// Tick fires on the poll interval.
type Tick struct {
	At time.Time
}

// JobPolled carries the latest job record or the error that prevented reading it.
type JobPolled struct {
	Job *domain.GenerationJob
	Err error
}

// Terminal reports whether the polled job has finished.
func (m JobPolled) Terminal() bool {
	return m.Err == nil && m.Job != nil && m.Job.Status.IsTerminal()
}

// Stage is one row of the pipeline checklist.
type Stage struct {
	Name  string
	Label string
}

// Stages lists the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{
		{Name: domain.StageIngest, Label: "Ingest sources"},
		{Name: domain.StageFactSheet, Label: "Extract fact sheet"},
		{Name: domain.StageAudit, Label: "Audit and verify"},
		{Name: domain.StageContent, Label: "Generate content"},
	}
}

// StageState is how far the job has got relative to a stage.
type StageState int

const (
	// StagePending has not started.
	StagePending StageState = iota
	// StageActive is running now.
	StageActive
	// StageDone has finished.
	StageDone
	// StageFailed is where the job stopped with an error.
	StageFailed
)

// String returns the string representation of the stage state.
func (s StageState) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageActive:
		return "active"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateOf places stage relative to the job's current stage.
func StateOf(job *domain.GenerationJob, stage string) StageState {
	if job == nil {
		return StagePending
	}
	if job.Status == domain.JobSucceeded {
		return StageDone
	}

	current := indexOf(job.Metadata.Stage)
	target := indexOf(stage)
	switch {
	case current < 0 || target > current:
		return StagePending
	case target < current:
		return StageDone
	case job.Status == domain.JobFailed:
		return StageFailed
	default:
		return StageActive
	}
}

func indexOf(stage string) int {
	for i, s := range Stages() {
		if s.Name == stage {
			return i
		}
	}
	return -1
}
