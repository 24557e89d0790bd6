package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// MaxErrorMessageLength caps the error text stored on a failed job.
const MaxErrorMessageLength = 500

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

// Job statuses. Succeeded and failed are terminal.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobQueued, JobRunning, JobSucceeded, JobFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for succeeded and failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// IsActive returns true while the job is queued or running.
func (s JobStatus) IsActive() bool {
	return s == JobQueued || s == JobRunning
}

// CanTransition reports whether the lifecycle permits moving from s to next.
// A running job may be re-saved as running to record progress.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobRunning || next == JobSucceeded || next == JobFailed
	default:
		return false
	}
}

// Stage names reported while a job runs.
const (
	StageQueued    = "queued"
	StageIngest    = "ingest"
	StageFactSheet = "factsheet"
	StageAudit     = "audit"
	StageContent   = "content"
	StageDone      = "done"
)

// JobMetadata is the incremental state a polling client renders.
type JobMetadata struct {
	Stage        string `json:"stage"`
	StageDetail  string `json:"stage_detail"`
	HasFactSheet bool   `json:"has_factsheet"`
	HasAudit     bool   `json:"has_audit"`
	HasContent   bool   `json:"has_content"`

	VerifierBlocked bool                `json:"verifier_blocked,omitempty"`
	VerifierReport  *VerifierReport     `json:"verifier_report,omitempty"`
	ContentMetadata *GenerationMetadata `json:"content_metadata,omitempty"`
}

// GenerationJob is the persisted record of one asynchronous generation run.
type GenerationJob struct {
	ID             string           `json:"job_id"`
	ProductID      string           `json:"product_id"`
	IdempotencyKey string           `json:"idempotency_key"`
	Status         JobStatus        `json:"status"`
	Progress       int              `json:"progress"`
	Params         GenerationParams `json:"params"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Drafts         *ContentDrafts   `json:"drafts,omitempty"`
	Metadata       JobMetadata      `json:"metadata"`

	// Version is bumped by the store on every update.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransitionTo moves the job to next, rejecting moves the lifecycle forbids.
func (j *GenerationJob) TransitionTo(next JobStatus) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	return nil
}

// Clone returns a copy that shares no mutable top-level state with j.
func (j *GenerationJob) Clone() *GenerationJob {
	c := *j
	c.Params.Sources = append([]string(nil), j.Params.Sources...)
	return &c
}

// TruncateMessage shortens msg to at most n runes.
func TruncateMessage(msg string, n int) string {
	r := []rune(msg)
	if len(r) <= n {
		return msg
	}
	return string(r[:n])
}

// FailureMessage renders the user-facing error for a failed stage.
// Quota and rate failures are singled out because they need human intervention.
func FailureMessage(stage string, err error) string {
	var msg string
	if IsQuotaError(err) {
		msg = fmt.Sprintf("API quota/error during %s: %v", strings.ToLower(stage), err)
	} else {
		msg = fmt.Sprintf("%s failed: %v", capitalize(stage), err)
	}
	return TruncateMessage(msg, MaxErrorMessageLength)
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
