package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrCompletionUnavailable indicates no completion service is configured.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Retrieval falls back to term-overlap scoring without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRetrievalUnavailable indicates the retrieval service is not configured.
	ErrRetrievalUnavailable = errors.New("retrieval service unavailable")

	// ErrNoSourceText indicates ingestion produced no usable text.
	ErrNoSourceText = errors.New("no text chunks could be extracted")

	// ErrRateLimited indicates the completion provider rejected the call for rate reasons.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExceeded indicates the provider account has no quota left.
	// This needs human intervention and is never retried.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrVerifierBlocked indicates the verifier produced blocking issues.
	ErrVerifierBlocked = errors.New("verifier blocked")

	// ErrInvalidTransition indicates a job status change that the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// ValidationError reports malformed request input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ExtractionError is returned when the fact-sheet repair loop is exhausted.
type ExtractionError struct {
	// Attempts is the number of completion calls made.
	Attempts int

	// LastErr is the parse or normalisation failure of the final attempt.
	LastErr error

	// LastOutput is the raw text returned by the final attempt.
	LastOutput string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("fact sheet extraction failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExtractionError) Unwrap() error {
	return e.LastErr
}

// CompletionErrorKind classifies completion-service failures.
type CompletionErrorKind string

// Completion failure kinds.
const (
	CompletionRateLimited   CompletionErrorKind = "rate_limited"
	CompletionQuotaExceeded CompletionErrorKind = "quota_exceeded"
	CompletionTransient     CompletionErrorKind = "transient"
	CompletionOther         CompletionErrorKind = "other"
)

// CompletionError wraps a provider failure with its classification.
type CompletionError struct {
	Kind     CompletionErrorKind
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Is maps the rate and quota kinds onto their sentinels.
func (e *CompletionError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Kind == CompletionRateLimited
	case ErrQuotaExceeded:
		return e.Kind == CompletionQuotaExceeded
	}
	return false
}

// IsQuotaError reports whether err is a rate or quota failure from a provider.
// These surface to users as "API quota/error" messages.
func IsQuotaError(err error) bool {
	var ce *CompletionError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == CompletionRateLimited || ce.Kind == CompletionQuotaExceeded
}

// IsRetryable reports whether a completion failure may succeed on retry.
func IsRetryable(err error) bool {
	var ce *CompletionError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == CompletionRateLimited || ce.Kind == CompletionTransient
}

// VerifierBlockedError carries the blocking issues that halted report assembly.
type VerifierBlockedError struct {
	Issues []string
}

func (e *VerifierBlockedError) Error() string {
	return fmt.Sprintf("verifier blocked: %d issue(s): %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

func (e *VerifierBlockedError) Unwrap() error {
	return ErrVerifierBlocked
}
