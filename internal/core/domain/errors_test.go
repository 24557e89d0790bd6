package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrNotImplemented", ErrNotImplemented},
		{"ErrCompletionUnavailable", ErrCompletionUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrRetrievalUnavailable", ErrRetrievalUnavailable},
		{"ErrNoSourceText", ErrNoSourceText},
		{"ErrRateLimited", ErrRateLimited},
		{"ErrQuotaExceeded", ErrQuotaExceeded},
		{"ErrVerifierBlocked", ErrVerifierBlocked},
		{"ErrInvalidTransition", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrNotFound(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrAlreadyExists))
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "tone", Reason: "must be one of neutral technical marketing"}

	assert.Equal(t, "invalid tone: must be one of neutral technical marketing", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.True(t, errors.Is(fmt.Errorf("start job: %w", err), ErrInvalidInput))
}

func TestExtractionError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &ExtractionError{Attempts: 3, LastErr: cause, LastOutput: "{"}

	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.True(t, errors.Is(err, cause))

	var ee *ExtractionError
	assert.True(t, errors.As(fmt.Errorf("extract: %w", err), &ee))
	assert.Equal(t, "{", ee.LastOutput)
}

func TestCompletionError_Classification(t *testing.T) {
	tests := []struct {
		kind      CompletionErrorKind
		quota     bool
		retryable bool
		sentinel  error
	}{
		{CompletionRateLimited, true, true, ErrRateLimited},
		{CompletionQuotaExceeded, true, false, ErrQuotaExceeded},
		{CompletionTransient, false, true, nil},
		{CompletionOther, false, false, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("call: %w", &CompletionError{Kind: tt.kind, Provider: "anthropic", Err: errors.New("boom")})

			assert.Equal(t, tt.quota, IsQuotaError(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel))
			}
			assert.False(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestIsQuotaError_PlainError(t *testing.T) {
	assert.False(t, IsQuotaError(errors.New("429")))
	assert.False(t, IsRetryable(nil))
}

func TestVerifierBlockedError(t *testing.T) {
	err := &VerifierBlockedError{Issues: []string{"a", "b"}}

	assert.True(t, errors.Is(err, ErrVerifierBlocked))
	assert.Contains(t, err.Error(), "2 issue(s)")
}
