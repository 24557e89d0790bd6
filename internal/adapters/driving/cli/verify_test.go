package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pda/internal/core/domain"
)

func blockedReport() *domain.VerifierReport {
	return &domain.VerifierReport{
		BlockedIssues: []domain.VerifierIssue{
			{FieldPath: "key_specs[0]", Message: "spec has no evidence"},
		},
		Warnings:         []domain.VerifierIssue{{Message: "spec value without unit"}},
		SuggestedQueries: []string{"accuracy specification"},
	}
}

func TestVerifyCmd_Clean(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("verify", "fm-200")

	require.NoError(t, err)
	assert.Contains(t, out, "No issues found.")
}

func TestVerifyCmd_BlockedFails(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.verifier.report = blockedReport()

	out, err := execute("verify", "fm-200")

	assert.True(t, errors.Is(err, domain.ErrVerifierBlocked))
	assert.Contains(t, out, "Blocking (1):")
	assert.Contains(t, out, "key_specs[0]: spec has no evidence")
	assert.Contains(t, out, "Warnings (1):")
	assert.Contains(t, out, "- accuracy specification")
}

func TestVerifyCmd_AllowBlocked(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.verifier.report = blockedReport()

	_, err := execute("verify", "--allow-blocked", "fm-200")

	assert.NoError(t, err)
}

func TestVerifyCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.verifier.report = blockedReport()

	out, err := execute("verify", "--json", "--allow-blocked", "fm-200")

	require.NoError(t, err)
	assert.Contains(t, out, `"blocked_issues"`)
	assert.Contains(t, out, `"field_path": "key_specs[0]"`)
}

func TestVerifyCmd_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.verifier.err = domain.ErrNotFound

	_, err := execute("verify", "fm-200")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
