package driving

import (
	"context"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// VerifierService runs the verifier gate over a product's stored fact sheet.
type VerifierService interface {
	// Verify checks the fact sheet and, when present, the audit findings.
	// The report is returned even when it has blocking issues.
	Verify(ctx context.Context, productID string) (*domain.VerifierReport, error)
}
