package mcp

import (
	"github.com/custodia-labs/pda/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Generation starts and tracks generation jobs.
	Generation driving.GenerationService

	// Verifier runs the verifier gate on demand.
	Verifier driving.VerifierService

	// FactSheet serves stored fact sheets.
	FactSheet driving.FactSheetService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Generation == nil {
		return ErrMissingGenerationService
	}
	return nil
}
