// Package tui provides terminal views for following generation jobs.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/pda/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Generation is polled for job state.
	Generation driving.GenerationService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Generation == nil {
		return ErrMissingGenerationService
	}
	return nil
}
