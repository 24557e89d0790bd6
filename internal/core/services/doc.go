// Package services implements the driving port interfaces.
// Services contain the grounded generation pipeline and orchestrate
// calls to driven ports (adapters):
//
//	ingest -> retrieval -> fact-sheet extraction -> audit -> sections -> guardrail
//
// GenerationService owns the asynchronous job lifecycle; every other
// service is synchronous and can be driven directly from the CLI.
package services
