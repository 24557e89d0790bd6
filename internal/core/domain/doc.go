// Package domain defines the core business entities for pda.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: a deterministically identified unit of source text
//   - FactSheet: evidence-backed product facts extracted from chunks
//   - ContentDrafts: generated landing, FAQ, use-case, comparison and SEO sections
//   - GuardrailWarning: one ungrounded claim found and repaired after generation
//   - GenerationJob: the persisted state of one asynchronous pipeline run
//   - VerifierReport: blocking and advisory issues over a finished fact sheet
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
