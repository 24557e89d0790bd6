// Package mcp provides an MCP (Model Context Protocol) server adapter for pda.
// It lets AI assistants start generation jobs and read fact sheets, verifier
// reports and drafts.
package mcp

import "errors"

// ErrMissingGenerationService is returned when the generation service is not provided.
var ErrMissingGenerationService = errors.New("mcp: generation service is required")
