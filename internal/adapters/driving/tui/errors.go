package tui

import "errors"

// ErrMissingGenerationService is returned when the generation service is not provided.
var ErrMissingGenerationService = errors.New("tui: generation service is required")

// ErrMissingJobID is returned when no job was given to watch.
var ErrMissingJobID = errors.New("tui: job id is required")
