package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/logger"
)

// Extraction defaults.
const (
	DefaultExtractMaxRetries = 2
	extractResultsPerQuery   = 10
)

// extractionQueries target each fact-sheet section. The model only ever sees
// chunks these queries return.
var extractionQueries = []string{
	"product name and product category",
	"primary use cases and applications",
	"target buyer roles and personas",
	"key specifications technical specs dimensions",
	"constraints limitations restrictions",
	"differentiators unique selling points advantages",
	"certifications standards compliance",
	"integrations interfaces APIs connectivity",
	"maintenance calibration service",
	"source coverage summary",
}

var errNotAnObject = errors.New("fact sheet must be a JSON object")

type extractPromptChunk struct {
	ChunkID string
	Text    string
}

type extractPromptData struct {
	Chunks []extractPromptChunk
}

type fixPromptData struct {
	InvalidJSON string
	Error       string
}

// repairState is the state of the bounded JSON repair loop.
type repairState struct {
	attempts   int
	lastOutput string
	lastErr    error
}

// FactSheetExtractor turns retrieved chunks into a typed fact sheet.
type FactSheetExtractor struct {
	builder    *ContextBuilder
	prompts    driven.PromptStore
	maxRetries int
}

// NewFactSheetExtractor creates an extractor.
// maxRetries bounds the number of fix-JSON calls after the first response;
// a negative value selects DefaultExtractMaxRetries.
func NewFactSheetExtractor(builder *ContextBuilder, prompts driven.PromptStore, maxRetries int) *FactSheetExtractor {
	if maxRetries < 0 {
		maxRetries = DefaultExtractMaxRetries
	}
	return &FactSheetExtractor{
		builder:    builder,
		prompts:    prompts,
		maxRetries: maxRetries,
	}
}

// Extract retrieves evidence for productID and asks llm for a fact sheet.
// Malformed output is sent back with a fix prompt up to maxRetries times;
// after that an *domain.ExtractionError is returned. Completion failures
// are returned immediately.
func (e *FactSheetExtractor) Extract(
	ctx context.Context, llm driven.CompletionService, productID string,
) (*domain.FactSheetArtifact, error) {
	if llm == nil {
		return nil, domain.ErrCompletionUnavailable
	}

	chunks, err := e.builder.Collect(ctx, productID, extractionQueries, extractResultsPerQuery)
	if err != nil {
		return nil, fmt.Errorf("collect evidence: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.ErrNoSourceText
	}

	data := extractPromptData{Chunks: make([]extractPromptChunk, len(chunks))}
	for i, c := range chunks {
		data.Chunks[i] = extractPromptChunk{ChunkID: c.ChunkID, Text: c.Text}
	}
	prompt, err := renderPrompt(e.prompts, driven.PromptFactSheetExtract, data)
	if err != nil {
		return nil, err
	}

	logger.Info("Extracting fact sheet for %s from %d chunks", productID, len(chunks))
	raw, err := llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("complete extraction prompt: %w", err)
	}

	state := repairState{attempts: 1, lastOutput: raw}
	for {
		sheet, perr := parseFactSheet(state.lastOutput)
		if perr == nil {
			logger.Info("Fact sheet extracted after %d attempt(s)", state.attempts)
			return &domain.FactSheetArtifact{
				Sheet:      sheet,
				Provenance: sheet.Provenance(),
				Violations: sheet.EvidenceViolations(),
				Attempts:   state.attempts,
			}, nil
		}
		state.lastErr = perr

		if state.attempts > e.maxRetries {
			return nil, &domain.ExtractionError{
				Attempts:   state.attempts,
				LastErr:    state.lastErr,
				LastOutput: state.lastOutput,
			}
		}

		logger.Warn("Fact sheet attempt %d invalid: %v", state.attempts, perr)
		fix, err := renderPrompt(e.prompts, driven.PromptFactSheetFixJSON, fixPromptData{
			InvalidJSON: state.lastOutput,
			Error:       perr.Error(),
		})
		if err != nil {
			return nil, err
		}
		raw, err := llm.Complete(ctx, fix)
		if err != nil {
			return nil, fmt.Errorf("complete fix prompt: %w", err)
		}
		state.attempts++
		state.lastOutput = raw
	}
}

// parseFactSheet decodes model output and maps every known field onto the
// typed fact sheet. Missing or null scalars become NotFound, missing lists
// become empty, and list items of the wrong shape are dropped.
func parseFactSheet(raw string) (*domain.FactSheet, error) {
	tree, err := decodeTree(raw)
	if err != nil {
		return nil, err
	}
	m := asObject(tree)
	if m == nil {
		return nil, errNotAnObject
	}

	sheet := domain.NewFactSheet()
	sheet.ProductName = strOr(m, "product_name", domain.NotFound)
	sheet.ProductCategory = strOr(m, "product_category", domain.NotFound)
	sheet.SourceCoverageSummary = strOr(m, "source_coverage_summary", domain.NotFound)
	sheet.PrimaryUseCases = strList(m, "primary_use_cases")
	sheet.TargetBuyerRoles = strList(m, "target_buyer_roles")
	sheet.CertificationsStandards = strList(m, "certifications_standards")
	sheet.IntegrationsInterfaces = strList(m, "integrations_interfaces")
	sheet.MaintenanceCalibration = strList(m, "maintenance_calibration")

	for _, item := range objects(m["key_specs"]) {
		sheet.KeySpecs = append(sheet.KeySpecs, domain.KeySpec{
			Name:             str(item, "name"),
			Value:            str(item, "value"),
			Unit:             str(item, "unit"),
			Conditions:       str(item, "conditions"),
			EvidenceChunkIDs: strList(item, "evidence_chunk_ids"),
		})
	}
	for _, item := range objects(m["constraints"]) {
		sheet.Constraints = append(sheet.Constraints, domain.Constraint{
			Statement:        str(item, "statement"),
			EvidenceChunkIDs: strList(item, "evidence_chunk_ids"),
		})
	}
	for _, item := range objects(m["differentiators"]) {
		sheet.Differentiators = append(sheet.Differentiators, domain.Differentiator{
			Statement:        str(item, "statement"),
			EvidenceChunkIDs: strList(item, "evidence_chunk_ids"),
		})
	}
	return sheet, nil
}
