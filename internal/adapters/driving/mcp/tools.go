package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// StartGenerationInput is the input schema for the start_generation tool.
type StartGenerationInput struct {
	ProductID    string `json:"product_id" jsonschema:"the product to generate content for"`
	Tone         string `json:"tone,omitempty" jsonschema:"neutral, technical or marketing (default neutral)"`
	Length       string `json:"length,omitempty" jsonschema:"short, medium or long (default medium)"`
	Audience     string `json:"audience,omitempty" jsonschema:"engineer, procurement or ops_manager (default ops_manager)"`
	Provider     string `json:"llm_provider,omitempty" jsonschema:"completion provider override: anthropic, openai or gemini"`
	Model        string `json:"llm_model,omitempty" jsonschema:"completion model override"`
	AllowBlocked bool   `json:"allow_blocked,omitempty" jsonschema:"assemble the report even when the verifier blocks"`
}

// StartGenerationOutput is the output schema for the start_generation tool.
type StartGenerationOutput struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Created bool   `json:"created"`
}

// JobInput is the input schema for the get_generation_job tool.
type JobInput struct {
	JobID string `json:"job_id" jsonschema:"the id returned by start_generation"`
}

// JobOutput is the output schema for the get_generation_job tool.
type JobOutput struct {
	JobID        string                `json:"job_id"`
	ProductID    string                `json:"product_id"`
	Status       string                `json:"status"`
	Progress     int                   `json:"progress"`
	Stage        string                `json:"stage"`
	StageDetail  string                `json:"stage_detail"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Drafts       *domain.ContentDrafts `json:"drafts,omitempty"`
}

// ProductInput is the input schema for tools keyed by product.
type ProductInput struct {
	ProductID string `json:"product_id" jsonschema:"the product id used at ingest"`
}

// VerifyOutput is the output schema for the verify_product tool.
type VerifyOutput struct {
	Blocked bool                   `json:"blocked"`
	Report  *domain.VerifierReport `json:"report"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "start_generation",
		Description: "Start an asynchronous content generation job for a product",
	}, s.handleStartGeneration)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_generation_job",
		Description: "Get the status, progress and drafts of a generation job",
	}, s.handleGetJob)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verify_product",
		Description: "Run the verifier over a product's fact sheet and audit findings",
	}, s.handleVerify)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_factsheet",
		Description: "Get the extracted fact sheet and provenance for a product",
	}, s.handleGetFactSheet)
}

func (s *Server) handleStartGeneration(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StartGenerationInput,
) (*mcp.CallToolResult, StartGenerationOutput, error) {
	if input.ProductID == "" {
		return nil, StartGenerationOutput{}, &domain.ValidationError{Field: "product_id", Reason: "required"}
	}

	params := domain.GenerationParams{
		Tone:         domain.Tone(input.Tone),
		Length:       domain.Length(input.Length),
		Audience:     domain.Audience(input.Audience),
		Provider:     input.Provider,
		Model:        input.Model,
		AllowBlocked: input.AllowBlocked,
	}
	job, created, err := s.ports.Generation.Start(ctx, input.ProductID, params)
	if err != nil {
		return nil, StartGenerationOutput{}, err
	}

	return nil, StartGenerationOutput{
		JobID:   job.ID,
		Status:  string(job.Status),
		Created: created,
	}, nil
}

func (s *Server) handleGetJob(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobInput,
) (*mcp.CallToolResult, JobOutput, error) {
	job, err := s.ports.Generation.Get(ctx, input.JobID)
	if err != nil {
		return nil, JobOutput{}, err
	}

	out := JobOutput{
		JobID:        job.ID,
		ProductID:    job.ProductID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		Stage:        job.Metadata.Stage,
		StageDetail:  job.Metadata.StageDetail,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Status == domain.JobSucceeded {
		out.Drafts = job.Drafts
	}
	return nil, out, nil
}

func (s *Server) handleVerify(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, VerifyOutput, error) {
	if s.ports.Verifier == nil {
		return nil, VerifyOutput{}, errors.New("verifier not available")
	}
	report, err := s.ports.Verifier.Verify(ctx, input.ProductID)
	if err != nil {
		return nil, VerifyOutput{}, err
	}
	return nil, VerifyOutput{Blocked: report.HasBlocked(), Report: report}, nil
}

func (s *Server) handleGetFactSheet(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, domain.FactSheetArtifact, error) {
	if s.ports.FactSheet == nil {
		return nil, domain.FactSheetArtifact{}, errors.New("fact sheets not available")
	}
	artifact, err := s.ports.FactSheet.Get(ctx, input.ProductID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.FactSheetArtifact{}, fmt.Errorf("no fact sheet for %s: run start_generation first", input.ProductID)
	}
	if err != nil {
		return nil, domain.FactSheetArtifact{}, err
	}
	return nil, *artifact, nil
}
