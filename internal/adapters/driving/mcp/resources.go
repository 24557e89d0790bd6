package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// uriScheme is the custom URI scheme for pda resources.
const uriScheme = "pda://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "products/{productId}/drafts",
		Name:        "product-drafts",
		Description: "Latest generated content drafts for a product",
		MIMEType:    "application/json",
	}, s.handleDraftsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "products/{productId}/factsheet",
		Name:        "product-factsheet",
		Description: "Extracted fact sheet with provenance for a product",
		MIMEType:    "application/json",
	}, s.handleFactSheetResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{jobId}",
		Name:        "generation-job",
		Description: "Full record of a generation job",
		MIMEType:    "application/json",
	}, s.handleJobResource)
}

func (s *Server) handleDraftsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	productID := extractProductID(req.Params.URI, "/drafts")
	if productID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	drafts, err := s.ports.Generation.LatestDrafts(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting drafts: %w", err)
	}
	return jsonResource(req.Params.URI, drafts)
}

func (s *Server) handleFactSheetResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.FactSheet == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	productID := extractProductID(req.Params.URI, "/factsheet")
	if productID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	artifact, err := s.ports.FactSheet.Get(ctx, productID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting fact sheet: %w", err)
	}
	return jsonResource(req.Params.URI, artifact)
}

func (s *Server) handleJobResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobID := strings.TrimPrefix(req.Params.URI, uriScheme+"jobs/")
	if jobID == req.Params.URI || jobID == "" || strings.Contains(jobID, "/") {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	job, err := s.ports.Generation.Get(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return jsonResource(req.Params.URI, job)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractProductID extracts the product ID from a URI like pda://products/{productId}/drafts.
func extractProductID(uri, suffix string) string {
	const prefix = uriScheme + "products/"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
