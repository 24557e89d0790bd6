package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driving"
)

// Handlers serves the generation API over the driving ports.
type Handlers struct {
	generation driving.GenerationService
	factSheets driving.FactSheetService
	verifier   driving.VerifierService
}

// GenerateRequest is the body of POST /api/products/:product_id/generate-content.
// Every field is optional.
type GenerateRequest struct {
	Tone         domain.Tone     `json:"tone"`
	Length       domain.Length   `json:"length"`
	Audience     domain.Audience `json:"audience"`
	Provider     string          `json:"llm_provider"`
	Model        string          `json:"llm_model"`
	Sources      []string        `json:"sources"`
	URL          string          `json:"url"`
	AllowBlocked bool            `json:"allow_blocked"`
}

// GenerateResponse acknowledges a generation request.
type GenerateResponse struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
}

// JobResponse is the polling view of a job. Drafts are only present once
// the job has succeeded, the error message only once it has failed.
type JobResponse struct {
	JobID        string                `json:"job_id"`
	ProductID    string                `json:"product_id"`
	Status       domain.JobStatus      `json:"status"`
	Progress     int                   `json:"progress"`
	Metadata     domain.JobMetadata    `json:"metadata"`
	Drafts       *domain.ContentDrafts `json:"drafts,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
}

// VerifyResponse is the verifier report plus its verdict.
type VerifyResponse struct {
	ProductID string `json:"product_id"`
	Blocked   bool   `json:"blocked"`
	*domain.VerifierReport
}

// GenerateContent handles POST /api/products/:product_id/generate-content.
// A repeated request returns the in-flight job with 200 instead of 201.
func (h *Handlers) GenerateContent(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondErrorCode(c, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}

	params := domain.GenerationParams{
		Tone:         req.Tone,
		Length:       req.Length,
		Audience:     req.Audience,
		Provider:     req.Provider,
		Model:        req.Model,
		Sources:      req.Sources,
		URL:          req.URL,
		AllowBlocked: req.AllowBlocked,
	}
	job, created, err := h.generation.Start(c.Request.Context(), c.Param("product_id"), params)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, GenerateResponse{JobID: job.ID, Status: job.Status})
}

// GetJob handles GET /api/generation-jobs/:job_id.
func (h *Handlers) GetJob(c *gin.Context) {
	job, err := h.generation.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

func newJobResponse(job *domain.GenerationJob) JobResponse {
	resp := JobResponse{
		JobID:     job.ID,
		ProductID: job.ProductID,
		Status:    job.Status,
		Progress:  job.Progress,
		Metadata:  job.Metadata,
		CreatedAt: job.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: job.UpdatedAt.UTC().Format(timeLayout),
	}
	switch job.Status {
	case domain.JobSucceeded:
		resp.Drafts = job.Drafts
	case domain.JobFailed:
		resp.ErrorMessage = job.ErrorMessage
	}
	return resp
}

// ListJobs handles GET /api/products/:product_id/generation-jobs.
func (h *Handlers) ListJobs(c *gin.Context) {
	jobs, err := h.generation.List(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]JobResponse, len(jobs))
	for i := range jobs {
		out[i] = newJobResponse(&jobs[i])
		out[i].Drafts = nil
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

// GetDrafts handles GET /api/products/:product_id/drafts.
func (h *Handlers) GetDrafts(c *gin.Context) {
	drafts, err := h.generation.LatestDrafts(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, drafts)
}

// GetFactSheet handles GET /api/products/:product_id/factsheet.
func (h *Handlers) GetFactSheet(c *gin.Context) {
	artifact, err := h.factSheets.Get(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifact)
}

// Verify handles POST /api/products/:product_id/verify.
func (h *Handlers) Verify(c *gin.Context) {
	productID := c.Param("product_id")
	report, err := h.verifier.Verify(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VerifyResponse{
		ProductID:      productID,
		Blocked:        report.HasBlocked(),
		VerifierReport: report,
	})
}

// Health handles GET /healthz.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
