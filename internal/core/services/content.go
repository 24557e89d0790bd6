package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/guardrail"
	"github.com/custodia-labs/pda/internal/logger"
)

// The guardrail source sample is wider than any section context so that
// brand and pricing claims can be checked against more of the corpus.
const (
	sourceSampleResults  = 25
	sourceSampleMaxChars = 30000
)

var sourceSampleQueries = []string{
	"product overview description",
	"specifications features performance",
	"pricing cost list price",
	"brands manufacturer competitor comparison",
	"certifications standards compliance",
}

// ContentGenerator produces the full draft bundle for one product.
type ContentGenerator struct {
	sections  *SectionGenerator
	builder   *ContextBuilder
	validator *guardrail.Validator
	now       func() time.Time
}

// NewContentGenerator creates a content generator.
func NewContentGenerator(
	sections *SectionGenerator, builder *ContextBuilder, validator *guardrail.Validator,
) *ContentGenerator {
	return &ContentGenerator{
		sections:  sections,
		builder:   builder,
		validator: validator,
		now:       time.Now,
	}
}

// Generate runs the section generators in order (landing, FAQ, use cases,
// comparisons, SEO), then the guardrail pass over the whole bundle.
// Sections run one at a time; any section failure aborts the bundle.
func (g *ContentGenerator) Generate(
	ctx context.Context,
	llm driven.CompletionService,
	productID string,
	sheet *domain.FactSheet,
	params domain.GenerationParams,
) (*domain.ContentDrafts, *domain.GenerationMetadata, error) {
	start := g.now()
	req := NewSectionRequest(productID, sheet, params)
	usageBefore := usageOf(llm)

	drafts := domain.NewContentDrafts()
	var err error

	logger.Info("Generating landing page draft (tone=%s, length=%s, audience=%s)",
		req.Params.Tone, req.Params.Length, req.Params.Audience)
	if drafts.LandingPage, err = g.sections.Landing(ctx, llm, req); err != nil {
		return nil, nil, fmt.Errorf("landing page: %w", err)
	}

	logger.Info("Generating FAQ items")
	if drafts.FAQ, err = g.sections.FAQ(ctx, llm, req); err != nil {
		return nil, nil, fmt.Errorf("faq: %w", err)
	}

	logger.Info("Generating use-case pages")
	if drafts.UseCasePages, err = g.sections.UseCases(ctx, llm, req); err != nil {
		return nil, nil, fmt.Errorf("use cases: %w", err)
	}

	logger.Info("Generating comparison drafts")
	if drafts.Comparisons, err = g.sections.Comparisons(ctx, llm, req); err != nil {
		return nil, nil, fmt.Errorf("comparisons: %w", err)
	}

	logger.Info("Generating SEO draft")
	if drafts.SEO, err = g.sections.SEO(ctx, llm, req); err != nil {
		return nil, nil, fmt.Errorf("seo: %w", err)
	}

	logger.Info("Running post-generation guardrail pass")
	sample, err := g.builder.BuildN(ctx, productID, sourceSampleQueries, sourceSampleResults, sourceSampleMaxChars)
	if err != nil {
		return nil, nil, fmt.Errorf("source sample: %w", err)
	}
	warnings := g.validator.Run(drafts, sheet, sample.Text)

	end := g.now()
	meta := &domain.GenerationMetadata{
		ProductID:         productID,
		Tone:              req.Params.Tone,
		Length:            req.Params.Length,
		Audience:          req.Params.Audience,
		Provider:          llm.Provider(),
		Model:             llm.ModelName(),
		TokenUsage:        usageDelta(usageBefore, usageOf(llm)),
		GeneratedAt:       end.UTC(),
		DurationSeconds:   math.Round(end.Sub(start).Seconds()*100) / 100,
		GuardrailWarnings: warnings,
	}
	logger.Info("Generated drafts for %s with %d guardrail warning(s)", productID, len(warnings))
	return drafts, meta, nil
}

func usageOf(llm driven.CompletionService) domain.TokenUsage {
	if r, ok := llm.(driven.UsageReporter); ok {
		return r.Usage()
	}
	return domain.TokenUsage{}
}

func usageDelta(before, after domain.TokenUsage) domain.TokenUsage {
	return domain.TokenUsage{
		PromptTokens:     after.PromptTokens - before.PromptTokens,
		CompletionTokens: after.CompletionTokens - before.CompletionTokens,
		TotalTokens:      after.TotalTokens - before.TotalTokens,
	}
}
