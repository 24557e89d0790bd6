package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/logger"
)

const (
	criticMaxChunks  = 30
	criticChunkChars = 800
	criticNoteChars  = 500
	criticVerdictLen = 200
)

// gapCheck describes one fact-sheet field the audit expects to be populated.
type gapCheck struct {
	label    string
	severity domain.FindingSeverity
	missing  func(*domain.FactSheet) bool
}

var gapChecks = []gapCheck{
	{"Product name", domain.SeverityCritical, func(f *domain.FactSheet) bool { return domain.IsMissing(f.ProductName) }},
	{"Product category", domain.SeverityHigh, func(f *domain.FactSheet) bool { return domain.IsMissing(f.ProductCategory) }},
	{"Key specifications", domain.SeverityHigh, func(f *domain.FactSheet) bool { return len(f.KeySpecs) == 0 }},
	{"Primary use cases", domain.SeverityMedium, func(f *domain.FactSheet) bool { return len(f.PrimaryUseCases) == 0 }},
	{"Target buyer roles", domain.SeverityMedium, func(f *domain.FactSheet) bool { return len(f.TargetBuyerRoles) == 0 }},
	{"Differentiators", domain.SeverityMedium, func(f *domain.FactSheet) bool { return len(f.Differentiators) == 0 }},
	{"Constraints", domain.SeverityMedium, func(f *domain.FactSheet) bool { return len(f.Constraints) == 0 }},
	{"Certifications and standards", domain.SeverityLow, func(f *domain.FactSheet) bool { return len(f.CertificationsStandards) == 0 }},
	{"Integrations and interfaces", domain.SeverityLow, func(f *domain.FactSheet) bool { return len(f.IntegrationsInterfaces) == 0 }},
	{"Maintenance and calibration", domain.SeverityLow, func(f *domain.FactSheet) bool { return len(f.MaintenanceCalibration) == 0 }},
}

type criticPromptData struct {
	FindingTitle          string
	FindingRecommendation string
	Chunks                string
}

// ProgressFunc receives intermediate progress from a long-running stage.
type ProgressFunc func(progress int, detail string)

// Auditor scores the sources, runs gap analysis, the critic pass and the
// content-pack verifier.
type Auditor struct {
	chunks   driven.ChunkStore
	prompts  driven.PromptStore
	verifier *Verifier
}

// NewAuditor creates an auditor.
func NewAuditor(chunks driven.ChunkStore, prompts driven.PromptStore, verifier *Verifier) *Auditor {
	return &Auditor{chunks: chunks, prompts: prompts, verifier: verifier}
}

// GapAnalysis returns one ungrounded finding per missing fact-sheet field,
// most severe first. Findings are recommendations, never facts.
func (a *Auditor) GapAnalysis(sheet *domain.FactSheet) []domain.AuditFinding {
	findings := []domain.AuditFinding{}
	for _, c := range gapChecks {
		if !c.missing(sheet) {
			continue
		}
		findings = append(findings, domain.AuditFinding{
			FindingID:      fmt.Sprintf("F-%03d", len(findings)+1),
			Category:       domain.CategoryCompleteness,
			Severity:       c.severity,
			Title:          "Missing: " + c.label,
			Description:    fmt.Sprintf("The field '%s' was not found in the source material.", c.label),
			Evidence:       []domain.Evidence{},
			IsGrounded:     false,
			Recommendation: fmt.Sprintf("Add explicit %s to the brochure or product page.", strings.ToLower(c.label)),
		})
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() < findings[j].Severity.Rank()
	})
	return findings
}

// Critic asks llm whether each ungrounded recommendation is supported by the
// product's leading chunks. A finding is verified when the answer contains
// "yes" and does not open with "not supported".
func (a *Auditor) Critic(
	ctx context.Context, llm driven.CompletionService, productID string, findings []domain.AuditFinding,
) ([]domain.AuditFinding, error) {
	chunks, err := a.chunks.ListChunks(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return a.critic(ctx, llm, chunks, findings)
}

func (a *Auditor) critic(
	ctx context.Context, llm driven.CompletionService, chunks []domain.Chunk, findings []domain.AuditFinding,
) ([]domain.AuditFinding, error) {
	if len(chunks) > criticMaxChunks {
		chunks = chunks[:criticMaxChunks]
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[%s] (page %d) %s", c.ID, c.Page, truncateRunes(c.Text, criticChunkChars))
	}
	chunkText := strings.Join(parts, "\n\n")

	out := make([]domain.AuditFinding, len(findings))
	for i, f := range findings {
		out[i] = f
		if f.IsGrounded {
			continue
		}
		prompt, err := renderPrompt(a.prompts, driven.PromptCriticVerify, criticPromptData{
			FindingTitle:          f.Title,
			FindingRecommendation: f.Recommendation,
			Chunks:                chunkText,
		})
		if err != nil {
			return nil, err
		}
		raw, err := llm.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("critic %s: %w", f.FindingID, err)
		}
		lower := strings.ToLower(raw)
		out[i].CriticVerified = strings.Contains(lower, "yes") &&
			!strings.Contains(truncateRunes(lower, criticVerdictLen), "not supported")
		out[i].CriticNote = truncateRunes(strings.TrimSpace(raw), criticNoteChars)
	}
	return out, nil
}

// Run performs the full audit stage. Critic failures other than quota
// exhaustion are logged and the uncriticised findings are kept.
func (a *Auditor) Run(
	ctx context.Context,
	llm driven.CompletionService,
	productID string,
	sheet *domain.FactSheet,
	progress ProgressFunc,
) (*domain.AuditArtifact, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	chunks, err := a.chunks.ListChunks(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	card := BuildScorecard(sheet, chunks)
	checks := RunChecks(sheet, chunks)
	logger.Info("Scorecard for %s: %.1f (%s)", productID, card.OverallScore, card.Grade)

	findings := a.GapAnalysis(sheet)
	progress(42, fmt.Sprintf("Scorecard grade %s; gap analysis found %d finding(s). Running critic pass…",
		card.Grade, len(findings)))

	criticised, err := a.critic(ctx, llm, chunks, findings)
	switch {
	case err == nil:
		findings = criticised
	case domain.IsQuotaError(err):
		return nil, err
	default:
		logger.Warn("Critic pass failed (non-fatal): %v", err)
	}
	progress(50, "Critic pass complete. Running verifier…")

	report := a.verifier.Verify(sheet, findings)
	progress(58, "Writing audit artifacts…")

	return &domain.AuditArtifact{Findings: findings, Scorecard: card, Checks: checks, Verifier: report}, nil
}
