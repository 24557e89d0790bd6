package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/core/ports/driving"
)

// Ensure VerifierService implements the interface.
var _ driving.VerifierService = (*VerifierService)(nil)

var (
	numericRange = regexp.MustCompile(`^-?\d+(\.\d+)?\s*[-–]\s*-?\d+`)
	numericBare  = regexp.MustCompile(`^-?\d+(\.\d+)?\s*$`)
)

// physicalQuantities are spec-name fragments whose values need a unit.
var physicalQuantities = []string{
	"weight", "dimension", "length", "width", "height", "temperature",
	"pressure", "speed", "voltage", "current", "power", "capacity",
}

// Verifier is the deterministic secondary gate over a finished fact sheet.
// It is independent of the guardrail pass and never calls a model.
type Verifier struct{}

// NewVerifier creates a verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks sheet and, when given, audit findings. Missing evidence,
// contradictory specs and unsupported recommendations block; bare numeric
// values of physical quantities are warnings.
func (v *Verifier) Verify(sheet *domain.FactSheet, findings []domain.AuditFinding) *domain.VerifierReport {
	r := &domain.VerifierReport{
		BlockedIssues:    []domain.VerifierIssue{},
		Warnings:         []domain.VerifierIssue{},
		SuggestedQueries: []string{},
	}
	if sheet == nil {
		return r
	}

	r.BlockedIssues = append(r.BlockedIssues, evidenceIssues(sheet)...)
	r.BlockedIssues = append(r.BlockedIssues, contradictionIssues(sheet)...)
	r.BlockedIssues = append(r.BlockedIssues, unsupportedRecommendations(findings)...)
	r.Warnings = append(r.Warnings, missingUnitWarnings(sheet)...)
	r.SuggestedQueries = suggestQueries(sheet)
	return r
}

func evidenceIssues(sheet *domain.FactSheet) []domain.VerifierIssue {
	var out []domain.VerifierIssue
	for i, s := range sheet.KeySpecs {
		if (s.Name != "" || s.Value != "") && len(s.EvidenceChunkIDs) == 0 {
			path := fmt.Sprintf("key_specs[%d]", i)
			out = append(out, domain.VerifierIssue{
				FieldPath: path,
				Message:   fmt.Sprintf("%s '%s': '%s' has no evidence_chunk_ids", path, s.Name, s.Value),
			})
		}
	}
	for i, c := range sheet.Constraints {
		if c.Statement != "" && len(c.EvidenceChunkIDs) == 0 {
			path := fmt.Sprintf("constraints[%d]", i)
			out = append(out, domain.VerifierIssue{
				FieldPath: path,
				Message:   path + " has statement but no evidence_chunk_ids",
			})
		}
	}
	for i, d := range sheet.Differentiators {
		if d.Statement != "" && len(d.EvidenceChunkIDs) == 0 {
			path := fmt.Sprintf("differentiators[%d]", i)
			out = append(out, domain.VerifierIssue{
				FieldPath: path,
				Message:   path + " has statement but no evidence_chunk_ids",
			})
		}
	}
	return out
}

// contradictionIssues flags specs sharing a normalised name with differing values.
// Groups are reported in order of first appearance.
func contradictionIssues(sheet *domain.FactSheet) []domain.VerifierIssue {
	var order []string
	values := make(map[string][]string)
	for _, s := range sheet.KeySpecs {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			continue
		}
		if _, ok := values[name]; !ok {
			order = append(order, name)
		}
		values[name] = append(values[name], strings.TrimSpace(s.Value+s.Unit+s.Conditions))
	}

	var out []domain.VerifierIssue
	for _, name := range order {
		vals := values[name]
		if !distinct(vals) {
			continue
		}
		quoted := make([]string, 0, 5)
		for i, v := range vals {
			if i == 5 {
				break
			}
			quoted = append(quoted, "'"+v+"'")
		}
		out = append(out, domain.VerifierIssue{
			FieldPath: "key_specs",
			Message:   fmt.Sprintf("Contradictory spec '%s': multiple values (%s)", name, strings.Join(quoted, ", ")),
		})
	}
	return out
}

// distinct reports whether vals holds more than one value.
func distinct(vals []string) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return true
		}
	}
	return false
}

func missingUnitWarnings(sheet *domain.FactSheet) []domain.VerifierIssue {
	var out []domain.VerifierIssue
	for i, s := range sheet.KeySpecs {
		if s.Name == "" || s.Value == "" {
			continue
		}
		val := strings.TrimSpace(s.Value)
		if !numericRange.MatchString(val) && !numericBare.MatchString(val) {
			continue
		}
		if s.Unit != "" || s.Conditions != "" {
			continue
		}
		name := strings.ToLower(s.Name)
		for _, q := range physicalQuantities {
			if strings.Contains(name, q) {
				path := fmt.Sprintf("key_specs[%d]", i)
				out = append(out, domain.VerifierIssue{
					FieldPath: path,
					Message:   fmt.Sprintf("%s '%s': value '%s' likely needs unit or conditions", path, s.Name, s.Value),
				})
				break
			}
		}
	}
	return out
}

// unsupportedRecommendations blocks generated findings that have neither
// evidence nor an affirmative critic verdict.
func unsupportedRecommendations(findings []domain.AuditFinding) []domain.VerifierIssue {
	var out []domain.VerifierIssue
	for _, f := range findings {
		if f.IsGrounded || len(f.Evidence) > 0 {
			continue
		}
		switch {
		case !f.CriticVerified:
			out = append(out, domain.VerifierIssue{
				FieldPath: f.FindingID,
				Message: fmt.Sprintf("Recommendation '%s' (finding %s) not supported by evidence or critic",
					f.Title, f.FindingID),
			})
		case strings.Contains(strings.ToLower(f.CriticNote), "not supported"):
			out = append(out, domain.VerifierIssue{
				FieldPath: f.FindingID,
				Message: fmt.Sprintf("Recommendation '%s' (finding %s) critic indicates not supported",
					f.Title, f.FindingID),
			})
		}
	}
	return out
}

// suggestQueries proposes one follow-up retrieval query per empty field.
func suggestQueries(sheet *domain.FactSheet) []string {
	q := []string{}
	add := func(missing bool, query string) {
		if missing {
			q = append(q, query)
		}
	}
	add(domain.IsMissing(sheet.ProductName), "product name and model identifier")
	add(domain.IsMissing(sheet.ProductCategory), "product category and market positioning")
	add(len(sheet.PrimaryUseCases) == 0, "primary use cases and applications")
	add(len(sheet.TargetBuyerRoles) == 0, "target buyer roles and personas")
	add(len(sheet.KeySpecs) == 0, "key technical specifications dimensions")
	add(len(sheet.Constraints) == 0, "constraints limitations restrictions")
	add(len(sheet.Differentiators) == 0, "differentiators unique selling points")
	add(len(sheet.CertificationsStandards) == 0, "certifications standards compliance")
	add(len(sheet.IntegrationsInterfaces) == 0, "integrations interfaces APIs connectivity")
	add(len(sheet.MaintenanceCalibration) == 0, "maintenance calibration service requirements")
	return q
}

// VerifierService runs the verifier over stored artifacts and persists its report.
type VerifierService struct {
	verifier  *Verifier
	artifacts driven.ArtifactStore
}

// NewVerifierService creates a verifier service.
func NewVerifierService(verifier *Verifier, artifacts driven.ArtifactStore) *VerifierService {
	return &VerifierService{verifier: verifier, artifacts: artifacts}
}

// Verify loads the product's fact sheet and, when present, its audit findings.
func (s *VerifierService) Verify(ctx context.Context, productID string) (*domain.VerifierReport, error) {
	var fs domain.FactSheetArtifact
	if err := loadArtifact(ctx, s.artifacts, productID, domain.ArtifactFactSheet, &fs); err != nil {
		return nil, err
	}

	var findings []domain.AuditFinding
	var audit domain.AuditArtifact
	err := loadArtifact(ctx, s.artifacts, productID, domain.ArtifactAudit, &audit)
	switch {
	case err == nil:
		findings = audit.Findings
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	report := s.verifier.Verify(fs.Sheet, findings)
	if err := saveArtifact(ctx, s.artifacts, productID, domain.ArtifactVerifier, report); err != nil {
		return nil, err
	}
	return report, nil
}
