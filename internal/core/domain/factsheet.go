package domain

import "strings"

// NotFound is the sentinel for a fact that the sources do not state.
// It is distinct from the empty string.
const NotFound = "NOT_FOUND"

// IsMissing reports whether a scalar fact is empty or the NotFound sentinel.
func IsMissing(v string) bool {
	s := strings.TrimSpace(v)
	return s == "" || strings.EqualFold(s, NotFound)
}

// KeySpec is one key specification with its evidence.
type KeySpec struct {
	Name             string   `json:"name"`
	Value            string   `json:"value"`
	Unit             string   `json:"unit"`
	Conditions       string   `json:"conditions"`
	EvidenceChunkIDs []string `json:"evidence_chunk_ids"`
}

// Constraint is a limitation or restriction with evidence.
type Constraint struct {
	Statement        string   `json:"statement"`
	EvidenceChunkIDs []string `json:"evidence_chunk_ids"`
}

// Differentiator is a unique selling point with evidence.
type Differentiator struct {
	Statement        string   `json:"statement"`
	EvidenceChunkIDs []string `json:"evidence_chunk_ids"`
}

// FactSheet is the structured, evidence-backed representation of a product.
// Scalar fields hold a value or NotFound; list fields default to empty.
type FactSheet struct {
	ProductName             string           `json:"product_name"`
	ProductCategory         string           `json:"product_category"`
	PrimaryUseCases         []string         `json:"primary_use_cases"`
	TargetBuyerRoles        []string         `json:"target_buyer_roles"`
	KeySpecs                []KeySpec        `json:"key_specs"`
	Constraints             []Constraint     `json:"constraints"`
	Differentiators         []Differentiator `json:"differentiators"`
	CertificationsStandards []string         `json:"certifications_standards"`
	IntegrationsInterfaces  []string         `json:"integrations_interfaces"`
	MaintenanceCalibration  []string         `json:"maintenance_calibration"`
	SourceCoverageSummary   string           `json:"source_coverage_summary"`
}

// NewFactSheet returns a fact sheet with every field at its default.
func NewFactSheet() *FactSheet {
	return &FactSheet{
		ProductName:             NotFound,
		ProductCategory:         NotFound,
		PrimaryUseCases:         []string{},
		TargetBuyerRoles:        []string{},
		KeySpecs:                []KeySpec{},
		Constraints:             []Constraint{},
		Differentiators:         []Differentiator{},
		CertificationsStandards: []string{},
		IntegrationsInterfaces:  []string{},
		MaintenanceCalibration:  []string{},
		SourceCoverageSummary:   NotFound,
	}
}

// Provenance maps each fact-sheet field to the chunk ids that support it.
type Provenance map[string][]string

// Provenance builds the field to evidence map from nested evidence ids.
// Scalar and plain-list fields carry no per-item evidence and map to empty lists.
func (f *FactSheet) Provenance() Provenance {
	p := Provenance{
		"product_name":             {},
		"product_category":         {},
		"primary_use_cases":        {},
		"target_buyer_roles":       {},
		"certifications_standards": {},
		"integrations_interfaces":  {},
		"maintenance_calibration":  {},
		"source_coverage_summary":  {},
	}

	var specs, constraints, diffs []string
	for _, s := range f.KeySpecs {
		specs = append(specs, s.EvidenceChunkIDs...)
	}
	for _, c := range f.Constraints {
		constraints = append(constraints, c.EvidenceChunkIDs...)
	}
	for _, d := range f.Differentiators {
		diffs = append(diffs, d.EvidenceChunkIDs...)
	}
	p["key_specs"] = UniqueStrings(specs)
	p["constraints"] = UniqueStrings(constraints)
	p["differentiators"] = UniqueStrings(diffs)
	return p
}

// EvidenceViolation is a populated fact-sheet item with no evidence.
type EvidenceViolation struct {
	FieldPath string `json:"field_path"`
	Message   string `json:"message"`
}

// EvidenceViolations returns every populated item that lacks evidence_chunk_ids.
// It never fails; callers decide whether violations are fatal.
func (f *FactSheet) EvidenceViolations() []EvidenceViolation {
	var out []EvidenceViolation
	for i, s := range f.KeySpecs {
		if (s.Name != "" || s.Value != "") && len(s.EvidenceChunkIDs) == 0 {
			out = append(out, EvidenceViolation{
				FieldPath: indexPath("key_specs", i),
				Message:   indexPath("key_specs", i) + " has name/value but empty evidence_chunk_ids",
			})
		}
	}
	for i, c := range f.Constraints {
		if c.Statement != "" && len(c.EvidenceChunkIDs) == 0 {
			out = append(out, EvidenceViolation{
				FieldPath: indexPath("constraints", i),
				Message:   indexPath("constraints", i) + " has statement but empty evidence_chunk_ids",
			})
		}
	}
	for i, d := range f.Differentiators {
		if d.Statement != "" && len(d.EvidenceChunkIDs) == 0 {
			out = append(out, EvidenceViolation{
				FieldPath: indexPath("differentiators", i),
				Message:   indexPath("differentiators", i) + " has statement but empty evidence_chunk_ids",
			})
		}
	}
	return out
}

// FactSheetArtifact is the persisted extraction result for a product.
type FactSheetArtifact struct {
	Sheet      *FactSheet          `json:"factsheet"`
	Provenance Provenance          `json:"provenance"`
	Violations []EvidenceViolation `json:"evidence_violations"`
	Attempts   int                 `json:"attempt_count"`
}

// UniqueStrings drops empty strings and duplicates, preserving first-seen order.
func UniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
