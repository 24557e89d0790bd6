package domain

// FindingSeverity ranks audit findings.
type FindingSeverity string

// Finding severities, most severe first.
const (
	SeverityCritical FindingSeverity = "critical"
	SeverityHigh     FindingSeverity = "high"
	SeverityMedium   FindingSeverity = "medium"
	SeverityLow      FindingSeverity = "low"
	SeverityInfo     FindingSeverity = "info"
)

// Rank returns the sort order of the severity (0 is most severe).
func (s FindingSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// FindingCategory groups audit findings.
type FindingCategory string

// Finding categories.
const (
	CategoryCompleteness    FindingCategory = "completeness"
	CategoryStructure       FindingCategory = "structure"
	CategoryConsistency     FindingCategory = "consistency"
	CategoryDiscoverability FindingCategory = "discoverability"
	CategoryAccuracy        FindingCategory = "accuracy"
)

// AuditFinding is one gap or recommendation produced by the audit stage.
// Generated recommendations have IsGrounded false and must be confirmed
// by evidence or the critic before the verifier lets them through.
type AuditFinding struct {
	FindingID      string          `json:"finding_id"`
	Category       FindingCategory `json:"category"`
	Severity       FindingSeverity `json:"severity"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Evidence       []Evidence      `json:"evidence"`
	IsGrounded     bool            `json:"is_grounded"`
	Recommendation string          `json:"recommendation,omitempty"`
	CriticVerified bool            `json:"critic_verified"`
	CriticNote     string          `json:"critic_note,omitempty"`
}

// CheckResult is the outcome of one deterministic source-quality check.
type CheckResult struct {
	CheckID          string   `json:"check_id"`
	Name             string   `json:"name"`
	Score            int      `json:"score"`
	MaxScore         int      `json:"max_score"`
	Details          string   `json:"details"`
	EvidenceChunkIDs []string `json:"evidence_chunk_ids"`
	Recommendations  []string `json:"recommendations"`
}

// ScoreDimension is one weighted dimension of a Scorecard, scored 0 to MaxScore.
type ScoreDimension struct {
	ID       string  `json:"dimension_id"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Score    int     `json:"score"`
	MaxScore int     `json:"max_score"`
	Details  string  `json:"details"`
}

// Scorecard grades how well the source material describes the product.
// OverallScore is the weighted mean of the dimensions on a 0-100 scale.
type Scorecard struct {
	OverallScore float64          `json:"overall_score"`
	Grade        string           `json:"grade"`
	Dimensions   []ScoreDimension `json:"dimensions"`
}

// AuditArtifact is the persisted audit result for a product.
type AuditArtifact struct {
	Findings  []AuditFinding  `json:"findings"`
	Scorecard *Scorecard      `json:"scorecard,omitempty"`
	Checks    []CheckResult   `json:"deterministic_checks"`
	Verifier  *VerifierReport `json:"verifier_report,omitempty"`
}
