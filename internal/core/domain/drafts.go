package domain

import (
	"fmt"
	"time"
)

// Evidence points a generated claim back at source chunks.
// It is always derived from chunk ids, never authored by a model.
type Evidence struct {
	ChunkIDs        []string `json:"chunk_ids"`
	SourceFile      string   `json:"source_file"`
	PageNumbers     []int    `json:"page_numbers"`
	VerbatimExcerpt string   `json:"verbatim_excerpt"`
}

// BenefitItem is one landing-page benefit.
type BenefitItem struct {
	Headline    string     `json:"headline"`
	Description string     `json:"description"`
	IsFactual   bool       `json:"is_factual"`
	Evidence    []Evidence `json:"evidence"`
}

// SpecExplained is a numeric spec with a plain-language explanation.
// Only specs present in the fact sheet are accepted.
type SpecExplained struct {
	SpecName      string     `json:"spec_name"`
	SpecValue     string     `json:"spec_value"`
	Unit          string     `json:"unit"`
	PlainLanguage string     `json:"plain_language"`
	Evidence      []Evidence `json:"evidence"`
}

// LandingPageDraft is a problem-first landing page.
type LandingPageDraft struct {
	ProblemStatement string          `json:"problem_statement"`
	SolutionOverview string          `json:"solution_overview"`
	Benefits         []BenefitItem   `json:"benefits"`
	HowItWorks       string          `json:"how_it_works"`
	SpecsExplained   []SpecExplained `json:"specs_explained"`
	CallToAction     string          `json:"call_to_action"`
}

// FAQItem is one question and answer. IsFactual false marks editorial answers.
type FAQItem struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	IsFactual bool       `json:"is_factual"`
	Evidence  []Evidence `json:"evidence"`
}

// UseCasePageDraft is one use-case page. IsSuggested marks use cases not stated in the sources.
type UseCasePageDraft struct {
	Title               string     `json:"title"`
	Slug                string     `json:"slug"`
	IsSuggested         bool       `json:"is_suggested"`
	ProblemContext      string     `json:"problem_context"`
	SolutionFit         string     `json:"solution_fit"`
	Benefits            []string   `json:"benefits"`
	ImplementationNotes string     `json:"implementation_notes"`
	Evidence            []Evidence `json:"evidence"`
}

// ComparisonDimension compares the product with a generic alternative on one axis.
type ComparisonDimension struct {
	Dimension          string     `json:"dimension"`
	ThisProduct        string     `json:"this_product"`
	GenericAlternative string     `json:"generic_alternative"`
	Evidence           []Evidence `json:"evidence"`
}

// ComparisonDraft is one comparison page.
type ComparisonDraft struct {
	Title       string                `json:"title"`
	BestFor     []string              `json:"best_for"`
	NotIdealFor []string              `json:"not_ideal_for"`
	Dimensions  []ComparisonDimension `json:"dimensions"`
}

// SEOHeading is an h1 or h2 heading suggestion.
type SEOHeading struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// SEODraft holds search metadata for the product page.
type SEODraft struct {
	TitleTag        string         `json:"title_tag"`
	MetaDescription string         `json:"meta_description"`
	Headings        []SEOHeading   `json:"headings"`
	ProductJSONLD   map[string]any `json:"product_jsonld"`
}

// ContentDrafts is the full bundle of generated sections for one product.
type ContentDrafts struct {
	LandingPage  LandingPageDraft   `json:"landing_page"`
	FAQ          []FAQItem          `json:"faq"`
	UseCasePages []UseCasePageDraft `json:"use_case_pages"`
	Comparisons  []ComparisonDraft  `json:"comparisons"`
	SEO          SEODraft           `json:"seo"`
}

// NewContentDrafts returns an empty bundle with non-nil collections.
func NewContentDrafts() *ContentDrafts {
	return &ContentDrafts{
		LandingPage: LandingPageDraft{
			Benefits:       []BenefitItem{},
			SpecsExplained: []SpecExplained{},
		},
		FAQ:          []FAQItem{},
		UseCasePages: []UseCasePageDraft{},
		Comparisons:  []ComparisonDraft{},
		SEO: SEODraft{
			Headings:      []SEOHeading{},
			ProductJSONLD: map[string]any{},
		},
	}
}

// GuardrailCategory classifies a guardrail violation.
type GuardrailCategory string

// Guardrail categories.
const (
	GuardrailUngroundedNumericSpec   GuardrailCategory = "ungrounded_numeric_spec"
	GuardrailUngroundedCertification GuardrailCategory = "ungrounded_certification"
	GuardrailCompetitorBrand         GuardrailCategory = "competitor_brand"
	GuardrailUngroundedPricing       GuardrailCategory = "ungrounded_pricing"
)

// GuardrailSeverity describes what the validator did about a violation.
type GuardrailSeverity string

// Guardrail severities.
const (
	GuardrailRemoved  GuardrailSeverity = "removed"
	GuardrailReplaced GuardrailSeverity = "replaced"
	GuardrailFlagged  GuardrailSeverity = "flagged"
)

// GuardrailWarning records one violation found and repaired by the guardrail pass.
type GuardrailWarning struct {
	Category        GuardrailCategory `json:"category"`
	Severity        GuardrailSeverity `json:"severity"`
	FieldPath       string            `json:"field_path"`
	OriginalSnippet string            `json:"original_snippet"`
	Replacement     string            `json:"replacement"`
	Detail          string            `json:"detail"`
}

// TokenUsage counts tokens reported by the completion provider, when available.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerationMetadata describes how a drafts bundle was produced.
type GenerationMetadata struct {
	ProductID         string             `json:"product_id"`
	Tone              Tone               `json:"tone"`
	Length            Length             `json:"length"`
	Audience          Audience           `json:"audience"`
	Provider          string             `json:"llm_provider"`
	Model             string             `json:"llm_model"`
	TokenUsage        TokenUsage         `json:"token_usage"`
	GeneratedAt       time.Time          `json:"generated_at"`
	DurationSeconds   float64            `json:"generation_duration_s"`
	GuardrailWarnings []GuardrailWarning `json:"guardrail_warnings"`
	VerifierBlocked   bool               `json:"verifier_blocked"`
}

// DraftsArtifact is the latest drafts bundle persisted for a product.
type DraftsArtifact struct {
	Drafts   *ContentDrafts      `json:"drafts"`
	Metadata *GenerationMetadata `json:"metadata"`
}

func indexPath(field string, i int) string {
	return fmt.Sprintf("%s[%d]", field, i)
}
