package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/logger"
)

// Section names, also used as keys of sectionQueries.
const (
	SectionLanding     = "landing"
	SectionFAQ         = "faq"
	SectionUseCases    = "use_cases"
	SectionComparisons = "comparisons"
	SectionSEO         = "seo"
)

// sectionQueries are the retrieval topics each section's context is built from.
var sectionQueries = map[string][]string{
	SectionLanding: {
		"product overview description value proposition",
		"key specifications accuracy range performance",
		"working principle technology how it works",
		"applications use cases industries",
		"benefits advantages strengths",
		"operating environment conditions",
	},
	SectionFAQ: {
		"product overview what is this",
		"specifications accuracy range precision",
		"installation setup mounting wiring",
		"maintenance calibration service intervals",
		"compatibility integration protocols interfaces",
		"certifications compliance standards",
		"constraints limitations environmental limits",
		"troubleshooting diagnostics error",
		"applications use cases",
	},
	SectionUseCases: {
		"use cases applications industries deployment",
		"process monitoring quality control",
		"measurement requirements constraints",
		"environmental conditions operating ranges",
		"performance accuracy specifications",
		"target users buyer personas roles",
	},
	SectionComparisons: {
		"product variants models comparison",
		"specifications comparison table",
		"advantages differentiators unique",
		"constraints limitations not suitable",
		"operating range limits environmental",
	},
}

var sectionPrompts = map[string]string{
	SectionLanding:     driven.PromptLanding,
	SectionFAQ:         driven.PromptFAQ,
	SectionUseCases:    driven.PromptUseCases,
	SectionComparisons: driven.PromptComparisons,
	SectionSEO:         driven.PromptSEO,
}

// SectionRequest is the shared input of every section generator.
type SectionRequest struct {
	ProductID string
	Sheet     *domain.FactSheet
	Params    domain.GenerationParams

	summary string
	specs   specSet
}

// NewSectionRequest prepares the fact-sheet summary and spec set once per bundle.
func NewSectionRequest(productID string, sheet *domain.FactSheet, params domain.GenerationParams) *SectionRequest {
	return &SectionRequest{
		ProductID: productID,
		Sheet:     sheet,
		Params:    params.WithDefaults(),
		summary:   factSheetSummary(sheet),
		specs:     newSpecSet(sheet),
	}
}

// SectionGenerator produces the individual draft sections. Each call
// builds its own retrieval context, so citations are only ever resolved
// against the passages that section's prompt actually contained.
type SectionGenerator struct {
	builder *ContextBuilder
	prompts driven.PromptStore
}

// NewSectionGenerator creates a section generator.
func NewSectionGenerator(builder *ContextBuilder, prompts driven.PromptStore) *SectionGenerator {
	return &SectionGenerator{builder: builder, prompts: prompts}
}

// run retrieves context for section (unless it has no query set), renders
// its prompt, calls the model and decodes the response. An empty response
// decodes to nil.
func (g *SectionGenerator) run(
	ctx context.Context, llm driven.CompletionService, section string, req *SectionRequest,
) (any, *CitationResolver, error) {
	rc := newRetrievalContext()
	if queries, ok := sectionQueries[section]; ok {
		built, err := g.builder.Build(ctx, req.ProductID, queries)
		if err != nil {
			return nil, nil, fmt.Errorf("build %s context: %w", section, err)
		}
		rc = built
	}

	prompt, err := renderPrompt(g.prompts, sectionPrompts[section], sectionPromptData{
		Tone:             string(req.Params.Tone),
		Length:           string(req.Params.Length),
		Audience:         string(req.Params.Audience),
		FactSheetSummary: req.summary,
		Context:          rc.Text,
	})
	if err != nil {
		return nil, nil, err
	}

	raw, err := llm.Complete(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("complete %s prompt: %w", section, err)
	}
	resolver := NewCitationResolver(rc)
	if strings.TrimSpace(raw) == "" {
		logger.Warn("Empty %s response; section left empty", section)
		return nil, resolver, nil
	}

	tree, err := decodeTree(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s response: %w", section, err)
	}
	return tree, resolver, nil
}

// Landing generates the landing-page draft. Explained specs whose
// (name, value) pair is not stated by the fact sheet are dropped.
func (g *SectionGenerator) Landing(
	ctx context.Context, llm driven.CompletionService, req *SectionRequest,
) (domain.LandingPageDraft, error) {
	draft := domain.NewContentDrafts().LandingPage

	tree, cr, err := g.run(ctx, llm, SectionLanding, req)
	if err != nil {
		return draft, err
	}
	data := asObject(tree)
	if data == nil {
		return draft, nil
	}

	draft.ProblemStatement = cr.Scrub(str(data, "problem_statement"))
	draft.SolutionOverview = cr.Scrub(str(data, "solution_overview"))
	draft.HowItWorks = cr.Scrub(str(data, "how_it_works"))
	draft.CallToAction = cr.Scrub(str(data, "call_to_action"))

	for _, b := range objects(data["benefits"]) {
		desc, ev := cr.ResolveText(strList(b, "cited_chunk_ids"), str(b, "description"))
		draft.Benefits = append(draft.Benefits, domain.BenefitItem{
			Headline:    cr.Scrub(str(b, "headline")),
			Description: desc,
			IsFactual:   boolOr(b, "is_factual", true),
			Evidence:    ev,
		})
	}

	for _, s := range objects(data["specs_explained"]) {
		name, value := str(s, "spec_name"), str(s, "spec_value")
		if !req.specs.Has(name, value) {
			logger.Warn("Dropping ungrounded spec: %s = %s", name, value)
			continue
		}
		plain, ev := cr.ResolveText(strList(s, "cited_chunk_ids"), str(s, "plain_language"))
		draft.SpecsExplained = append(draft.SpecsExplained, domain.SpecExplained{
			SpecName:      name,
			SpecValue:     value,
			Unit:          str(s, "unit"),
			PlainLanguage: plain,
			Evidence:      ev,
		})
	}
	return draft, nil
}

// FAQ generates question and answer items.
func (g *SectionGenerator) FAQ(
	ctx context.Context, llm driven.CompletionService, req *SectionRequest,
) ([]domain.FAQItem, error) {
	items := []domain.FAQItem{}

	tree, cr, err := g.run(ctx, llm, SectionFAQ, req)
	if err != nil {
		return items, err
	}
	for _, item := range objects(tree) {
		answer, ev := cr.ResolveText(strList(item, "cited_chunk_ids"), str(item, "answer"))
		items = append(items, domain.FAQItem{
			Question:  cr.Scrub(str(item, "question")),
			Answer:    answer,
			IsFactual: boolOr(item, "is_factual", true),
			Evidence:  ev,
		})
	}
	return items, nil
}

// UseCases generates use-case pages. Citations are collected from every
// prose field of the page.
func (g *SectionGenerator) UseCases(
	ctx context.Context, llm driven.CompletionService, req *SectionRequest,
) ([]domain.UseCasePageDraft, error) {
	pages := []domain.UseCasePageDraft{}

	tree, cr, err := g.run(ctx, llm, SectionUseCases, req)
	if err != nil {
		return pages, err
	}
	for _, item := range objects(tree) {
		page := domain.UseCasePageDraft{
			Title:               cr.Scrub(str(item, "title")),
			Slug:                str(item, "slug"),
			IsSuggested:         boolOr(item, "is_suggested", false),
			ProblemContext:      cr.Scrub(str(item, "problem_context")),
			SolutionFit:         cr.Scrub(str(item, "solution_fit")),
			ImplementationNotes: cr.Scrub(str(item, "implementation_notes")),
			Benefits:            []string{},
		}
		for _, b := range strList(item, "benefits") {
			page.Benefits = append(page.Benefits, cr.Scrub(b))
		}
		if page.Slug == "" {
			page.Slug = slugify(page.Title)
		}

		texts := append([]string{page.ProblemContext, page.SolutionFit, page.ImplementationNotes}, page.Benefits...)
		page.Evidence = cr.Resolve(cr.Collect(strList(item, "cited_chunk_ids"), texts...))
		pages = append(pages, page)
	}
	return pages, nil
}

// Comparisons generates comparison drafts against generic alternatives.
func (g *SectionGenerator) Comparisons(
	ctx context.Context, llm driven.CompletionService, req *SectionRequest,
) ([]domain.ComparisonDraft, error) {
	out := []domain.ComparisonDraft{}

	tree, cr, err := g.run(ctx, llm, SectionComparisons, req)
	if err != nil {
		return out, err
	}
	for _, item := range objects(tree) {
		cmp := domain.ComparisonDraft{
			Title:       cr.Scrub(str(item, "title")),
			BestFor:     scrubAll(cr, strList(item, "best_for")),
			NotIdealFor: scrubAll(cr, strList(item, "not_ideal_for")),
			Dimensions:  []domain.ComparisonDimension{},
		}
		for _, d := range objects(item["dimensions"]) {
			this, ev := cr.ResolveText(strList(d, "cited_chunk_ids"), str(d, "this_product"))
			cmp.Dimensions = append(cmp.Dimensions, domain.ComparisonDimension{
				Dimension:          cr.Scrub(str(d, "dimension")),
				ThisProduct:        this,
				GenericAlternative: cr.Scrub(str(d, "generic_alternative")),
				Evidence:           ev,
			})
		}
		out = append(out, cmp)
	}
	return out, nil
}

// SEO generates search metadata from the fact sheet alone; it retrieves no
// passages, so any inline citation in its output is removed.
func (g *SectionGenerator) SEO(
	ctx context.Context, llm driven.CompletionService, req *SectionRequest,
) (domain.SEODraft, error) {
	draft := domain.NewContentDrafts().SEO

	tree, cr, err := g.run(ctx, llm, SectionSEO, req)
	if err != nil {
		return draft, err
	}
	data := asObject(tree)
	if data == nil {
		return draft, nil
	}

	draft.TitleTag = cr.Scrub(str(data, "title_tag"))
	draft.MetaDescription = cr.Scrub(str(data, "meta_description"))
	for _, h := range objects(data["headings"]) {
		tag := str(h, "tag")
		if tag != "h1" && tag != "h2" {
			tag = "h2"
		}
		draft.Headings = append(draft.Headings, domain.SEOHeading{Tag: tag, Text: cr.Scrub(str(h, "text"))})
	}
	if ld := asObject(data["product_jsonld"]); ld != nil {
		draft.ProductJSONLD = ld
	}
	return draft, nil
}

func scrubAll(cr *CitationResolver, in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = cr.Scrub(s)
	}
	return out
}

// slugify lowercases s and joins its alphanumeric runs with hyphens.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// specSet holds the (name, value) pairs of a fact sheet's key specs.
// Names compare case-insensitively; values compare exactly after trimming.
type specSet map[string]struct{}

func specKey(name, value string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.TrimSpace(value)
}

func newSpecSet(sheet *domain.FactSheet) specSet {
	set := specSet{}
	if sheet == nil {
		return set
	}
	for _, s := range sheet.KeySpecs {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Value) == "" {
			continue
		}
		set[specKey(s.Name, s.Value)] = struct{}{}
	}
	return set
}

// Has reports whether name = value is one of the fact sheet's key specs.
func (s specSet) Has(name, value string) bool {
	_, ok := s[specKey(name, value)]
	return ok
}

// maxSummarySpecs caps the key specs listed in a prompt's fact summary.
const maxSummarySpecs = 15

// factSheetSummary condenses the fact sheet for section prompts. Lines for
// empty lists are omitted.
func factSheetSummary(sheet *domain.FactSheet) string {
	if sheet == nil {
		sheet = domain.NewFactSheet()
	}
	lines := []string{
		"Product: " + orNotFound(sheet.ProductName),
		"Category: " + orNotFound(sheet.ProductCategory),
	}

	var specs []string
	for _, s := range sheet.KeySpecs {
		if len(specs) == maxSummarySpecs {
			break
		}
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Value) == "" {
			continue
		}
		spec := strings.TrimSpace(s.Name) + ": " + strings.TrimSpace(s.Value)
		if u := strings.TrimSpace(s.Unit); u != "" {
			spec += " " + u
		}
		specs = append(specs, spec)
	}
	if len(specs) > 0 {
		lines = append(lines, "Key specs: "+strings.Join(specs, "; "))
	}
	if certs := domain.UniqueStrings(sheet.CertificationsStandards); len(certs) > 0 {
		lines = append(lines, "Certifications: "+strings.Join(certs, ", "))
	}
	return strings.Join(lines, "\n")
}

func orNotFound(v string) string {
	if domain.IsMissing(v) {
		return domain.NotFound
	}
	return strings.TrimSpace(v)
}
