// Package guardrail enforces grounding over generated content drafts.
//
// The validator runs once over a complete drafts bundle, in place. Numeric
// specs, IP ratings, certifications and pricing that cannot be traced to the
// fact sheet or the source text are replaced with placeholders, and possible
// competitor brands are redacted from comparison alternatives. Every
// replacement is reported as a domain.GuardrailWarning; nothing is raised as
// an error. Running the validator again over its own output yields no
// further warnings.
package guardrail

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/logger"
)

// Validator applies compiled rule tables to drafts.
type Validator struct {
	rules *ruleSet
}

// New compiles rules into a validator.
func New(rules *Rules) (*Validator, error) {
	rs, err := rules.compile()
	if err != nil {
		return nil, err
	}
	return &Validator{rules: rs}, nil
}

// NewDefault returns a validator over the bundled rule tables.
func NewDefault() (*Validator, error) {
	r, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return New(r)
}

// Run scans every text field of drafts, rewriting ungrounded claims in place.
// sourceText is a sample of source chunk text used to ground pricing and brands.
func (v *Validator) Run(drafts *domain.ContentDrafts, sheet *domain.FactSheet, sourceText string) []domain.GuardrailWarning {
	s := v.newScan(sheet, sourceText)

	s.landing(&drafts.LandingPage)
	s.faq(drafts.FAQ)
	s.useCases(drafts.UseCasePages)
	s.comparisons(drafts.Comparisons)
	s.seo(&drafts.SEO)

	if len(s.warnings) == 0 {
		logger.Info("Guardrail pass complete: no warnings, all claims grounded")
		return []domain.GuardrailWarning{}
	}
	counts := map[domain.GuardrailCategory]int{}
	for _, w := range s.warnings {
		counts[w.Category]++
	}
	logger.Info("Guardrail pass complete: %d warning(s) (numeric=%d, cert=%d, brand=%d, pricing=%d)",
		len(s.warnings),
		counts[domain.GuardrailUngroundedNumericSpec],
		counts[domain.GuardrailUngroundedCertification],
		counts[domain.GuardrailCompetitorBrand],
		counts[domain.GuardrailUngroundedPricing],
	)
	return s.warnings
}

// allowedNumeric is one entry of the numeric allow-set in both spaced and compact forms.
type allowedNumeric struct {
	norm    string
	compact string
}

// scan holds the allow-sets and warnings of a single Run.
type scan struct {
	rules       *ruleSet
	numericSet  map[string]struct{}
	numerics    []allowedNumeric
	certs       []string
	productName string
	source      string
	warnings    []domain.GuardrailWarning
}

func (v *Validator) newScan(sheet *domain.FactSheet, sourceText string) *scan {
	s := &scan{
		rules:       v.rules,
		numericSet:  map[string]struct{}{},
		productName: normalize(sheet.ProductName),
		source:      strings.ToLower(sourceText),
	}

	for _, spec := range sheet.KeySpecs {
		if spec.Value == "" {
			continue
		}
		s.allowNumeric(spec.Value + " " + spec.Unit)
		s.allowNumeric(spec.Value)
		s.allowNumeric(spec.Value + spec.Unit)
	}

	var texts []string
	for _, c := range sheet.Constraints {
		texts = append(texts, c.Statement)
	}
	for _, d := range sheet.Differentiators {
		texts = append(texts, d.Statement)
	}
	texts = append(texts, sheet.MaintenanceCalibration...)
	texts = append(texts, sheet.IntegrationsInterfaces...)
	for _, text := range texts {
		for _, m := range v.rules.numeric.FindAllString(text, -1) {
			s.allowNumeric(s.trimBoundary(m))
		}
		for _, t := range v.rules.tokens {
			if t.Grounding != GroundNumeric {
				continue
			}
			for _, m := range t.re.FindAllString(text, -1) {
				s.allowNumeric(m)
			}
		}
	}

	for _, c := range sheet.CertificationsStandards {
		if n := normalize(c); n != "" {
			s.certs = append(s.certs, n)
		}
	}
	return s
}

func (s *scan) allowNumeric(raw string) {
	n := normalize(raw)
	if n == "" {
		return
	}
	if _, ok := s.numericSet[n]; ok {
		return
	}
	s.numericSet[n] = struct{}{}
	s.numerics = append(s.numerics, allowedNumeric{norm: n, compact: compact(n)})
}

func (s *scan) trimBoundary(m string) string {
	if loc := s.rules.boundaryTail.FindStringIndex(m); loc != nil {
		return m[:loc[0]]
	}
	return m
}

// numericGrounded accepts exact matches and substring matches in either
// direction, so "±0.1 °C" is grounded by "±0.1 °C at 25 °C" and vice versa.
// A substring only counts when it is not cut out of a longer number or
// word, so a value of "1" does not ground "100 bar" or "±0.1 °C".
func (s *scan) numericGrounded(match string) bool {
	norm := normalize(match)
	c := compact(norm)
	if norm == "" {
		return true
	}
	if _, ok := s.numericSet[norm]; ok {
		return true
	}
	if _, ok := s.numericSet[c]; ok {
		return true
	}
	for _, a := range s.numerics {
		if containsToken(a.compact, c) || containsToken(c, a.compact) {
			return true
		}
		if containsToken(a.norm, norm) || containsToken(norm, a.norm) {
			return true
		}
	}
	return false
}

// containsToken reports whether needle occurs in haystack without extending
// a digit run or a letter run on either side.
func containsToken(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(needle)
	last, _ := utf8.DecodeLastRuneInString(needle)
	for from := 0; from < len(haystack); {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		before, _ := utf8.DecodeLastRuneInString(haystack[:start])
		after, _ := utf8.DecodeRuneInString(haystack[end:])
		if (start == 0 || !sameRun(before, first)) && (end == len(haystack) || !sameRun(last, after)) {
			return true
		}
		from = start + 1
	}
	return false
}

// sameRun reports whether a and b would read as one number or one word.
func sameRun(edge, next rune) bool {
	switch {
	case isNumberRune(edge):
		return isNumberRune(next)
	case unicode.IsLetter(edge):
		return unicode.IsLetter(next)
	}
	return false
}

func isNumberRune(r rune) bool {
	return unicode.IsDigit(r) || r == '.' || r == ','
}

func (s *scan) certGrounded(match string) bool {
	norm := normalize(match)
	if norm == "" {
		return true
	}
	for _, a := range s.certs {
		if strings.Contains(a, norm) || strings.Contains(norm, a) {
			return true
		}
	}
	return false
}

func (s *scan) sourceGrounded(match string) bool {
	return s.source != "" && strings.Contains(s.source, strings.ToLower(match))
}

// citationSpan matches an inline chunk citation such as [pdf-ab01cd-p1-c0].
var citationSpan = regexp.MustCompile(`\[(?:pdf|url)-[^\]]+\]`)

// masked applies fn to text with inline citations swapped for digit-free
// markers, then puts the citations back.
func masked(text string, fn func(string) string) string {
	spans := citationSpan.FindAllString(text, -1)
	if len(spans) == 0 {
		return fn(text)
	}
	n := 0
	out := fn(citationSpan.ReplaceAllStringFunc(text, func(string) string {
		m := citationMarker(n)
		n++
		return m
	}))
	for i, span := range spans {
		out = strings.Replace(out, citationMarker(i), span, 1)
	}
	return out
}

func citationMarker(i int) string {
	var b strings.Builder
	b.WriteRune('\uE000')
	for {
		b.WriteByte(byte('a' + i%26))
		i /= 26
		if i == 0 {
			break
		}
	}
	b.WriteRune('\uE001')
	return b.String()
}

// clean runs the numeric pass and every token rule over one text field.
// Inline citations are left untouched.
func (s *scan) clean(text, path string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	return masked(text, func(text string) string { return s.cleanText(text, path) })
}

func (s *scan) cleanText(text, path string) string {
	result := s.replace(text, s.rules.numeric, s.trimBoundary, func(m string) (string, bool) {
		if s.numericGrounded(m) {
			return "", false
		}
		return s.record(domain.GuardrailUngroundedNumericSpec, path, m, s.rules.numericDetail), true
	})

	for _, t := range s.rules.tokens {
		rule := t
		trim := func(m string) string { return m }
		if rule.Trim != "" {
			trim = func(m string) string { return strings.TrimRight(m, rule.Trim) }
		}
		result = s.replace(result, rule.re, trim, func(m string) (string, bool) {
			var ok bool
			switch rule.Grounding {
			case GroundNumeric:
				ok = s.numericGrounded(m)
			case GroundCertification:
				ok = s.certGrounded(m)
			case GroundSource:
				ok = s.sourceGrounded(m)
			}
			if ok {
				return "", false
			}
			return s.record(rule.Category, path, m, rule.Detail), true
		})
	}
	return result
}

// brands redacts capitalised tokens that look like competitor names.
func (s *scan) brands(text, path string) string {
	if s.rules.properNoun == nil || strings.TrimSpace(text) == "" {
		return text
	}
	return masked(text, func(text string) string { return s.brandText(text, path) })
}

func (s *scan) brandText(text, path string) string {
	keep := func(m string) string { return m }
	return s.replace(text, s.rules.properNoun, keep, func(word string) (string, bool) {
		if len([]rune(word)) < 3 {
			return "", false
		}
		if _, ok := s.rules.nonBrand[word]; ok {
			return "", false
		}
		lower := strings.ToLower(word)
		if strings.Contains(s.productName, lower) {
			return "", false
		}
		if s.source != "" && strings.Contains(s.source, lower) {
			return "", false
		}
		return s.record(domain.GuardrailCompetitorBrand, path, word, s.rules.brandDetail), true
	})
}

// replace rewrites each match of re for which fn returns a replacement.
// trim shortens a match to the span that is checked and replaced.
func (s *scan) replace(text string, re *regexp.Regexp, trim func(string) string, fn func(string) (string, bool)) string {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		start := loc[0]
		m := trim(text[start:loc[1]])
		if m == "" {
			continue
		}
		end := start + len(m)
		repl, ok := fn(m)
		if !ok {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(repl)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func (s *scan) record(cat domain.GuardrailCategory, path, snippet, detail string) string {
	replacement := s.rules.placeholders[cat]
	s.warnings = append(s.warnings, domain.GuardrailWarning{
		Category:        cat,
		Severity:        domain.GuardrailReplaced,
		FieldPath:       path,
		OriginalSnippet: snippet,
		Replacement:     replacement,
		Detail:          fmt.Sprintf(detail, snippet),
	})
	logger.Warn("Guardrail: %s '%s' in %s replaced", cat, snippet, path)
	return replacement
}

func (s *scan) landing(lp *domain.LandingPageDraft) {
	lp.ProblemStatement = s.clean(lp.ProblemStatement, "landing_page.problem_statement")
	lp.SolutionOverview = s.clean(lp.SolutionOverview, "landing_page.solution_overview")
	lp.HowItWorks = s.clean(lp.HowItWorks, "landing_page.how_it_works")
	lp.CallToAction = s.clean(lp.CallToAction, "landing_page.call_to_action")

	for i := range lp.Benefits {
		b := &lp.Benefits[i]
		headline, description := b.Headline, b.Description
		b.Headline = s.clean(b.Headline, fmt.Sprintf("landing_page.benefits[%d].headline", i))
		b.Description = s.clean(b.Description, fmt.Sprintf("landing_page.benefits[%d].description", i))
		if b.Headline != headline || b.Description != description {
			b.IsFactual = false
		}
	}
	for i := range lp.SpecsExplained {
		sp := &lp.SpecsExplained[i]
		prefix := fmt.Sprintf("landing_page.specs_explained[%d].", i)
		sp.SpecName = s.clean(sp.SpecName, prefix+"spec_name")
		sp.SpecValue = s.clean(sp.SpecValue, prefix+"spec_value")
		sp.Unit = s.clean(sp.Unit, prefix+"unit")
		sp.PlainLanguage = s.clean(sp.PlainLanguage, prefix+"plain_language")
	}
}

func (s *scan) faq(items []domain.FAQItem) {
	for i := range items {
		item := &items[i]
		question, answer := item.Question, item.Answer
		item.Question = s.clean(item.Question, fmt.Sprintf("faq[%d].question", i))
		item.Answer = s.clean(item.Answer, fmt.Sprintf("faq[%d].answer", i))
		if item.Question != question || item.Answer != answer {
			item.IsFactual = false
		}
	}
}

func (s *scan) useCases(pages []domain.UseCasePageDraft) {
	for i := range pages {
		p := &pages[i]
		p.Title = s.clean(p.Title, fmt.Sprintf("use_case_pages[%d].title", i))
		p.ProblemContext = s.clean(p.ProblemContext, fmt.Sprintf("use_case_pages[%d].problem_context", i))
		p.SolutionFit = s.clean(p.SolutionFit, fmt.Sprintf("use_case_pages[%d].solution_fit", i))
		p.ImplementationNotes = s.clean(p.ImplementationNotes, fmt.Sprintf("use_case_pages[%d].implementation_notes", i))
		for j := range p.Benefits {
			p.Benefits[j] = s.clean(p.Benefits[j], fmt.Sprintf("use_case_pages[%d].benefits[%d]", i, j))
		}
	}
}

func (s *scan) comparisons(comps []domain.ComparisonDraft) {
	for i := range comps {
		c := &comps[i]
		c.Title = s.clean(c.Title, fmt.Sprintf("comparisons[%d].title", i))
		for j := range c.Dimensions {
			d := &c.Dimensions[j]
			d.Dimension = s.clean(d.Dimension, fmt.Sprintf("comparisons[%d].dimensions[%d].dimension", i, j))
			d.ThisProduct = s.clean(d.ThisProduct, fmt.Sprintf("comparisons[%d].dimensions[%d].this_product", i, j))
			path := fmt.Sprintf("comparisons[%d].dimensions[%d].generic_alternative", i, j)
			d.GenericAlternative = s.clean(d.GenericAlternative, path)
			d.GenericAlternative = s.brands(d.GenericAlternative, path)
		}
		for j := range c.BestFor {
			c.BestFor[j] = s.clean(c.BestFor[j], fmt.Sprintf("comparisons[%d].best_for[%d]", i, j))
		}
		for j := range c.NotIdealFor {
			c.NotIdealFor[j] = s.clean(c.NotIdealFor[j], fmt.Sprintf("comparisons[%d].not_ideal_for[%d]", i, j))
		}
	}
}

func (s *scan) seo(seo *domain.SEODraft) {
	seo.TitleTag = s.clean(seo.TitleTag, "seo.title_tag")
	seo.MetaDescription = s.clean(seo.MetaDescription, "seo.meta_description")
	for i := range seo.Headings {
		seo.Headings[i].Text = s.clean(seo.Headings[i].Text, fmt.Sprintf("seo.headings[%d].text", i))
	}
}

// normalize lowercases, collapses whitespace and folds dash and micro variants.
func normalize(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	s = strings.NewReplacer("–", "-", "—", "-", "μ", "µ").Replace(s)
	return s
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
