package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/pda/internal/core/domain"
)

// Scorecard dimension ids.
const (
	DimensionCompleteness      = "completeness"
	DimensionStructuralClarity = "structural_clarity"
	DimensionSpecPrecision     = "spec_precision"
	DimensionSchemaReadiness   = "schema_readiness"
	DimensionConsistency       = "consistency"
	DimensionFreshness         = "freshness"
)

const (
	maxScore = 10

	// Chunk sizes are estimated at four runes per token.
	runesPerToken   = 4
	minAvgTokens    = 50
	maxAvgTokens    = 800
	wallOfTextToken = 1500

	// roleBuyer tags chunks written for buyers rather than installers.
	roleBuyer = "buyer"
)

type dimension struct {
	id     string
	name   string
	weight float64
	score  func(*domain.FactSheet, []domain.Chunk) (int, string)
}

var scorecardDimensions = []dimension{
	{DimensionCompleteness, "Completeness", 1, scoreCompleteness},
	{DimensionStructuralClarity, "Structural clarity", 1, scoreStructuralClarity},
	{DimensionSpecPrecision, "Spec precision", 1, scoreSpecPrecision},
	{DimensionSchemaReadiness, "Schema readiness", 1, scoreSchemaReadiness},
	{DimensionConsistency, "Consistency", 1, scoreConsistency},
	{DimensionFreshness, "Freshness", 1, scoreFreshness},
}

var gradeThresholds = []struct {
	grade string
	min   float64
}{
	{"A", 85},
	{"B", 70},
	{"C", 55},
	{"D", 40},
}

// BuildScorecard scores the fact sheet and source chunks on every dimension
// and grades the weighted result.
func BuildScorecard(sheet *domain.FactSheet, chunks []domain.Chunk) *domain.Scorecard {
	buyer := buyerChunks(chunks)
	card := &domain.Scorecard{Dimensions: make([]domain.ScoreDimension, 0, len(scorecardDimensions))}

	var total, weights float64
	for _, d := range scorecardDimensions {
		score, details := d.score(sheet, buyer)
		score = max(0, min(maxScore, score))
		card.Dimensions = append(card.Dimensions, domain.ScoreDimension{
			ID:       d.id,
			Name:     d.name,
			Weight:   d.weight,
			Score:    score,
			MaxScore: maxScore,
			Details:  details,
		})
		total += float64(score) * d.weight
		weights += d.weight
	}
	if weights > 0 {
		card.OverallScore = math.Round(total/weights*maxScore*10) / 10
	}
	card.Grade = gradeFor(card.OverallScore)
	return card
}

func gradeFor(score float64) string {
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return "F"
}

// buyerChunks returns the chunks tagged for buyers, or all chunks when none are.
func buyerChunks(chunks []domain.Chunk) []domain.Chunk {
	var out []domain.Chunk
	for _, c := range chunks {
		if c.Role == roleBuyer {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return chunks
	}
	return out
}

func scoreCompleteness(sheet *domain.FactSheet, _ []domain.Chunk) (int, string) {
	filled := 0
	for _, c := range gapChecks {
		if !c.missing(sheet) {
			filled++
		}
	}
	ratio := float64(filled) / float64(len(gapChecks))
	score := 0
	switch {
	case ratio >= 0.9:
		score = 10
	case ratio >= 0.7:
		score = 7
	case ratio >= 0.5:
		score = 4
	}
	return score, fmt.Sprintf("%d of %d fact sheet fields populated.", filled, len(gapChecks))
}

func scoreStructuralClarity(_ *domain.FactSheet, chunks []domain.Chunk) (int, string) {
	if len(chunks) == 0 {
		return 0, "No source chunks."
	}
	headings, wall, sum := false, false, 0
	for _, c := range chunks {
		if c.Heading != "" {
			headings = true
		}
		tokens := utf8.RuneCountInString(c.Text) / runesPerToken
		if tokens > wallOfTextToken {
			wall = true
		}
		sum += tokens
	}
	avg := sum / len(chunks)
	passed := 1 // chunks keep source order
	for _, ok := range []bool{headings, avg >= minAvgTokens && avg <= maxAvgTokens, !wall} {
		if ok {
			passed++
		}
	}
	return int(float64(passed) * 2.5), fmt.Sprintf(
		"Headings: %t, average chunk ~%d tokens, wall of text: %t.", headings, avg, wall)
}

var (
	preciseUnit  = regexp.MustCompile(`\d+\s*(mm|cm|kg|g|hz|mb|gb|v|w|a|°c|°f|bar|psi|pa|%)`)
	preciseRange = regexp.MustCompile(`\d+\s*[-–]\s*\d+`)
	bareNumber   = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

func scoreSpecPrecision(sheet *domain.FactSheet, _ []domain.Chunk) (int, string) {
	if len(sheet.KeySpecs) == 0 {
		return 5, "No key specs to assess."
	}
	precise := 0
	for _, s := range sheet.KeySpecs {
		if domain.IsMissing(s.Value) {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(s.Value + " " + s.Unit))
		if preciseUnit.MatchString(v) || preciseRange.MatchString(v) ||
			(s.Unit != "" && strings.ContainsAny(s.Value, "0123456789")) {
			precise++
		}
	}
	return precise * maxScore / len(sheet.KeySpecs),
		fmt.Sprintf("%d of %d key specs carry a number with a unit or range.", precise, len(sheet.KeySpecs))
}

func scoreSchemaReadiness(_ *domain.FactSheet, chunks []domain.Chunk) (int, string) {
	for _, c := range chunks {
		if c.Kind == domain.SourceKindURL {
			return 5, "Product page ingested; structured data not assessed."
		}
	}
	return 5, "No product page ingested."
}

func scoreConsistency(sheet *domain.FactSheet, _ []domain.Chunk) (int, string) {
	values := make(map[string]string, len(sheet.KeySpecs))
	var conflicts []string
	for _, s := range sheet.KeySpecs {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		value := strings.TrimSpace(s.Value + " " + s.Unit)
		if prev, ok := values[name]; ok && prev != value {
			conflicts = append(conflicts, s.Name)
			continue
		}
		values[name] = value
	}
	if len(conflicts) > 0 {
		return 7, "Conflicting values for: " + strings.Join(conflicts, ", ") + "."
	}
	return 10, "No contradictory specs."
}

var (
	freshYear    = regexp.MustCompile(`\d{4}`)
	freshVersion = regexp.MustCompile(`version\s*\d|v\d+\.\d+`)
	freshWords   = regexp.MustCompile(`\bnew\b|\bupdated\b|\bcurrent\b`)
)

func scoreFreshness(_ *domain.FactSheet, chunks []domain.Chunk) (int, string) {
	if len(chunks) == 0 {
		return 0, "No source chunks."
	}
	text := strings.ToLower(joinChunkText(chunks))
	score := 0
	var signals []string
	if freshYear.MatchString(text) {
		score += 3
		signals = append(signals, "dates")
	}
	if freshVersion.MatchString(text) {
		score += 3
		signals = append(signals, "version")
	}
	if freshWords.MatchString(text) {
		score += 2
		signals = append(signals, "new/updated")
	}
	if strings.Contains(text, "copyright") || strings.Contains(text, "©") {
		score += 2
		signals = append(signals, "copyright")
	}
	if len(signals) == 0 {
		return 0, "No freshness signals."
	}
	return score, "Freshness signals: " + strings.Join(signals, ", ") + "."
}

func joinChunkText(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// Deterministic check ids.
const (
	CheckRequiredSections = "required_sections"
	CheckAcronymList      = "acronym_list"
	CheckModelNaming      = "model_naming"
	CheckUnitConsistency  = "unit_consistency"
)

// RunChecks runs every deterministic source-quality check.
func RunChecks(sheet *domain.FactSheet, chunks []domain.Chunk) []domain.CheckResult {
	return []domain.CheckResult{
		checkRequiredSections(chunks),
		checkAcronymList(chunks),
		checkModelNaming(sheet, chunks),
		checkUnitConsistency(sheet, chunks),
	}
}

func newCheck(id, name string, score int, details string) domain.CheckResult {
	return domain.CheckResult{
		CheckID:          id,
		Name:             name,
		Score:            max(0, min(maxScore, score)),
		MaxScore:         maxScore,
		Details:          details,
		EvidenceChunkIDs: []string{},
		Recommendations:  []string{},
	}
}

// searchable is the lowercased heading and leading text of a chunk.
func searchable(c domain.Chunk, n int) string {
	return strings.ToLower(c.Heading + " " + truncateRunes(c.Text, n))
}

var requiredSections = []struct {
	name     string
	title    string
	patterns *regexp.Regexp
}{
	{"overview", "Overview", regexp.MustCompile(`\boverview\b|\bintroduction\b|\babout\b|\bsummary\b|\bproduct\s+description\b`)},
	{"installation", "Installation", regexp.MustCompile(`\binstallation\b|\bsetup\b|\bgetting\s+started\b|\bmounting\b|\bwiring\b`)},
	{"troubleshooting", "Troubleshooting", regexp.MustCompile(`\btroubleshoot|\bfaq\b|\bdiagnostic|\berror\s+code|\bcommon\s+(issues|problems)\b`)},
	{"technical_data", "Technical Data", regexp.MustCompile(`\btechnical\s+data\b|\bspecification|\btechnical\s+spec|\bperformance\s+data\b|\bcharacteristic`)},
}

func checkRequiredSections(chunks []domain.Chunk) domain.CheckResult {
	var found, missing []string
	var evidence, recs []string
	for _, sec := range requiredSections {
		hit := ""
		for _, c := range chunks {
			if sec.patterns.MatchString(searchable(c, 300)) {
				hit = c.ID
				break
			}
		}
		if hit == "" {
			missing = append(missing, sec.name)
			recs = append(recs, fmt.Sprintf("Add a dedicated '%s' section.", sec.title))
			continue
		}
		found = append(found, sec.name)
		evidence = append(evidence, hit)
	}

	details := fmt.Sprintf("Found %d/%d required sections: %s.", len(found), len(requiredSections), strings.Join(found, ", "))
	if len(missing) > 0 {
		details += " Missing: " + strings.Join(missing, ", ") + "."
	}
	r := newCheck(CheckRequiredSections, "Required Sections", len(found)*maxScore/len(requiredSections), details)
	if evidence != nil {
		r.EvidenceChunkIDs = evidence
	}
	if recs != nil {
		r.Recommendations = recs
	}
	return r
}

var acronymSection = regexp.MustCompile(`\bacronym|\babbreviation|\bglossary\b|\bdefinitions?\b`)

func checkAcronymList(chunks []domain.Chunk) domain.CheckResult {
	const name = "Acronym / Abbreviation List"
	for _, c := range chunks {
		if acronymSection.MatchString(searchable(c, 500)) {
			r := newCheck(CheckAcronymList, name, maxScore, "Acronym/abbreviation section detected.")
			r.EvidenceChunkIDs = []string{c.ID}
			return r
		}
	}
	r := newCheck(CheckAcronymList, name, 0, "No acronym/abbreviation/glossary section found.")
	r.Recommendations = []string{"Add an Acronyms or Abbreviations section listing all product-specific abbreviations."}
	return r
}

var modelIdentifier = regexp.MustCompile(`\b[A-Z]{2,}[\-\s]?\d{2,}[A-Z0-9\-]*\b`)

// variantSimilarity is the edit-distance ratio above which two model
// identifiers are read as spellings of the same model.
const variantSimilarity = 0.6

func checkModelNaming(sheet *domain.FactSheet, chunks []domain.Chunk) domain.CheckResult {
	const name = "Model Naming Consistency"

	var candidates []string
	if !domain.IsMissing(sheet.ProductName) {
		candidates = append(candidates, strings.TrimSpace(sheet.ProductName))
	}
	hits := modelIdentifier.FindAllString(joinChunkText(chunks), -1)
	if top := mostFrequent(hits); top != "" && !containsString(candidates, top) {
		candidates = append(candidates, top)
	}
	if len(candidates) == 0 {
		return newCheck(CheckModelNaming, name, 5, "Could not determine canonical model name to check consistency.")
	}

	total := 0
	var recs []string
	for _, canonical := range candidates {
		canon := modelKey(canonical)
		seen := map[string]struct{}{}
		var variants []string
		for _, h := range hits {
			key := modelKey(h)
			if key == canon || similarity(canon, key) <= variantSimilarity {
				continue
			}
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			variants = append(variants, h)
		}
		if len(variants) > 0 {
			total += len(variants)
			recs = append(recs, fmt.Sprintf("Standardize model name '%s'; variants found: %s.",
				canonical, strings.Join(variants, ", ")))
		}
	}
	if total == 0 {
		return newCheck(CheckModelNaming, name, maxScore, fmt.Sprintf(
			"Model name(s) (%s) used consistently throughout the document.", strings.Join(candidates, ", ")))
	}
	r := newCheck(CheckModelNaming, name, maxScore-total*2, fmt.Sprintf("%d variant(s) of model name detected.", total))
	r.Recommendations = recs
	return r
}

func modelKey(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(s))
}

// mostFrequent returns the most common value, preferring the first seen on ties.
func mostFrequent(values []string) string {
	counts := map[string]int{}
	best, bestN := "", 0
	for _, v := range values {
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// similarity is one minus the Levenshtein distance over the longer length.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return 1 - float64(prev[len(rb)])/float64(max(len(ra), len(rb)))
}

var unitFamilies = []struct {
	name  string
	units []*regexp.Regexp
	label []string
}{
	{"temperature", unitPatterns(`\bcelsius\b`, `\bfahrenheit\b`, `\bkelvin\b`, `°c\b`, `°f\b`),
		[]string{"celsius", "fahrenheit", "kelvin", "°c", "°f"}},
	{"length", unitPatterns(`\bmm\b`, `\bcm\b`, `\binch\b`, `\binches\b`, `\bfeet\b`),
		[]string{"mm", "cm", "inch", "inches", "feet"}},
	{"weight", unitPatterns(`\bkg\b`, `\blb\b`, `\boz\b`, `\blbs\b`),
		[]string{"kg", "lb", "oz", "lbs"}},
	{"pressure", unitPatterns(`\bkpa\b`, `\bmpa\b`, `\bbar\b`, `\bpsi\b`, `\batm\b`),
		[]string{"kpa", "mpa", "bar", "psi", "atm"}},
	{"voltage", unitPatterns(`\bvdc\b`, `\bvac\b`),
		[]string{"vdc", "vac"}},
}

func unitPatterns(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func checkUnitConsistency(sheet *domain.FactSheet, chunks []domain.Chunk) domain.CheckResult {
	specs := make([]string, len(sheet.KeySpecs))
	for i, s := range sheet.KeySpecs {
		specs[i] = s.Value + " " + s.Unit
	}
	text := strings.ToLower(joinChunkText(chunks) + " " + strings.Join(specs, " "))

	var issues []string
	for _, fam := range unitFamilies {
		var found []string
		for i, re := range fam.units {
			if re.MatchString(text) {
				found = append(found, fam.label[i])
			}
		}
		if len(found) > 1 {
			issues = append(issues, fmt.Sprintf("Mixed %s units: %s.", fam.name, strings.Join(found, ", ")))
		}
	}

	bare := 0
	for _, s := range sheet.KeySpecs {
		if strings.TrimSpace(s.Unit) == "" && bareNumber.MatchString(strings.TrimSpace(s.Value)) {
			bare++
		}
	}
	if bare > 0 {
		issues = append(issues, fmt.Sprintf("%d spec value(s) appear to be bare numbers without units.", bare))
	}

	penalties := len(issues) + bare
	if penalties == 0 {
		return newCheck(CheckUnitConsistency, "Unit Consistency", maxScore, "Units appear consistent across the document.")
	}
	r := newCheck(CheckUnitConsistency, "Unit Consistency", maxScore-penalties*2, strings.Join(issues, " "))
	r.Recommendations = []string{
		"Use a single unit system per spec (with conversions parenthetical) and ensure every numeric spec has an explicit unit.",
	}
	return r
}
