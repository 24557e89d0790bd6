package guardrail

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/pda/internal/core/domain"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Grounding selects the allow-set a token rule is checked against.
type Grounding string

// Grounding sources.
const (
	GroundNumeric       Grounding = "numeric"
	GroundCertification Grounding = "certification"
	GroundSource        Grounding = "source"
)

// UnitRule is one unit alternative of the numeric spec scanner.
// Bounded units must be followed by a boundary character or end of text.
type UnitRule struct {
	Pattern string `yaml:"pattern"`
	Bounded bool   `yaml:"bounded"`
}

// TokenRule is one ordered (pattern, category) scan run after the numeric pass.
type TokenRule struct {
	Name       string                   `yaml:"name"`
	Category   domain.GuardrailCategory `yaml:"category"`
	Grounding  Grounding                `yaml:"grounding"`
	Pattern    string                   `yaml:"pattern"`
	IgnoreCase bool                     `yaml:"ignore_case"`

	// Trim lists trailing characters cut from a match before it is checked.
	Trim string `yaml:"trim"`

	// Detail is a format string receiving the offending snippet.
	Detail string `yaml:"detail"`
}

// Rules are the swappable pattern tables that drive the validator.
type Rules struct {
	Number        string                              `yaml:"number"`
	UnitBoundary  string                              `yaml:"unit_boundary"`
	Units         []UnitRule                          `yaml:"units"`
	Rules         []TokenRule                         `yaml:"rules"`
	NumericDetail string                              `yaml:"numeric_detail"`
	ProperNoun    string                              `yaml:"proper_noun"`
	BrandDetail   string                              `yaml:"brand_detail"`
	Placeholders  map[domain.GuardrailCategory]string `yaml:"placeholders"`
	NonBrandWords []string                            `yaml:"non_brand_words"`
}

// DefaultRules returns the rule tables bundled with the binary.
func DefaultRules() (*Rules, error) {
	return parseRules(defaultRulesYAML)
}

// LoadRules reads rule tables from path. An empty path returns DefaultRules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guardrail rules: %w", err)
	}
	return parseRules(data)
}

func parseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse guardrail rules: %w", err)
	}
	return &r, nil
}

type compiledRule struct {
	TokenRule
	re *regexp.Regexp
}

// ruleSet is the compiled form of Rules.
type ruleSet struct {
	numeric       *regexp.Regexp
	boundaryTail  *regexp.Regexp
	numericDetail string
	tokens        []compiledRule
	properNoun    *regexp.Regexp
	brandDetail   string
	placeholders  map[domain.GuardrailCategory]string
	nonBrand      map[string]struct{}
}

var requiredPlaceholders = []domain.GuardrailCategory{
	domain.GuardrailUngroundedNumericSpec,
	domain.GuardrailUngroundedCertification,
	domain.GuardrailUngroundedPricing,
	domain.GuardrailCompetitorBrand,
}

func (r *Rules) compile() (*ruleSet, error) {
	if r.Number == "" || r.UnitBoundary == "" || len(r.Units) == 0 {
		return nil, fmt.Errorf("%w: number, unit_boundary and units are required", domain.ErrInvalidInput)
	}
	for _, c := range requiredPlaceholders {
		if r.Placeholders[c] == "" {
			return nil, fmt.Errorf("%w: missing placeholder for %s", domain.ErrInvalidInput, c)
		}
	}

	// RE2 has no lookahead, so bounded units consume their boundary
	// character and the scanner trims it from the match afterwards.
	alts := make([]string, 0, len(r.Units))
	for _, u := range r.Units {
		if u.Bounded {
			alts = append(alts, "(?:"+u.Pattern+")(?:"+r.UnitBoundary+"|$)")
		} else {
			alts = append(alts, "(?:"+u.Pattern+")")
		}
	}
	numeric, err := regexp.Compile(r.Number + "(?:" + strings.Join(alts, "|") + ")")
	if err != nil {
		return nil, fmt.Errorf("compile numeric pattern: %w", err)
	}
	boundaryTail, err := regexp.Compile("(?:" + r.UnitBoundary + ")$")
	if err != nil {
		return nil, fmt.Errorf("compile unit boundary: %w", err)
	}

	rs := &ruleSet{
		numeric:       numeric,
		boundaryTail:  boundaryTail,
		numericDetail: r.NumericDetail,
		brandDetail:   r.BrandDetail,
		placeholders:  r.Placeholders,
		nonBrand:      make(map[string]struct{}, len(r.NonBrandWords)),
	}

	for _, t := range r.Rules {
		switch t.Grounding {
		case GroundNumeric, GroundCertification, GroundSource:
		default:
			return nil, fmt.Errorf("%w: rule %q has unknown grounding %q", domain.ErrInvalidInput, t.Name, t.Grounding)
		}
		if r.Placeholders[t.Category] == "" {
			return nil, fmt.Errorf("%w: rule %q has no placeholder for %s", domain.ErrInvalidInput, t.Name, t.Category)
		}
		pattern := t.Pattern
		if t.IgnoreCase {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", t.Name, err)
		}
		rs.tokens = append(rs.tokens, compiledRule{TokenRule: t, re: re})
	}

	if r.ProperNoun != "" {
		if rs.properNoun, err = regexp.Compile(r.ProperNoun); err != nil {
			return nil, fmt.Errorf("compile proper noun pattern: %w", err)
		}
	}
	for _, w := range r.NonBrandWords {
		rs.nonBrand[w] = struct{}{}
	}
	return rs, nil
}
