package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

func sectionSheet() *domain.FactSheet {
	s := domain.NewFactSheet()
	s.ProductName = "Acme FlowSense 300"
	s.ProductCategory = "Ultrasonic flow meter"
	s.KeySpecs = []domain.KeySpec{
		{Name: "Weight", Value: "350", Unit: "g", EvidenceChunkIDs: []string{"pdf-abc123-p3-c0"}},
	}
	return s
}

func sectionFixture() (*SectionGenerator, *SectionRequest) {
	r := &mockRetrieval{fallback: []domain.RetrievedChunk{
		retrieved("pdf-abc123-p3-c0", "Weighs 350 g.", 3),
		retrieved("pdf-abc123-p4-c0", "Clamp-on installation without pipe cutting.", 4),
	}}
	g := NewSectionGenerator(NewContextBuilder(r, 0), testPrompts())
	req := NewSectionRequest("p1", sectionSheet(), domain.GenerationParams{Tone: domain.ToneTechnical})
	return g, req
}

func TestSectionGenerator_PromptCarriesParamsAndContext(t *testing.T) {
	g, req := sectionFixture()
	llm := &mockCompletion{responses: []string{`[]`}}

	_, err := g.FAQ(context.Background(), llm, req)
	require.NoError(t, err)

	require.Equal(t, 1, llm.calls())
	p := llm.prompts[0]
	assert.Contains(t, p, "tone=technical length=medium audience=ops_manager")
	assert.Contains(t, p, "Product: Acme FlowSense 300")
	assert.Contains(t, p, "Key specs: Weight: 350 g")
	assert.Contains(t, p, "[pdf-abc123-p4-c0] Clamp-on installation")
}

func TestSectionGenerator_Landing(t *testing.T) {
	g, req := sectionFixture()
	llm := &mockCompletion{responses: []string{`{
		"problem_statement": "Cutting pipes is costly [pdf-abc123-p4-c0].",
		"solution_overview": "A clamp-on meter [pdf-invented-p9-c9].",
		"benefits": [
			{"headline": "Light", "description": "Only 350 g [pdf-abc123-p3-c0].", "is_factual": true, "cited_chunk_ids": ["pdf-abc123-p4-c0", "pdf-ghost-p1-c0"]},
			{"headline": "Fast install", "description": "No downtime [pdf-ghost-p2-c0]."}
		],
		"how_it_works": "Transit-time ultrasound.",
		"specs_explained": [
			{"spec_name": "weight", "spec_value": "350", "unit": "g", "plain_language": "Easy to carry [pdf-abc123-p3-c0]."},
			{"spec_name": "Weight", "spec_value": "500", "unit": "g", "plain_language": "Invented."}
		],
		"call_to_action": "Request a demo."
	}`}}

	draft, err := g.Landing(context.Background(), llm, req)
	require.NoError(t, err)

	assert.Equal(t, "Cutting pipes is costly [pdf-abc123-p4-c0].", draft.ProblemStatement)
	assert.Equal(t, "A clamp-on meter.", draft.SolutionOverview)

	require.Len(t, draft.Benefits, 2)
	b := draft.Benefits[0]
	assert.True(t, b.IsFactual)
	require.Len(t, b.Evidence, 2)
	assert.Equal(t, []string{"pdf-abc123-p4-c0"}, b.Evidence[0].ChunkIDs)
	assert.Equal(t, []string{"pdf-abc123-p3-c0"}, b.Evidence[1].ChunkIDs)
	assert.Equal(t, "No downtime.", draft.Benefits[1].Description)
	assert.Empty(t, draft.Benefits[1].Evidence)
	assert.True(t, draft.Benefits[1].IsFactual)

	require.Len(t, draft.SpecsExplained, 1)
	assert.Equal(t, "350", draft.SpecsExplained[0].SpecValue)
	require.Len(t, draft.SpecsExplained[0].Evidence, 1)
	assert.Equal(t, 3, draft.SpecsExplained[0].Evidence[0].PageNumbers[0])
}

func TestSectionGenerator_Landing_EmptyResponse(t *testing.T) {
	g, req := sectionFixture()

	draft, err := g.Landing(context.Background(), &mockCompletion{responses: []string{"  "}}, req)
	require.NoError(t, err)
	assert.Empty(t, draft.ProblemStatement)
	assert.NotNil(t, draft.Benefits)
}

func TestSectionGenerator_MalformedResponse(t *testing.T) {
	g, req := sectionFixture()

	_, err := g.FAQ(context.Background(), &mockCompletion{responses: []string{"[{oops"}}, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "faq response")
}

func TestSectionGenerator_FAQ(t *testing.T) {
	g, req := sectionFixture()
	llm := &mockCompletion{responses: []string{`[
		{"question": "How heavy is it?", "answer": "350 g [pdf-abc123-p3-c0]."},
		{"question": "Is it fun?", "answer": "Editorially, yes.", "is_factual": false},
		"not an object"
	]`}}

	items, err := g.FAQ(context.Background(), llm, req)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.True(t, items[0].IsFactual)
	require.Len(t, items[0].Evidence, 1)
	assert.Equal(t, "brochure.pdf", items[0].Evidence[0].SourceFile)
	assert.False(t, items[1].IsFactual)
	assert.Empty(t, items[1].Evidence)
}

func TestSectionGenerator_UseCases(t *testing.T) {
	g, req := sectionFixture()
	llm := &mockCompletion{responses: []string{`[{
		"title": "District Heating Retrofits",
		"is_suggested": true,
		"problem_context": "Old networks [pdf-abc123-p4-c0].",
		"solution_fit": "Clamp-on fits.",
		"benefits": ["Light [pdf-abc123-p3-c0]", "Cheap [pdf-nope-p1-c0]"],
		"implementation_notes": "Mount on straight runs."
	}]`}}

	pages, err := g.UseCases(context.Background(), llm, req)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	p := pages[0]
	assert.Equal(t, "district-heating-retrofits", p.Slug)
	assert.True(t, p.IsSuggested)
	assert.Equal(t, []string{"Light [pdf-abc123-p3-c0]", "Cheap"}, p.Benefits)
	require.Len(t, p.Evidence, 2)
	assert.Equal(t, []string{"pdf-abc123-p4-c0"}, p.Evidence[0].ChunkIDs)
	assert.Equal(t, []string{"pdf-abc123-p3-c0"}, p.Evidence[1].ChunkIDs)
}

func TestSectionGenerator_Comparisons(t *testing.T) {
	g, req := sectionFixture()
	llm := &mockCompletion{responses: []string{`[{
		"title": "Clamp-on vs inline",
		"best_for": ["Retrofits [pdf-abc123-p4-c0]"],
		"not_ideal_for": ["Slurries [pdf-zzz-p1-c0]"],
		"dimensions": [{
			"dimension": "Installation",
			"this_product": "No pipe cutting [pdf-abc123-p4-c0].",
			"generic_alternative": "Requires shutdown [pdf-abc123-p3-c0].",
			"cited_chunk_ids": ["pdf-abc123-p3-c0"]
		}]
	}]`}}

	out, err := g.Comparisons(context.Background(), llm, req)
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, []string{"Slurries"}, c.NotIdealFor)
	require.Len(t, c.Dimensions, 1)
	d := c.Dimensions[0]
	require.Len(t, d.Evidence, 2)
	assert.Equal(t, []string{"pdf-abc123-p3-c0"}, d.Evidence[0].ChunkIDs)
	assert.Equal(t, "Requires shutdown [pdf-abc123-p3-c0].", d.GenericAlternative)
}

func TestSectionGenerator_SEO(t *testing.T) {
	g, req := sectionFixture()
	llm := &mockCompletion{responses: []string{`{
		"title_tag": "FlowSense 300 [pdf-abc123-p3-c0]",
		"meta_description": "Clamp-on flow meter.",
		"headings": [{"tag": "h1", "text": "FlowSense"}, {"tag": "h4", "text": "Specs"}],
		"product_jsonld": {"@type": "Product", "name": "FlowSense 300"}
	}`}}

	seo, err := g.SEO(context.Background(), llm, req)
	require.NoError(t, err)

	assert.Equal(t, "FlowSense 300", seo.TitleTag)
	require.Len(t, seo.Headings, 2)
	assert.Equal(t, "h1", seo.Headings[0].Tag)
	assert.Equal(t, "h2", seo.Headings[1].Tag)
	assert.Equal(t, "Product", seo.ProductJSONLD["@type"])

	require.Equal(t, 1, llm.calls())
	assert.True(t, len(llm.promptsWithPrefix(driven.PromptSEO)) == 1)
	assert.Contains(t, llm.prompts[0], "CONTEXT:\n")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "water-metering-in-cities", slugify("Water Metering in Cities!"))
	assert.Equal(t, "ip68-rated", slugify("  IP68 -- rated "))
	assert.Equal(t, "", slugify("***"))
}

func TestSpecSet_Has(t *testing.T) {
	s := sectionSheet()
	s.KeySpecs = append(s.KeySpecs,
		domain.KeySpec{Name: "Range", Value: " 0-10 ", Unit: "m/s"},
		domain.KeySpec{Name: "Accuracy", Value: ""},
	)
	set := newSpecSet(s)

	tests := []struct {
		name, value string
		want        bool
	}{
		{"Weight", "350", true},
		{"  weight ", "350", true},
		{"Weight", "500", false},
		{"range", "0-10", true},
		{"Accuracy", "", false},
		{"Height", "350", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, set.Has(tt.name, tt.value), "%q = %q", tt.name, tt.value)
	}
	assert.False(t, newSpecSet(nil).Has("Weight", "350"))
}

func TestFactSheetSummary_CapsSpecs(t *testing.T) {
	s := sectionSheet()
	for i := 0; i < 20; i++ {
		s.KeySpecs = append(s.KeySpecs, domain.KeySpec{Name: "Port", Value: "x"})
	}

	got := factSheetSummary(s)
	assert.Equal(t, maxSummarySpecs-1, strings.Count(got, "Port: x"))
	assert.NotContains(t, got, "Certifications:")
}
