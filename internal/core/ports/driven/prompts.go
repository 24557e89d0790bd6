package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names. Templates are Go text/template sources.
const (
	// PromptFactSheetExtract renders {{.Chunks}} into the extraction request.
	PromptFactSheetExtract = "factsheet_extract"

	// PromptFactSheetFixJSON asks the model to repair {{.InvalidJSON}}.
	PromptFactSheetFixJSON = "factsheet_fix_json"

	// Section prompts receive tone, length, audience, the fact-sheet summary and context.
	PromptLanding     = "web_landing"
	PromptFAQ         = "web_faq"
	PromptUseCases    = "web_use_cases"
	PromptComparisons = "web_comparisons"
	PromptSEO         = "web_seo"

	// PromptCriticVerify asks whether a recommendation is supported by source chunks.
	PromptCriticVerify = "critic_verify"
)

// AllPromptNames returns every prompt the pipeline loads.
func AllPromptNames() []string {
	return []string{
		PromptFactSheetExtract,
		PromptFactSheetFixJSON,
		PromptLanding,
		PromptFAQ,
		PromptUseCases,
		PromptComparisons,
		PromptSEO,
		PromptCriticVerify,
	}
}
