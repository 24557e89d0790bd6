package services

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// renderPrompt loads the named template from the store and executes it with data.
// Templates are re-parsed on every call so edits picked up by Reload take effect.
func renderPrompt(prompts driven.PromptStore, name string, data any) (string, error) {
	src, err := prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", name, err)
	}

	tpl, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", name, err)
	}

	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}

// sectionPromptData is the data every section template receives.
type sectionPromptData struct {
	Tone             string
	Length           string
	Audience         string
	FactSheetSummary string
	Context          string
}
