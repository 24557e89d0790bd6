// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem under ~/.pda.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: editable text/template prompts with embedded defaults
//   - PromptWatcher: reloads the PromptStore when template files change
package file
