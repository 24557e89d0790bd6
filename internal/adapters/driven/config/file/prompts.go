package file

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/pda/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads LLM prompt templates from user-editable files on disk.
// Prompts are loaded from a configurable directory with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first accessed,
// not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

//go:embed defaults/*.txt
var defaultFS embed.FS

// defaultPrompt returns the embedded template for name.
func defaultPrompt(name string) (string, bool) {
	data, err := defaultFS.ReadFile(path.Join("defaults", name+".txt"))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.pda/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".pda", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// Load returns the prompt template for the given name.
// On first call, initialises the prompt directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to embedded default if file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	// Ensure directory and defaults exist (lazy init)
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPrompt(name); ok {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	// Check cache first (read lock)
	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		// Fall back to embedded default
		if prompt, ok := defaultPrompt(name); ok {
			return prompt, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	// Cache the result (write lock)
	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		// Another goroutine loaded it first, use their value
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	// Create directory
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Create default prompt files (only if they don't exist)
	for _, name := range driven.AllPromptNames() {
		content, ok := defaultPrompt(name)
		if !ok {
			continue
		}
		file := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(file); os.IsNotExist(err) {
			if err := os.WriteFile(file, []byte(content+"\n"), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	// Create README
	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	file := filepath.Join(s.promptDir, name+".txt")
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	file := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Prompt templates

This directory holds the templates used by the generation pipeline.
Each file is a Go text/template rendered with the fields listed below.

## Files

- ` + "`factsheet_extract.txt`" + ` - fact sheet extraction ({{.Chunks}} with .ChunkID and .Text)
- ` + "`factsheet_fix_json.txt`" + ` - JSON repair ({{.InvalidJSON}}, {{.Error}})
- ` + "`web_landing.txt`" + `, ` + "`web_faq.txt`" + `, ` + "`web_use_cases.txt`" + `,
  ` + "`web_comparisons.txt`" + `, ` + "`web_seo.txt`" + ` - section drafts
  ({{.Tone}}, {{.Length}}, {{.Audience}}, {{.FactSheetSummary}}, {{.Context}})
- ` + "`critic_verify.txt`" + ` - audit critic ({{.FindingTitle}}, {{.FindingRecommendation}}, {{.Chunks}})

## Customisation

Edit any file to change model behaviour. A running server picks up edits
immediately; delete a file to restore its default on next start.
`
	return os.WriteFile(file, []byte(content), 0600)
}
