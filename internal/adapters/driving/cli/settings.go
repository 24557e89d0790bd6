package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/pda/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure completion and embedding providers, storage and
pipeline options. Settings live in ~/.pda/config.toml.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the completion provider",
	RunE:  runSettingsLLM,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long: `Configure the embedding provider used at ingest and retrieval.
Without one, retrieval falls back to keyword scoring.`,
	RunE: runSettingsEmbedding,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a single config key",
	Long: `Set a single config key, for example:

  pda settings set pipeline.context_max_chars 24000
  pda settings set storage.backend badger
  pda settings set guardrail.rules_file ./rules.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

var (
	llmProviders = []domain.AIProvider{
		domain.AIProviderAnthropic, domain.AIProviderOpenAI, domain.AIProviderGemini,
	}
	embeddingProviders = []domain.AIProvider{
		domain.AIProviderOpenAI, domain.AIProviderGemini, domain.AIProviderNone,
	}
)

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	cmd.Printf("  API Key: %s\n", describeKey(settings.LLM.APIKey))
	cmd.Printf("  Timeout: %s\n", settings.LLM.Timeout)
	cmd.Printf("  Rate limit: %.1f req/s (burst %d)\n", settings.LLM.RequestsPerSecond, settings.LLM.Burst)
	cmd.Printf("  Status: %s\n", configuredLabel(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	if settings.Embedding.Provider != domain.AIProviderNone {
		cmd.Printf("  Model: %s\n", settings.Embedding.Model)
		cmd.Printf("  API Key: %s\n", describeKey(settings.Embedding.APIKey))
		cmd.Printf("  Status: %s\n", configuredLabel(settings.Embedding.IsConfigured()))
	}
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	cmd.Printf("  Data dir: %s\n", orDefault(settings.Storage.DataDir))
	cmd.Println()

	cmd.Println("[Pipeline]")
	p := settings.Pipeline
	cmd.Printf("  Context max chars: %d\n", p.ContextMaxChars)
	cmd.Printf("  Extract max retries: %d\n", p.ExtractMaxRetries)
	cmd.Printf("  Job timeout: %s\n", p.JobTimeout)
	cmd.Printf("  Chunker: %s (%d/%d)\n", p.Chunker, p.ChunkSize, p.ChunkOverlap)
	cmd.Println()

	cmd.Println("[Other]")
	cmd.Printf("  Server addr: %s\n", settings.ServerAddr)
	cmd.Printf("  Guardrail rules: %s\n", orDefault(settings.GuardrailRulesFile))
	cmd.Printf("  Prompts dir: %s\n", orDefault(settings.PromptsDir))
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'pda settings llm' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	return configureLLMProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	return configureEmbeddingProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	key, value := args[0], parseValue(args[1])
	if err := settingsService.Set(key, value); err != nil {
		return err
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider; kept separate for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	for i, p := range llmProviders {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(llmProviders), 1)
	selected := llmProviders[idx-1]

	defaultModel := domain.DefaultLLMModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	cmd.Print("Enter API key: ")
	apiKey := readPassword(cmd.InOrStdin(), reader)
	cmd.Println()
	if apiKey == "" {
		return errors.New("API key is required for this provider")
	}

	if err := settingsService.SetLLMProvider(selected, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selected.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureLLMProvider; kept separate for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	for i, p := range embeddingProviders {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(embeddingProviders), 1)
	selected := embeddingProviders[idx-1]

	if selected == domain.AIProviderNone {
		if err := settingsService.SetEmbeddingProvider(selected, "", ""); err != nil {
			return fmt.Errorf("failed to disable embeddings: %w", err)
		}
		cmd.Println("Embeddings disabled; retrieval uses keyword scoring.")
		return nil
	}

	defaultModel := domain.DefaultEmbeddingModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	cmd.Print("Enter API key: ")
	apiKey := readPassword(cmd.InOrStdin(), reader)
	cmd.Println()
	if apiKey == "" {
		return errors.New("API key is required for this provider")
	}

	if err := settingsService.SetEmbeddingProvider(selected, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selected.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// parseValue converts a command-line value to the TOML type it most likely means.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func describeKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}
