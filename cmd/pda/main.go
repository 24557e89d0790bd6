// Command pda generates grounded product content from source documents.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/pda/internal/adapters/driven/ai"
	"github.com/custodia-labs/pda/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pda/internal/adapters/driven/storage/badger"
	"github.com/custodia-labs/pda/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pda/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pda/internal/adapters/driving/cli"
	"github.com/custodia-labs/pda/internal/core/domain"
	"github.com/custodia-labs/pda/internal/core/ports/driven"
	"github.com/custodia-labs/pda/internal/core/services"
	"github.com/custodia-labs/pda/internal/guardrail"
	"github.com/custodia-labs/pda/internal/logger"
	"github.com/custodia-labs/pda/internal/normalisers"
	"github.com/custodia-labs/pda/internal/normalisers/html"
	"github.com/custodia-labs/pda/internal/normalisers/markdown"
	"github.com/custodia-labs/pda/internal/normalisers/plaintext"
	"github.com/custodia-labs/pda/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configStore driven.ConfigStore
	if fileStore, err := file.NewConfigStore(""); err != nil {
		logger.Warn("config file unavailable, using defaults for this run: %v", err)
		configStore = memory.NewConfigStore(nil)
	} else {
		configStore = fileStore
	}
	settingsSvc := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsSvc.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	st, err := openStorage(settings.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("closing storage: %v", err)
		}
	}()

	prompts, err := file.NewPromptStore(settings.PromptsDir)
	if err != nil {
		return fmt.Errorf("open prompts: %w", err)
	}
	if watcher, err := file.NewPromptWatcher(prompts); err != nil {
		logger.Warn("prompt hot reload disabled: %v", err)
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("prompt hot reload disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	rules, err := guardrail.LoadRules(settings.GuardrailRulesFile)
	if err != nil {
		return err
	}
	guard, err := guardrail.New(rules)
	if err != nil {
		return fmt.Errorf("compile guardrail rules: %w", err)
	}

	chunkers := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(chunkers)
	chunker, err := chunkers.Build(settings.Pipeline.Chunker, postprocessors.ChunkerConfig(settings.Pipeline))
	if err != nil {
		return fmt.Errorf("build chunker: %w", err)
	}

	embedder, err := ai.CreateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		logger.Warn("embeddings disabled, retrieval falls back to keyword scoring: %v", err)
		embedder = nil
	}
	if embedder != nil {
		defer embedder.Close()
	}

	loaders := normalisers.NewRegistry(plaintext.New(), markdown.New(), html.New())
	resolver := ai.NewResolver(settingsSvc.LLMFor)

	retrieval := services.NewRetrievalService(st.chunks, embedder)
	builder := services.NewContextBuilder(retrieval, settings.Pipeline.ContextMaxChars)
	verifier := services.NewVerifier()

	ingestSvc := services.NewIngestService([]driven.SourceLoader{loaders}, chunker, st.chunks, embedder)
	factSheetSvc := services.NewFactSheetService(
		services.NewFactSheetExtractor(builder, prompts, settings.Pipeline.ExtractMaxRetries),
		st.artifacts,
		resolver,
	)
	generationSvc := services.NewGenerationService(services.GenerationDeps{
		Jobs:       st.jobs,
		Artifacts:  st.artifacts,
		Chunks:     st.chunks,
		Resolver:   resolver,
		Ingest:     ingestSvc,
		FactSheets: factSheetSvc,
		Auditor:    services.NewAuditor(st.chunks, prompts, verifier),
		Verifier:   verifier,
		Content: services.NewContentGenerator(
			services.NewSectionGenerator(builder, prompts), builder, guard,
		),
	}, settings.Pipeline.JobTimeout)
	defer generationSvc.Close()
	if n, err := generationSvc.RecoverStale(ctx); err != nil {
		logger.Warn("Stale job sweep failed: %v", err)
	} else if n > 0 {
		logger.Info("Failed %d stale job(s)", n)
	}

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Ingest:     ingestSvc,
		FactSheet:  factSheetSvc,
		Verifier:   services.NewVerifierService(verifier, st.artifacts),
		Generation: generationSvc,
		Settings:   settingsSvc,
	})

	return cli.ExecuteContext(ctx)
}

// storage holds the stores of the configured backend.
type storage struct {
	jobs      driven.JobStore
	chunks    driven.ChunkStore
	artifacts driven.ArtifactStore
	close     func() error
}

func openStorage(s domain.StorageSettings) (*storage, error) {
	switch s.Backend {
	case domain.StorageBadger:
		st, err := badger.NewStore(s.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return &storage{st.JobStore(), st.ChunkStore(), st.ArtifactStore(), st.Close}, nil
	case domain.StorageMemory:
		return &storage{
			jobs:      memory.NewJobStore(),
			chunks:    memory.NewChunkStore(),
			artifacts: memory.NewArtifactStore(),
			close:     func() error { return nil },
		}, nil
	default:
		st, err := sqlite.NewStore(s.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Debug("Using SQLite store at %s", st.Path())
		return &storage{st.JobStore(), st.ChunkStore(), st.ArtifactStore(), st.Close}, nil
	}
}
