// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - CompletionService: Language model text completion (Anthropic, OpenAI, Gemini)
//   - JobStore: Generation job persistence (SQLite, Badger, memory)
//   - ChunkStore: Chunk persistence per product
//   - ArtifactStore: Fact sheet, audit and drafts persistence
//   - SourceLoader: Turns a source file into ordered pages
//   - Chunker: Splits pages into deterministically identified chunks
//   - ConfigStore: Application configuration
//   - PromptStore: Editable prompt templates
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, retrieval
//     ranks chunks by term overlap instead of cosine similarity.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
