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
//   - EmbeddingService: Generates vector embeddings (OpenAI-compatible, Ollama, Gemini, local)
//   - VectorIndex: Stores and searches chunk vectors (SQLite, memory, Qdrant, Chroma, pgvector)
//   - PostProcessor: Splits documents into chunks and annotates them
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer generation. Without it answers fall back to extractive replies.
//   - SearchEngine: Keyword index (bleve). Only used in hybrid retrieval mode.
//   - PromptStore: Custom prompt templates. Without it built-in prompts are used.
//   - Normaliser: File text extraction. Only needed when ingesting files.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
