package domain

import "time"

const unknownDescription = "Unknown"

// Defaults for the pipeline.
const (
	DefaultChunkSize           = 1000
	DefaultChunkOverlap        = 200
	DefaultEmbeddingDimensions = 2048
	DefaultEmbeddingBatchSize  = 10
	DefaultEmbeddingModel      = "embedding-3"
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.1
	DefaultMaxContextLength    = 4000
	DefaultTemperature         = 0.7
	DefaultMaxTokens           = 1000
	DefaultCollection          = "readwise_documents"
	DefaultQdrantURL           = "http://localhost:6333"
	DefaultChromaURL           = "http://localhost:8000"
	DefaultSessionTTL          = 30 * time.Minute
	DefaultSessionMaxTurns     = 20
)

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is an OpenAI-compatible cloud API (OpenAI, Zhipu).
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is the Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderLocal is the offline hashed embedder. Embeddings only.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	case AIProviderLocal:
		return "Hashed term frequency (offline)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Available vector backends.
const (
	VectorBackendSQLite   VectorBackend = "sqlite"
	VectorBackendMemory   VectorBackend = "memory"
	VectorBackendQdrant   VectorBackend = "qdrant"
	VectorBackendChroma   VectorBackend = "chroma"
	VectorBackendPGVector VectorBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendSQLite, VectorBackendMemory, VectorBackendQdrant, VectorBackendChroma, VectorBackendPGVector:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// RetrievalMode defines how chunks are ranked for a query.
type RetrievalMode string

const (
	// RetrievalModeVector ranks by cosine similarity only.
	RetrievalModeVector RetrievalMode = "vector"

	// RetrievalModeHybrid fuses vector and keyword rankings.
	RetrievalModeHybrid RetrievalMode = "hybrid"
)

// IsValid returns true if the mode is recognised.
func (m RetrievalMode) IsValid() bool {
	return m == RetrievalModeVector || m == RetrievalModeHybrid
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions is the vector size every stored vector must have.
	Dimensions int

	// BatchSize is the number of texts per backend call.
	BatchSize int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return e.Dimensions > 0
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorStoreSettings holds vector index configuration.
type VectorStoreSettings struct {
	Backend    VectorBackend
	Collection string

	// Path is the SQLite database file.
	Path string

	// URL is the Qdrant or Chroma endpoint.
	URL string

	// DSN is the PostgreSQL connection string for pgvector.
	DSN string

	// APIKey authenticates against hosted Qdrant.
	APIKey string
}

// Endpoint returns the configured URL, or the default for the backend.
func (v VectorStoreSettings) Endpoint() string {
	if v.URL != "" {
		return v.URL
	}
	switch v.Backend {
	case VectorBackendQdrant:
		return DefaultQdrantURL
	case VectorBackendChroma:
		return DefaultChromaURL
	default:
		return ""
	}
}

// ChunkingSettings holds chunker parameters, counted in runes.
type ChunkingSettings struct {
	Size     int
	Overlap  int
	Keywords bool
}

// RetrievalSettings holds query-time settings.
type RetrievalSettings struct {
	Mode RetrievalMode
	TopK int

	// SimilarityThreshold is reported in status. It is applied only when a
	// caller passes it explicitly.
	SimilarityThreshold float64

	// KeywordIndexPath is the bleve index directory used by hybrid mode.
	KeywordIndexPath string
}

// GenerationSettings holds answer generation parameters.
type GenerationSettings struct {
	MaxContextLength int
	Temperature      float64
	MaxTokens        int
}

// SessionSettings holds chat session registry parameters.
type SessionSettings struct {
	TTL      time.Duration
	MaxTurns int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	VectorStore VectorStoreSettings
	Chunking    ChunkingSettings
	Retrieval   RetrievalSettings
	Generation  GenerationSettings
	Session     SessionSettings
}

// ZhipuBaseURL is the OpenAI-compatible endpoint used when none is configured.
const ZhipuBaseURL = "https://open.bigmodel.cn/api/paas/v4"

// DefaultBaseURL returns the endpoint a provider uses when base_url is unset.
// Gemini and Anthropic clients pick their own endpoint, so they get "".
func DefaultBaseURL(p AIProvider) string {
	switch p {
	case AIProviderOpenAI:
		return ZhipuBaseURL
	case AIProviderOllama:
		return "http://localhost:11434"
	default:
		return ""
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// API keys are left empty and must come from config or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOpenAI,
			Model:      DefaultEmbeddingModel,
			BaseURL:    DefaultBaseURL(AIProviderOpenAI),
			Dimensions: DefaultEmbeddingDimensions,
			BatchSize:  DefaultEmbeddingBatchSize,
		},
		LLM: LLMSettings{
			Provider: AIProviderOpenAI,
			Model:    "glm-4",
			BaseURL:  DefaultBaseURL(AIProviderOpenAI),
		},
		VectorStore: VectorStoreSettings{
			Backend:    VectorBackendSQLite,
			Collection: DefaultCollection,
		},
		Chunking: ChunkingSettings{
			Size:     DefaultChunkSize,
			Overlap:  DefaultChunkOverlap,
			Keywords: true,
		},
		Retrieval: RetrievalSettings{
			Mode:                RetrievalModeVector,
			TopK:                DefaultTopK,
			SimilarityThreshold: DefaultSimilarityThreshold,
		},
		Generation: GenerationSettings{
			MaxContextLength: DefaultMaxContextLength,
			Temperature:      DefaultTemperature,
			MaxTokens:        DefaultMaxTokens,
		},
		Session: SessionSettings{
			TTL:      DefaultSessionTTL,
			MaxTurns: DefaultSessionMaxTurns,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOpenAI,
		AIProviderOllama,
		AIProviderGemini,
		AIProviderLocal,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOpenAI,
		AIProviderOllama,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// AllVectorBackends returns every vector backend.
func AllVectorBackends() []VectorBackend {
	return []VectorBackend{
		VectorBackendSQLite,
		VectorBackendMemory,
		VectorBackendQdrant,
		VectorBackendChroma,
		VectorBackendPGVector,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: DefaultEmbeddingModel,
		AIProviderGemini: "gemini-embedding-001",
		AIProviderLocal:  "hashed-tf",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "glm-4",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-2.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Zhipu
		"embedding-3": 2048,
		"embedding-2": 1024,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini
		"gemini-embedding-001": 3072,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config for extensibility - new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor derives the post-processor pipeline from chunking settings.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	cfg := PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Size,
				"overlap":    c.Overlap,
			},
		},
	}
	if c.Keywords {
		cfg.Processors = append(cfg.Processors, "keywords")
	}
	return cfg
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFor(DefaultAppSettings().Chunking)
}
