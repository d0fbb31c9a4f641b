package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDims        = "embedding.dimensions"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyVectorBackend    = "vector_store.backend"
	keyVectorCollection = "vector_store.collection"
	keyVectorPath       = "vector_store.path"
	keyVectorURL        = "vector_store.url"
	keyVectorDSN        = "vector_store.dsn"
	keyVectorAPIKey     = "vector_store.api_key"
	keyChunkSize        = "chunking.size"
	keyChunkOverlap     = "chunking.overlap"
	keyChunkKeywords    = "chunking.keywords"
	keyRetrievalMode    = "retrieval.mode"
	keyRetrievalTopK    = "retrieval.top_k"
	keyThreshold        = "retrieval.similarity_threshold"
	keyKeywordIndexPath = "retrieval.keyword_index_path"
	keyMaxContext       = "generation.max_context_length"
	keyTemperature      = "generation.temperature"
	keyMaxTokens        = "generation.max_tokens"
	keySessionTTL       = "session.ttl"
	keySessionMaxTurns  = "session.max_turns"
)

// Environment variables consulted when API keys are absent from config.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvEmbeddingAPIKey = "LIBRIS_EMBEDDING_API_KEY"
	EnvLLMAPIKey       = "LIBRIS_LLM_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindDuration
	kindSecret
)

// knownKeys lists every settable key and how its value is parsed.
var knownKeys = map[string]valueKind{
	keyEmbedProvider:    kindString,
	keyEmbedModel:       kindString,
	keyEmbedBaseURL:     kindString,
	keyEmbedAPIKey:      kindSecret,
	keyEmbedDims:        kindInt,
	keyEmbedBatchSize:   kindInt,
	keyLLMProvider:      kindString,
	keyLLMModel:         kindString,
	keyLLMBaseURL:       kindString,
	keyLLMAPIKey:        kindSecret,
	keyVectorBackend:    kindString,
	keyVectorCollection: kindString,
	keyVectorPath:       kindString,
	keyVectorURL:        kindString,
	keyVectorDSN:        kindSecret,
	keyVectorAPIKey:     kindSecret,
	keyChunkSize:        kindInt,
	keyChunkOverlap:     kindInt,
	keyChunkKeywords:    kindBool,
	keyRetrievalMode:    kindString,
	keyRetrievalTopK:    kindInt,
	keyThreshold:        kindFloat,
	keyKeywordIndexPath: kindString,
	keyMaxContext:       kindInt,
	keyTemperature:      kindFloat,
	keyMaxTokens:        kindInt,
	keySessionTTL:       kindDuration,
	keySessionMaxTurns:  kindInt,
}

// KnownKeys returns every settable configuration key, sorted.
func KnownKeys() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore     driven.ConfigStore
	aiValidator     driven.AIConfigValidator
	configValidator driven.ConfigValidator
	getenv          func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// SetConfigValidator sets the schema validator used by Validate.
func (s *SettingsService) SetConfigValidator(v driven.ConfigValidator) {
	s.configValidator = v
}

// Get retrieves current application settings.
// API keys missing from config are read from the environment.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	embedProvider := s.getProvider(keyEmbedProvider, defaults.Embedding.Provider)
	llmProvider := s.getProvider(keyLLMProvider, defaults.LLM.Provider)

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   embedProvider,
			Model:      s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:    s.getString(keyEmbedBaseURL, domain.DefaultBaseURL(embedProvider)),
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDims, defaults.Embedding.Dimensions),
			BatchSize:  s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
		},
		LLM: domain.LLMSettings{
			Provider: llmProvider,
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.getString(keyLLMBaseURL, domain.DefaultBaseURL(llmProvider)),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		VectorStore: domain.VectorStoreSettings{
			Backend:    s.getBackend(defaults.VectorStore.Backend),
			Collection: s.getString(keyVectorCollection, defaults.VectorStore.Collection),
			Path:       s.configStore.GetString(keyVectorPath),
			URL:        s.getString(keyVectorURL, defaults.VectorStore.URL),
			DSN:        s.configStore.GetString(keyVectorDSN),
			APIKey:     s.configStore.GetString(keyVectorAPIKey),
		},
		Chunking: domain.ChunkingSettings{
			Size:     s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap:  s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
			Keywords: s.getBool(keyChunkKeywords, defaults.Chunking.Keywords),
		},
		Retrieval: domain.RetrievalSettings{
			Mode:                s.getMode(defaults.Retrieval.Mode),
			TopK:                s.getInt(keyRetrievalTopK, defaults.Retrieval.TopK),
			SimilarityThreshold: s.getFloat(keyThreshold, defaults.Retrieval.SimilarityThreshold),
			KeywordIndexPath:    s.configStore.GetString(keyKeywordIndexPath),
		},
		Generation: domain.GenerationSettings{
			MaxContextLength: s.getInt(keyMaxContext, defaults.Generation.MaxContextLength),
			Temperature:      s.getFloat(keyTemperature, defaults.Generation.Temperature),
			MaxTokens:        s.getInt(keyMaxTokens, defaults.Generation.MaxTokens),
		},
		Session: domain.SessionSettings{
			TTL:      s.getDuration(keySessionTTL, defaults.Session.TTL),
			MaxTurns: s.getInt(keySessionMaxTurns, defaults.Session.MaxTurns),
		},
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envKey(settings.Embedding.Provider, EnvEmbeddingAPIKey)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envKey(settings.LLM.Provider, EnvLLMAPIKey)
	}

	return settings, nil
}

func (s *SettingsService) envKey(provider domain.AIProvider, primary string) string {
	if v := s.getenv(primary); v != "" {
		return v
	}
	if provider == domain.AIProviderGemini {
		return s.getenv(EnvGeminiAPIKey)
	}
	return ""
}

// Save persists application settings.
// Empty API keys are not written so keys from the environment stay out of the file.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key string
		val any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyVectorBackend, settings.VectorStore.Backend.String()},
		{keyVectorCollection, settings.VectorStore.Collection},
		{keyVectorPath, settings.VectorStore.Path},
		{keyVectorURL, settings.VectorStore.URL},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyChunkKeywords, settings.Chunking.Keywords},
		{keyRetrievalMode, string(settings.Retrieval.Mode)},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyThreshold, settings.Retrieval.SimilarityThreshold},
		{keyKeywordIndexPath, settings.Retrieval.KeywordIndexPath},
		{keyMaxContext, settings.Generation.MaxContextLength},
		{keyTemperature, settings.Generation.Temperature},
		{keyMaxTokens, settings.Generation.MaxTokens},
		{keySessionTTL, settings.Session.TTL.String()},
		{keySessionMaxTurns, settings.Session.MaxTurns},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.val); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := map[string]string{
		keyEmbedAPIKey:  settings.Embedding.APIKey,
		keyLLMAPIKey:    settings.LLM.APIKey,
		keyVectorDSN:    settings.VectorStore.DSN,
		keyVectorAPIKey: settings.VectorStore.APIKey,
	}
	for key, val := range secrets {
		if val == "" {
			continue
		}
		if err := s.configStore.Set(key, val); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// Set updates a single key. The value is parsed to the key's type and
// enumerated values are checked.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := knownKeys[key]
	if !ok {
		return fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		parsed = f
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, key)
		}
		parsed = b
	case kindDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s must be a duration like 30m", domain.ErrInvalidInput, key)
		}
		parsed = value
	default:
		if err := checkEnum(key, value); err != nil {
			return err
		}
		parsed = value
	}

	if urlKey, ok := providerBaseURLKeys[key]; ok && s.getProvider(key, domain.AIProviderOpenAI).String() != value {
		// The old endpoint belongs to the old provider.
		if err := s.configStore.Set(urlKey, ""); err != nil {
			return fmt.Errorf("set %s: %w", urlKey, err)
		}
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

var providerBaseURLKeys = map[string]string{
	keyEmbedProvider: keyEmbedBaseURL,
	keyLLMProvider:   keyLLMBaseURL,
}

func checkEnum(key, value string) error {
	switch key {
	case keyEmbedProvider, keyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: invalid provider %q", domain.ErrInvalidInput, value)
		}
	case keyVectorBackend:
		if !domain.VectorBackend(value).IsValid() {
			return fmt.Errorf("%w: invalid vector backend %q", domain.ErrInvalidInput, value)
		}
	case keyRetrievalMode:
		if !domain.RetrievalMode(value).IsValid() {
			return fmt.Errorf("%w: invalid retrieval mode %q", domain.ErrInvalidInput, value)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	valid := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.BaseURL = baseURLFor(settings.Embedding.Provider, provider, settings.Embedding.BaseURL)
	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if m, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = m
	}
	settings.Embedding.APIKey = apiKey

	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || provider == domain.AIProviderLocal {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.BaseURL = baseURLFor(settings.LLM.Provider, provider, settings.LLM.BaseURL)
	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else if m, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = m
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// baseURLFor keeps a configured endpoint while the provider stays the same.
// A provider change resets it to that provider's default.
func baseURLFor(from, to domain.AIProvider, current string) string {
	if from == to && current != "" {
		return current
	}
	return domain.DefaultBaseURL(to)
}

// Validate checks the stored configuration against the schema and the
// resulting settings for consistency.
func (s *SettingsService) Validate() error {
	if s.configValidator != nil {
		if err := s.configValidator.Validate(s.configStore.All()); err != nil {
			return err
		}
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	var problems []string
	if !settings.Embedding.IsConfigured() {
		problems = append(problems, fmt.Sprintf("embedding provider %q is not fully configured", settings.Embedding.Provider))
	}
	if !settings.VectorStore.Backend.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid vector backend %q", settings.VectorStore.Backend))
	}
	if settings.VectorStore.Backend == domain.VectorBackendPGVector && settings.VectorStore.DSN == "" {
		problems = append(problems, "pgvector backend requires vector_store.dsn")
	}
	if !settings.Retrieval.Mode.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid retrieval mode %q", settings.Retrieval.Mode))
	}
	if settings.Chunking.Size <= 0 {
		problems = append(problems, "chunking.size must be positive")
	}
	if settings.Chunking.Overlap < 0 {
		problems = append(problems, "chunking.overlap must not be negative")
	}
	if settings.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Snapshot returns the effective settings keyed by config key, with
// secrets masked.
func (s *SettingsService) Snapshot() map[string]any {
	settings, err := s.Get()
	if err != nil {
		return map[string]any{}
	}
	return map[string]any{
		keyEmbedProvider:    settings.Embedding.Provider.String(),
		keyEmbedModel:       settings.Embedding.Model,
		keyEmbedBaseURL:     settings.Embedding.BaseURL,
		keyEmbedAPIKey:      MaskSecret(settings.Embedding.APIKey),
		keyEmbedDims:        settings.Embedding.Dimensions,
		keyEmbedBatchSize:   settings.Embedding.BatchSize,
		keyLLMProvider:      settings.LLM.Provider.String(),
		keyLLMModel:         settings.LLM.Model,
		keyLLMBaseURL:       settings.LLM.BaseURL,
		keyLLMAPIKey:        MaskSecret(settings.LLM.APIKey),
		keyVectorBackend:    settings.VectorStore.Backend.String(),
		keyVectorCollection: settings.VectorStore.Collection,
		keyVectorPath:       settings.VectorStore.Path,
		keyVectorURL:        settings.VectorStore.URL,
		keyVectorDSN:        MaskSecret(settings.VectorStore.DSN),
		keyVectorAPIKey:     MaskSecret(settings.VectorStore.APIKey),
		keyChunkSize:        settings.Chunking.Size,
		keyChunkOverlap:     settings.Chunking.Overlap,
		keyChunkKeywords:    settings.Chunking.Keywords,
		keyRetrievalMode:    string(settings.Retrieval.Mode),
		keyRetrievalTopK:    settings.Retrieval.TopK,
		keyThreshold:        settings.Retrieval.SimilarityThreshold,
		keyKeywordIndexPath: settings.Retrieval.KeywordIndexPath,
		keyMaxContext:       settings.Generation.MaxContextLength,
		keyTemperature:      settings.Generation.Temperature,
		keyMaxTokens:        settings.Generation.MaxTokens,
		keySessionTTL:       settings.Session.TTL.String(),
		keySessionMaxTurns:  settings.Session.MaxTurns,
	}
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetPipelineConfig returns the post-processor pipeline configuration.
func (s *SettingsService) GetPipelineConfig() domain.PipelineConfig {
	settings, err := s.Get()
	if err != nil {
		return domain.DefaultPipelineConfig()
	}
	return domain.PipelineConfigFor(settings.Chunking)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	val := s.configStore.GetString(keyVectorBackend)
	if val == "" {
		return defaultVal
	}
	b := domain.VectorBackend(val)
	if !b.IsValid() {
		return defaultVal
	}
	return b
}

func (s *SettingsService) getMode(defaultVal domain.RetrievalMode) domain.RetrievalMode {
	val := s.configStore.GetString(keyRetrievalMode)
	if val == "" {
		return defaultVal
	}
	m := domain.RetrievalMode(val)
	if !m.IsValid() {
		return defaultVal
	}
	return m
}
