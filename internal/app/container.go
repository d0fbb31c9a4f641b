// Package app is the composition root. It wires driven adapters into core
// services and hands driving adapters the ports they need.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/libris/internal/adapters/driven/ai"
	"github.com/custodia-labs/libris/internal/adapters/driven/config/file"
	"github.com/custodia-labs/libris/internal/adapters/driven/config/schema"
	"github.com/custodia-labs/libris/internal/adapters/driven/search/bleve"
	"github.com/custodia-labs/libris/internal/adapters/driven/vector"
	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/core/ports/driving"
	"github.com/custodia-labs/libris/internal/core/services"
	"github.com/custodia-labs/libris/internal/logger"
	"github.com/custodia-labs/libris/internal/normalisers"
	"github.com/custodia-labs/libris/internal/postprocessors"
)

// Ensure Container serves every driving port.
var (
	_ driving.RAGService      = (*Container)(nil)
	_ driving.DocumentService = (*Container)(nil)
	_ driving.TaskService     = (*Container)(nil)
)

// Factories used to build driven adapters. Tests replace them.
type (
	EmbeddingFactory func(ctx context.Context, s *domain.EmbeddingSettings) (driven.EmbeddingService, error)
	LLMFactory       func(ctx context.Context, s *domain.LLMSettings) (driven.LLMService, error)
	IndexFactory     func(s *domain.VectorStoreSettings, dims int) (driven.VectorIndex, error)
	KeywordFactory   func(path string) (driven.SearchEngine, error)
)

// Option configures a Container.
type Option func(*Container)

// WithConfigStore replaces the TOML config store.
func WithConfigStore(store driven.ConfigStore) Option {
	return func(c *Container) {
		c.configStore = store
	}
}

// WithPromptStore replaces the file prompt store.
func WithPromptStore(store driven.PromptStore) Option {
	return func(c *Container) {
		c.prompts = store
	}
}

// WithDataDir sets the directory holding prompts, the SQLite database and
// the keyword index.
func WithDataDir(dir string) Option {
	return func(c *Container) {
		c.dataDir = dir
	}
}

// WithEmbeddingFactory replaces how the embedding backend is created.
func WithEmbeddingFactory(f EmbeddingFactory) Option {
	return func(c *Container) {
		c.newEmbedding = f
	}
}

// WithLLMFactory replaces how the LLM backend is created.
func WithLLMFactory(f LLMFactory) Option {
	return func(c *Container) {
		c.newLLM = f
	}
}

// WithIndexFactory replaces how the vector index is opened.
func WithIndexFactory(f IndexFactory) Option {
	return func(c *Container) {
		c.newIndex = f
	}
}

// WithKeywordFactory replaces how the keyword index is opened.
func WithKeywordFactory(f KeywordFactory) Option {
	return func(c *Container) {
		c.newKeyword = f
	}
}

// pipeline holds the lazily built collaborators.
type pipeline struct {
	embedding driven.EmbeddingService
	index     driven.VectorIndex
	llm       driven.LLMService
	keyword   driven.SearchEngine
	rag       *services.RAGService
	tasks     *services.TaskDispatcher
	documents *services.DocumentService
}

func (p *pipeline) close() error {
	var errs []error
	if p.keyword != nil {
		errs = append(errs, p.keyword.Close())
	}
	if p.llm != nil {
		errs = append(errs, p.llm.Close())
	}
	if p.index != nil {
		errs = append(errs, p.index.Close())
	}
	if p.embedding != nil {
		errs = append(errs, p.embedding.Close())
	}
	return errors.Join(errs...)
}

// Container owns configuration, the session registry and the lazily
// initialised RAG pipeline. A failed initialisation is returned to the
// caller and retried on the next call.
type Container struct {
	configStore driven.ConfigStore
	prompts     driven.PromptStore
	settings    *services.SettingsService
	sessions    *services.SessionRegistry
	normalisers *normalisers.Registry
	processors  *postprocessors.Registry
	dataDir     string

	newEmbedding EmbeddingFactory
	newLLM       LLMFactory
	newIndex     IndexFactory
	newKeyword   KeywordFactory

	mu    sync.Mutex
	built *pipeline
}

// NewContainer loads configuration and prepares the lazy pipeline.
// configPath selects the TOML file; empty falls back to $LIBRIS_CONFIG and
// then ~/.libris/config.toml.
func NewContainer(configPath string, opts ...Option) (*Container, error) {
	c := &Container{
		newEmbedding: createEmbedding,
		newLLM:       createLLM,
		newIndex:     vector.New,
		newKeyword:   openKeyword,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.configStore == nil {
		store, err := openConfigStore(configPath)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		c.configStore = store
	}

	if c.dataDir == "" {
		if p := c.configStore.Path(); filepath.IsAbs(p) {
			c.dataDir = filepath.Dir(p)
		} else {
			dir, err := file.DefaultDir()
			if err != nil {
				return nil, err
			}
			c.dataDir = dir
		}
	}

	if c.prompts == nil {
		prompts, err := file.NewPromptStore(filepath.Join(c.dataDir, "prompts"), services.DefaultPrompts())
		if err != nil {
			return nil, fmt.Errorf("open prompts: %w", err)
		}
		c.prompts = prompts
	}

	c.settings = services.NewSettingsService(c.configStore, ai.NewConfigValidator())
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("load config schema: %w", err)
	}
	c.settings.SetConfigValidator(validator)

	settings, err := c.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	c.sessions = services.NewSessionRegistry(settings.Session.TTL, settings.Session.MaxTurns)

	c.normalisers = normalisers.NewDefaultRegistry()
	c.processors = postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(c.processors)

	return c, nil
}

func openConfigStore(path string) (*file.ConfigStore, error) {
	if path == "" {
		path = os.Getenv(file.EnvConfigPath)
	}
	if path != "" {
		return file.NewConfigStoreAt(path)
	}
	return file.NewConfigStore("")
}

// Settings returns the settings service. It never needs the pipeline.
func (c *Container) Settings() driving.SettingsService {
	return c.settings
}

// Sessions returns the chat session registry.
func (c *Container) Sessions() *services.SessionRegistry {
	return c.sessions
}

// ConfigPath returns the configuration file in use.
func (c *Container) ConfigPath() string {
	return c.configStore.Path()
}

// SupportsFile reports whether the file extension has a normaliser.
func (c *Container) SupportsFile(path string) bool {
	return c.normalisers.Supports(path)
}

// StartJanitor evicts expired chat sessions until ctx is done.
func (c *Container) StartJanitor(ctx context.Context) {
	c.sessions.StartJanitor(ctx, time.Minute)
}

// Close releases every client acquired by the pipeline. The container can
// be used again afterwards; the pipeline is rebuilt on demand.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.built == nil {
		return nil
	}
	err := c.built.close()
	c.built = nil
	return err
}

// pipeline returns the built pipeline, constructing it on first use.
func (c *Container) pipeline(ctx context.Context) (*pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built != nil {
		return c.built, nil
	}

	p, err := c.build(ctx)
	if err != nil {
		logger.Warn("pipeline initialisation failed: %v", err)
		return nil, err
	}
	c.built = p
	return p, nil
}

func (c *Container) build(ctx context.Context) (_ *pipeline, err error) {
	logger.Section("Initialising pipeline")

	settings, err := c.settings.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	p := &pipeline{}
	defer func() {
		if err != nil {
			_ = p.close()
		}
	}()

	p.embedding, err = c.newEmbedding(ctx, &settings.Embedding)
	if err != nil {
		return nil, err
	}
	embedder := services.NewEmbeddingProvider(p.embedding, settings.Embedding.Dimensions,
		services.WithBatchSize(settings.Embedding.BatchSize))
	logger.Debug("embedding: %s (%s, %d dims)", settings.Embedding.Provider, embedder.ModelName(), embedder.Dimensions())

	store := settings.VectorStore
	if store.Backend == domain.VectorBackendSQLite && store.Path == "" {
		store.Path = filepath.Join(c.dataDir, "data", "libris.db")
	}
	p.index, err = c.newIndex(&store, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	if err = p.index.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialise %s index: %w", store.Backend, err)
	}
	logger.Debug("vector index: %s collection %s", store.Backend, store.Collection)

	chunking, err := postprocessors.Build(c.processors, domain.PipelineConfigFor(settings.Chunking))
	if err != nil {
		return nil, fmt.Errorf("build chunking pipeline: %w", err)
	}

	retrievalOpts := []services.RetrievalOption{services.WithDefaultTopK(settings.Retrieval.TopK)}
	if settings.Retrieval.Mode == domain.RetrievalModeHybrid {
		path := settings.Retrieval.KeywordIndexPath
		if path == "" {
			path = filepath.Join(c.dataDir, "data", "keyword.bleve")
		}
		p.keyword, err = c.newKeyword(path)
		if err != nil {
			return nil, fmt.Errorf("open keyword index: %w", err)
		}
		retrievalOpts = append(retrievalOpts, services.WithKeywordIndex(p.keyword, settings.Retrieval.Mode))
		logger.Debug("keyword index: %s", path)
	}
	retrieval := services.NewRetrievalService(embedder, p.index, chunking, retrievalOpts...)

	p.llm, err = c.newLLM(ctx, &settings.LLM)
	if err != nil {
		// Generation is optional; answers fall back to extractive replies.
		logger.Warn("llm unavailable, answers will be extractive: %v", err)
		p.llm, err = nil, nil
	}

	ragOpts := []services.RAGOption{
		services.WithPromptStore(c.prompts),
		services.WithSessions(c.sessions),
		services.WithGenerationSettings(settings.Generation),
		services.WithConfigSnapshot(c.settings.Snapshot),
	}
	if p.llm != nil {
		ragOpts = append(ragOpts, services.WithLLM(p.llm))
	}
	p.rag = services.NewRAGService(retrieval, ragOpts...)

	p.tasks, err = services.NewTaskDispatcher(services.DefaultTaskHandlers(p.llm, c.prompts, p.rag)...)
	if err != nil {
		return nil, err
	}

	p.documents = services.NewDocumentService(c.normalisers, p.rag)
	return p, nil
}

func createEmbedding(ctx context.Context, s *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !s.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider %q is not configured. Run 'libris config set embedding.provider ...'",
			domain.ErrEmbeddingUnavailable, s.Provider)
	}
	svc, err := ai.CreateEmbeddingService(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

func createLLM(ctx context.Context, s *domain.LLMSettings) (driven.LLMService, error) {
	if !s.IsConfigured() {
		return nil, nil
	}
	return ai.CreateLLMService(ctx, s)
}

func openKeyword(path string) (driven.SearchEngine, error) {
	engine, err := bleve.NewEngine(path)
	if err != nil {
		return nil, err
	}
	return engine, nil
}
