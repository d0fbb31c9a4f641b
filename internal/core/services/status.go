package services

import (
	"context"

	"github.com/custodia-labs/libris/internal/core/domain"
)

// Status reports the health of the embedding provider, vector index and LLM.
// It never fails; unreachable components are reported as unavailable.
func (s *RAGService) Status(ctx context.Context) domain.ServiceStatus {
	st := domain.ServiceStatus{
		Embedding:   embeddingStatus(ctx, s.retrieval.Embedder()),
		VectorStore: indexStatus(ctx, s.retrieval),
		Generation:  s.generationStatus(ctx),
		Config:      map[string]any{},
	}
	if s.snapshot != nil {
		st.Config = s.snapshot()
	}
	st.Config["retrieval.mode"] = string(s.retrieval.Mode())
	return st
}

func embeddingStatus(ctx context.Context, p *EmbeddingProvider) domain.ComponentStatus {
	details := map[string]any{
		"model":      p.ModelName(),
		"dimensions": p.Dimensions(),
	}
	if err := p.Ping(ctx); err != nil {
		details["error"] = err.Error()
		return domain.ComponentStatus{Status: domain.StatusUnavailable, Details: details}
	}
	return domain.ComponentStatus{Status: domain.StatusHealthy, Details: details}
}

func indexStatus(ctx context.Context, r *RetrievalService) domain.ComponentStatus {
	stats, err := r.Index().Stats(ctx)
	if err != nil {
		return domain.ComponentStatus{
			Status: domain.StatusUnavailable,
			Details: map[string]any{
				"dimensions": r.Index().Dimensions(),
				"error":      err.Error(),
			},
		}
	}
	return domain.ComponentStatus{
		Status: domain.StatusHealthy,
		Details: map[string]any{
			"backend":    stats.Backend,
			"collection": stats.Collection,
			"dimensions": stats.Dimensions,
			"metric":     stats.Metric,
			"count":      stats.Count,
		},
	}
}

func (s *RAGService) generationStatus(ctx context.Context) domain.ComponentStatus {
	if s.llm == nil {
		return domain.ComponentStatus{
			Status:  domain.StatusDisabled,
			Details: map[string]any{"model": ModelExtractive},
		}
	}
	details := map[string]any{"model": s.llm.ModelName()}
	if err := s.llm.Ping(ctx); err != nil {
		details["error"] = err.Error()
		return domain.ComponentStatus{Status: domain.StatusUnavailable, Details: details}
	}
	return domain.ComponentStatus{Status: domain.StatusHealthy, Details: details}
}
