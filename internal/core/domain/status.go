package domain

// Component health values reported by Status.
const (
	StatusHealthy     = "healthy"
	StatusUnavailable = "unavailable"
	StatusDisabled    = "disabled"
)

// ComponentStatus describes one collaborator of the pipeline.
type ComponentStatus struct {
	Status  string         `json:"status" yaml:"status"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// ServiceStatus is the health report of the RAG pipeline.
type ServiceStatus struct {
	Embedding   ComponentStatus `json:"embedding" yaml:"embedding"`
	VectorStore ComponentStatus `json:"vector_store" yaml:"vector_store"`
	Generation  ComponentStatus `json:"generation" yaml:"generation"`
	Config      map[string]any  `json:"config" yaml:"config"`
}

// Healthy reports whether embedding and vector store are both usable.
// Generation is optional because answers degrade to extractive replies.
func (s ServiceStatus) Healthy() bool {
	return s.Embedding.Status == StatusHealthy && s.VectorStore.Status == StatusHealthy
}
