package mcp

import (
	"github.com/custodia-labs/libris/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// RAG ingests, retrieves and answers.
	RAG driving.RAGService

	// Documents ingests files by path.
	Documents driving.DocumentService

	// Tasks runs book analysis tasks.
	Tasks driving.TaskService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.RAG == nil {
		return ErrMissingRAGService
	}
	// Documents and Tasks are optional
	return nil
}
