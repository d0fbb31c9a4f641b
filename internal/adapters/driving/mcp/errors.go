// Package mcp provides an MCP (Model Context Protocol) server adapter for libris.
// It lets AI assistants ingest books, retrieve context and ask grounded questions.
package mcp

import "errors"

// ErrMissingRAGService is returned when the RAG service is not provided.
var ErrMissingRAGService = errors.New("mcp: rag service is required")

// ErrTasksUnavailable is returned by run_task when no task service is wired.
var ErrTasksUnavailable = errors.New("mcp: task service is not configured")

// ErrDocumentsUnavailable is returned when a file path is ingested without a
// document service.
var ErrDocumentsUnavailable = errors.New("mcp: document service is not configured")
