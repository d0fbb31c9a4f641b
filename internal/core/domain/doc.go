// Package domain defines the core entities for libris.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: text handed to ingestion, after normalisation
//   - DocumentChunk: a stored, embedded unit of a document
//   - ContextChunk: a retrieval-time result fed to generation
//   - Answer: the outcome of a retrieval-augmented answer
//   - TaskKind: the closed set of book analysis tasks
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
