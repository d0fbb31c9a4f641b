// Package services implements the driving port interfaces.
// Services contain the core business logic of the retrieval-augmented
// pipeline and orchestrate calls to driven ports (adapters).
//
// Services are pure Go with no CGO; the only third-party imports are
// small helpers (uuid, rate limiting, text splitting).
package services
