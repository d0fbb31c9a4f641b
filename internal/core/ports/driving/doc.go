// Package driving declares what the CLI, MCP server, HTTP API and chat TUI
// may ask of libris: ingestion, retrieval, answers, chat sessions, tasks
// and settings. The app container satisfies all of them.
package driving
