// Package normalisers turns book files (PDF, DOCX, HTML, Markdown, plain
// text) into Document text ready for chunking. RegisterDefaults installs
// every format into a Registry, which picks by MIME type and priority.
package normalisers
