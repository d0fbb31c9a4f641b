// Package schema validates the configuration tree against an embedded
// JSON Schema before settings are derived from it.
package schema
