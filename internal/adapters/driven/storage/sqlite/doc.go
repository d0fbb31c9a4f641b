// Package sqlite provides the default on-disk vector index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Vectors are stored as little-endian
// float32 blobs and searched by a linear cosine scan, which is adequate for a
// personal library of books.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Several collections may share one database file; each records the vector
// dimension it was created with.
//
// # Data Location
//
// By default, the database is stored at ~/.libris/data/libris.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
