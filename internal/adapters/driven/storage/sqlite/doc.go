// Package sqlite provides SQLite-backed implementations of the
// persistence ports. A single Store owns the database connection and
// hands out per-interface wrappers, with the schema managed through
// embedded migrations.
package sqlite
