// Package store persists the rule snapshot and serves the lookups the
// validator needs.
//
// Three backends share one schema: "sqlite" (modernc.org/sqlite, the
// default), "sqlite3" (github.com/mattn/go-sqlite3) and "postgres"
// (pgx through database/sql). Queries are written with ? placeholders and
// rebound for Postgres.
//
// ReplaceSnapshot swaps every table of a build inside one transaction, so
// concurrent validations observe either the old snapshot or the new one.
// CachedSource fronts the lookups with expiring LRU caches.
package store
