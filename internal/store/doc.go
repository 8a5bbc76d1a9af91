// Package store is the persistence layer for aggregated listings.
//
// It owns all persisted record state. Aggregators and the cleanup sweeper
// only touch it through key-addressed upsert/find/delete operations, so
// writers of different record kinds never contend on the same rows.
//
// Drivers:
//   - "sqlite": SQLite database file (default)
//   - "memory": in-process map, used by tests and persistence-free dev runs
package store
