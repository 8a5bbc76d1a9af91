// Package ingest turns raw provider items into deduplicated canonical
// records.
//
// The aggregator fans out to every configured source connector, gathers all
// results behind a barrier, normalizes item by item, and upserts into the
// store keyed by a content-derived dedup key. Failures stay where they
// happen: a broken source never aborts the run, a malformed item never
// aborts its source, a failed upsert never aborts the batch.
package ingest
