// Package vector implements the durable similarity index backing retrieval.
//
// A [Store] is an append-only flat index over fixed-dimension vectors with a
// synchronized lookup of chunk text and metadata keyed by vector id. Ids are
// assigned sequentially starting at 0 and never contain gaps, so the lookup
// key set always equals the set of valid index positions.
//
// Durability is snapshot-based: [Store.Persist] writes two artifacts under
// the store directory, an index snapshot (vectors) and a lookup snapshot
// (string-keyed JSON). [Open] restores both, and falls back to a fresh empty
// store when either is missing or corrupt rather than failing startup.
//
// Store is safe for concurrent use: Add and Persist take the write lock,
// Search and Get run under the read lock.
package vector
