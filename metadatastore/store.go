// Package metadatastore defines MetadataRecord and the MetadataStore
// collaborator that owns it. The schema and transport of the real registry
// are out of scope for this module (spec.md §1: "treated as a transactional
// key-value store keyed by hash with the attributes listed in §3"); this
// package carries the interface plus a go.etcd.io/bbolt-backed reference
// implementation, grounded on backend/cache/storage_persistent.go.
package metadatastore

import (
	"context"
	"time"

	"github.com/mare-synchronos/filecached/hashid"
)

// Record mirrors spec.md §3's MetadataRecord table.
type Record struct {
	Hash       hashid.Hash
	Uploaded   bool
	UploadDate time.Time
	// Size is the byte length; 0 means unknown and must be backfilled.
	Size int64
}

// Store is a transactional key-value store keyed by Hash. Implementations
// must make ForEach safe to call concurrently with Get, but callers should
// not mutate records observed through ForEach except via a Txn.
type Store interface {
	Get(ctx context.Context, h hashid.Hash) (Record, bool, error)
	// ForEach calls fn for every record currently in the store, in
	// unspecified order. fn returning an error stops iteration and
	// ForEach returns that error.
	ForEach(ctx context.Context, fn func(Record) error) error
	// NewTxn opens a write transaction. The caller must Commit or Rollback.
	NewTxn(ctx context.Context) (Txn, error)
}

// Txn batches Put/Delete operations for an atomic commit, matching the
// Janitor's need (spec.md §4.5) to accumulate deletions and size backfills
// in memory and commit them transactionally at the end of an iteration.
type Txn interface {
	Put(Record) error
	Delete(h hashid.Hash) error
	Commit() error
	Rollback() error
}
