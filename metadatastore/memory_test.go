package metadatastore

import (
	"context"
	"testing"
	"time"

	"github.com/mare-synchronos/filecached/hashid"
)

func TestMemoryTxnCommitsAtomically(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put(Record{Hash: hashid.Normalize("aa"), Uploaded: true, Size: 10})
	m.Put(Record{Hash: hashid.Normalize("bb"), Uploaded: true, Size: 20})

	txn, err := m.NewTxn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Delete(hashid.Normalize("aa")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Put(Record{Hash: hashid.Normalize("cc"), Uploaded: false, UploadDate: time.Now()}); err != nil {
		t.Fatal(err)
	}

	// Uncommitted mutations must not be visible yet.
	if _, ok, _ := m.Get(ctx, hashid.Normalize("cc")); ok {
		t.Fatal("uncommitted Put should not be visible before Commit")
	}
	if _, ok, _ := m.Get(ctx, hashid.Normalize("aa")); !ok {
		t.Fatal("uncommitted Delete should not remove the record before Commit")
	}

	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := m.Get(ctx, hashid.Normalize("aa")); ok {
		t.Fatal("aa should be deleted after Commit")
	}
	if _, ok, _ := m.Get(ctx, hashid.Normalize("cc")); !ok {
		t.Fatal("cc should be present after Commit")
	}
}

func TestMemoryForEach(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put(Record{Hash: hashid.Normalize("aa"), Uploaded: true, Size: 10})
	m.Put(Record{Hash: hashid.Normalize("bb"), Uploaded: true, Size: 20})

	seen := map[hashid.Hash]bool{}
	err := m.ForEach(ctx, func(r Record) error {
		seen[r.Hash] = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 {
		t.Fatalf("ForEach saw %d records, want 2", len(seen))
	}
}
