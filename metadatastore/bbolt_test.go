package metadatastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mare-synchronos/filecached/hashid"
)

func TestBoltRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenBolt(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := hashid.Normalize("aabbcc")
	txn, err := db.NewTxn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	rec := Record{Hash: h, Uploaded: true, UploadDate: time.Now().Truncate(time.Second), Size: 1234}
	if err := txn.Put(rec); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	got, ok, err := db.Get(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected record to be found after commit")
	}
	if got.Size != rec.Size || !got.UploadDate.Equal(rec.UploadDate) {
		t.Fatalf("round-tripped record = %+v, want %+v", got, rec)
	}
}

func TestBoltDeleteAndForEach(t *testing.T) {
	ctx := context.Background()
	db, err := OpenBolt(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, h := range []string{"aa", "bb", "cc"} {
		txn, err := db.NewTxn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if err := txn.Put(Record{Hash: hashid.Normalize(h), Uploaded: true}); err != nil {
			t.Fatal(err)
		}
		if err := txn.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	txn, err := db.NewTxn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := txn.Delete(hashid.Normalize("bb")); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	count := 0
	err = db.ForEach(ctx, func(Record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("ForEach count = %d, want 2", count)
	}
}
