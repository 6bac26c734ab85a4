package metadatastore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/mare-synchronos/filecached/hashid"
)

// recordsBucket is the single bucket holding every Record, keyed by its
// normalized hash, following storage_persistent.go's one-bucket-per-concern
// layout (RootBucket, DataTsBucket, ...).
const recordsBucket = "records"

// Bolt is a Store backed by an embedded bbolt database file, following
// backend/cache/storage_persistent.go's Persistent wrapper.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a bbolt database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open metadata db %v", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(recordsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to init metadata db %v", path)
	}
	return &Bolt{db: db}, nil
}

// Close releases the underlying database handle.
func (b *Bolt) Close() error {
	return b.db.Close()
}

var _ Store = (*Bolt)(nil)

func (b *Bolt) Get(_ context.Context, h hashid.Hash) (Record, bool, error) {
	var rec Record
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		val := bucket.Get([]byte(h.String()))
		if val == nil {
			return nil
		}
		found = true
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return Record{}, false, err
	}
	return rec, found, nil
}

func (b *Bolt) ForEach(_ context.Context, fn func(Record) error) error {
	return b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(recordsBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrapf(err, "corrupt metadata record for %s", k)
			}
			return fn(rec)
		})
	})
}

func (b *Bolt) NewTxn(_ context.Context) (Txn, error) {
	tx, err := b.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &boltTxn{tx: tx}, nil
}

type boltTxn struct {
	tx *bolt.Tx
}

var _ Txn = (*boltTxn)(nil)

func (t *boltTxn) Put(rec Record) error {
	bucket := t.tx.Bucket([]byte(recordsBucket))
	encoded, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "couldn't marshal metadata record for %v", rec.Hash)
	}
	return bucket.Put([]byte(rec.Hash.String()), encoded)
}

func (t *boltTxn) Delete(h hashid.Hash) error {
	bucket := t.tx.Bucket([]byte(recordsBucket))
	return bucket.Delete([]byte(h.String()))
}

func (t *boltTxn) Commit() error {
	return t.tx.Commit()
}

func (t *boltTxn) Rollback() error {
	return t.tx.Rollback()
}
