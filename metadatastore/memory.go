package metadatastore

import (
	"context"
	"sync"

	"github.com/mare-synchronos/filecached/hashid"
)

// Memory is an in-process Store, used by tests in place of a real
// transactional registry. It is not meant for production use: Txn.Commit
// simply applies the buffered writes under a single mutex, which is
// sufficient to exercise the Janitor's batching contract without a real
// database dependency.
type Memory struct {
	mu      sync.Mutex
	records map[hashid.Hash]Record
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{records: make(map[hashid.Hash]Record)}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, h hashid.Hash) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[h]
	return rec, ok, nil
}

func (m *Memory) ForEach(_ context.Context, fn func(Record) error) error {
	m.mu.Lock()
	snapshot := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		snapshot = append(snapshot, rec)
	}
	m.mu.Unlock()

	for _, rec := range snapshot {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) NewTxn(context.Context) (Txn, error) {
	return &memoryTxn{store: m}, nil
}

// Put is a convenience for tests seeding the store directly.
func (m *Memory) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Hash] = rec
}

type memoryTxn struct {
	store   *Memory
	puts    []Record
	deletes []hashid.Hash
}

var _ Txn = (*memoryTxn)(nil)

func (t *memoryTxn) Put(rec Record) error {
	t.puts = append(t.puts, rec)
	return nil
}

func (t *memoryTxn) Delete(h hashid.Hash) error {
	t.deletes = append(t.deletes, h)
	return nil
}

func (t *memoryTxn) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, rec := range t.puts {
		t.store.records[rec.Hash] = rec
	}
	for _, h := range t.deletes {
		delete(t.store.records, h)
	}
	return nil
}

func (t *memoryTxn) Rollback() error {
	t.puts = nil
	t.deletes = nil
	return nil
}
