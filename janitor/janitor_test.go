package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mare-synchronos/filecached/clock"
	"github.com/mare-synchronos/filecached/hashid"
	"github.com/mare-synchronos/filecached/metadatastore"
	"github.com/mare-synchronos/filecached/pathmap"
)

func seed(t *testing.T, root string, h hashid.Hash, size int, at, mt time.Time) {
	t.Helper()
	path := pathmap.PathFor(root, h)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o777))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o666))
	require.NoError(t, os.Chtimes(path, at, mt))
}

func exists(root string, h hashid.Hash) bool {
	_, ok := pathmap.InfoFor(root, h)
	return ok
}

func TestRetentionPrecedesSizeCap(t *testing.T) {
	hotRoot := t.TempDir()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFake(now)

	store := metadatastore.NewMemory()

	// 3 stale files (20 days old), 10 MiB each, well within the cap alone.
	for i := 0; i < 3; i++ {
		h := hashid.Normalize(string(rune('A' + i)))
		seed(t, hotRoot, h, 10<<20, now.AddDate(0, 0, -20), now.AddDate(0, 0, -20))
		store.Put(metadatastore.Record{Hash: h, Uploaded: true, UploadDate: now.AddDate(0, 0, -30), Size: 10 << 20})
	}
	// 2 current files, 10 MiB each; cap is 15 MiB so one of these must be evicted too,
	// but only after the stale ones are gone and not counted toward the cap.
	for i := 0; i < 2; i++ {
		h := hashid.Normalize(string(rune('X' + i)))
		seed(t, hotRoot, h, 10<<20, now.Add(-time.Duration(i)*time.Hour), now)
		store.Put(metadatastore.Record{Hash: h, Uploaded: true, UploadDate: now.AddDate(0, 0, -1), Size: 10 << 20})
	}

	j := New(Config{
		HotRoot:                hotRoot,
		HotRetentionDays:       14,
		HotSizeCapBytes:        15 << 20,
		CleanupIntervalMinutes: 15,
	}, store, nil, nil, fake)

	require.NoError(t, j.RunOnce(context.Background()))

	for i := 0; i < 3; i++ {
		h := hashid.Normalize(string(rune('A' + i)))
		require.False(t, exists(hotRoot, h), "stale file %v should have been deleted by retention", h)
		_, ok, _ := store.Get(context.Background(), h)
		require.False(t, ok, "metadata for stale file %v should have been removed", h)
	}

	// Of the two current files, the older-accessed one (X+1, accessed 1h
	// before now) should be evicted to bring total under the 15MiB cap;
	// the more recently accessed one (X) should survive.
	require.True(t, exists(hotRoot, hashid.Normalize("X")), "most-recently-accessed current file should survive the size cap")
	require.False(t, exists(hotRoot, hashid.Normalize("Y")), "least-recently-accessed current file should have been evicted")
}

func TestOrphanFileIsPurged(t *testing.T) {
	hotRoot := t.TempDir()
	now := time.Now()
	fake := clock.NewFake(now)
	store := metadatastore.NewMemory()

	orphan := hashid.Normalize("orphan1")
	seed(t, hotRoot, orphan, 100, now, now)
	// no metadata record for `orphan` at all.

	j := New(Config{HotRoot: hotRoot, HotRetentionDays: 14, CleanupIntervalMinutes: 15}, store, nil, nil, fake)
	require.NoError(t, j.RunOnce(context.Background()))
	require.False(t, exists(hotRoot, orphan), "file with no metadata record should be purged as an orphan")
}

func TestIdempotentAcrossBackToBackIterations(t *testing.T) {
	hotRoot := t.TempDir()
	now := time.Now()
	fake := clock.NewFake(now)
	store := metadatastore.NewMemory()

	h := hashid.Normalize("keepme")
	seed(t, hotRoot, h, 5, now, now)
	store.Put(metadatastore.Record{Hash: h, Uploaded: true, UploadDate: now.AddDate(0, 0, -1), Size: 5})

	j := New(Config{HotRoot: hotRoot, HotRetentionDays: 14, CleanupIntervalMinutes: 15}, store, nil, nil, fake)

	require.NoError(t, j.RunOnce(context.Background()), "first RunOnce")
	firstExists := exists(hotRoot, h)

	require.NoError(t, j.RunOnce(context.Background()), "second RunOnce")
	secondExists := exists(hotRoot, h)

	require.Equal(t, firstExists, secondExists, "expected the surviving file set to be stable across iterations")
	require.True(t, secondExists)
}

func TestStuckUploadRemoved(t *testing.T) {
	hotRoot := t.TempDir()
	now := time.Now()
	fake := clock.NewFake(now)
	store := metadatastore.NewMemory()

	h := hashid.Normalize("stuck")
	store.Put(metadatastore.Record{Hash: h, Uploaded: false, UploadDate: now.Add(-30 * time.Minute)})

	j := New(Config{HotRoot: hotRoot, CleanupIntervalMinutes: 15}, store, nil, nil, fake)
	require.NoError(t, j.RunOnce(context.Background()))
	_, ok, _ := store.Get(context.Background(), h)
	require.False(t, ok, "stuck upload record should have been removed")
}

func TestActiveTransferNeverDeleted(t *testing.T) {
	hotRoot := t.TempDir()
	now := time.Now()
	fake := clock.NewFake(now)
	store := metadatastore.NewMemory()

	h := hashid.Normalize("inflight")
	seed(t, hotRoot, h, 10, now.AddDate(0, 0, -30), now.AddDate(0, 0, -30))
	store.Put(metadatastore.Record{Hash: h, Uploaded: true, UploadDate: now.AddDate(0, 0, -40), Size: 10})

	j := New(Config{HotRoot: hotRoot, HotRetentionDays: 14, CleanupIntervalMinutes: 15}, store, nil, alwaysActive{}, fake)
	require.NoError(t, j.RunOnce(context.Background()))
	require.True(t, exists(hotRoot, h), "file with an in-flight transfer must never be deleted, even if expired")
}

func TestActiveStagingFileSurvivesOrphanPass(t *testing.T) {
	hotRoot := t.TempDir()
	now := time.Now()
	fake := clock.NewFake(now)
	store := metadatastore.NewMemory()

	h := hashid.Normalize("midwrite")
	stagingPath := pathmap.StagingPathFor(hotRoot, h)
	require.NoError(t, os.MkdirAll(filepath.Dir(stagingPath), 0o777))
	require.NoError(t, os.WriteFile(stagingPath, []byte("partial"), 0o666))
	// no metadata record for h: the in-progress fetch hasn't materialized yet.

	j := New(Config{HotRoot: hotRoot, HotRetentionDays: 14, CleanupIntervalMinutes: 15}, store, nil, alwaysActive{}, fake)
	require.NoError(t, j.RunOnce(context.Background()))

	_, err := os.Stat(stagingPath)
	require.NoError(t, err, "a staging file for an active transfer must survive the orphan pass")
}

type alwaysActive struct{}

func (alwaysActive) Contains([]hashid.Hash) bool { return true }
