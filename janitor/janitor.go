// Package janitor implements the periodic maintenance sweep of spec.md
// §4.5: retention-based deletion, LRU size-cap eviction, orphan
// reconciliation against the metadata registry, and stuck-upload cleanup.
//
// It is grounded on backend/cache/storage_persistent.go's
// CleanChunksBySize (cursor-based oldest-first eviction against a bbolt
// timestamp index) and backend/cache/cache.go's CleanUpCache background
// ticker loop (time.Sleep between passes, guarded by a cleanup channel).
package janitor

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mare-synchronos/filecached/clock"
	"github.com/mare-synchronos/filecached/hashid"
	"github.com/mare-synchronos/filecached/logging"
	"github.com/mare-synchronos/filecached/metadatastore"
	"github.com/mare-synchronos/filecached/metrics"
	"github.com/mare-synchronos/filecached/pathmap"
)

// stuckUploadAge is the fixed threshold from spec.md §4.5.
const stuckUploadAge = 20 * time.Minute

// ActiveTransfers reports whether a hash currently has an in-flight peer
// fetch; the Janitor must never delete such a file out from under a
// waiter (spec.md §3).
type ActiveTransfers interface {
	Contains(hashes []hashid.Hash) bool
}

type noActiveTransfers struct{}

func (noActiveTransfers) Contains([]hashid.Hash) bool { return false }

// Config bounds one Janitor's behavior, mirroring spec.md §6's option
// table. A cap <= 0 disables size-cap enforcement for that tier; a
// forced-deletion value <= 0 disables it.
type Config struct {
	HotRoot  string
	ColdRoot string
	UseCold  bool

	HotRetentionDays  int
	ColdRetentionDays int
	HotForcedHours    int

	HotSizeCapBytes  int64
	ColdSizeCapBytes int64

	CleanupIntervalMinutes int
}

// Janitor runs the periodic maintenance loop.
type Janitor struct {
	cfg     Config
	store   metadatastore.Store
	metrics metrics.Sink
	active  ActiveTransfers
	clk     clock.Clock
	log     logging.Logger
}

// New constructs a Janitor. active and sink may be nil.
func New(cfg Config, store metadatastore.Store, sink metrics.Sink, active ActiveTransfers, clk clock.Clock) *Janitor {
	if sink == nil {
		sink = metrics.Noop{}
	}
	if active == nil {
		active = noActiveTransfers{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Janitor{cfg: cfg, store: store, metrics: sink, active: active, clk: clk, log: logging.New("janitor")}
}

// Run loops RunOnce on a wall-clock-aligned cadence until ctx is cancelled.
// Per spec.md §7, a failed iteration is logged and does not stop the loop.
func (j *Janitor) Run(ctx context.Context) {
	for {
		if err := j.RunOnce(ctx); err != nil {
			j.log.Errorf("iteration failed: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
		now := j.clk.Now()
		next := clock.NextAlignedBoundary(now, j.cfg.CleanupIntervalMinutes)
		delay := next.Sub(now)
		select {
		case <-ctx.Done():
			return
		case <-j.clk.After(delay):
		}
	}
}

// RunOnce performs a single maintenance pass, per spec.md §4.5's five
// numbered steps. Metadata changes accumulate on one Txn and commit
// atomically at the end; a failed commit loses the in-memory deletions for
// this pass and they are simply retried next iteration (spec.md §7,
// MetadataCommitError).
func (j *Janitor) RunOnce(ctx context.Context) error {
	now := j.clk.Now()

	metadata, err := j.snapshotMetadata(ctx)
	if err != nil {
		return err
	}

	txn, err := j.store.NewTxn(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = txn.Rollback()
		}
	}()

	removed := make(map[hashid.Hash]bool)

	if j.cfg.UseCold {
		if err := j.processTier(ctx, "cold", j.cfg.ColdRoot, metadata, txn, now,
			j.cfg.ColdRetentionDays, 0, true, j.cfg.ColdSizeCapBytes, removed); err != nil {
			return err
		}
	}

	if err := j.processTier(ctx, "hot", j.cfg.HotRoot, metadata, txn, now,
		j.cfg.HotRetentionDays, j.cfg.HotForcedHours, !j.cfg.UseCold, j.cfg.HotSizeCapBytes, removed); err != nil {
		return err
	}

	j.cleanUpStuckUploads(metadata, now, txn)

	if err := txn.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// snapshotMetadata reads every MetadataRecord once at the start of the
// iteration; both the outdated-file pass and the orphan pass key off this
// fixed snapshot, per testable property 6 ("not in the metadata key set at
// the start of an iteration").
func (j *Janitor) snapshotMetadata(ctx context.Context) (map[hashid.Hash]metadatastore.Record, error) {
	out := make(map[hashid.Hash]metadatastore.Record)
	err := j.store.ForEach(ctx, func(r metadatastore.Record) error {
		out[r.Hash] = r
		return nil
	})
	return out, err
}

// processTier runs the retention, orphan and size-cap passes for one tier
// in the order spec.md §4.5 calls "load-bearing": retention before
// size-cap, orphan collection over the post-retention set.
func (j *Janitor) processTier(ctx context.Context, tier, root string, metadata map[hashid.Hash]metadatastore.Record,
	txn metadatastore.Txn, now time.Time, retentionDays, forcedHours int, deleteFromMetadata bool,
	sizeCapBytes int64, removed map[hashid.Hash]bool) error {

	physical, err := enumerate(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	afterRetention, err := j.cleanUpOutdatedFiles(ctx, tier, physical, metadata, retentionDays, forcedHours, deleteFromMetadata, txn, now, removed)
	if err != nil {
		return err
	}

	afterOrphans := j.cleanUpOrphanedFiles(ctx, tier, afterRetention, metadata)

	// CleanUpFilesBeyondSizeLimit returns an empty map when sizeCapBytes
	// disables the cap (spec.md §4.5's "result unused" sentinel, mirrored
	// per DESIGN.md's Open Question #3). Its return value is otherwise
	// unused here: every eviction already adjusted the tier's gauges in
	// place, so the caller has no further use for the survivor set.
	j.cleanUpFilesBeyondSizeLimit(tier, afterOrphans, sizeCapBytes, deleteFromMetadata, txn, removed)
	return nil
}

type fileInfo struct {
	Path       string
	Size       int64
	ModTime    time.Time
	AccessTime time.Time
}

// enumerate walks root recursively and returns every regular file keyed by
// the upper-cased hash its filename normalizes to. Staging (".dl")
// leftovers are included deliberately: their name never matches a
// metadata key, so the orphan pass collects them.
func enumerate(root string) (map[hashid.Hash]fileInfo, error) {
	out := make(map[hashid.Hash]fileInfo)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, statErr := pathmap.StatDirect(path)
		if statErr != nil {
			return nil
		}
		h := hashid.Normalize(filepath.Base(path))
		out[h] = fileInfo{Path: info.Path, Size: info.Size, ModTime: info.ModTime, AccessTime: info.AccessTime}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (j *Janitor) cleanUpOutdatedFiles(ctx context.Context, tier string, physical map[hashid.Hash]fileInfo,
	metadata map[hashid.Hash]metadatastore.Record, retentionDays, forcedHours int, deleteFromMetadata bool,
	txn metadatastore.Txn, now time.Time, removed map[hashid.Hash]bool) (map[hashid.Hash]fileInfo, error) {

	survivors := make(map[hashid.Hash]fileInfo, len(physical))
	for h, info := range physical {
		survivors[h] = info
	}

	retention := time.Duration(retentionDays) * 24 * time.Hour
	forced := time.Duration(forcedHours) * time.Hour

	for h, rec := range metadata {
		if ctx.Err() != nil {
			return survivors, ctx.Err()
		}
		if !rec.Uploaded {
			continue
		}
		if j.active.Contains([]hashid.Hash{h}) {
			continue
		}

		info, present := physical[h]
		expired := false
		switch {
		case !present:
			expired = true
		case retentionDays > 0 && now.Sub(info.AccessTime) > retention:
			expired = true
		case forcedHours > 0 && now.Sub(info.ModTime) > forced:
			expired = true
		}

		if expired {
			if present {
				_ = os.Remove(info.Path)
				delete(survivors, h)
				j.metrics.DecFilesTotal(tier)
				j.metrics.SubFilesTotalSize(tier, info.Size)
			}
			removed[h] = true
			if deleteFromMetadata {
				_ = txn.Delete(h)
			}
			continue
		}

		if rec.Size == 0 && present {
			rec.Size = info.Size
			_ = txn.Put(rec)
		}
	}
	return survivors, nil
}

// stagingHash returns the hash path's basename normalizes to once a ".dl"
// staging suffix is stripped, so an in-progress download's temp file maps
// to the same hash as its eventual final path.
func stagingHash(path string) hashid.Hash {
	return hashid.Normalize(strings.TrimSuffix(filepath.Base(path), ".dl"))
}

// cleanUpOrphanedFiles deletes every surviving physical file whose hash is
// not a metadata key. It honors cancellation between files: once ctx is
// done, remaining unvisited files are carried over untouched rather than
// being treated as orphans. A ".dl" staging file normalizes to a hash that
// never matches a metadata key by construction, so it is checked against
// the active-transfer map under its real (suffix-stripped) hash before
// being unlinked, per spec.md §3 — otherwise an in-flight peer fetch's
// staging file could be collected mid-write and FinalizeStaging's rename
// would fail with ENOENT.
func (j *Janitor) cleanUpOrphanedFiles(ctx context.Context, tier string, survivors map[hashid.Hash]fileInfo,
	metadata map[hashid.Hash]metadatastore.Record) map[hashid.Hash]fileInfo {

	result := make(map[hashid.Hash]fileInfo, len(survivors))
	cancelled := false
	for h, info := range survivors {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			result[h] = info
			continue
		}
		real := stagingHash(info.Path)
		if _, ok := metadata[h]; ok {
			result[h] = info
			continue
		}
		if j.active.Contains([]hashid.Hash{real}) {
			result[h] = info
			continue
		}
		_ = os.Remove(info.Path)
		j.metrics.DecFilesTotal(tier)
		j.metrics.SubFilesTotalSize(tier, info.Size)
	}
	return result
}

// cleanUpFilesBeyondSizeLimit evicts the least-recently-accessed survivors
// until the tier's total size is at or under capBytes. If capBytes <= 0 it
// returns an empty map: spec.md §4.5's explicit sentinel for "no cap
// enforced here, result unused".
func (j *Janitor) cleanUpFilesBeyondSizeLimit(tier string, survivors map[hashid.Hash]fileInfo, capBytes int64,
	deleteFromMetadata bool, txn metadatastore.Txn, removed map[hashid.Hash]bool) map[hashid.Hash]fileInfo {

	if capBytes <= 0 {
		return map[hashid.Hash]fileInfo{}
	}

	type item struct {
		hash hashid.Hash
		info fileInfo
	}
	items := make([]item, 0, len(survivors))
	var total int64
	for h, info := range survivors {
		items = append(items, item{h, info})
		total += info.Size
	}
	sort.Slice(items, func(i, k int) bool { return items[i].info.AccessTime.Before(items[k].info.AccessTime) })

	result := make(map[hashid.Hash]fileInfo, len(items))
	for _, it := range items {
		result[it.hash] = it.info
	}

	for _, it := range items {
		if total <= capBytes {
			break
		}
		if j.active.Contains([]hashid.Hash{it.hash}) {
			continue
		}
		_ = os.Remove(it.info.Path)
		delete(result, it.hash)
		total -= it.info.Size
		removed[it.hash] = true
		j.metrics.DecFilesTotal(tier)
		j.metrics.SubFilesTotalSize(tier, it.info.Size)
		if deleteFromMetadata {
			_ = txn.Delete(it.hash)
		}
	}
	return result
}

// cleanUpStuckUploads removes MetadataRecords whose upload never
// completed, per spec.md §4.5. Their temp artifacts, if any, fall to the
// next iteration's orphan pass.
func (j *Janitor) cleanUpStuckUploads(metadata map[hashid.Hash]metadatastore.Record, now time.Time, txn metadatastore.Txn) {
	for h, rec := range metadata {
		if rec.Uploaded {
			continue
		}
		if now.Sub(rec.UploadDate) > stuckUploadAge {
			_ = txn.Delete(h)
		}
	}
}
