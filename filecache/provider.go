// Package filecache implements CachedFileProvider, the serving façade of
// spec.md §4.4: it resolves a hash to a readable stream, orchestrating
// hot-hit → cold-promote → peer-fetch fallbacks and coalescing.
//
// The hot-hit/promote/fetch fallback chain and its atomic-rename
// materialization follow backend/cache/cache.go's Open (which checks the
// local cache, then falls through to the wrapped remote) and
// backend/local's temp-then-rename upload path.
package filecache

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/mare-synchronos/filecached/coalesce"
	"github.com/mare-synchronos/filecached/hashid"
	"github.com/mare-synchronos/filecached/logging"
	"github.com/mare-synchronos/filecached/metrics"
	"github.com/mare-synchronos/filecached/pathmap"
	"github.com/mare-synchronos/filecached/touchsink"
)

// transferWaitCeiling is the hard deadline GetOrFetch imposes on a
// TransferHandle wait, per spec.md §4.4 and §5.
const transferWaitCeiling = 120 * time.Second

// Fetcher is the subset of peer.Fetcher that Provider depends on.
type Fetcher interface {
	Fetch(ctx context.Context, h hashid.Hash, w io.Writer) error
}

// Clock is the subset of clock.Clock that Provider depends on.
type Clock interface {
	Now() time.Time
}

// Config configures a Provider. ColdRoot and UseCold together select the
// two-tier model of spec.md §3. The fetcher passed to New may be nil,
// meaning the node is authoritative and misses return ErrNotFound without
// network I/O.
type Config struct {
	HotRoot  string
	ColdRoot string
	UseCold  bool
}

// Provider is the CachedFileProvider.
type Provider struct {
	cfg Config

	fetcher     Fetcher
	coordinator *coalesce.Coordinator
	metrics     metrics.Sink
	touch       touchsink.Sink
	clk         Clock
	log         logging.Logger
}

// New constructs a Provider. fetcher, sink, touch and clk may be nil/zero;
// nil fetcher means no peer is configured (spec.md §3: "If no upstream peer
// is configured, the cache is authoritative").
func New(cfg Config, fetcher Fetcher, coordinator *coalesce.Coordinator, sink metrics.Sink, touch touchsink.Sink, clk Clock) *Provider {
	if coordinator == nil {
		coordinator = coalesce.New()
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	if touch == nil {
		touch = touchsink.Noop{}
	}
	return &Provider{
		cfg:         cfg,
		fetcher:     fetcher,
		coordinator: coordinator,
		metrics:     sink,
		touch:       touch,
		clk:         clk,
		log:         logging.New("filecache"),
	}
}

func (p *Provider) hotPath(h hashid.Hash) string  { return pathmap.PathFor(p.cfg.HotRoot, h) }
func (p *Provider) coldPath(h hashid.Hash) string { return pathmap.PathFor(p.cfg.ColdRoot, h) }

func hotPresent(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

// EnsureLocal implements spec.md §4.4 operation 1. It never blocks on
// network I/O: when a peer fetch is required it starts (or joins) one
// through the coordinator and returns immediately, handing back the
// TransferHandle so GetOrFetch can await it. A nil handle with a nil error
// means the hash is already resolved (hot hit or successful promotion) or
// unresolvable without a peer (no-op).
func (p *Provider) EnsureLocal(ctx context.Context, h hashid.Hash) (*coalesce.Handle, error) {
	h = hashid.Normalize(h.String())

	if hotPresent(p.hotPath(h)) {
		return nil, nil
	}
	if p.PromoteFromCold(h) {
		return nil, nil
	}
	if p.fetcher == nil {
		return nil, nil
	}

	handle := p.coordinator.StartOrJoin(h, func() error {
		p.metrics.IncDownloading()
		defer p.metrics.DecDownloading()
		// Deliberately detached from the caller's ctx: per spec.md §5, a
		// waiter's timeout must not cancel the in-flight fetch, since
		// other callers may still be waiting on the same handle.
		return p.downloadTask(context.Background(), h)
	})
	return handle, nil
}

// OpenLocal implements spec.md §4.4 operation 2.
func (p *Provider) OpenLocal(h hashid.Hash) (io.ReadCloser, bool) {
	h = hashid.Normalize(h.String())
	path := p.hotPath(h)

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false
	}

	now := time.Now()
	if p.clk != nil {
		now = p.clk.Now()
	}
	if err := pathmap.TouchAccessTime(path, now); err != nil {
		p.log.Debugf("touch access time for %s: %v", h, err)
	}
	p.touch.Touch(h)
	p.log.Debugf("opened %s, %d bytes", h, fi.Size())
	return f, true
}

// GetOrFetch implements spec.md §4.4 operation 3.
func (p *Provider) GetOrFetch(ctx context.Context, h hashid.Hash) (io.ReadCloser, error) {
	h = hashid.Normalize(h.String())

	handle, err := p.EnsureLocal(ctx, h)
	if err != nil {
		return nil, err
	}

	if handle != nil {
		p.metrics.IncWaiting()
		waitCtx, cancel := context.WithTimeout(ctx, transferWaitCeiling)
		defer cancel()
		ok, waitErr := handle.Wait(waitCtx)
		p.metrics.DecWaiting()

		if !ok {
			if waitCtx.Err() != nil {
				return nil, ErrTransferTimeout
			}
			p.log.Debugf("transfer of %s failed: %v", h, waitErr)
			return nil, ErrTransferFailure
		}
	}

	f, ok := p.OpenLocal(h)
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

// AnyDownloading implements spec.md §4.4 operation 4.
func (p *Provider) AnyDownloading(hashes []hashid.Hash) bool {
	return p.coordinator.Contains(hashes)
}

// PromoteFromCold implements spec.md §4.4's "Promotion from Cold". It is
// best-effort: any error is swallowed (and logged, unless the cold file is
// simply absent), with the caller expected to fall through to a peer fetch.
func (p *Provider) PromoteFromCold(h hashid.Hash) bool {
	if !p.cfg.UseCold || p.cfg.ColdRoot == "" {
		return false
	}
	src := p.coldPath(h)
	dest := p.hotPath(h)

	if err := pathmap.CopyFile(src, dest); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.log.Errorf("promote %s from cold: %v", h, err)
		}
		return false
	}

	now := time.Now()
	if p.clk != nil {
		now = p.clk.Now()
	}
	if err := pathmap.SetTimes(dest, now); err != nil {
		p.log.Errorf("reset promoted times for %s: %v", h, err)
	}

	if info, ok := pathmap.InfoFor(p.cfg.HotRoot, h); ok {
		p.metrics.IncFilesTotal("hot")
		p.metrics.AddFilesTotalSize("hot", info.Size)
	}
	return true
}

// downloadTask implements spec.md §4.4's "Peer fetch materialization"
// (DownloadTask). Destination is Cold if Cold is enabled, else Hot; this
// is load-bearing per spec.md §9's Cold-enabled invariant, so on a
// Cold-enabled success it immediately promotes to Hot before returning,
// rather than waiting for a subsequent request to notice the miss.
func (p *Provider) downloadTask(ctx context.Context, h hashid.Hash) error {
	root := p.cfg.HotRoot
	tier := "hot"
	if p.cfg.UseCold {
		root = p.cfg.ColdRoot
		tier = "cold"
	}
	dest := pathmap.PathFor(root, h)

	staging, stagingPath, err := pathmap.CreateStaging(dest)
	if err != nil {
		return err
	}

	fetchErr := p.fetcher.Fetch(ctx, h, staging)
	closeErr := staging.Close()
	if fetchErr == nil {
		fetchErr = closeErr
	}
	if fetchErr != nil {
		pathmap.RemoveStaging(stagingPath)
		return fetchErr
	}

	if err := pathmap.FinalizeStaging(stagingPath, dest); err != nil {
		return err
	}

	if info, ok := pathmap.InfoFor(root, h); ok {
		p.metrics.IncFilesTotal(tier)
		p.metrics.AddFilesTotalSize(tier, info.Size)
	}

	if p.cfg.UseCold {
		p.PromoteFromCold(h)
	}
	return nil
}
