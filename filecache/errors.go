package filecache

import "errors"

// Sentinel errors surfaced by CachedFileProvider, per spec.md §7. None of
// these are fatal to the provider: every public operation that can return
// one of these also leaves the cache in a servable state for the next call.
var (
	// ErrNotFound means the hash is absent locally and no peer is
	// configured, or the Hot file could not be opened after resolution.
	// A peer fetch that fails (transport error or non-2xx response)
	// surfaces as ErrTransferFailure instead.
	ErrNotFound = errors.New("filecache: not found")

	// ErrTransferTimeout means the 120-second TransferHandle wait elapsed.
	// The underlying fetch is not cancelled and may complete later.
	ErrTransferTimeout = errors.New("filecache: transfer timed out")

	// ErrTransferFailure means the peer fetch or file materialization
	// failed; the handle completed in a failed terminal state.
	ErrTransferFailure = errors.New("filecache: transfer failed")
)
