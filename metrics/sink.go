// Package metrics defines the counter/gauge sink consumed by the cache
// core. The core treats metrics emission as an external collaborator
// (spec.md §1); this package carries the interface plus one concrete
// implementation backed by prometheus/client_golang, which is a direct
// go.mod dependency of the teacher that its retained source never
// exercises (rclone's own stats counters live in fs/accounting, which
// was filtered out of the pack).
package metrics

// Sink receives gauge adjustments for the six surfaces named in spec.md
// §6. Every increment has a matching decrement on every exit path; the
// core never assumes a particular starting value.
type Sink interface {
	// IncFilesTotal / DecFilesTotal track file count for the given tier
	// ("hot" or "cold").
	IncFilesTotal(tier string)
	DecFilesTotal(tier string)
	// AddFilesTotalSize / SubFilesTotalSize track cumulative byte size
	// for the given tier.
	AddFilesTotalSize(tier string, delta int64)
	SubFilesTotalSize(tier string, delta int64)
	// IncDownloading / DecDownloading track in-flight peer fetches.
	IncDownloading()
	DecDownloading()
	// IncWaiting / DecWaiting track callers currently blocked on a
	// TransferHandle.
	IncWaiting()
	DecWaiting()
}

// Noop discards every observation. Useful as a default when the caller has
// not wired a real Sink, matching the null-object pattern the teacher uses
// for optional Fs features.
type Noop struct{}

var _ Sink = Noop{}

func (Noop) IncFilesTotal(string)            {}
func (Noop) DecFilesTotal(string)            {}
func (Noop) AddFilesTotalSize(string, int64) {}
func (Noop) SubFilesTotalSize(string, int64) {}
func (Noop) IncDownloading()                 {}
func (Noop) DecDownloading()                 {}
func (Noop) IncWaiting()                     {}
func (Noop) DecWaiting()                     {}
