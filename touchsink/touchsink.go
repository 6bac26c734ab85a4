// Package touchsink defines the recency-tracking collaborator that
// CachedFileProvider notifies on every hot-tier read, per spec.md §1
// ("hash-touch tracking for recency ... treated as a sink that accepts
// hash notifications").
package touchsink

import "github.com/mare-synchronos/filecached/hashid"

// Sink receives a notification every time a hash is served from the hot
// tier. Implementations are expected to be cheap and non-blocking; the
// core does not wait for or retry a failed Touch.
type Sink interface {
	Touch(h hashid.Hash)
}

// Noop discards every touch notification.
type Noop struct{}

var _ Sink = Noop{}

func (Noop) Touch(hashid.Hash) {}

// Recorder is a test double that records every touched hash in order.
type Recorder struct {
	Touched []hashid.Hash
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) Touch(h hashid.Hash) {
	r.Touched = append(r.Touched, h)
}
