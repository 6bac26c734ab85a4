// Package peer implements PeerFetcher, the authenticated HTTP pull from an
// upstream distribution peer described in spec.md §4.2.
//
// Request construction and header filling follow
// backend/cache/plex.go's fillDefaultHeaders/authenticate pattern (build a
// *http.Request, set headers, run it through a shared *http.Client);
// outbound pacing follows backend/cache/cache.go's openRateLimited
// (golang.org/x/time/rate wrapping a blocking call).
package peer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"

	"github.com/mare-synchronos/filecached/hashid"
	"github.com/mare-synchronos/filecached/logging"
	"github.com/mare-synchronos/filecached/tokenprovider"
)

// userAgent is fixed by the wire protocol in spec.md §6.
const userAgent = "MareSynchronosServer/1.0.0.0"

// chunkSize is the buffered copy size used to stream the response body;
// spec.md §4.2 calls 4 KiB "a known-working default".
const chunkSize = 4 * 1024

var log = logging.New("peer")

// Kind classifies a Fetch failure per spec.md §7.
type Kind int

const (
	// KindTransport covers any transport error or non-2xx response.
	KindTransport Kind = iota
)

// FetchError wraps a failed Fetch with its Kind.
type FetchError struct {
	Kind Kind
	Err  error
}

func (e *FetchError) Error() string { return fmt.Sprintf("peer fetch failed: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher streams a file body from the upstream distribution peer.
type Fetcher struct {
	baseURL    *url.URL
	route      string
	token      tokenprovider.Provider
	client     *http.Client
	limiter    *rate.Limiter
	forceHTTP2 bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRateLimit bounds outbound requests per second; rps <= 0 disables the
// limiter, matching the teacher's DefCacheRps = -1 meaning "unlimited".
func WithRateLimit(rps float64) Option {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithForceHTTP2 pins outbound requests to HTTP/2 with an exact-version
// policy, per spec.md's DistributionFileServerForceHTTP2 option.
func WithForceHTTP2(force bool) Option {
	return func(f *Fetcher) { f.forceHTTP2 = force }
}

// WithHTTPClient overrides the underlying *http.Client, primarily for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New constructs a Fetcher against peerBaseURL, appending hashes to route
// (the "well-known path template" of spec.md §4.2, e.g. "/files").
func New(peerBaseURL, route string, token tokenprovider.Provider, opts ...Option) (*Fetcher, error) {
	u, err := url.Parse(peerBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing peer base url %q: %w", peerBaseURL, err)
	}
	f := &Fetcher{
		baseURL: u,
		route:   route,
		token:   token,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.forceHTTP2 {
		transport := &http2.Transport{}
		f.client.Transport = transport
	}
	return f, nil
}

// Fetch performs an authenticated GET for h and streams the response body
// to w in fixed-size buffered chunks, flushing w before returning. Any
// transport error or non-2xx response yields a failure; Fetch never
// retries.
func (f *Fetcher) Fetch(ctx context.Context, h hashid.Hash, w io.Writer) error {
	fetchID := uuid.NewString()
	l := log.With("fetch_id", fetchID).With("hash", h.String())

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return &FetchError{Kind: KindTransport, Err: err}
		}
	}

	reqURL := *f.baseURL
	reqURL.Path = joinPath(reqURL.Path, f.route, h.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return &FetchError{Kind: KindTransport, Err: err}
	}

	token, err := f.token.Token()
	if err != nil {
		return &FetchError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		l.Debugf("transport error after %v: %v", time.Since(start), err)
		return &FetchError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.Debugf("peer returned status %d", resp.StatusCode)
		return &FetchError{Kind: KindTransport, Err: fmt.Errorf("peer returned status %d", resp.StatusCode)}
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(w, resp.Body, buf); err != nil {
		l.Debugf("body copy failed: %v", err)
		return &FetchError{Kind: KindTransport, Err: err}
	}
	if flusher, ok := w.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return &FetchError{Kind: KindTransport, Err: err}
		}
	}
	l.Debugf("fetched in %v", time.Since(start))
	return nil
}

func joinPath(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		trimmed := p
		for len(trimmed) > 0 && trimmed[0] == '/' {
			trimmed = trimmed[1:]
		}
		out += "/" + trimmed
	}
	if out == "" {
		return "/"
	}
	return out
}
