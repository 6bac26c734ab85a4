// Package tokenprovider defines the opaque bearer-token source the
// PeerFetcher reads from on every call. The issuance of the token itself is
// out of scope for this module (spec.md §1).
package tokenprovider

// Provider returns the current bearer token to present to the upstream
// peer. PeerFetcher calls Token() fresh on every fetch; implementations
// must not assume it is called only once.
type Provider interface {
	Token() (string, error)
}

// Static always returns the same token. Useful for tests and for
// deployments where the token is a long-lived shared secret rather than a
// rotating credential.
type Static string

var _ Provider = Static("")

func (s Static) Token() (string, error) { return string(s), nil }

// Func adapts a plain function to the Provider interface.
type Func func() (string, error)

var _ Provider = Func(nil)

func (f Func) Token() (string, error) { return f() }
