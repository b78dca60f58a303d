package transport

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(ctx context.Context, req *http.Request) error
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ context.Context, _ *http.Request) error {
	return nil
}

// StaticToken authenticates every request with a fixed bearer token.
type StaticToken struct {
	Token string
}

// Apply implements the Authenticator interface for StaticToken.
func (a *StaticToken) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}

// HeaderAuth sends the key in a custom header.
type HeaderAuth struct {
	Header string
	Key    string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set(a.Header, a.Key)
	return nil
}

// TokenFunc fetches a fresh bearer token and reports how long it stays
// valid.
type TokenFunc func(ctx context.Context) (token string, ttl time.Duration, err error)

// BearerAuth authenticates with a bearer token obtained from a token
// endpoint and cached until shortly before expiry. Safe for concurrent
// use.
type BearerAuth struct {
	fetch TokenFunc

	mu      sync.Mutex
	token   string
	expires time.Time
}

// tokens are refreshed this long before their reported expiry
const expiryMargin = 30 * time.Second

// NewBearerAuth creates a BearerAuth around a token fetcher.
func NewBearerAuth(fetch TokenFunc) *BearerAuth {
	return &BearerAuth{fetch: fetch}
}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.current(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *BearerAuth) current(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && time.Now().Before(a.expires) {
		return a.token, nil
	}
	token, ttl, err := a.fetch(ctx)
	if err != nil {
		return "", err
	}
	a.token = token
	a.expires = time.Now().Add(ttl - expiryMargin)
	return a.token, nil
}

// Invalidate drops the cached token so the next request fetches a new
// one. The client calls this on a 401 response before retrying.
func (a *BearerAuth) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = ""
	a.expires = time.Time{}
}
