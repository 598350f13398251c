// Package session models the externally owned sign-in session that carries
// a browser-facing client's token set.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession is returned when an operation needs a current session and
// the context carries none.
var ErrNoSession = errors.New("no active session")

// Principal is the authenticated identity of a session. Token refresh never
// changes it.
type Principal struct {
	Subject       string
	Name          string
	Scheme        string
	Authenticated bool
	Claims        map[string]string
}

// Tokens are the token fields stored alongside the principal.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresAt    time.Time
}

// Properties carry the session's own lifetime. A nil IssuedAt on reissue
// means "keep the original", so refreshing tokens does not extend the
// session's absolute lifetime.
type Properties struct {
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// Session is a snapshot of one sign-in session.
type Session struct {
	ID         string
	Principal  Principal
	Tokens     Tokens
	Properties Properties
}

// Store exposes the session bound to the current request.
type Store interface {
	// Current returns the session bound to ctx, if any.
	Current(ctx context.Context) (*Session, bool)

	// Reissue replaces the current session's principal, token fields and
	// properties and persists it again.
	Reissue(ctx context.Context, principal Principal, tokens Tokens, props Properties) error
}

type sessionIDKey struct{}

// WithSessionID binds a session id to ctx. MemoryStore.Current reads it.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// IDFromContext returns the session id bound to ctx.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}
