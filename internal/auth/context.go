// ABOUTME: Authenticated session context for downstream handlers
// ABOUTME: Provides WithSession/FromContext; the context never carries key material

package auth

import (
	"context"

	"github.com/2389/hawkgate/internal/hawk"
)

// Session is what downstream handlers learn about an authenticated request.
type Session struct {
	ID        string
	Algorithm hawk.Algorithm
	App       string // the stored credential's app
	Ext       string // verified ext attribute; empty for new sessions
	Created   bool   // true when the session was provisioned by this request
}

type sessionContextKey struct{}

// WithSession returns a new context with s attached.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the Session, or nil if the request was not authenticated.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey{}).(*Session)
	return s
}

// MustFromContext returns the Session, panicking if absent.
func MustFromContext(ctx context.Context) *Session {
	s := FromContext(ctx)
	if s == nil {
		panic("auth: Session not found in context")
	}
	return s
}
