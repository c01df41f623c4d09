// ABOUTME: Collaborator interfaces the authenticator depends on
// ABOUTME: Session lookup, session creation and user binding, with func adapters

package auth

import (
	"context"
	"net/http"

	"github.com/2389/hawkgate/internal/hawk"
)

// SessionLookup resolves a session id to its credential. An unknown id is
// reported as session.ErrNotFound or as (nil, nil); any other error is a
// storage failure. A credential returned without an ID is bound to the
// looked-up id.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (*hawk.Credential, error)
}

// SessionCreator persists a newly minted credential. It must be atomic per id.
type SessionCreator interface {
	Create(ctx context.Context, cred *hawk.Credential) error
}

// SessionDeleter is optionally implemented by a SessionCreator. It lets the
// authenticator drop a session it created but could not hand out.
type SessionDeleter interface {
	Delete(ctx context.Context, id string) error
}

// UserBinder attaches application identity to a request once its credential
// is accepted. The returned context replaces the request's context.
type UserBinder interface {
	BindUser(ctx context.Context, w http.ResponseWriter, r *http.Request, cred *hawk.Credential) (context.Context, error)
}

// Backend bundles all three collaborators.
type Backend interface {
	SessionLookup
	SessionCreator
	UserBinder
}

// LookupFunc adapts a function to SessionLookup.
type LookupFunc func(ctx context.Context, id string) (*hawk.Credential, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, id string) (*hawk.Credential, error) {
	return f(ctx, id)
}

// CreateFunc adapts a function to SessionCreator.
type CreateFunc func(ctx context.Context, cred *hawk.Credential) error

// Create calls f.
func (f CreateFunc) Create(ctx context.Context, cred *hawk.Credential) error {
	return f(ctx, cred)
}

// BindFunc adapts a function to UserBinder.
type BindFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, cred *hawk.Credential) (context.Context, error)

// BindUser calls f.
func (f BindFunc) BindUser(ctx context.Context, w http.ResponseWriter, r *http.Request, cred *hawk.Credential) (context.Context, error) {
	return f(ctx, w, r, cred)
}

// NopBinder accepts every credential without attaching anything beyond the
// Session the authenticator already stores in the context.
var NopBinder UserBinder = BindFunc(func(ctx context.Context, _ http.ResponseWriter, _ *http.Request, _ *hawk.Credential) (context.Context, error) {
	return ctx, nil
})
