// Package auth gates HTTP handlers behind Hawk request signatures.
//
// # Decision Flow
//
// For every request the Authenticator reaches exactly one Outcome:
//
//   - Malformed: an Authorization header is present but does not parse.
//     Answered with 400 and no challenge.
//   - Unauthenticated: no header, or the session id is unknown, and the
//     route does not provision sessions. Answered with 401.
//   - InvalidSignature: the session exists but the MAC, timestamp, nonce or
//     payload check failed. Answered with a 401 identical to Unauthenticated.
//   - Accepted: the signature verified. The UserBinder runs and the request
//     continues downstream.
//   - Created: the route provisions sessions and the request carried no
//     usable credential. A new session is persisted, the UserBinder runs, and
//     the encoded token is returned in the Hawk-Session-Token header.
//   - StorageError: a collaborator failed. Answered with 500.
//
// # Collaborators
//
// Storage is delegated to three narrow interfaces so any backend can be
// plugged in:
//
//	SessionLookup   Lookup(ctx, id) (*hawk.Credential, error)
//	SessionCreator  Create(ctx, cred) error
//	UserBinder      BindUser(ctx, w, r, cred) (context.Context, error)
//
// LookupFunc, CreateFunc and BindFunc adapt plain functions. A nil Creator
// disables auto-provisioning; WithCreator derives a per-route variant.
//
// # Context
//
// Downstream handlers read the authenticated session with FromContext. The
// Session never carries key material.
package auth
