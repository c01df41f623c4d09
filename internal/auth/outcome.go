// ABOUTME: Authentication outcomes and their HTTP status mapping
// ABOUTME: Decision carries the outcome plus request-scoped credential material

package auth

import (
	"net/http"

	"github.com/2389/hawkgate/internal/hawk"
)

// Outcome is the result of one pass through the authenticator.
type Outcome int

const (
	// OutcomeMalformed: the Authorization header is present but unparseable.
	OutcomeMalformed Outcome = iota
	// OutcomeUnauthenticated: no header or unknown session, and no auto-provisioning.
	OutcomeUnauthenticated
	// OutcomeInvalidSignature: the session exists but verification failed.
	OutcomeInvalidSignature
	// OutcomeAccepted: the signature verified.
	OutcomeAccepted
	// OutcomeCreated: a new session was provisioned for this request.
	OutcomeCreated
	// OutcomeStorageError: a collaborator failed.
	OutcomeStorageError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeInvalidSignature:
		return "invalid_signature"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeCreated:
		return "created"
	case OutcomeStorageError:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Accepted reports whether the request may proceed downstream.
func (o Outcome) Accepted() bool {
	return o == OutcomeAccepted || o == OutcomeCreated
}

// Status returns the HTTP status for a rejection, or 0 for accepted outcomes.
func (o Outcome) Status() int {
	switch o {
	case OutcomeMalformed:
		return http.StatusBadRequest
	case OutcomeUnauthenticated, OutcomeInvalidSignature:
		return http.StatusUnauthorized
	case OutcomeStorageError:
		return http.StatusInternalServerError
	default:
		return 0
	}
}

// Decision is the authenticator's verdict for one request. It is request
// scoped; Credential holds the key and must not be retained.
type Decision struct {
	Outcome    Outcome
	Credential *hawk.Credential // accepted and created outcomes only
	Claim      *hawk.Claim      // nil when the header was absent or malformed
	Token      string           // encoded session token, created outcome only
	Err        error            // internal reason, never sent to the client
}

// session builds the context view of an accepted decision. Identity comes
// from the stored credential only; ext is taken from the header once its MAC
// has verified, and never on the created path.
func (d Decision) session() *Session {
	s := &Session{
		ID:        d.Credential.ID,
		Algorithm: d.Credential.Algorithm,
		App:       d.Credential.App,
		Created:   d.Outcome == OutcomeCreated,
	}
	if d.Outcome == OutcomeAccepted && d.Claim != nil {
		s.Ext = d.Claim.Ext
	}
	return s
}
