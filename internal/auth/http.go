// ABOUTME: HTTP middleware gating requests on Hawk signatures
// ABOUTME: Looks up or provisions sessions, verifies signatures and binds the user

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/hawkgate/internal/hawk"
	"github.com/2389/hawkgate/internal/metrics"
	"github.com/2389/hawkgate/internal/session"
	"github.com/2389/hawkgate/internal/token"
)

// DefaultTokenHeader carries the encoded token of a newly provisioned session.
const DefaultTokenHeader = "Hawk-Session-Token"

// Fixed response bodies. Rejections never describe which check failed.
const (
	bodyMalformed    = `{"error":"malformed authorization header"}`
	bodyUnauthorized = `{"error":"unauthorized"}`
	bodyInternal     = `{"error":"internal error"}`
)

// Config wires an Authenticator. Sessions, Binder, Verifier and Codec are
// required; a nil Creator disables auto-provisioning.
type Config struct {
	Sessions    SessionLookup
	Creator     SessionCreator
	Binder      UserBinder
	Verifier    *hawk.Verifier
	Codec       *token.Codec
	TokenHeader string
	Metrics     *metrics.Auth
	Logger      *slog.Logger
}

// Authenticator runs the per-request authentication state machine.
// It holds no per-request state and is safe for concurrent use.
type Authenticator struct {
	sessions    SessionLookup
	creator     SessionCreator
	binder      UserBinder
	verifier    *hawk.Verifier
	codec       *token.Codec
	tokenHeader string
	challenge   string
	metrics     *metrics.Auth
	logger      *slog.Logger
}

// NewAuthenticator validates cfg and builds an Authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("auth: session lookup is required")
	}
	if cfg.Binder == nil {
		return nil, errors.New("auth: user binder is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("auth: verifier is required")
	}
	if cfg.Codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	if cfg.TokenHeader == "" {
		cfg.TokenHeader = DefaultTokenHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Authenticator{
		sessions:    cfg.Sessions,
		creator:     cfg.Creator,
		binder:      cfg.Binder,
		verifier:    cfg.Verifier,
		codec:       cfg.Codec,
		tokenHeader: cfg.TokenHeader,
		challenge:   cfg.Verifier.Challenge(),
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With("component", "auth"),
	}, nil
}

// WithCreator returns a copy of a with a different creator. A nil creator
// yields an authenticator that never provisions sessions.
func (a *Authenticator) WithCreator(c SessionCreator) *Authenticator {
	cp := *a
	cp.creator = c
	return &cp
}

// AutoCreate reports whether unknown or absent credentials provision a session.
func (a *Authenticator) AutoCreate() bool {
	return a.creator != nil
}

// Authenticate decides the outcome for r. It does not write to the response
// and does not invoke the binder.
func (a *Authenticator) Authenticate(r *http.Request) Decision {
	header := r.Header.Get("Authorization")
	if strings.TrimSpace(header) == "" {
		if a.creator != nil {
			return a.create(r, nil)
		}
		return Decision{Outcome: OutcomeUnauthenticated}
	}

	claim, err := hawk.ParseHeader(header)
	if err != nil {
		return Decision{Outcome: OutcomeMalformed, Err: err}
	}

	cred, err := a.sessions.Lookup(r.Context(), claim.ID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		a.metrics.StorageError("lookup")
		return Decision{Outcome: OutcomeStorageError, Claim: claim, Err: fmt.Errorf("looking up session: %w", err)}
	}
	if cred == nil {
		if a.creator != nil {
			return a.create(r, claim)
		}
		a.burnMAC(r, claim)
		return Decision{Outcome: OutcomeUnauthenticated, Claim: claim, Err: session.ErrNotFound}
	}

	if cred.ID == "" {
		cred = cred.Clone()
		cred.ID = claim.ID
	}

	res := a.verifier.VerifyHTTP(r, claim, cred)
	if !res.Valid {
		return Decision{Outcome: OutcomeInvalidSignature, Claim: claim, Err: res.Err}
	}
	return Decision{Outcome: OutcomeAccepted, Credential: res.Credential, Claim: claim}
}

// create mints and persists a new session. The claim of the triggering
// request, if any, is kept for context but never verified.
func (a *Authenticator) create(r *http.Request, claim *hawk.Claim) Decision {
	tok, err := a.codec.Generate()
	if err != nil {
		return Decision{Outcome: OutcomeStorageError, Err: fmt.Errorf("generating token: %w", err)}
	}
	if err := a.creator.Create(r.Context(), tok.Credential.Clone()); err != nil {
		a.metrics.StorageError("create")
		return Decision{Outcome: OutcomeStorageError, Err: fmt.Errorf("creating session: %w", err)}
	}
	a.metrics.SessionCreated()
	return Decision{
		Outcome:    OutcomeCreated,
		Credential: tok.Credential,
		Claim:      claim,
		Token:      a.codec.Encode(tok),
	}
}

// burnMAC computes one MAC over the request with a throwaway key so an unknown
// id costs about as much as a bad signature.
func (a *Authenticator) burnMAC(r *http.Request, claim *hawk.Claim) {
	req, err := hawk.RequestFromHTTP(r, "")
	if err != nil {
		return
	}
	cred := &hawk.Credential{ID: claim.ID, Key: []byte(claim.Nonce), Algorithm: a.codec.Algorithm()}
	_, _ = hawk.ComputeMAC(cred, claim, req)
}

// Middleware gates next behind Hawk authentication. Rejected requests get a
// fixed JSON body; 401s carry the WWW-Authenticate challenge.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		d := a.Authenticate(r)

		if d.Outcome.Accepted() {
			ctx := WithSession(r.Context(), d.session())
			ctx, err := a.binder.BindUser(ctx, w, r.WithContext(ctx), d.Credential)
			if err != nil {
				a.metrics.StorageError("bind")
				if d.Outcome == OutcomeCreated {
					a.discard(r, d.Credential.ID)
				}
				d = Decision{Outcome: OutcomeStorageError, Claim: d.Claim, Err: fmt.Errorf("binding user: %w", err)}
			} else {
				if d.Outcome == OutcomeCreated {
					w.Header().Set(a.tokenHeader, d.Token)
				}
				a.observe(r, d, start)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		a.observe(r, d, start)
		a.reject(w, d.Outcome)
	})
}

// discard removes a session whose token will never be delivered, when the
// creator can delete. Failures leave an unreachable row and are only logged.
func (a *Authenticator) discard(r *http.Request, id string) {
	d, ok := a.creator.(SessionDeleter)
	if !ok {
		return
	}
	if err := d.Delete(context.WithoutCancel(r.Context()), id); err != nil {
		a.logger.Warn("discarding undelivered session", "session_id", id, "error", err)
	}
}

func (a *Authenticator) reject(w http.ResponseWriter, o Outcome) {
	switch o {
	case OutcomeMalformed:
		writeError(w, http.StatusBadRequest, bodyMalformed)
	case OutcomeUnauthenticated, OutcomeInvalidSignature:
		w.Header().Set("WWW-Authenticate", a.challenge)
		writeError(w, http.StatusUnauthorized, bodyUnauthorized)
	default:
		writeError(w, http.StatusInternalServerError, bodyInternal)
	}
}

func (a *Authenticator) observe(r *http.Request, d Decision, start time.Time) {
	elapsed := time.Since(start)
	a.metrics.ObserveDecision(d.Outcome.String(), elapsed)

	attrs := []any{
		"outcome", d.Outcome.String(),
		"method", r.Method,
		"path", r.URL.Path,
		"duration", elapsed,
	}
	if d.Credential != nil {
		attrs = append(attrs, "session", d.Credential)
	} else if d.Claim != nil {
		attrs = append(attrs, "session_id", d.Claim.ID)
	}
	if d.Err != nil {
		attrs = append(attrs, "error", d.Err)
	}

	switch d.Outcome {
	case OutcomeStorageError:
		a.logger.Error("authentication failed", attrs...)
	case OutcomeCreated:
		a.logger.Info("session created", attrs...)
	case OutcomeAccepted:
		a.logger.Debug("request authenticated", attrs...)
	default:
		a.logger.Info("request rejected", attrs...)
	}
}

func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
