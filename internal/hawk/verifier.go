// ABOUTME: Hawk signature verifier wrapping MAC, timestamp, nonce and payload checks
// ABOUTME: Every anomaly collapses to an invalid result for the caller

package hawk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Verification errors. They are only used for logging; callers treat them alike.
var (
	ErrInvalidMAC      = errors.New("hawk: invalid mac")
	ErrStaleTimestamp  = errors.New("hawk: stale timestamp")
	ErrReplay          = errors.New("hawk: nonce replayed")
	ErrAlgorithm       = errors.New("hawk: algorithm not allowed")
	ErrPayloadMismatch = errors.New("hawk: payload hash mismatch")
	ErrIDMismatch      = errors.New("hawk: credential id mismatch")
)

// Defaults for Options fields left zero.
const (
	DefaultTimestampSkew   = 60 * time.Second
	DefaultMaxPayloadBytes = 1 << 20
)

// NonceChecker records nonces and reports replays.
type NonceChecker interface {
	// CheckAndMark returns true if key was already seen within its window.
	CheckAndMark(key string) bool
}

// Options tune verification. They come from configuration unchanged.
type Options struct {
	Algorithms      []Algorithm   // allow-list, defaults to sha256
	TimestampSkew   time.Duration // maximum |server time - ts|
	LocaltimeOffset time.Duration // added to server time before comparing
	VerifyPayload   bool          // require and check the hash attribute
	MaxPayloadBytes int64
	HostHeader      string // read host from this header instead of Host, e.g. X-Forwarded-Host
	Now             func() time.Time
}

// Verifier checks Hawk request headers against credentials.
type Verifier struct {
	opts    Options
	allowed map[Algorithm]bool
	nonces  NonceChecker
}

// NewVerifier creates a verifier. nonces may be nil to disable replay detection.
func NewVerifier(opts Options, nonces NonceChecker) (*Verifier, error) {
	if len(opts.Algorithms) == 0 {
		opts.Algorithms = []Algorithm{SHA256}
	}
	if opts.TimestampSkew <= 0 {
		opts.TimestampSkew = DefaultTimestampSkew
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	allowed := make(map[Algorithm]bool, len(opts.Algorithms))
	for _, a := range opts.Algorithms {
		if _, err := a.newHash(); err != nil {
			return nil, err
		}
		allowed[a] = true
	}

	return &Verifier{opts: opts, allowed: allowed, nonces: nonces}, nil
}

// Algorithms returns the allow-list in configuration order.
func (v *Verifier) Algorithms() []Algorithm {
	return append([]Algorithm(nil), v.opts.Algorithms...)
}

// Challenge returns the WWW-Authenticate value sent with 401 responses.
func (v *Verifier) Challenge() string {
	return Challenge(v.opts.Algorithms)
}

// Challenge formats a WWW-Authenticate value naming the scheme and algorithms.
func Challenge(algorithms []Algorithm) string {
	names := make([]string, len(algorithms))
	for i, a := range algorithms {
		names[i] = string(a)
	}
	return fmt.Sprintf(`%s algorithms="%s"`, Scheme, strings.Join(names, " "))
}

// Result is the outcome of one verification. It is never cached.
type Result struct {
	Valid      bool
	Credential *Credential // set only when Valid
	Claim      *Claim
	Err        error // reason for rejection, for logs only
}

func invalid(c *Claim, err error) Result {
	return Result{Claim: c, Err: err}
}

// Verify checks claim against cred for req.
func (v *Verifier) Verify(req Request, claim *Claim, cred *Credential) Result {
	if claim == nil || cred == nil {
		return invalid(claim, ErrInvalidMAC)
	}
	if claim.ID != cred.ID {
		return invalid(claim, ErrIDMismatch)
	}
	if !v.allowed[cred.Algorithm] {
		return invalid(claim, ErrAlgorithm)
	}

	expected, err := ComputeMAC(cred, claim, req)
	if err != nil {
		return invalid(claim, err)
	}
	if !macEqual(expected, claim.MAC) {
		return invalid(claim, ErrInvalidMAC)
	}

	if v.opts.VerifyPayload {
		if claim.Hash == "" {
			return invalid(claim, ErrPayloadMismatch)
		}
		hash, err := PayloadHash(cred.Algorithm, req.ContentType, req.Payload)
		if err != nil {
			return invalid(claim, err)
		}
		if !macEqual(hash, claim.Hash) {
			return invalid(claim, ErrPayloadMismatch)
		}
	}

	now := v.opts.Now().Add(v.opts.LocaltimeOffset)
	skew := now.Sub(time.Unix(claim.Timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.opts.TimestampSkew {
		return invalid(claim, ErrStaleTimestamp)
	}

	if v.nonces != nil && v.nonces.CheckAndMark(nonceKey(cred.ID, claim)) {
		return invalid(claim, ErrReplay)
	}

	return Result{Valid: true, Credential: cred, Claim: claim}
}

// VerifyHeader parses header and verifies it. Parse failures are invalid results
// wrapping ErrMalformedHeader.
func (v *Verifier) VerifyHeader(req Request, header string, cred *Credential) Result {
	claim, err := ParseHeader(header)
	if err != nil {
		return invalid(nil, err)
	}
	return v.Verify(req, claim, cred)
}

// VerifyHTTP verifies claim against an incoming request. When payload
// verification is on, the body is read and replaced so downstream handlers can
// still consume it.
func (v *Verifier) VerifyHTTP(r *http.Request, claim *Claim, cred *Credential) Result {
	req, err := RequestFromHTTP(r, v.opts.HostHeader)
	if err != nil {
		return invalid(claim, err)
	}
	if v.opts.VerifyPayload {
		payload, err := readBody(r, v.opts.MaxPayloadBytes)
		if err != nil {
			return invalid(claim, err)
		}
		req.Payload = payload
	}
	return v.Verify(req, claim, cred)
}

func nonceKey(id string, c *Claim) string {
	return fmt.Sprintf("%s:%d:%s", id, c.Timestamp, c.Nonce)
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(payload)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrPayloadMismatch, limit)
	}
	r.Body = io.NopCloser(bytes.NewReader(payload))
	return payload, nil
}

// RequestFromHTTP extracts the MAC-covered fields from r. hostHeader, if set,
// names a header that overrides r.Host.
func RequestFromHTTP(r *http.Request, hostHeader string) (Request, error) {
	hostport := r.Host
	if hostHeader != "" {
		if h := r.Header.Get(hostHeader); h != "" {
			hostport = h
		}
	}
	if hostport == "" && r.URL != nil {
		hostport = r.URL.Host
	}
	if hostport == "" {
		return Request{}, fmt.Errorf("%w: missing host", ErrMalformedHeader)
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host = strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
		port = "80"
		if r.TLS != nil || (r.URL != nil && r.URL.Scheme == "https") {
			port = "443"
		}
	}

	return Request{
		Method:      r.Method,
		Resource:    r.URL.RequestURI(),
		Host:        host,
		Port:        port,
		ContentType: r.Header.Get("Content-Type"),
	}, nil
}
