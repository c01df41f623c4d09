// ABOUTME: Hawk credential and MAC algorithm types shared by verifier, stores and codec
// ABOUTME: Keeps the secret key out of logs and fmt output

package hawk

import (
	"crypto/sha1" //nolint:gosec // sha1 is a Hawk-defined algorithm, gated by the allow-list
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"log/slog"
	"strings"
	"time"
)

// ErrUnknownAlgorithm is returned when an algorithm name is not a Hawk algorithm.
var ErrUnknownAlgorithm = errors.New("hawk: unknown algorithm")

// Algorithm names a Hawk MAC algorithm.
type Algorithm string

// Supported algorithms
const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
)

// ParseAlgorithm converts a configuration string into an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case SHA256:
		return SHA256, nil
	case SHA1:
		return SHA1, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// newHash returns the hash constructor for the algorithm.
func (a Algorithm) newHash() (func() hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New, nil
	case SHA1:
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
}

// Credential is a session's shared secret. Key never leaves the server except
// through the one-time session token handed out at creation.
type Credential struct {
	ID        string
	Key       []byte
	Algorithm Algorithm
	App       string // application identity bound to the session, may be empty
	CreatedAt time.Time
}

// Clone returns a deep copy so stores never hand out shared key buffers.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Key = append([]byte(nil), c.Key...)
	return &out
}

// String formats the credential without its key.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{ID:%s Algorithm:%s App:%s}", c.ID, c.Algorithm, c.App)
}

// LogValue implements slog.LogValuer. The key is omitted.
func (c Credential) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", c.ID),
		slog.String("algorithm", string(c.Algorithm)),
	}
	if c.App != "" {
		attrs = append(attrs, slog.String("app", c.App))
	}
	return slog.GroupValue(attrs...)
}
