// ABOUTME: Session token generation and encoding for auto-provisioned sessions
// ABOUTME: Derives session id and Hawk key from a random seed with HKDF-SHA256

package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/2389/hawkgate/internal/hawk"
)

// SeedSize is the number of random bytes in a session token.
const SeedSize = 32

// derivationInfo binds derived material to this use.
const derivationInfo = "hawkgate/v1/sessionToken"

// ErrMalformedToken is returned when a token string cannot be decoded.
var ErrMalformedToken = errors.New("malformed session token")

// Token is a freshly minted session. Seed is what the client receives; the
// credential is derivable from it.
type Token struct {
	Seed       []byte
	Credential *hawk.Credential
}

// Codec mints and decodes session tokens.
type Codec struct {
	algorithm hawk.Algorithm
	entropy   io.Reader
	now       func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithEntropy replaces crypto/rand as the seed source.
func WithEntropy(r io.Reader) Option {
	return func(c *Codec) { c.entropy = r }
}

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec creates a codec issuing credentials for algorithm.
func NewCodec(algorithm hawk.Algorithm, opts ...Option) (*Codec, error) {
	alg, err := hawk.ParseAlgorithm(string(algorithm))
	if err != nil {
		return nil, err
	}
	c := &Codec{
		algorithm: alg,
		entropy:   rand.Reader,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Algorithm returns the algorithm issued credentials use.
func (c *Codec) Algorithm() hawk.Algorithm {
	return c.algorithm
}

// Generate mints a new token with a unique session id and fresh key.
func (c *Codec) Generate() (*Token, error) {
	seed := make([]byte, SeedSize)
	if _, err := io.ReadFull(c.entropy, seed); err != nil {
		return nil, fmt.Errorf("reading token seed: %w", err)
	}
	cred, err := c.derive(seed)
	if err != nil {
		return nil, err
	}
	cred.CreatedAt = c.now().UTC()
	return &Token{Seed: seed, Credential: cred}, nil
}

// Encode returns the client-visible token string.
func (c *Codec) Encode(t *Token) string {
	return hex.EncodeToString(t.Seed)
}

// Decode parses a token string and re-derives its credential.
func (c *Codec) Decode(s string) (*Token, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(seed) != SeedSize {
		return nil, ErrMalformedToken
	}
	cred, err := c.derive(seed)
	if err != nil {
		return nil, err
	}
	return &Token{Seed: seed, Credential: cred}, nil
}

// derive expands seed into a 32-byte id and a 32-byte key, both hex encoded.
func (c *Codec) derive(seed []byte) (*hawk.Credential, error) {
	out := make([]byte, 64)
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(derivationInfo)), out); err != nil {
		return nil, fmt.Errorf("deriving session credential: %w", err)
	}
	return &hawk.Credential{
		ID:        hex.EncodeToString(out[:32]),
		Key:       []byte(hex.EncodeToString(out[32:])),
		Algorithm: c.algorithm,
	}, nil
}
