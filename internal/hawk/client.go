// ABOUTME: Client-side Hawk header construction
// ABOUTME: Used by the sign command and by tests acting as a Hawk client

package hawk

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HeaderOptions control client header generation. Zero values pick a fresh
// timestamp and nonce.
type HeaderOptions struct {
	Timestamp   time.Time
	Nonce       string
	Ext         string
	App         string
	Dlg         string
	HashPayload bool // include a payload hash computed from Request.Payload
}

// NewRequestHeader returns an Authorization header value for req signed with cred.
func NewRequestHeader(cred *Credential, req Request, opts HeaderOptions) (string, error) {
	if cred == nil || cred.ID == "" || len(cred.Key) == 0 {
		return "", fmt.Errorf("hawk: incomplete credential")
	}
	if strings.ContainsAny(opts.Ext, "\"\\") {
		return "", fmt.Errorf("hawk: ext may not contain quotes or backslashes")
	}

	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	nonce := opts.Nonce
	if nonce == "" {
		var err error
		if nonce, err = randomNonce(); err != nil {
			return "", err
		}
	}

	claim := &Claim{
		ID:        cred.ID,
		Timestamp: ts.Unix(),
		Nonce:     nonce,
		Ext:       opts.Ext,
		App:       opts.App,
		Dlg:       opts.Dlg,
	}
	if opts.HashPayload {
		hash, err := PayloadHash(cred.Algorithm, req.ContentType, req.Payload)
		if err != nil {
			return "", err
		}
		claim.Hash = hash
	}

	mac, err := ComputeMAC(cred, claim, req)
	if err != nil {
		return "", err
	}
	claim.MAC = mac
	return claim.Header(), nil
}

// SignRequest sets the Authorization header on an outgoing request. payload is
// only used when opts.HashPayload is set and must match the request body.
func SignRequest(r *http.Request, cred *Credential, payload []byte, opts HeaderOptions) error {
	req, err := RequestFromHTTP(r, "")
	if err != nil {
		return err
	}
	req.Payload = payload

	header, err := NewRequestHeader(cred, req, opts)
	if err != nil {
		return err
	}
	r.Header.Set("Authorization", header)
	return nil
}

func randomNonce() (string, error) {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
