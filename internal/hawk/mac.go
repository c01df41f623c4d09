// ABOUTME: Canonical request strings and HMAC computation for Hawk
// ABOUTME: Implements the hawk.1.header and hawk.1.payload normalized forms

package hawk

import (
	"crypto/hmac"
	"encoding/base64"
	"strconv"
	"strings"
)

const headerVersion = "1"

// Request holds the request fields covered by the MAC.
type Request struct {
	Method   string
	Resource string // path plus query, as sent on the request line
	Host     string
	Port     string

	ContentType string
	Payload     []byte // only consulted when payload verification is on
}

// NormalizedString builds the canonical hawk.1.header string for a claim
// against a request.
func NormalizedString(c *Claim, req Request) string {
	var b strings.Builder
	b.WriteString("hawk." + headerVersion + ".header\n")
	b.WriteString(strconv.FormatInt(c.Timestamp, 10) + "\n")
	b.WriteString(c.Nonce + "\n")
	b.WriteString(strings.ToUpper(req.Method) + "\n")
	b.WriteString(req.Resource + "\n")
	b.WriteString(strings.ToLower(req.Host) + "\n")
	b.WriteString(req.Port + "\n")
	b.WriteString(c.Hash + "\n")
	b.WriteString(escapeExt(c.Ext) + "\n")
	if c.App != "" {
		b.WriteString(c.App + "\n")
		b.WriteString(c.Dlg + "\n")
	}
	return b.String()
}

func escapeExt(ext string) string {
	ext = strings.ReplaceAll(ext, `\`, `\\`)
	return strings.ReplaceAll(ext, "\n", `\n`)
}

// ComputeMAC returns the base64 request MAC for claim under cred.
func ComputeMAC(cred *Credential, c *Claim, req Request) (string, error) {
	newHash, err := cred.Algorithm.newHash()
	if err != nil {
		return "", err
	}
	mac := hmac.New(newHash, cred.Key)
	mac.Write([]byte(NormalizedString(c, req)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// PayloadHash returns the base64 hawk.1.payload hash of a request body.
func PayloadHash(alg Algorithm, contentType string, payload []byte) (string, error) {
	newHash, err := alg.newHash()
	if err != nil {
		return "", err
	}
	h := newHash()
	h.Write([]byte("hawk." + headerVersion + ".payload\n"))
	h.Write([]byte(normalizeContentType(contentType) + "\n"))
	h.Write(payload)
	h.Write([]byte("\n"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// normalizeContentType drops parameters and lowercases the media type.
func normalizeContentType(ct string) string {
	mediaType, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// macEqual compares two base64 MACs in constant time.
func macEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
