// ABOUTME: Parser for the Hawk Authorization request header
// ABOUTME: Rejects structurally malformed headers before any credential lookup

package hawk

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Scheme is the Authorization scheme keyword.
const Scheme = "Hawk"

// ErrMalformedHeader is returned for any structurally invalid Authorization header.
var ErrMalformedHeader = errors.New("hawk: malformed authorization header")

var (
	attributePattern = regexp.MustCompile(`(\w+)="([^"\\]*)"\s*(?:,\s*|$)`)
	valuePattern     = regexp.MustCompile("^[ \\w!#$%&'()*+,\\-./:;<=>?@\\[\\]^`{|}~]*$")
)

// requestAttributes lists every attribute a request header may carry.
var requestAttributes = map[string]bool{
	"id":    true,
	"ts":    true,
	"nonce": true,
	"hash":  true,
	"ext":   true,
	"mac":   true,
	"app":   true,
	"dlg":   true,
}

// Claim is the parsed content of a Hawk request header.
type Claim struct {
	ID        string
	Timestamp int64 // unix seconds
	Nonce     string
	MAC       string
	Hash      string
	Ext       string
	App       string
	Dlg       string
}

// ParseHeader parses an Authorization header value into a Claim.
// The scheme must be Hawk and id, ts, nonce and mac must be present and non-empty.
func ParseHeader(header string) (*Claim, error) {
	header = strings.TrimSpace(header)
	scheme, rest, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, Scheme) {
		return nil, fmt.Errorf("%w: unsupported scheme", ErrMalformedHeader)
	}

	attrs, err := parseAttributes(strings.TrimSpace(rest))
	if err != nil {
		return nil, err
	}

	for _, required := range []string{"id", "ts", "nonce", "mac"} {
		if attrs[required] == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedHeader, required)
		}
	}

	ts, err := strconv.ParseInt(attrs["ts"], 10, 64)
	if err != nil || ts < 0 {
		return nil, fmt.Errorf("%w: invalid ts", ErrMalformedHeader)
	}

	return &Claim{
		ID:        attrs["id"],
		Timestamp: ts,
		Nonce:     attrs["nonce"],
		MAC:       attrs["mac"],
		Hash:      attrs["hash"],
		Ext:       attrs["ext"],
		App:       attrs["app"],
		Dlg:       attrs["dlg"],
	}, nil
}

// parseAttributes splits `key="value", ...` pairs. Every byte of s must belong
// to a well-formed pair.
func parseAttributes(s string) (map[string]string, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: no attributes", ErrMalformedHeader)
	}

	attrs := make(map[string]string)
	pos := 0
	for _, m := range attributePattern.FindAllStringSubmatchIndex(s, -1) {
		if m[0] != pos {
			return nil, fmt.Errorf("%w: bad attribute syntax", ErrMalformedHeader)
		}
		key, value := s[m[2]:m[3]], s[m[4]:m[5]]
		if !requestAttributes[key] {
			return nil, fmt.Errorf("%w: unknown attribute %q", ErrMalformedHeader, key)
		}
		if _, dup := attrs[key]; dup {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrMalformedHeader, key)
		}
		if !valuePattern.MatchString(value) {
			return nil, fmt.Errorf("%w: bad value for %q", ErrMalformedHeader, key)
		}
		attrs[key] = value
		pos = m[1]
	}
	if pos != len(s) {
		return nil, fmt.Errorf("%w: bad attribute syntax", ErrMalformedHeader)
	}
	return attrs, nil
}

// Header renders the claim as an Authorization header value.
func (c *Claim) Header() string {
	var b strings.Builder
	b.WriteString(Scheme)
	fmt.Fprintf(&b, ` id="%s", ts="%d", nonce="%s"`, c.ID, c.Timestamp, c.Nonce)
	if c.Hash != "" {
		fmt.Fprintf(&b, `, hash="%s"`, c.Hash)
	}
	if c.Ext != "" {
		fmt.Fprintf(&b, `, ext="%s"`, c.Ext)
	}
	fmt.Fprintf(&b, `, mac="%s"`, c.MAC)
	if c.App != "" {
		fmt.Fprintf(&b, `, app="%s"`, c.App)
		if c.Dlg != "" {
			fmt.Fprintf(&b, `, dlg="%s"`, c.Dlg)
		}
	}
	return b.String()
}
