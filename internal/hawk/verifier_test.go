// ABOUTME: Tests for Hawk MAC computation and request verification
// ABOUTME: Uses the published Hawk example vector plus signed round trips

package hawk

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exampleCredential = &Credential{
	ID:        "dh37fgj492je",
	Key:       []byte("werxhqb98rpaxn39848xrunpaw3489ruxnpa98w4rxn"),
	Algorithm: SHA256,
}

var exampleRequest = Request{
	Method:   "GET",
	Resource: "/resource/1?b=1&a=2",
	Host:     "example.com",
	Port:     "8000",
}

// seenSet is a minimal NonceChecker for tests.
type seenSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (s *seenSet) CheckAndMark(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[key] {
		return true
	}
	s.seen[key] = true
	return false
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNormalizedString(t *testing.T) {
	claim := &Claim{Timestamp: 1353832234, Nonce: "j4h3g2", Ext: "some-app-ext-data"}
	want := "hawk.1.header\n1353832234\nj4h3g2\nGET\n/resource/1?b=1&a=2\nexample.com\n8000\n\nsome-app-ext-data\n"
	assert.Equal(t, want, NormalizedString(claim, exampleRequest))
}

func TestNormalizedString_AppAndEscapedExt(t *testing.T) {
	claim := &Claim{Timestamp: 1, Nonce: "n", Ext: "a\\b\nc", App: "app", Dlg: "dlg"}
	req := Request{Method: "post", Resource: "/", Host: "EXAMPLE.com", Port: "80"}
	want := "hawk.1.header\n1\nn\nPOST\n/\nexample.com\n80\n\na\\\\b\\nc\napp\ndlg\n"
	assert.Equal(t, want, NormalizedString(claim, req))
}

func TestComputeMAC_KnownVector(t *testing.T) {
	claim := &Claim{Timestamp: 1353832234, Nonce: "j4h3g2", Ext: "some-app-ext-data"}
	mac, err := ComputeMAC(exampleCredential, claim, exampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "6R4rV5iE+NPoym+WwjeHzjAGXUtLNIxmo1vpMofpLAE=", mac)
}

func TestVerify_KnownVector(t *testing.T) {
	v, err := NewVerifier(Options{Now: fixedClock(time.Unix(1353832234, 0))}, &seenSet{})
	require.NoError(t, err)

	header := `Hawk id="dh37fgj492je", ts="1353832234", nonce="j4h3g2", ext="some-app-ext-data", mac="6R4rV5iE+NPoym+WwjeHzjAGXUtLNIxmo1vpMofpLAE="`
	res := v.VerifyHeader(exampleRequest, header, exampleCredential)
	assert.True(t, res.Valid, "unexpected error: %v", res.Err)
	assert.Same(t, exampleCredential, res.Credential)
}

func TestVerify_RoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v, err := NewVerifier(Options{Now: fixedClock(now)}, nil)
	require.NoError(t, err)

	header, err := NewRequestHeader(exampleCredential, exampleRequest, HeaderOptions{Timestamp: now, Ext: "hello", App: "app", Dlg: "d"})
	require.NoError(t, err)

	res := v.VerifyHeader(exampleRequest, header, exampleCredential)
	assert.True(t, res.Valid, "unexpected error: %v", res.Err)
	assert.Equal(t, "app", res.Claim.App)
}

func TestVerify_Rejections(t *testing.T) {
	now := time.Unix(1700000000, 0)
	wrongKey := exampleCredential.Clone()
	wrongKey.Key = []byte("not-the-right-key")
	sha1Cred := exampleCredential.Clone()
	sha1Cred.Algorithm = SHA1

	tests := []struct {
		name    string
		signAs  *Credential
		checkAs *Credential
		signAt  time.Time
		req     Request
		wantErr error
	}{
		{"wrong key", wrongKey, exampleCredential, now, exampleRequest, ErrInvalidMAC},
		{"tampered method", exampleCredential, exampleCredential, now, Request{Method: "POST", Resource: exampleRequest.Resource, Host: exampleRequest.Host, Port: exampleRequest.Port}, ErrInvalidMAC},
		{"stale timestamp", exampleCredential, exampleCredential, now.Add(-2 * time.Minute), exampleRequest, ErrStaleTimestamp},
		{"future timestamp", exampleCredential, exampleCredential, now.Add(2 * time.Minute), exampleRequest, ErrStaleTimestamp},
		{"algorithm not allowed", sha1Cred, sha1Cred, now, exampleRequest, ErrAlgorithm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVerifier(Options{Now: fixedClock(now)}, nil)
			require.NoError(t, err)

			header, err := NewRequestHeader(tt.signAs, exampleRequest, HeaderOptions{Timestamp: tt.signAt})
			require.NoError(t, err)

			res := v.VerifyHeader(tt.req, header, tt.checkAs)
			assert.False(t, res.Valid)
			assert.Nil(t, res.Credential)
			assert.True(t, errors.Is(res.Err, tt.wantErr), "expected %v, got %v", tt.wantErr, res.Err)
		})
	}
}

func TestVerify_IDMismatch(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v, err := NewVerifier(Options{Now: fixedClock(now)}, nil)
	require.NoError(t, err)

	header, err := NewRequestHeader(exampleCredential, exampleRequest, HeaderOptions{Timestamp: now})
	require.NoError(t, err)

	other := exampleCredential.Clone()
	other.ID = "someone-else"
	res := v.VerifyHeader(exampleRequest, header, other)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, ErrIDMismatch)
}

func TestVerify_Replay(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v, err := NewVerifier(Options{Now: fixedClock(now)}, &seenSet{})
	require.NoError(t, err)

	header, err := NewRequestHeader(exampleCredential, exampleRequest, HeaderOptions{Timestamp: now})
	require.NoError(t, err)

	first := v.VerifyHeader(exampleRequest, header, exampleCredential)
	require.True(t, first.Valid)

	second := v.VerifyHeader(exampleRequest, header, exampleCredential)
	assert.False(t, second.Valid)
	assert.ErrorIs(t, second.Err, ErrReplay)
}

func TestVerify_LocaltimeOffset(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v, err := NewVerifier(Options{Now: fixedClock(now), LocaltimeOffset: 5 * time.Minute}, nil)
	require.NoError(t, err)

	header, err := NewRequestHeader(exampleCredential, exampleRequest, HeaderOptions{Timestamp: now.Add(5 * time.Minute)})
	require.NoError(t, err)

	res := v.VerifyHeader(exampleRequest, header, exampleCredential)
	assert.True(t, res.Valid, "unexpected error: %v", res.Err)
}

func TestVerify_MalformedHeader(t *testing.T) {
	v, err := NewVerifier(Options{}, nil)
	require.NoError(t, err)

	res := v.VerifyHeader(exampleRequest, "Hawk MALFORMED", exampleCredential)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err, ErrMalformedHeader)
}

func TestVerifyHTTP_Payload(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v, err := NewVerifier(Options{Now: fixedClock(now), VerifyPayload: true}, nil)
	require.NoError(t, err)

	body := "Thank you for flying Hawk"
	newRequest := func(sent string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "http://example.com:8000/resource?x=1", strings.NewReader(sent))
		r.Header.Set("Content-Type", "text/plain; charset=utf-8")
		return r
	}

	signed := newRequest(body)
	require.NoError(t, SignRequest(signed, exampleCredential, []byte(body), HeaderOptions{Timestamp: now, HashPayload: true}))

	t.Run("matching body", func(t *testing.T) {
		r := newRequest(body)
		r.Header.Set("Authorization", signed.Header.Get("Authorization"))
		claim, err := ParseHeader(r.Header.Get("Authorization"))
		require.NoError(t, err)

		res := v.VerifyHTTP(r, claim, exampleCredential)
		assert.True(t, res.Valid, "unexpected error: %v", res.Err)

		// Body is still readable downstream.
		buf := make([]byte, len(body))
		n, _ := r.Body.Read(buf)
		assert.Equal(t, body, string(buf[:n]))
	})

	t.Run("tampered body", func(t *testing.T) {
		r := newRequest("Thank you for flying Zeppelin")
		r.Header.Set("Authorization", signed.Header.Get("Authorization"))
		claim, err := ParseHeader(r.Header.Get("Authorization"))
		require.NoError(t, err)

		res := v.VerifyHTTP(r, claim, exampleCredential)
		assert.False(t, res.Valid)
		assert.ErrorIs(t, res.Err, ErrPayloadMismatch)
	})
}

func TestRequestFromHTTP(t *testing.T) {
	t.Run("explicit port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://api.example.com:8443/a/b?c=d", nil)
		req, err := RequestFromHTTP(r, "")
		require.NoError(t, err)
		assert.Equal(t, "api.example.com", req.Host)
		assert.Equal(t, "8443", req.Port)
		assert.Equal(t, "/a/b?c=d", req.Resource)
		assert.Equal(t, "GET", req.Method)
	})

	t.Run("default http port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://api.example.com/x", nil)
		req, err := RequestFromHTTP(r, "")
		require.NoError(t, err)
		assert.Equal(t, "80", req.Port)
	})

	t.Run("default https port", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "https://api.example.com/x", nil)
		req, err := RequestFromHTTP(r, "")
		require.NoError(t, err)
		assert.Equal(t, "443", req.Port)
	})

	t.Run("forwarded host header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "http://internal:9000/x", nil)
		r.Header.Set("X-Forwarded-Host", "public.example.com:443")
		req, err := RequestFromHTTP(r, "X-Forwarded-Host")
		require.NoError(t, err)
		assert.Equal(t, "public.example.com", req.Host)
		assert.Equal(t, "443", req.Port)
	})
}

func TestChallenge(t *testing.T) {
	assert.Equal(t, `Hawk algorithms="sha256"`, Challenge([]Algorithm{SHA256}))
	assert.Equal(t, `Hawk algorithms="sha256 sha1"`, Challenge([]Algorithm{SHA256, SHA1}))
}

func TestNewVerifier_UnknownAlgorithm(t *testing.T) {
	_, err := NewVerifier(Options{Algorithms: []Algorithm{"md5"}}, nil)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestCredential_NeverFormatsKey(t *testing.T) {
	cred := Credential{ID: "id1", Key: []byte("super-secret-key"), Algorithm: SHA256}
	assert.NotContains(t, cred.String(), "super-secret-key")
	assert.NotContains(t, cred.LogValue().String(), "super-secret-key")
}
