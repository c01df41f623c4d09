// ABOUTME: Tests for the Gateway HTTP surface and lifecycle
// ABOUTME: Exercises health, metrics and protected routes over an in-memory SQLite store

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hawkgate/internal/config"
	"github.com/2389/hawkgate/internal/hawk"
	"github.com/2389/hawkgate/internal/session"
	"github.com/2389/hawkgate/internal/token"
)

// testConfig creates a minimal config for testing with an available port.
func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg, err := config.Parse([]byte(fmt.Sprintf(`
server:
  http_addr: %q
database:
  path: ":memory:"
metrics:
  enabled: true
%s`, httpAddr, extra)), false)
	require.NoError(t, err)
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.closeResources() })
	return gw
}

func serve(gw *Gateway, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, r)
	return rec
}

func TestGateway_Health(t *testing.T) {
	gw := newTestGateway(t, testConfig(t, ""))

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = serve(gw, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())
}

// unhealthyStore fails pings.
type unhealthyStore struct {
	session.Store
}

func (unhealthyStore) Ping(context.Context) error { return errors.New("disk gone") }

func TestGateway_ReadyFailsWhenStoreDown(t *testing.T) {
	cfg := testConfig(t, "")
	gw, err := NewWithStore(cfg, unhealthyStore{session.NewMemoryStore()}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.closeResources() })

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
}

func TestGateway_ProtectedRoutes(t *testing.T) {
	gw := newTestGateway(t, testConfig(t, ""))
	codec, err := token.NewCodec(hawk.SHA256)
	require.NoError(t, err)

	// Strict route without credentials.
	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/require-session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Hawk algorithms="sha256"`, rec.Header().Get("WWW-Authenticate"))

	// Provisioning route issues a token.
	rec = serve(gw, httptest.NewRequest(http.MethodGet, "/require-or-create-session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	encoded := rec.Header().Get(config.DefaultTokenHeader)
	require.NotEmpty(t, encoded)

	var body whoamiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Created)

	tok, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, tok.Credential.ID, body.SessionID)

	// The token opens the strict route. The signed app attribute does not
	// become the session's app.
	r := httptest.NewRequest(http.MethodGet, "/require-session", nil)
	require.NoError(t, hawk.SignRequest(r, tok.Credential, nil, hawk.HeaderOptions{App: "ios"}))
	rec = serve(gw, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "ios")
	body = whoamiResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, whoamiResponse{SessionID: tok.Credential.ID}, body)

	// Malformed header.
	r = httptest.NewRequest(http.MethodGet, "/require-session", nil)
	r.Header.Set("Authorization", `Hawk id="x"`)
	rec = serve(gw, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))

	// The binder recorded activity.
	infos, err := gw.store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.NotNil(t, infos[0].LastUsedAt)
}

func TestGateway_CustomRoutesAndHeader(t *testing.T) {
	gw := newTestGateway(t, testConfig(t, `
sessions:
  token_header: "X-Hawk-Token"
routes:
  - path: "/signup"
    auto_create: true
`))

	rec := serve(gw, httptest.NewRequest(http.MethodPost, "/signup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Hawk-Token"))

	rec = serve(gw, httptest.NewRequest(http.MethodGet, "/require-session", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "default routes are replaced by configured ones")
}

func TestGateway_Metrics(t *testing.T) {
	gw := newTestGateway(t, testConfig(t, ""))

	serve(gw, httptest.NewRequest(http.MethodGet, "/require-session", nil))
	serve(gw, httptest.NewRequest(http.MethodGet, "/require-or-create-session", nil))

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `hawkgate_auth_decisions_total{outcome="unauthenticated"} 1`)
	assert.Contains(t, out, `hawkgate_auth_decisions_total{outcome="created"} 1`)
	assert.Contains(t, out, "hawkgate_sessions_created_total 1")
	assert.Contains(t, out, "go_goroutines")
}

func TestGateway_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Metrics.Enabled = false
	gw := newTestGateway(t, cfg)

	rec := serve(gw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithRequestLogging_RequestID(t *testing.T) {
	var buf strings.Builder
	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), slog.New(slog.NewTextHandler(&buf, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pot", nil))

	generated := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "request_id="+generated)
	assert.Contains(t, buf.String(), "bytes=15")

	inbound := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/pot", nil)
	r.Header.Set(RequestIDHeader, inbound)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, inbound, rec.Header().Get(RequestIDHeader))

	r = httptest.NewRequest(http.MethodGet, "/pot", nil)
	r.Header.Set(RequestIDHeader, "not a uuid\nforged=1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.NotEqual(t, "not a uuid\nforged=1", rec.Header().Get(RequestIDHeader))
}

func TestLoggingResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rec, status: http.StatusOK}

	lrw.Flush()
	assert.True(t, rec.Flushed)
	assert.Same(t, rec, lrw.Unwrap())

	_, _, err := lrw.Hijack()
	assert.Error(t, err)
}

func TestGateway_RunAndShutdown(t *testing.T) {
	cfg := testConfig(t, "")
	gw, err := New(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	url := "http://" + cfg.Server.HTTPAddr + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestGateway_RunFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t, "")
	cfg.Server.HTTPAddr = ln.Addr().String()
	gw, err := New(cfg, testLogger())
	require.NoError(t, err)

	err = gw.Run(context.Background())
	assert.ErrorContains(t, err, "listening on HTTP address")
}

func TestTouchBinder_StoreError(t *testing.T) {
	b := &touchBinder{store: session.NewMemoryStore(), logger: testLogger()}
	cred := &hawk.Credential{ID: "missing", Key: []byte("k"), Algorithm: hawk.SHA256}

	_, err := b.BindUser(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), cred)
	assert.ErrorIs(t, err, session.ErrNotFound)
}
