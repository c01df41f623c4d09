// ABOUTME: Gateway orchestrator that serves Hawk-protected routes over HTTP
// ABOUTME: Manages the session store, nonce cache, metrics and health endpoints lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/hawkgate/internal/auth"
	"github.com/2389/hawkgate/internal/config"
	"github.com/2389/hawkgate/internal/hawk"
	"github.com/2389/hawkgate/internal/metrics"
	"github.com/2389/hawkgate/internal/replay"
	"github.com/2389/hawkgate/internal/session"
	"github.com/2389/hawkgate/internal/token"
)

// Gateway owns the HTTP server and everything the authenticator depends on.
type Gateway struct {
	config     *config.Config
	store      session.Store
	nonces     *replay.Cache
	auth       *auth.Authenticator
	registry   *prometheus.Registry
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore opens the SQLite session store named by the config.
func initStore(cfg *config.Config) (session.Store, error) {
	s, err := session.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := NewWithStore(cfg, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

// NewWithStore creates a Gateway over an already opened store. The gateway
// takes ownership of s and closes it on Shutdown.
func NewWithStore(cfg *config.Config, s session.Store, logger *slog.Logger) (*Gateway, error) {
	opts, err := cfg.Hawk.VerifierOptions()
	if err != nil {
		return nil, err
	}
	sessionAlg, err := hawk.ParseAlgorithm(cfg.Sessions.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("sessions.algorithm: %w", err)
	}

	nonces := replay.New(cfg.Hawk.NonceWindow, cfg.Hawk.NonceCacheSize)
	verifier, err := hawk.NewVerifier(opts, nonces)
	if err != nil {
		nonces.Close()
		return nil, fmt.Errorf("creating verifier: %w", err)
	}
	codec, err := token.NewCodec(sessionAlg)
	if err != nil {
		nonces.Close()
		return nil, fmt.Errorf("creating token codec: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gw := &Gateway{
		config:   cfg,
		store:    s,
		nonces:   nonces,
		registry: registry,
		logger:   logger.With("component", "gateway"),
	}

	// Routes that do not provision sessions share this authenticator; the
	// others derive one with a creator attached.
	gw.auth, err = auth.NewAuthenticator(auth.Config{
		Sessions:    s,
		Binder:      &touchBinder{store: s, logger: logger.With("component", "binder")},
		Verifier:    verifier,
		Codec:       codec,
		TokenHeader: cfg.Sessions.TokenHeader,
		Metrics:     metrics.NewAuth(registry),
		Logger:      logger,
	})
	if err != nil {
		nonces.Close()
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}

	mux := http.NewServeMux()

	// Health endpoints - no auth required
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	gw.registerProtectedRoutes(mux)

	gw.handler = WithRequestLogging(mux, logger.With("component", "http"))
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// registerProtectedRoutes mounts every configured route behind the authenticator.
func (g *Gateway) registerProtectedRoutes(mux *http.ServeMux) {
	provisioning := g.auth.WithCreator(g.store)

	for _, route := range g.config.Routes {
		a := g.auth
		if route.AutoCreate {
			a = provisioning
		}
		mux.Handle(route.Path, a.Middleware(http.HandlerFunc(g.handleWhoami)))
		g.logger.Debug("protected route registered", "path", route.Path, "auto_create", route.AutoCreate)
	}
}

// Handler returns the root HTTP handler, including request logging.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Registry returns the Prometheus registry the gateway reports to.
func (g *Gateway) Registry() *prometheus.Registry {
	return g.registry
}

// startServer starts the HTTP server in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr, "routes", len(g.config.Routes))

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		_ = g.closeResources()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (g *Gateway) closeResources() error {
	g.nonces.Close()
	return g.store.Close()
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.closeResources())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the session store answers.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type whoamiResponse struct {
	SessionID string `json:"session_id"`
	Created   bool   `json:"created"`
	App       string `json:"app,omitempty"`
}

// handleWhoami is the downstream of every protected route.
func (g *Gateway) handleWhoami(w http.ResponseWriter, r *http.Request) {
	s := auth.MustFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(whoamiResponse{
		SessionID: s.ID,
		Created:   s.Created,
		App:       s.App,
	})
}
