// Package gateway runs the hawkgate HTTP server.
//
// # Endpoints
//
//   - GET /health: liveness, always "OK"
//   - GET /health/ready: 200 when the session store answers a ping, else 503
//   - GET <metrics.path>: Prometheus metrics, when metrics.enabled is set
//   - every configured route: Hawk-protected, answering
//     {"session_id": "...", "created": bool}
//
// Routes with auto_create provision a session for requests that carry no
// usable credential and return its token in the configured header.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Shutdown drains the HTTP server, stops the nonce cache sweeper and closes
// the session store.
package gateway
