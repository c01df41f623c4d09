// Package hawk implements the Hawk request MAC scheme used to authenticate
// session-bound HTTP requests.
//
// # Header
//
// Clients send:
//
//	Authorization: Hawk id="<session id>", ts="<unix seconds>", nonce="<random>", mac="<base64>"
//
// with optional hash, ext, app and dlg attributes. ParseHeader is strict: an
// unknown scheme, an unknown or duplicated attribute, a missing id/ts/nonce/mac
// or any stray text makes the header malformed.
//
// # Verification
//
// Verifier recomputes the MAC over the hawk.1.header normalized string and then
// checks the timestamp window and nonce freshness. A Result is either valid or
// not; the reason is kept for logging only.
//
// # Client
//
// NewRequestHeader and SignRequest build headers for outgoing requests.
package hawk
