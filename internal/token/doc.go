// Package token mints session tokens for auto-provisioned Hawk sessions.
//
// A token is 32 random bytes, hex encoded for the Hawk-Session-Token response
// header. Both the session id and the Hawk key are derived from it:
//
//	HKDF-SHA256(seed, info="hawkgate/v1/sessionToken") -> id (32 bytes) || key (32 bytes)
//
// Both halves are hex encoded; the key's hex string is the MAC key. A client
// holding the token derives the same credential, so the key itself is never
// sent separately.
package token
