// Package session persists Hawk session credentials.
//
// Store is the persistence contract. SQLiteStore backs production deployments
// (modernc.org/sqlite, no cgo); MemoryStore backs tests and throwaway
// single-process setups. Both copy keys in and out so no caller shares a key
// buffer with the store.
//
// Lookup returns ErrNotFound for an unknown id. Every other error means the
// store itself failed and must not be read as "unknown session".
package session
