// Package replay tracks recently seen Hawk nonces so a captured request cannot
// be replayed inside the timestamp skew window.
package replay
