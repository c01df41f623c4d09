// ABOUTME: Session store interface and types for Hawk credential persistence
// ABOUTME: Defines the Store contract shared by the SQLite and in-memory stores

package session

import (
	"context"
	"errors"
	"time"

	"github.com/2389/hawkgate/internal/hawk"
)

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("session not found")

// ErrDuplicate is returned when creating a session whose id already exists.
var ErrDuplicate = errors.New("session already exists")

// Info describes a stored session without its key.
type Info struct {
	ID         string
	Algorithm  hawk.Algorithm
	App        string
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Store persists Hawk session credentials.
//
// Create must be atomic per id: a concurrent Lookup sees either nothing or the
// complete credential.
type Store interface {
	Lookup(ctx context.Context, id string) (*hawk.Credential, error)
	Create(ctx context.Context, cred *hawk.Credential) error
	Touch(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, limit int) ([]*Info, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
