// ABOUTME: In-memory session store for tests and single-process deployments
// ABOUTME: Stores copies so callers never share key buffers

package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/2389/hawkgate/internal/hawk"
)

type memoryRecord struct {
	cred     *hawk.Credential
	lastUsed *time.Time
}

// MemoryStore is a mutex-guarded map implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memoryRecord)}
}

// Lookup returns a copy of the credential for id.
func (m *MemoryStore) Lookup(ctx context.Context, id string) (*hawk.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.cred.Clone(), nil
}

// Create stores a copy of cred.
func (m *MemoryStore) Create(ctx context.Context, cred *hawk.Credential) error {
	if cred == nil || cred.ID == "" {
		return fmt.Errorf("creating session: empty id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[cred.ID]; exists {
		return ErrDuplicate
	}
	c := cred.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.sessions[c.ID] = &memoryRecord{cred: c}
	return nil
}

// Touch records the last time a session authenticated.
func (m *MemoryStore) Touch(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	rec.lastUsed = &t
	return nil
}

// List returns sessions newest first. limit <= 0 returns all.
func (m *MemoryStore) List(ctx context.Context, limit int) ([]*Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Info, 0, len(m.sessions))
	for _, rec := range m.sessions {
		info := &Info{
			ID:        rec.cred.ID,
			Algorithm: rec.cred.Algorithm,
			App:       rec.cred.App,
			CreatedAt: rec.cred.CreatedAt,
		}
		if rec.lastUsed != nil {
			t := *rec.lastUsed
			info.LastUsedAt = &t
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
