package session

import (
	"context"
	"sync"
	"time"
)

// Registry enforces the one-live-session-per-ticket invariant. Acquire wins
// the slot or reports it taken; Release only frees the slot when the caller
// still holds it.
type Registry interface {
	Acquire(ctx context.Context, ticketID, sessionID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, ticketID, sessionID string) error
	Refresh(ctx context.Context, ticketID, sessionID string, ttl time.Duration) error
}

type memoryRegistry struct {
	mu    sync.Mutex
	slots map[string]memorySlot
}

type memorySlot struct {
	sessionID string
	expiresAt time.Time
}

// NewMemoryRegistry builds a single-process registry, used in tests and when
// no Redis is configured.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{slots: make(map[string]memorySlot)}
}

func (r *memoryRegistry) Acquire(_ context.Context, ticketID, sessionID string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.slots[ticketID]; ok && time.Now().Before(slot.expiresAt) {
		return slot.sessionID == sessionID, nil
	}
	r.slots[ticketID] = memorySlot{sessionID: sessionID, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (r *memoryRegistry) Release(_ context.Context, ticketID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.slots[ticketID]; ok && slot.sessionID == sessionID {
		delete(r.slots, ticketID)
	}
	return nil
}

func (r *memoryRegistry) Refresh(_ context.Context, ticketID, sessionID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.slots[ticketID]; ok && slot.sessionID == sessionID {
		slot.expiresAt = time.Now().Add(ttl)
		r.slots[ticketID] = slot
	}
	return nil
}
