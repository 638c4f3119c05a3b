// Package lock serializes read-modify-write cycles on a project between
// processes, through lease rows in the project database or through redis.
// Locks expire after their TTL so a crashed holder cannot block a project
// forever.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHeld is returned when another holder owns the lock
var ErrHeld = errors.New("lock held by another writer")

// Lease is an acquired lock
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive leases on named resources
type Locker interface {
	// TryAcquire takes the lock on name or fails with ErrHeld
	TryAcquire(ctx context.Context, name string) (Lease, error)
}

// Acquire retries TryAcquire every interval until it succeeds or ctx ends
func Acquire(ctx context.Context, l Locker, name string, interval time.Duration) (Lease, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		lease, err := l.TryAcquire(ctx, name)
		if !errors.Is(err, ErrHeld) {
			return lease, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", name, errors.Join(err, ctx.Err()))
		case <-ticker.C:
		}
	}
}

// Memory is an in-process Locker
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

// NewMemory creates an in-process locker whose leases expire after ttl
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, held: make(map[string]memoryEntry), clock: time.Now}
}

func (m *Memory) TryAcquire(ctx context.Context, name string) (Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if e, ok := m.held[name]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	token := uuid.New().String()
	m.held[name] = memoryEntry{token: token, expires: now.Add(m.ttl)}
	return &memoryLease{m: m, name: name, token: token}, nil
}

type memoryLease struct {
	m     *Memory
	name  string
	token string
}

func (l *memoryLease) Release(ctx context.Context) error {
	l.m.mu.Lock()
	defer l.m.mu.Unlock()
	// an expired lease may have been taken over; leave the new holder alone
	if e, ok := l.m.held[l.name]; ok && e.token == l.token {
		delete(l.m.held, l.name)
	}
	return nil
}
