// Package checkout keeps per-visitor checkout sessions: the priced cart and
// the voucher applied to it.
package checkout

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/techstore/internal/domain/order"
	"github.com/xenking/techstore/internal/domain/voucher"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrSessionConflict is returned by Store.Save when the session was
	// saved by someone else since it was read.
	ErrSessionConflict = errors.New("checkout session changed concurrently")
)

// Session is the stored state of one checkout.
type Session struct {
	ID       string            `json:"id"`
	Items    []order.OrderItem `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	// Voucher is the snapshot taken when the voucher was applied.
	Voucher   *voucher.Voucher `json:"voucher,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
	// Version counts saves. Zero means the session was never stored.
	Version int64 `json:"version"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Items = slices.Clone(s.Items)
	if s.Voucher != nil {
		v := *s.Voucher
		cp.Voucher = &v
	}
	return &cp
}

// Store persists sessions with an expiry.
//
// Save is a compare-and-set on Session.Version: it succeeds only when the
// stored version still equals s.Version (no stored session for version 0),
// and advances s.Version on success. A stale write fails with
// ErrSessionConflict; a write to a session that expired or was deleted
// fails with ErrSessionNotFound.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Expired entries are dropped
// lazily on access and by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, id)
		return nil, ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var current int64
	if e, ok := m.entries[s.ID]; ok && now.Before(e.expiresAt) {
		current = e.session.Version
	}
	if err := CheckVersion(current, s.Version); err != nil {
		return err
	}

	s.Version++
	m.entries[s.ID] = memoryEntry{
		session:   s.Clone(),
		expiresAt: now.Add(ttl),
	}
	return nil
}

// CheckVersion is the Save precondition shared by Store implementations:
// stored is the version of the live session (0 when there is none), base
// the version the write was based on.
func CheckVersion(stored, base int64) error {
	switch {
	case stored == base:
		return nil
	case stored == 0:
		return ErrSessionNotFound
	default:
		return ErrSessionConflict
	}
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

// Sweep removes expired sessions and reports how many were dropped.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
