package ledger

import (
	"context"
	"sync"

	"github.com/iliyamo/docconv/internal/plan"
)

type usageKey struct {
	userID int64
	day    string
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// MemoryStore keeps users and counters in process memory.  Reservations are
// serialized per (user, day) through a reference-counted lock table, so
// different users never wait on each other.  State is lost on restart; use
// it for tests and throwaway runs only.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[int64]plan.ID
	usage map[usageKey]int

	locksMu sync.Mutex
	locks   map[usageKey]*keyLock
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]plan.ID),
		usage: make(map[usageKey]int),
		locks: make(map[usageKey]*keyLock),
	}
}

func (s *MemoryStore) EnsureUser(ctx context.Context, userID int64, def plan.ID) (plan.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.users[userID]; ok {
		return p, nil
	}
	s.users[userID] = def
	return def, nil
}

func (s *MemoryStore) SetPlan(ctx context.Context, userID int64, p plan.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.users[userID] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UsageOn(ctx context.Context, userID int64, day string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	k := usageKey{userID, day}
	s.mu.Lock()
	defer s.mu.Unlock()
	used, ok := s.usage[k]
	if !ok {
		s.usage[k] = 0
	}
	return used, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, userID int64, day string, pages, limit int) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	k := usageKey{userID, day}
	unlock := s.lock(k)
	defer unlock()

	s.mu.RLock()
	used := s.usage[k]
	s.mu.RUnlock()
	if used+pages > limit {
		return used, false, nil
	}
	used += pages
	s.mu.Lock()
	s.usage[k] = used
	s.mu.Unlock()
	return used, true, nil
}

// lock acquires the mutex for k and returns its release function.  Entries
// are dropped from the table once no caller holds or waits on them.
func (s *MemoryStore) lock(k usageKey) func() {
	s.locksMu.Lock()
	l, ok := s.locks[k]
	if !ok {
		l = &keyLock{}
		s.locks[k] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, k)
		}
		s.locksMu.Unlock()
	}
}
