package reminder

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Store holds pending reminders. Transition is the only way to change a
// reminder once inserted and must be atomic against concurrent callers.
type Store interface {
	Insert(p Pending) error
	Get(id ID) (Pending, error)
	Transition(id ID, from, to State, mutate func(*Pending)) (Pending, error)
	Remove(id ID)
	Find(match func(Pending) bool) (Pending, bool)
	List() []Pending
}

// MemoryStore is an in-memory Store. Pending state is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[ID]*Pending
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[ID]*Pending)}
}

// Insert adds p. Fails with ErrDuplicateID if p.ID is already pending.
func (s *MemoryStore) Insert(p Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[p.ID]; ok {
		return errors.Wrapf(ErrDuplicateID, "insert %s", p.ID)
	}
	cp := p.clone()
	s.pending[p.ID] = &cp
	return nil
}

// Get returns a copy of the reminder with the given ID.
func (s *MemoryStore) Get(id ID) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return Pending{}, errors.Wrapf(ErrNotFound, "get %s", id)
	}
	return p.clone(), nil
}

// Transition moves the reminder from state `from` to state `to`, applying
// mutate (may be nil) under the same lock, and returns the updated copy.
// from == to is allowed and only applies mutate.
func (s *MemoryStore) Transition(id ID, from, to State, mutate func(*Pending)) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if !ok {
		return Pending{}, errors.Wrapf(ErrNotFound, "transition %s", id)
	}
	if p.State != from {
		return Pending{}, errors.Wrapf(ErrStateConflict, "transition %s: state is %s, want %s", id, p.State, from)
	}
	if mutate != nil {
		mutate(p)
	}
	p.ID = id
	p.State = to
	return p.clone(), nil
}

// Remove deletes the reminder. Removing an unknown ID is a no-op.
func (s *MemoryStore) Remove(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Find returns the first reminder for which match returns true.
// match runs under the store lock and must not block.
func (s *MemoryStore) Find(match func(Pending) bool) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if match(*p) {
			return p.clone(), true
		}
	}
	return Pending{}, false
}

// List returns copies of all reminders ordered by fire time.
func (s *MemoryStore) List() []Pending {
	s.mu.Lock()
	result := make([]Pending, 0, len(s.pending))
	for _, p := range s.pending {
		result = append(result, p.clone())
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].FireAt.Equal(result[j].FireAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].FireAt.Before(result[j].FireAt)
	})
	return result
}
