package workflow

import "sync"

// lockSet hands out one mutex per proposal id. Entries are reference counted
// and removed when the last holder unlocks.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the lock for id is held and returns its release func.
func (s *lockSet) Lock(id string) func() {
	s.mu.Lock()
	e, ok := s.locks[id]
	if !ok {
		e = &lockEntry{}
		s.locks[id] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		s.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *lockSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
