package journal

import "sync"

// scopeLocks serializes replays and mutations per ledger scope (one stock
// strategy, one forex account). Two racing mutations on the same scope would
// otherwise interleave their read-replay-write cycles and lose an update.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	sync.Mutex
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: map[string]*scopeLock{}}
}

// acquire blocks until the scope is free and returns its release func.
func (s *scopeLocks) acquire(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &scopeLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
