package records

import "sync"

// ScopeLocks serializes work per string key. Entries are released once no
// goroutine holds or waits on the key.
type ScopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	mu   sync.Mutex
	refs int
}

// NewScopeLocks constructs an empty lock set.
func NewScopeLocks() *ScopeLocks {
	return &ScopeLocks{locks: make(map[string]*scopeLock)}
}

// Lock blocks until scope is free and returns its unlock func.
func (l *ScopeLocks) Lock(scope string) func() {
	l.mu.Lock()
	entry, ok := l.locks[scope]
	if !ok {
		entry = &scopeLock{}
		l.locks[scope] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, scope)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of scopes currently held or awaited.
func (l *ScopeLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
