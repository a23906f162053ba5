package storage

import "sync"

// GroupLocks hands out one mutex per group. Entries are reference counted
// and dropped when no goroutine holds or waits on them.
type GroupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func NewGroupLocks() *GroupLocks {
	return &GroupLocks{locks: make(map[string]*groupLock)}
}

// Lock blocks until the group's mutex is held and returns its release func.
func (l *GroupLocks) Lock(groupID string) (unlock func()) {
	l.mu.Lock()
	gl, ok := l.locks[groupID]
	if !ok {
		gl = &groupLock{}
		l.locks[groupID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			gl.mu.Unlock()
			l.mu.Lock()
			gl.refs--
			if gl.refs == 0 {
				delete(l.locks, groupID)
			}
			l.mu.Unlock()
		})
	}
}

func (l *GroupLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
