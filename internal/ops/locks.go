package ops

import "sync"

// refLocks is a keyed mutex. Entries are dropped once no goroutine holds or
// waits on them, so the map stays proportional to in-flight refs.
type refLocks struct {
	mu   sync.Mutex
	refs map[string]*refLock
}

type refLock struct {
	mu    sync.Mutex
	users int
}

// lock blocks until ref is free and returns the matching unlock.
func (l *refLocks) lock(ref string) (unlock func()) {
	l.mu.Lock()
	if l.refs == nil {
		l.refs = make(map[string]*refLock)
	}
	rl, ok := l.refs[ref]
	if !ok {
		rl = &refLock{}
		l.refs[ref] = rl
	}
	rl.users++
	l.mu.Unlock()

	rl.mu.Lock()
	return func() {
		rl.mu.Unlock()
		l.mu.Lock()
		rl.users--
		if rl.users == 0 {
			delete(l.refs, ref)
		}
		l.mu.Unlock()
	}
}

// size returns the number of refs currently held or awaited.
func (l *refLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.refs)
}
