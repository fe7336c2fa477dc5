package application

import "sync"

// GroupLocks serializes every state mutation of one group. All commands that
// touch a group's members, current cycle, or ledger tail lock its group ID;
// operations on different groups proceed fully in parallel.
//
// Lock entries are never removed: groups are never deleted and a closed
// group's mutex is one word of state.
type GroupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGroupLocks() *GroupLocks {
	return &GroupLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for groupID and returns its unlock function.
func (g *GroupLocks) Lock(groupID string) func() {
	g.mu.Lock()
	lock, ok := g.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[groupID] = lock
	}
	g.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
