package core

import (
	"context"
	"sync"
)

// ScopeLocks is a set of context-aware mutexes keyed by scope.
// Entries are dropped once no one holds or waits on them.
type ScopeLocks struct {
	mu    sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	ch   chan struct{}
	refs int
}

func NewScopeLocks() *ScopeLocks {
	return &ScopeLocks{locks: make(map[string]*scopeLock)}
}

func (sl *ScopeLocks) Lock(ctx context.Context, scope string) (func(), error) {
	sl.mu.Lock()
	l, ok := sl.locks[scope]
	if !ok {
		l = &scopeLock{ch: make(chan struct{}, 1)}
		sl.locks[scope] = l
	}
	l.refs++
	sl.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		sl.release(scope, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			sl.release(scope, l)
		})
	}, nil
}

func (sl *ScopeLocks) release(scope string, l *scopeLock) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(sl.locks, scope)
	}
}
