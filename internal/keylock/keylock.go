// Package keylock provides context-aware mutual exclusion keyed by string.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	token chan struct{}
	refs  int
}

// Locker hands out one token per key. The zero value is ready to use.
type Locker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

// Lock blocks until key is free or ctx ends. The returned release function
// must be called exactly once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.keys == nil {
		l.keys = make(map[string]*entry)
	}
	e, ok := l.keys[key]
	if !ok {
		e = &entry{token: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.token <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.token
			l.drop(key, e)
		})
	}, nil
}

func (l *Locker) drop(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// held reports how many callers hold or wait on key.
func (l *Locker) held(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.keys[key]; ok {
		return e.refs
	}
	return 0
}
