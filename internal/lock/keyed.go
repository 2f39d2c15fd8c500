// Package lock serializes work on one key inside the process. It pairs with
// the row lock taken by the permit repository so that two requests for the
// same permit never interleave their reads and writes.
package lock

import (
	"context"
	"sync"
)

// Keyed hands out one mutex per key and forgets keys nobody holds
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases the key.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() { k.release(key, e) }, nil
	case <-ctx.Done():
		k.drop(key, e)
		return nil, ctx.Err()
	}
}

func (k *Keyed) release(key string, e *entry) {
	<-e.ch
	k.drop(key, e)
}

func (k *Keyed) drop(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Len returns the number of keys currently held or waited on
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
