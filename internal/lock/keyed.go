// Package lock provides the per-entity exclusion units used by the
// reservation engine.  Each key (a slot or a user) has its own mutex, so
// operations on different entities never contend, while acquisition is
// bounded by the caller's context.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrTimeout is returned when a key could not be acquired before the
// context expired.
var ErrTimeout = errors.New("lock: acquisition timed out")

type entry struct {
	sem  chan struct{}
	refs int
}

// Keyed is a set of mutexes addressed by string keys.  Entries are created
// on demand and dropped once no goroutine holds or waits for them.  The
// zero value is not usable; call NewKeyed.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewKeyed returns an empty lock set.
func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock acquires key, waiting until it is free or ctx is done.  The
// returned function releases the key and must be called exactly once.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	e := k.ref(key)
	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				k.unref(key, e)
			})
		}, nil
	case <-ctx.Done():
		k.unref(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, key, ctx.Err())
	}
}

// LockAll acquires keys in the order given.  Callers must use a fixed
// global order (the engine always takes the user before the slot) to stay
// deadlock free.  On failure every key already taken is released.
func (k *Keyed) LockAll(ctx context.Context, keys ...string) (func(), error) {
	releases := make([]func(), 0, len(keys))
	unlockAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		release, err := k.Lock(ctx, key)
		if err != nil {
			unlockAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return unlockAll, nil
}

// Len reports how many keys are currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// UserKey and SlotKey name the exclusion units of the engine.
func UserKey(id uint64) string { return fmt.Sprintf("user:%d", id) }

func SlotKey(id uint64) string { return fmt.Sprintf("slot:%d", id) }
