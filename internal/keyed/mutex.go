// Package keyed provides a mutex that serialises access per key.  Managers use
// it to funnel all mutations of a single entity through one writer while
// operations on unrelated entities proceed in parallel.
package keyed

import "sync"

// Mutex guards a dynamic set of keys.  The zero value is not usable - create
// instances via New.
type Mutex[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates a keyed mutex.
func New[K comparable]() *Mutex[K] {
	return &Mutex[K]{locks: make(map[K]*entry)}
}

// Lock acquires the mutex for the supplied key, blocking while another
// goroutine holds it.
func (m *Mutex[K]) Lock(key K) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()
	e.mu.Lock()
}

// Unlock releases the mutex for the supplied key.  The per-key entry is
// reclaimed once no goroutine waits on it, so the map does not grow without
// bound.
func (m *Mutex[K]) Unlock(key K) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
	}
	m.mu.Unlock()
	if ok {
		e.mu.Unlock()
	}
}
