// Package keylock provides a mutex table keyed by string. It serializes
// operations on the same logical record (a reservation, a gateway reference)
// without a global lock, and without holding memory for idle keys.
package keylock

import "sync"

// KeyLock is a table of per-key mutexes. The zero value is not usable; call New.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty KeyLock
func New() *KeyLock {
	return &KeyLock{entries: make(map[string]*entry)}
}

// Size returns the number of keys currently held or waited on
func (k *KeyLock) Size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Lock acquires the mutex for key and returns the matching unlock function.
// Distinct keys never block each other.
func (k *KeyLock) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
