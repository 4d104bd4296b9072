package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLock_MutualExclusion(t *testing.T) {
	kl := New()

	const goroutines = 50
	counter := 0

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			unlock := kl.Lock("reservation:abc")
			defer unlock()
			// racy without the lock
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestKeyLock_IndependentKeys(t *testing.T) {
	kl := New()

	unlockA := kl.Lock("a")

	done := make(chan struct{})
	go func() {
		unlockB := kl.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on key b blocked by held key a")
	}
	unlockA()
}

func TestKeyLock_Reentry(t *testing.T) {
	kl := New()

	unlock := kl.Lock("k")
	unlock()

	// reacquiring a released key must not block
	unlock = kl.Lock("k")
	unlock()
}

func TestKeyLock_CleansUpIdleEntries(t *testing.T) {
	kl := New()

	for i := 0; i < 100; i++ {
		unlock := kl.Lock("k")
		unlock()
	}

	assert.Equal(t, 0, kl.Size())
}
