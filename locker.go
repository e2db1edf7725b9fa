package sindex

import (
	"sync"

	"github.com/drpcorg/sindex/rdx"
)

// KeyLocker is a per-key mutex table whose entries are dropped on unlock, grounded on
// index_manager.go's mutexMap (sync.Map + LoadOrStore/Delete around a
// per-field mutex). One instance guards object ids for UPDATE, a second
// guards routing ids for INTERNAL.
type KeyLocker struct {
	locks sync.Map // rdx.ID -> *sync.Mutex
}

// Lock blocks until the key is uncontended, then holds it. The returned
// func removes the entry from the table and releases the lock; goroutines
// already waiting on the old mutex see the entry gone and retry against a
// fresh one.
func (kl *KeyLocker) Lock(key rdx.ID) (unlock func()) {
	for {
		lockAny, _ := kl.locks.LoadOrStore(key, &sync.Mutex{})
		mu := lockAny.(*sync.Mutex)
		mu.Lock()

		// Another goroutine may have already unlocked and removed this
		// entry between LoadOrStore and Lock; recheck it's still ours.
		if cur, ok := kl.locks.Load(key); !ok || cur.(*sync.Mutex) != mu {
			mu.Unlock()
			continue
		}

		return func() {
			kl.locks.CompareAndDelete(key, mu)
			mu.Unlock()
		}
	}
}
