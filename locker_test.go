package sindex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockerSerializesSameKey(t *testing.T) {
	kl := &KeyLocker{}
	key := mkID(1)

	var running int32
	var maxConcurrent int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock(key)
			n := atomic.AddInt32(&running, 1)
			for {
				max := atomic.LoadInt32(&maxConcurrent)
				if n <= max || atomic.CompareAndSwapInt32(&maxConcurrent, max, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxConcurrent)
}

func TestKeyLockerDifferentKeysDoNotBlock(t *testing.T) {
	kl := &KeyLocker{}
	unlockA := kl.Lock(mkID(1))
	done := make(chan struct{})
	go func() {
		unlockB := kl.Lock(mkID(2))
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("locking a different key should not block")
	}
	unlockA()
}
