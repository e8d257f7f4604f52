package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockFreeQueue_MPMC(t *testing.T) {
	q := NewLockFreeQueue[int](1024)
	const (
		producers        = 8
		consumers        = 8
		itemsPerProducer = 5000
	)
	totalItems := int64(producers * itemsPerProducer)

	var sentSum, receivedSum, receivedCount int64
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				val := pid*itemsPerProducer + i + 1
				for !q.Enqueue(val) {
					runtime.Gosched()
				}
				atomic.AddInt64(&sentSum, int64(val))
			}
		}(p)
	}

	var consumerWg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for atomic.LoadInt64(&receivedCount) < totalItems {
				if val, ok := q.Dequeue(); ok {
					atomic.AddInt64(&receivedSum, int64(val))
					atomic.AddInt64(&receivedCount, 1)
				} else {
					runtime.Gosched()
				}
			}
		}()
	}

	wg.Wait()
	done := make(chan struct{})
	go func() {
		consumerWg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if sentSum != receivedSum {
			t.Errorf("checksum mismatch: sent %d, received %d", sentSum, receivedSum)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout waiting for consumers, received %d/%d", atomic.LoadInt64(&receivedCount), totalItems)
	}
}
