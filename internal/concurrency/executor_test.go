package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestExecutor_RunsAllTasks(t *testing.T) {
	ex := NewExecutor(4, nil)
	defer ex.Close()

	var wg sync.WaitGroup
	var counter atomic.Int64
	const n = 5000 // more than the local queues hold, exercises the backlog
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, ex.Submit(func() {
			counter.Add(1)
			wg.Done()
		}))
	}
	waitOrFail(t, &wg, 5*time.Second)
	assert.EqualValues(t, n, counter.Load())
}

func TestExecutor_StealsFromBusyWorker(t *testing.T) {
	ex := NewExecutor(2, nil)
	defer ex.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, ex.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		i := i
		require.NoError(t, ex.Submit(func() {
			if i == 3 {
				close(done)
			}
		}))
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks starved behind a busy worker")
	}
	close(release)
}

func TestExecutor_RecoversPanics(t *testing.T) {
	var recovered atomic.Value
	ex := NewExecutor(1, func(r any) { recovered.Store(r) })
	defer ex.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, ex.Submit(func() { panic("boom") }))
	require.NoError(t, ex.Submit(wg.Done))
	waitOrFail(t, &wg, time.Second)
	assert.Equal(t, "boom", recovered.Load())
}

func TestExecutor_SubmitAfterClose(t *testing.T) {
	ex := NewExecutor(2, nil)
	ex.Close()
	ex.Close()
	assert.ErrorIs(t, ex.Submit(func() {}), ErrExecutorClosed)
}

func TestBlockingPool_DoesNotBlockOtherWork(t *testing.T) {
	p := NewBlockingPool(4, 50*time.Millisecond, nil)
	defer p.Close()

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			<-release
		}))
	}

	quick := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(quick) }))
	select {
	case <-quick:
	case <-time.After(time.Second):
		t.Fatal("blocking tasks starved the pool")
	}
	close(release)
	waitOrFail(t, &wg, time.Second)
}

func TestBlockingPool_BacklogBeyondMax(t *testing.T) {
	p := NewBlockingPool(2, time.Second, nil)
	defer p.Close()

	var wg sync.WaitGroup
	var counter atomic.Int64
	wg.Add(20)
	for i := 0; i < 20; i++ {
		require.NoError(t, p.Submit(func() {
			time.Sleep(time.Millisecond)
			counter.Add(1)
			wg.Done()
		}))
	}
	assert.LessOrEqual(t, p.Workers(), 2)
	waitOrFail(t, &wg, 5*time.Second)
	assert.EqualValues(t, 20, counter.Load())
}

func TestBlockingPool_IdleWorkersRetire(t *testing.T) {
	p := NewBlockingPool(4, 20*time.Millisecond, nil)
	defer p.Close()

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))
	<-done
	assert.Eventually(t, func() bool { return p.Workers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBlockingPool_SubmitAfterClose(t *testing.T) {
	p := NewBlockingPool(1, time.Second, nil)
	p.Close()
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestLockFreeQueue_Bounds(t *testing.T) {
	q := NewLockFreeQueue[int](3)
	assert.Equal(t, 4, q.Cap())
	for i := 0; i < 4; i++ {
		require.True(t, q.Enqueue(i))
	}
	assert.False(t, q.Enqueue(99))
	for i := 0; i < 4; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := q.Dequeue()
	assert.False(t, ok)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for tasks")
	}
}
