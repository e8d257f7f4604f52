// File: internal/concurrency/blocking.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BlockingPool runs long or blocking work on an elastic set of goroutines,
// separate from the Executor. Workers are spawned on demand up to a limit
// and retire after staying idle for the keep-alive period.

package concurrency

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// BlockingPool is an elastic goroutine pool with an unbounded FIFO backlog.
type BlockingPool struct {
	mu        sync.Mutex
	backlog   *queue.Queue // TaskFunc
	workers   int
	idle      int
	max       int
	keepAlive time.Duration
	closed    bool

	notify  chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup
	onPanic func(any)
}

// NewBlockingPool creates a pool of at most maxWorkers goroutines.
func NewBlockingPool(maxWorkers int, keepAlive time.Duration, onPanic func(any)) *BlockingPool {
	if maxWorkers <= 0 {
		maxWorkers = 64
	}
	if keepAlive <= 0 {
		keepAlive = 10 * time.Second
	}
	return &BlockingPool{
		backlog:   queue.New(),
		max:       maxWorkers,
		keepAlive: keepAlive,
		notify:    make(chan struct{}, maxWorkers),
		closeCh:   make(chan struct{}),
		onPanic:   onPanic,
	}
}

// Submit queues task and wakes or spawns a worker for it.
func (p *BlockingPool) Submit(task TaskFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.backlog.Add(task)
	switch {
	case p.idle > 0:
		select {
		case p.notify <- struct{}{}:
		default:
		}
	case p.workers < p.max:
		p.workers++
		p.wg.Add(1)
		go p.run()
	}
	return nil
}

// Workers returns the number of live worker goroutines.
func (p *BlockingPool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// Close rejects new work, drops the backlog and waits for running tasks.
func (p *BlockingPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.closeCh)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *BlockingPool) run() {
	defer p.wg.Done()
	timer := time.NewTimer(p.keepAlive)
	defer timer.Stop()
	for {
		p.mu.Lock()
		if p.closed {
			p.workers--
			p.mu.Unlock()
			return
		}
		if p.backlog.Length() > 0 {
			task := p.backlog.Remove().(TaskFunc)
			p.mu.Unlock()
			p.safeExecute(task)
			continue
		}
		p.idle++
		p.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.keepAlive)

		expired := false
		select {
		case <-p.notify:
		case <-p.closeCh:
		case <-timer.C:
			expired = true
		}

		p.mu.Lock()
		p.idle--
		if expired && p.backlog.Length() == 0 {
			p.workers--
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

func (p *BlockingPool) safeExecute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}
