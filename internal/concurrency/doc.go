// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency holds the worker pools behind the scheduler: a
// lightweight Executor with per-worker lock-free queues and work stealing,
// and a BlockingPool of elastic goroutines for long-running work so that
// blocking tasks never starve the lightweight ones.
package concurrency
