// File: scheduler/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package scheduler drives fd-bearing event sources from a single epoll
// driver thread and runs sync, async, delayed, periodic and blocking tasks.
//
// The driver never calls handler code. Each registered handler owns a parked
// goroutine; the driver hands it the fired readiness bits, the goroutine runs
// Dispatch and then re-arms the one-shot registration.
package scheduler
