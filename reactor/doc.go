// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor wraps the OS readiness-notification primitive used by the
// scheduler: a one-shot, edge-triggered epoll poller and a self-pipe waker.
package reactor
