// File: plugins/drag/arena.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package drag

import (
	"sort"
	"sync"
)

type watcher struct {
	handle uint32
	pid    int32
}

// arena owns listeners and hands out integer handles. Handles are never
// reused within one arena.
type arena struct {
	mu    sync.Mutex
	next  uint32
	slots map[uint32]int32 // handle -> owner pid
}

func newArena() *arena {
	return &arena{slots: make(map[uint32]int32)}
}

func (a *arena) add(pid int32) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.slots[a.next] = pid
	return a.next
}

func (a *arena) remove(h uint32, pid int32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	owner, ok := a.slots[h]
	if !ok || owner != pid {
		return false
	}
	delete(a.slots, h)
	return true
}

func (a *arena) removeOwner(pid int32) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for h, owner := range a.slots {
		if owner == pid {
			delete(a.slots, h)
			n++
		}
	}
	return n
}

func (a *arena) snapshot() []watcher {
	a.mu.Lock()
	out := make([]watcher, 0, len(a.slots))
	for h, pid := range a.slots {
		out = append(out, watcher{handle: h, pid: pid})
	}
	a.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].handle < out[j].handle })
	return out
}

func (a *arena) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots)
}

func (a *arena) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots = make(map[uint32]int32)
}
