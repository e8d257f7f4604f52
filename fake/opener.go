// File: fake/opener.go
// Author: momentics <momentics@gmail.com>
//
// In-memory shared objects for plugin manager tests.

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-ipc/pluginmgr"
)

// Library maps symbol names to values.
type Library struct {
	Symbols map[string]any
}

func (l *Library) Lookup(symbol string) (any, error) {
	v, ok := l.Symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}
	return v, nil
}

// Opener serves Libraries by path and counts opens.
type Opener struct {
	mu    sync.Mutex
	libs  map[string]*Library
	opens map[string]int
}

var _ pluginmgr.Opener = (*Opener)(nil)

// NewOpener returns an empty opener; unknown paths fail to open.
func NewOpener() *Opener {
	return &Opener{libs: make(map[string]*Library), opens: make(map[string]int)}
}

// Add installs lib at path.
func (o *Opener) Add(path string, lib *Library) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.libs[path] = lib
}

func (o *Opener) Open(path string) (pluginmgr.Library, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens[path]++
	lib, ok := o.libs[path]
	if !ok {
		return nil, fmt.Errorf("%s: cannot open shared object file", path)
	}
	return lib, nil
}

// Opens returns how many times path was opened.
func (o *Opener) Opens(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[path]
}
