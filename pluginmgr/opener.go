// File: pluginmgr/opener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared-object access behind a small interface so tests can substitute it.

package pluginmgr

import "plugin"

// Library is an opened shared object.
type Library interface {
	Lookup(symbol string) (any, error)
}

// Opener opens the shared object at path.
type Opener interface {
	Open(path string) (Library, error)
}

// SharedObjectOpener loads Go plugins built with -buildmode=plugin. Opened
// objects stay mapped for the life of the process.
type SharedObjectOpener struct{}

func (SharedObjectOpener) Open(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return sharedObject{p}, nil
}

type sharedObject struct {
	p *plugin.Plugin
}

func (so sharedObject) Lookup(symbol string) (any, error) {
	return so.p.Lookup(symbol)
}
