// File: pluginmgr/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pluginmgr

import "errors"

var (
	ErrNoMapping         = errors.New("pluginmgr: no library mapped for intention")
	ErrLibraryOpen       = errors.New("pluginmgr: cannot open library")
	ErrSymbolMissing     = errors.New("pluginmgr: constructor symbol missing")
	ErrABIVersion        = errors.New("pluginmgr: plugin ABI version mismatch")
	ErrIntentionMismatch = errors.New("pluginmgr: library serves another intention")
	ErrNilPlugin         = errors.New("pluginmgr: constructor returned no plugin")
	ErrNotLoaded         = errors.New("pluginmgr: intention not loaded")
)
