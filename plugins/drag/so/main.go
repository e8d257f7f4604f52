// File: plugins/drag/so/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared-object entry for the drag intention:
//
//	go build -buildmode=plugin -o libintention_drag.so ./plugins/drag/so
package main

import (
	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/plugins/drag"
)

// PluginABI is looked up by the plugin manager.
var PluginABI = api.PluginABI{
	Version:   api.PluginABIVersion,
	Intention: api.IntentionDrag,
	Create:    func() api.Plugin { return drag.New() },
	Destroy: func(p api.Plugin) {
		if d, ok := p.(*drag.Plugin); ok {
			d.Close()
		}
	},
}

func main() {}
