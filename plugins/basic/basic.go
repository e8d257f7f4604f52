// File: plugins/basic/basic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package basic is the trusted built-in intention. It only reports the
// service version; every other action is unsupported.
package basic

import (
	"fmt"

	"github.com/momentics/hioload-ipc/api"
	"github.com/momentics/hioload-ipc/core/buffer"
)

// Version is reported by GetParam(ParamVersion).
var Version = "1.0.0"

// ParamVersion selects the service version string.
const ParamVersion uint32 = 0

// Plugin serves api.IntentionBasic.
type Plugin struct {
	api.UnsupportedPlugin
}

// New returns the basic plugin.
func New() api.Plugin {
	return &Plugin{}
}

func (p *Plugin) GetParam(_ *api.CallingContext, id uint32, _, reply *buffer.MessageBuffer) error {
	if id != ParamVersion {
		return fmt.Errorf("%w: basic param %d", api.ErrInvalidParam, id)
	}
	return reply.WriteString(Version)
}
