// File: api/plugin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Capability contract implemented by every intention (sub-service).

package api

import "github.com/momentics/hioload-ipc/core/buffer"

// Plugin implements the nine actions of one intention. Every method receives
// the caller snapshot taken by the delegator, the request buffer positioned
// after the interface token, and a fresh reply buffer.
//
// Implementations must guard their own shared state; the plugin manager only
// serializes loading, not method execution.
type Plugin interface {
	Enable(ctx *CallingContext, data, reply *buffer.MessageBuffer) error
	Disable(ctx *CallingContext, data, reply *buffer.MessageBuffer) error
	Start(ctx *CallingContext, data, reply *buffer.MessageBuffer) error
	Stop(ctx *CallingContext, data, reply *buffer.MessageBuffer) error
	AddWatch(ctx *CallingContext, id uint32, data, reply *buffer.MessageBuffer) error
	RemoveWatch(ctx *CallingContext, id uint32, data, reply *buffer.MessageBuffer) error
	SetParam(ctx *CallingContext, id uint32, data, reply *buffer.MessageBuffer) error
	GetParam(ctx *CallingContext, id uint32, data, reply *buffer.MessageBuffer) error
	Control(ctx *CallingContext, id uint32, data, reply *buffer.MessageBuffer) error
}

// UnsupportedPlugin answers every action with ErrUnsupported. Embed it and
// override the actions an intention actually serves.
type UnsupportedPlugin struct{}

var _ Plugin = UnsupportedPlugin{}

func (UnsupportedPlugin) Enable(*CallingContext, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) Disable(*CallingContext, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) Start(*CallingContext, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) Stop(*CallingContext, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) AddWatch(*CallingContext, uint32, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) RemoveWatch(*CallingContext, uint32, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) SetParam(*CallingContext, uint32, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) GetParam(*CallingContext, uint32, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

func (UnsupportedPlugin) Control(*CallingContext, uint32, *buffer.MessageBuffer, *buffer.MessageBuffer) error {
	return ErrUnsupported
}

// PluginABIVersion is bumped whenever Plugin or PluginABI change shape.
const PluginABIVersion uint32 = 1

// PluginABISymbol is the exported variable every intention shared object
// must provide. Its type must be *PluginABI.
const PluginABISymbol = "PluginABI"

// PluginABI is the vtable exported by a dynamically loaded intention.
// An instance produced by Create is always released through the Destroy of
// the same vtable.
type PluginABI struct {
	Version   uint32
	Intention Intention
	Create    func() Plugin
	Destroy   func(Plugin)
}
