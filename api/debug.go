// Package api
// Author: momentics
//
// Live introspection of a running service.

package api

// Debug exposes runtime introspection.
type Debug interface {
	// DumpState evaluates every registered probe.
	DumpState() map[string]any

	// RegisterProbe inserts or replaces a named probe.
	RegisterProbe(name string, fn func() any)
}
