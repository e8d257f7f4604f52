// File: ipc/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ipc

import "errors"

var (
	// ErrTokenMismatch rejects a request whose interface token is missing or wrong.
	ErrTokenMismatch = errors.New("ipc: interface token mismatch")

	// ErrRateLimited rejects a request refused by the admission limiter.
	ErrRateLimited = errors.New("ipc: rate limited")

	// ErrPluginPanicked reports a plugin action that panicked.
	ErrPluginPanicked = errors.New("ipc: plugin panicked")
)
