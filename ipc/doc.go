// File: ipc/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package ipc contains both ends of an intention call: the Client proxy that
// encodes an action into a request code and buffer, and the Delegator that
// authenticates, routes and dispatches it to a plugin. Binder connects the
// two in-process; transport/socket connects them across processes.
//
// Request layout: interface token (length-prefixed string), then the
// action-specific body. The reply carries only the body; the wire status is
// returned beside it.
package ipc
