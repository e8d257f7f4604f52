// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Wire protocol constants

package protocol

const (
	// Request code layout: [31:28] action, [27:20] intention, [19:12] reserved, [11:0] param id.
	ActionBits    = 4
	IntentionBits = 8
	ParamBits     = 12

	ActionShift    = 28
	IntentionShift = 20
	ParamShift     = 0

	ActionMask    = 1<<ActionBits - 1
	IntentionMask = 1<<IntentionBits - 1
	ParamMask     = 1<<ParamBits - 1

	// Packet header: message id (i32) + payload length (i32), little-endian.
	PacketHeaderSize = 8
)
