// File: core/protocol/identity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pure bit arithmetic packing (action, intention, param id) into the request
// code of an IPC call.

package protocol

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-ipc/api"
)

var (
	// ErrUnknownAction is returned when the action bits map to no known action.
	ErrUnknownAction = errors.New("protocol: unknown action")

	// ErrUnknownIntention is returned when the intention bits map to no known intention.
	ErrUnknownIntention = errors.New("protocol: unknown intention")
)

// Compose packs the three fields into a request code. Each field is masked
// to its width; out-of-range values are truncated, not rejected.
func Compose(action api.Action, intention api.Intention, param uint32) uint32 {
	return (uint32(action)&ActionMask)<<ActionShift |
		(uint32(intention)&IntentionMask)<<IntentionShift |
		(param&ParamMask)<<ParamShift
}

// SplitAction extracts and validates the action bits.
func SplitAction(code uint32) (api.Action, error) {
	a := api.Action((code >> ActionShift) & ActionMask)
	if !a.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAction, uint32(a))
	}
	return a, nil
}

// SplitIntention extracts and validates the intention bits.
func SplitIntention(code uint32) (api.Intention, error) {
	i := api.Intention((code >> IntentionShift) & IntentionMask)
	if !i.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownIntention, uint32(i))
	}
	return i, nil
}

// SplitParam extracts the param id bits. It never fails.
func SplitParam(code uint32) uint32 {
	return (code >> ParamShift) & ParamMask
}

// Identity is a decoded request code.
type Identity struct {
	Action    api.Action
	Intention api.Intention
	Param     uint32
}

// Decode splits code into all three fields.
func Decode(code uint32) (Identity, error) {
	a, err := SplitAction(code)
	if err != nil {
		return Identity{}, err
	}
	i, err := SplitIntention(code)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Action: a, Intention: i, Param: SplitParam(code)}, nil
}

// Code re-packs id.
func (id Identity) Code() uint32 {
	return Compose(id.Action, id.Intention, id.Param)
}
