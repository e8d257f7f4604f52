// File: api/intention.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Routing identifiers multiplexed over the single IPC channel.

package api

import "fmt"

// Action is one of the nine generic verbs applied to an intention.
type Action uint32

const (
	ActionEnable Action = iota
	ActionDisable
	ActionStart
	ActionStop
	ActionAddWatch
	ActionRemoveWatch
	ActionSetParam
	ActionGetParam
	ActionControl
)

// NumActions is the size of the known action set.
const NumActions = int(ActionControl) + 1

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a <= ActionControl
}

func (a Action) String() string {
	switch a {
	case ActionEnable:
		return "enable"
	case ActionDisable:
		return "disable"
	case ActionStart:
		return "start"
	case ActionStop:
		return "stop"
	case ActionAddWatch:
		return "add_watch"
	case ActionRemoveWatch:
		return "remove_watch"
	case ActionSetParam:
		return "set_param"
	case ActionGetParam:
		return "get_param"
	case ActionControl:
		return "control"
	default:
		return fmt.Sprintf("Action(%d)", uint32(a))
	}
}

// Intention identifies a sub-service. The value doubles as the
// shared-object selector used by the plugin manager.
type Intention uint32

const (
	IntentionBasic Intention = iota
	IntentionDrag
	IntentionCoordination
	IntentionStationary
)

// Valid reports whether i is a known intention.
func (i Intention) Valid() bool {
	return i <= IntentionStationary
}

func (i Intention) String() string {
	switch i {
	case IntentionBasic:
		return "basic"
	case IntentionDrag:
		return "drag"
	case IntentionCoordination:
		return "coordination"
	case IntentionStationary:
		return "stationary"
	default:
		return fmt.Sprintf("Intention(%d)", uint32(i))
	}
}

// ParseIntention maps a configuration name back to its intention.
func ParseIntention(name string) (Intention, bool) {
	for i := IntentionBasic; i.Valid(); i++ {
		if i.String() == name {
			return i, true
		}
	}
	return 0, false
}
