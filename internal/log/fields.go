// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldIntention = "intention"
	FieldAction    = "action"
	FieldParam     = "param"
	FieldCode      = "code"
	FieldUID       = "uid"
	FieldPID       = "pid"
	FieldFd        = "fd"
	FieldPath      = "path"
	FieldTask      = "task"
)
