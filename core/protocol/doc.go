// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the wire formats of the intention service:
//   - the 32-bit request code packing (action, intention, param id)
//   - the net packet framing used on the socket transport
//   - a streaming packet reader that tolerates partial reads
package protocol
