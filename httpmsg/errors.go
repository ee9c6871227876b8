package httpmsg

import "fmt"

// ProtocolError is returned by ParseRequest when the wire bytes do not form
// a well-formed HTTP/1.x request. The worker translates it into a 400
// response.
type ProtocolError struct {
	Reason   string
	oversize bool
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("httpmsg: %s", e.Reason)
}

// Oversize reports whether the error is a body-too-large condition, which
// the worker maps to 413 rather than 400.
func (e *ProtocolError) Oversize() bool {
	return e.oversize
}

func protoErr(reason string) error {
	return &ProtocolError{Reason: reason}
}
