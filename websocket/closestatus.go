package websocket

// CloseStatus is a WebSocket close code per RFC 6455 Section 7.4.1.
type CloseStatus uint16

const (
	CloseNormal          CloseStatus = 1000
	CloseGoingAway       CloseStatus = 1001
	CloseProtocolError   CloseStatus = 1002
	CloseUnsupportedData CloseStatus = 1003
	CloseNoStatus        CloseStatus = 1005
	CloseAbnormal        CloseStatus = 1006
	CloseInvalidPayload  CloseStatus = 1007
	ClosePolicyViolation CloseStatus = 1008
	CloseMessageTooBig   CloseStatus = 1009
	CloseMandatoryExt    CloseStatus = 1010
	CloseInternalError   CloseStatus = 1011
)
