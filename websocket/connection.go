package websocket

import (
	"context"
	"errors"
	"io"
	"sync"
	"unicode/utf8"

	"wsforge/netio"
)

// ErrConnectionClosed is returned by SendText, SendBinary, SendPing and the
// automatic Pong once a Close frame has been sent. ReceiveMessage does not
// return it: it keeps reading frames when called after a Close was
// received. Close called again after a Close was sent returns nil.
var ErrConnectionClosed = errors.New("websocket: connection closed")

// Config bounds a Connection's behavior; zero value uses sane defaults via
// NewConnection.
type Config struct {
	MaxFramePayloadBytes int64
	StrictMasking        bool

	// ValidateTextUTF8, when true, rejects a Text message whose assembled
	// data is not valid UTF-8 by closing the connection with status 1007
	// instead of delivering it to the caller. Opt-in since it costs a full
	// scan of the assembled message.
	ValidateTextUTF8 bool
}

// Connection is the RFC 6455 connection state machine: it owns the
// underlying byte stream, a single-slot send mutex, and the is_open/
// close_sent half-states. A Connection must not have receive_message
// called from more than one goroutine at a time; SendText/SendBinary/
// SendPing/Close may be called concurrently from multiple goroutines.
type Connection struct {
	lr     *netio.Reader
	w      io.Writer
	cfg    Config
	onPing func([]byte)
	onPong func([]byte)

	onFrameReceived func(payloadLen int)
	onFrameSent     func(payloadLen int)

	sendMu sync.Mutex
	mu     sync.Mutex // guards isOpen/closeSent
	isOpen bool

	closeSent bool

	accumType Opcode
	accumData []byte
	accumSet  bool
}

// NewConnection wraps stream (used as both the read source, via lr, and
// the write sink) into a Connection ready for receive_message/send_*.
func NewConnection(lr *netio.Reader, stream io.Writer, cfg Config) *Connection {
	if cfg.MaxFramePayloadBytes <= 0 {
		cfg.MaxFramePayloadBytes = 16 << 20
	}
	return &Connection{
		lr:     lr,
		w:      stream,
		cfg:    cfg,
		isOpen: true,
	}
}

// OnPing registers a callback invoked (synchronously, from inside
// ReceiveMessage) whenever a Ping frame arrives, after the automatic Pong
// has been sent.
func (c *Connection) OnPing(fn func(payload []byte)) { c.onPing = fn }

// OnPong registers a callback invoked whenever a Pong frame arrives.
func (c *Connection) OnPong(fn func(payload []byte)) { c.onPong = fn }

// OnFrameReceived registers a callback invoked with the payload length of
// every frame read off the wire, for callers that want byte/frame counters
// without re-deriving them from Message sizes.
func (c *Connection) OnFrameReceived(fn func(payloadLen int)) { c.onFrameReceived = fn }

// OnFrameSent registers a callback invoked with the payload length of
// every frame written to the wire.
func (c *Connection) OnFrameSent(fn func(payloadLen int)) { c.onFrameSent = fn }

// IsOpen reports whether a Close frame has neither been received nor sent.
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpen
}

func (c *Connection) setClosed() {
	c.mu.Lock()
	c.isOpen = false
	c.mu.Unlock()
}

// ReceiveMessage reads frames until a complete Text/Binary message or a
// Close is assembled. It is not safe to call concurrently with itself —
// the contract is single-reader.
//
// On a protocol_error or oversize condition it reciprocates the matching
// Close status (1002 or 1009) itself before returning the error, so a
// caller that simply gives up on error still leaves the peer with an
// accurate close code rather than none at all.
func (c *Connection) ReceiveMessage(ctx context.Context) (*Message, error) {
	for {
		f, err := ReadFrame(ctx, c.lr, c.cfg.MaxFramePayloadBytes, c.cfg.StrictMasking)
		if err != nil {
			return nil, c.closeOnProtocolError(err)
		}
		if c.onFrameReceived != nil {
			c.onFrameReceived(len(f.Payload))
		}

		switch f.Opcode {
		case OpcodeClose:
			c.setClosed()
			msg := &Message{Kind: MessageClose}
			if len(f.Payload) >= 2 {
				msg.HasCloseStatus = true
				msg.CloseStatus = CloseStatus(uint16(f.Payload[0])<<8 | uint16(f.Payload[1]))
				msg.CloseReason = string(f.Payload[2:])
			}
			return msg, nil

		case OpcodePing:
			if err := c.sendControl(OpcodePong, f.Payload); err != nil {
				return nil, err
			}
			if c.onPing != nil {
				c.onPing(f.Payload)
			}
			continue

		case OpcodePong:
			if c.onPong != nil {
				c.onPong(f.Payload)
			}
			continue

		case OpcodeContinuation:
			if !c.accumSet {
				return nil, c.closeOnProtocolError(frameErr("continuation frame without a preceding data frame"))
			}

		case OpcodeText, OpcodeBinary:
			if c.accumSet {
				return nil, c.closeOnProtocolError(frameErr("data frame received while a fragmented message is in progress"))
			}
			c.accumType = f.Opcode
			c.accumSet = true
			c.accumData = nil

		default:
			return nil, c.closeOnProtocolError(frameErr("unknown opcode"))
		}

		c.accumData = append(c.accumData, f.Payload...)
		if f.Fin {
			data := c.accumData
			kind := MessageBinary
			if c.accumType == OpcodeText {
				kind = MessageText
			}
			c.accumSet = false
			c.accumData = nil
			if kind == MessageText && c.cfg.ValidateTextUTF8 && !utf8.Valid(data) {
				return nil, c.closeOnProtocolError(&CloseError{Status: CloseInvalidPayload, Reason: "invalid UTF-8 in text message"})
			}
			return &Message{Kind: kind, Data: data}, nil
		}
	}
}

// closeOnProtocolError inspects err for a FrameError or CloseError and, if
// found, reciprocates the corresponding Close frame (1002 for a bare
// protocol error, 1009 for an oversize frame, or whatever status a
// CloseError names) before handing err back unchanged. Errors that are
// neither (e.g. a transport read failure) pass through untouched, since
// there is nothing meaningful to send back over a broken stream.
func (c *Connection) closeOnProtocolError(err error) error {
	var ce *CloseError
	if errors.As(err, &ce) {
		_ = c.Close(ce.Status, ce.Reason)
		return err
	}
	var fe *FrameError
	if errors.As(err, &fe) {
		status := CloseProtocolError
		if fe.Oversize {
			status = CloseMessageTooBig
		}
		_ = c.Close(status, fe.Reason)
	}
	return err
}

// SendText sends s as a single, final Text frame.
func (c *Connection) SendText(s string) error {
	return c.send(OpcodeText, []byte(s))
}

// SendBinary sends b as a single, final Binary frame.
func (c *Connection) SendBinary(b []byte) error {
	return c.send(OpcodeBinary, b)
}

// SendPing sends a Ping frame carrying payload (must be ≤ 125 bytes).
func (c *Connection) SendPing(payload []byte) error {
	if len(payload) > MaxControlPayloadSize {
		return frameErr("ping payload exceeds 125 bytes")
	}
	return c.send(OpcodePing, payload)
}

// sendControl sends a control frame (used internally for the auto-Pong).
// Pong payloads are always ≤ 125 bytes by construction, since they mirror
// a validated Ping payload, so this is sent synchronously under the send
// mutex rather than as a background task.
func (c *Connection) sendControl(opcode Opcode, payload []byte) error {
	return c.send(opcode, payload)
}

func (c *Connection) send(opcode Opcode, payload []byte) error {
	c.mu.Lock()
	closed := c.closeSent
	c.mu.Unlock()
	if closed {
		return ErrConnectionClosed
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := WriteFrame(c.w, opcode, true, payload); err != nil {
		return err
	}
	if c.onFrameSent != nil {
		c.onFrameSent(len(payload))
	}
	return nil
}

// Close sends a Close frame with status and reason (reason must stay
// small enough that 2+len(reason) ≤ 125). It is idempotent: once
// close_sent is true, further calls are a no-op and return nil.
func (c *Connection) Close(status CloseStatus, reason string) error {
	c.mu.Lock()
	if c.closeSent {
		c.mu.Unlock()
		return nil
	}
	c.closeSent = true
	c.isOpen = false
	c.mu.Unlock()

	payload := make([]byte, 2+len(reason))
	payload[0] = byte(status >> 8)
	payload[1] = byte(status)
	copy(payload[2:], reason)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := WriteFrame(c.w, OpcodeClose, true, payload); err != nil {
		return err
	}
	if c.onFrameSent != nil {
		c.onFrameSent(len(payload))
	}
	return nil
}
