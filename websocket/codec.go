package websocket

import (
	"context"
	"encoding/binary"
	"io"

	"wsforge/netio"
)

// MaxControlPayloadSize is the RFC 6455 limit on control-frame payloads.
const MaxControlPayloadSize = 125

// Frame is one decoded (or to-be-encoded) RFC 6455 frame.
type Frame struct {
	Fin     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  Opcode
	Masked  bool
	Mask    [4]byte
	Payload []byte
}

// ApplyMask XORs data in place against key, cycling key every 4 bytes. It
// is its own inverse: applying it twice with the same key yields the
// original bytes.
func ApplyMask(data []byte, key [4]byte) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}

// ReadFrame decodes exactly one frame from lr. strictMasking, when true,
// rejects an unmasked client frame as a protocol error instead of the
// default lenient acceptance.
func ReadFrame(ctx context.Context, lr *netio.Reader, maxPayload int64, strictMasking bool) (*Frame, error) {
	var head [2]byte
	if err := lr.ReadExact(ctx, head[:]); err != nil {
		return nil, err
	}

	f := &Frame{
		Fin:    head[0]&0x80 != 0,
		RSV1:   head[0]&0x40 != 0,
		RSV2:   head[0]&0x20 != 0,
		RSV3:   head[0]&0x10 != 0,
		Opcode: Opcode(head[0] & 0x0F),
		Masked: head[1]&0x80 != 0,
	}
	len7 := head[1] & 0x7F

	if f.RSV1 || f.RSV2 || f.RSV3 {
		return nil, frameErr("reserved bits set without a negotiated extension")
	}

	var length uint64
	switch {
	case len7 < 126:
		length = uint64(len7)
	case len7 == 126:
		var ext [2]byte
		if err := lr.ReadExact(ctx, ext[:]); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	default: // 127
		var ext [8]byte
		if err := lr.ReadExact(ctx, ext[:]); err != nil {
			return nil, err
		}
		length = binary.BigEndian.Uint64(ext[:])
		if length&(1<<63) != 0 {
			return nil, frameErr("64-bit payload length has high bit set")
		}
	}

	if f.Opcode.IsControl() {
		if !f.Fin {
			return nil, frameErr("control frame must not be fragmented")
		}
		if length > MaxControlPayloadSize {
			return nil, frameErr("control frame payload exceeds 125 bytes")
		}
	}

	if int64(length) > maxPayload {
		return nil, &FrameError{Reason: "frame payload exceeds configured maximum", Oversize: true}
	}

	if f.Masked {
		if err := lr.ReadExact(ctx, f.Mask[:]); err != nil {
			return nil, err
		}
	}

	payload := make([]byte, length)
	if err := lr.ReadExact(ctx, payload); err != nil {
		return nil, err
	}
	if f.Masked {
		ApplyMask(payload, f.Mask)
	} else if strictMasking {
		return nil, frameErr("unmasked frame from client rejected under strict masking")
	}
	f.Payload = payload

	if !f.Opcode.IsKnown() {
		return nil, frameErr("unknown opcode")
	}

	return f, nil
}

// WriteFrame encodes and writes a single unmasked frame to w (server frames
// must never be masked). Callers are responsible for holding the
// connection's send mutex and flushing afterward.
func WriteFrame(w io.Writer, opcode Opcode, fin bool, payload []byte) error {
	header := make([]byte, 2, 10)
	if fin {
		header[0] = 0x80
	}
	header[0] |= byte(opcode)

	switch {
	case len(payload) <= 125:
		header[1] = byte(len(payload))
	case len(payload) <= 65535:
		header[1] = 126
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(len(payload)))
		header = append(header, ext[:]...)
	default:
		header[1] = 127
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(len(payload)))
		header = append(header, ext[:]...)
	}
	// header[1]'s mask bit (0x80) is never set: server frames are unmasked.

	if len(payload) == 0 {
		_, err := w.Write(header)
		return err
	}
	frame := append(header, payload...)
	_, err := w.Write(frame)
	return err
}
