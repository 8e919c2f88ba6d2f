package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrFrameSize       = errors.New("control frame has wrong size")
	ErrVersionMismatch = errors.New("control frame version mismatch")
)

// ControlFrame is the fixed-size header classifying a wire record. It is
// encoded field-by-field as three little-endian int32s; a frame whose byte
// length is not exactly ControlFrameSize is invalid.
type ControlFrame struct {
	Version int32
	Type    ClientType
	Control ControlMessage
}

// NewControlFrame builds a frame carrying the current protocol version.
func NewControlFrame(t ClientType, c ControlMessage) ControlFrame {
	return ControlFrame{
		Version: ProtocolVersion,
		Type:    t,
		Control: c,
	}
}

// Encode returns the 12-byte wire image of the frame.
func (f ControlFrame) Encode() []byte {
	buf := make([]byte, ControlFrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Version))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(f.Type))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(f.Control))
	return buf
}

// ParseControlFrame decodes and validates a received control frame.
func ParseControlFrame(buf []byte) (ControlFrame, error) {
	if len(buf) != ControlFrameSize {
		return ControlFrame{}, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameSize, len(buf), ControlFrameSize)
	}

	f := ControlFrame{
		Version: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Type:    ClientType(binary.LittleEndian.Uint32(buf[4:8])),
		Control: ControlMessage(binary.LittleEndian.Uint32(buf[8:12])),
	}

	if f.Version != ProtocolVersion {
		return f, fmt.Errorf("%w: expected [%d], peer speaks [%d]", ErrVersionMismatch, ProtocolVersion, f.Version)
	}

	return f, nil
}
