package hkg

import (
	"fmt"

	"github.com/notnil/hkgsafety/canbus"
)

// FrameMarshaler encodes a typed message into a CAN frame.
type FrameMarshaler interface {
	MarshalCANFrame() (canbus.Frame, error)
}

// FrameUnmarshaler decodes a typed message from a CAN frame.
type FrameUnmarshaler interface {
	UnmarshalCANFrame(canbus.Frame) error
}

// FrameCodec combines marshaling and unmarshaling of CAN frames.
type FrameCodec interface {
	FrameMarshaler
	FrameUnmarshaler
}

func newFrame(id uint32, n uint8) canbus.Frame {
	return canbus.Frame{ID: id, Len: n}
}

func expect(f canbus.Frame, id uint32, n uint8) error {
	if f.ID != id {
		return fmt.Errorf("hkg: not a %s frame (id=0x%X)", Name(id), f.ID)
	}
	if f.Len != n {
		return fmt.Errorf("hkg: %s length %d, want %d", Name(id), f.Len, n)
	}
	return nil
}

func inRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("hkg: %s %d out of range [%d, %d]", name, v, lo, hi)
	}
	return nil
}
