package canbus

import (
	"encoding/binary"

	"go.einride.tech/can"
)

// Bit numbering is little-endian throughout: bit i is bit i%8 of byte i/8,
// so a field of length n starting at bit s occupies bits s..s+n-1 with the
// least significant bit first. Indexes outside the 8-byte payload panic.

// Byte returns payload byte i.
func (f Frame) Byte(i int) uint8 {
	return f.Data[i]
}

// Bytes returns n (1..4) payload bytes starting at start as a little-endian
// integer.
func (f Frame) Bytes(start, n int) uint32 {
	var buf [4]byte
	copy(buf[:n], f.Data[start:start+n])
	return binary.LittleEndian.Uint32(buf[:])
}

// Bit reports whether payload bit i is set.
func (f Frame) Bit(i uint8) bool {
	d := can.Data(f.Data)
	return d.Bit(i)
}

// Bits returns the unsigned value of the length-bit field starting at start.
func (f Frame) Bits(start, length uint8) uint64 {
	d := can.Data(f.Data)
	return d.UnsignedBitsLittleEndian(start, length)
}

// SetBit sets or clears payload bit i.
func (f *Frame) SetBit(i uint8, v bool) {
	d := can.Data(f.Data)
	d.SetBit(i, v)
	f.Data = d
}

// SetBits stores v into the length-bit field starting at start. Bits of v
// above length are discarded.
func (f *Frame) SetBits(start, length uint8, v uint64) {
	d := can.Data(f.Data)
	d.SetUnsignedBitsLittleEndian(start, length, v)
	f.Data = d
}

// toEinride converts to the go.einride.tech/can frame used by the SocketCAN
// driver.
func (f Frame) toEinride() can.Frame {
	return can.Frame{
		ID:         f.ID,
		Length:     f.Len,
		Data:       can.Data(f.Data),
		IsRemote:   f.RTR,
		IsExtended: f.Extended,
	}
}

func fromEinride(cf can.Frame, bus int) Frame {
	return Frame{
		ID:       cf.ID,
		Extended: cf.IsExtended,
		RTR:      cf.IsRemote,
		Len:      cf.Length,
		Data:     [8]byte(cf.Data),
		Bus:      bus,
	}
}
