package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Typed array extension codes used by senders to ship packed numeric buffers.
const (
	extUint8Array   int8 = 0x12
	extInt32Array   int8 = 0x15
	extUint32Array  int8 = 0x16
	extFloat32Array int8 = 0x17
)

func init() {
	msgpack.RegisterExt(extUint8Array, (*Uint8Array)(nil))
	msgpack.RegisterExt(extInt32Array, (*Int32Array)(nil))
	msgpack.RegisterExt(extUint32Array, (*Uint32Array)(nil))
	msgpack.RegisterExt(extFloat32Array, (*Float32Array)(nil))
}

// Uint8Array is a packed little-endian byte buffer.
type Uint8Array []uint8

// MarshalMsgpack implements msgpack.Marshaler.
func (a Uint8Array) MarshalMsgpack() ([]byte, error) {
	return append([]byte(nil), a...), nil
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (a *Uint8Array) UnmarshalMsgpack(b []byte) error {
	*a = append((*a)[:0], b...)
	return nil
}

// Int32Array is a packed little-endian int32 buffer.
type Int32Array []int32

// MarshalMsgpack implements msgpack.Marshaler.
func (a Int32Array) MarshalMsgpack() ([]byte, error) {
	b := make([]byte, 4*len(a))
	for i, v := range a {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return b, nil
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (a *Int32Array) UnmarshalMsgpack(b []byte) error {
	if len(b)%4 != 0 {
		return fmt.Errorf("int32 array: %d bytes is not a multiple of 4", len(b))
	}
	out := make(Int32Array, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	*a = out
	return nil
}

// Uint32Array is a packed little-endian uint32 buffer.
type Uint32Array []uint32

// MarshalMsgpack implements msgpack.Marshaler.
func (a Uint32Array) MarshalMsgpack() ([]byte, error) {
	b := make([]byte, 4*len(a))
	for i, v := range a {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b, nil
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (a *Uint32Array) UnmarshalMsgpack(b []byte) error {
	if len(b)%4 != 0 {
		return fmt.Errorf("uint32 array: %d bytes is not a multiple of 4", len(b))
	}
	out := make(Uint32Array, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	*a = out
	return nil
}

// Float32Array is a packed little-endian float32 buffer.
type Float32Array []float32

// MarshalMsgpack implements msgpack.Marshaler.
func (a Float32Array) MarshalMsgpack() ([]byte, error) {
	b := make([]byte, 4*len(a))
	for i, v := range a {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b, nil
}

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (a *Float32Array) UnmarshalMsgpack(b []byte) error {
	if len(b)%4 != 0 {
		return fmt.Errorf("float32 array: %d bytes is not a multiple of 4", len(b))
	}
	out := make(Float32Array, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	*a = out
	return nil
}
