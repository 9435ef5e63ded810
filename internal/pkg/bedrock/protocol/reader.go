package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var (
	ErrVarintOverflow = errors.New("varint overflows uint32")
	ErrSliceTooLong   = errors.New("byte slice too long")
)

type DecodeReader interface {
	io.Reader
	io.ByteReader
}

// Reader reads the primitive types of the Bedrock protocol from the underlying
// DecodeReader. All methods fail with io.ErrUnexpectedEOF if the data ends early.
type Reader struct {
	DecodeReader
}

func NewReader(r DecodeReader) *Reader {
	return &Reader{DecodeReader: r}
}

// Uint8 reads a uint8 from the underlying buffer.
func (r *Reader) Uint8(x *uint8) error {
	b, err := r.ReadByte()
	if err != nil {
		return io.ErrUnexpectedEOF
	}
	*x = b
	return nil
}

// Bool reads a bool from the underlying buffer. Any non zero byte is true.
func (r *Reader) Bool(x *bool) error {
	b, err := r.ReadByte()
	if err != nil {
		return io.ErrUnexpectedEOF
	}
	*x = b != 0x00
	return nil
}

// Uint16 reads a little endian uint16 from the underlying buffer.
func (r *Reader) Uint16(x *uint16) error {
	b := make([]byte, 2)
	if err := r.fill(b); err != nil {
		return err
	}
	*x = binary.LittleEndian.Uint16(b)
	return nil
}

// Int32 reads a little endian int32 from the underlying buffer.
func (r *Reader) Int32(x *int32) error {
	b := make([]byte, 4)
	if err := r.fill(b); err != nil {
		return err
	}
	*x = int32(binary.LittleEndian.Uint32(b))
	return nil
}

// BEInt32 reads a big endian int32 from the underlying buffer.
func (r *Reader) BEInt32(x *int32) error {
	b := make([]byte, 4)
	if err := r.fill(b); err != nil {
		return err
	}
	*x = int32(binary.BigEndian.Uint32(b))
	return nil
}

// Float32 reads a little endian float32 from the underlying buffer.
func (r *Reader) Float32(x *float32) error {
	b := make([]byte, 4)
	if err := r.fill(b); err != nil {
		return err
	}
	*x = math.Float32frombits(binary.LittleEndian.Uint32(b))
	return nil
}

func (r *Reader) Varuint32(x *uint32) error {
	var v uint32
	for i := 0; i < 35; i += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return io.ErrUnexpectedEOF
		}

		v |= uint32(b&0x7f) << i
		if b&0x80 == 0 {
			*x = v
			return nil
		}
	}
	return ErrVarintOverflow
}

// ByteSlice reads a varuint32 prefixed byte slice.
func (r *Reader) ByteSlice(x *[]byte) error {
	var length uint32
	if err := r.Varuint32(&length); err != nil {
		return err
	}
	if length > math.MaxInt32 {
		return ErrSliceTooLong
	}

	data := make([]byte, length)
	if err := r.fill(data); err != nil {
		return err
	}
	*x = data
	return nil
}

// String reads a varuint32 prefixed string.
func (r *Reader) String(x *string) error {
	var b []byte
	if err := r.ByteSlice(&b); err != nil {
		return err
	}
	*x = string(b)
	return nil
}

func (r *Reader) fill(b []byte) error {
	if _, err := io.ReadFull(r.DecodeReader, b); err != nil {
		return io.ErrUnexpectedEOF
	}
	return nil
}
