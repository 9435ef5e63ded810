package protocol

import (
	"encoding/binary"
	"io"
	"math"
)

type EncodeWriter interface {
	io.Writer
	io.ByteWriter
}

// Writer writes the primitive types of the Bedrock protocol. Errors of the
// underlying writer are ignored, it is expected to be an in memory buffer.
type Writer struct {
	EncodeWriter
}

func NewWriter(w EncodeWriter) *Writer {
	return &Writer{EncodeWriter: w}
}

func (w *Writer) Uint8(x uint8) {
	_ = w.WriteByte(x)
}

func (w *Writer) Bool(x bool) {
	if x {
		_ = w.WriteByte(0x01)
	} else {
		_ = w.WriteByte(0x00)
	}
}

func (w *Writer) Uint16(x uint16) {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, x)
	_, _ = w.Write(b)
}

func (w *Writer) Int32(x int32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(x))
	_, _ = w.Write(b)
}

func (w *Writer) BEInt32(x int32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(x))
	_, _ = w.Write(b)
}

func (w *Writer) Float32(x float32) {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(x))
	_, _ = w.Write(b)
}

func (w *Writer) Varuint32(x uint32) {
	for x >= 0x80 {
		_ = w.WriteByte(byte(x) | 0x80)
		x >>= 7
	}
	_ = w.WriteByte(byte(x))
}

func (w *Writer) ByteSlice(x []byte) {
	w.Varuint32(uint32(len(x)))
	_, _ = w.Write(x)
}

func (w *Writer) String(x string) {
	w.Varuint32(uint32(len(x)))
	_, _ = w.Write([]byte(x))
}
