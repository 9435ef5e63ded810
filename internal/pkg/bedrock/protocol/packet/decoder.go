package packet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/c2h5oh/datasize"
)

const (
	// header is the header of compressed 'batches' from Minecraft.
	header = 0xfe
	// maximumInBatch is the maximum amount of packets that may be found in a batch. If a compressed batch has
	// more than this amount, decoding will fail.
	maximumInBatch = 512 + 256
	// DefaultBufferSize is the read buffer size of Decoders reading from plain io.Readers.
	DefaultBufferSize = 1024 * 1024 * 3
	// DefaultMaxDecompressedSize is the largest a compressed batch may inflate to.
	DefaultMaxDecompressedSize = 16 * datasize.MB
)

// Decoder handles the decoding of Minecraft packets sent through an io.Reader. These packets in turn contain
// multiple compressed packets.
type Decoder struct {
	mu sync.Mutex

	// r holds the io.Reader that packets are read from if the reader does not implement packetReader. When
	// this is the case, the buf field has a non-zero length.
	r   io.Reader
	buf []byte

	// pr holds a packetReader (and io.Reader) that packets are read from if the io.Reader passed to
	// NewDecoder implements the packetReader interface.
	pr packetReader

	compression         Compression
	maxDecompressedSize datasize.ByteSize
	encrypt             *encryption

	checkPacketLimit bool
}

// packetReader is used to read packets immediately instead of copying them in a buffer first. This is a
// specific case made to reduce RAM usage.
type packetReader interface {
	ReadPacket() ([]byte, error)
}

// NewDecoder returns a new decoder decoding data from the io.Reader passed. One read call from the reader is
// assumed to consume an entire packet.
func NewDecoder(reader io.Reader) *Decoder {
	return NewDecoderSize(reader, DefaultBufferSize)
}

// NewDecoderSize is like NewDecoder but with a custom read buffer size for plain io.Readers.
func NewDecoderSize(reader io.Reader, size int) *Decoder {
	if pr, ok := reader.(packetReader); ok {
		return &Decoder{
			pr:                  pr,
			maxDecompressedSize: DefaultMaxDecompressedSize,
			checkPacketLimit:    true,
		}
	}
	return &Decoder{
		r:                   reader,
		buf:                 make([]byte, size),
		maxDecompressedSize: DefaultMaxDecompressedSize,
		checkPacketLimit:    true,
	}
}

// EnableCompression enables compression for the Decoder.
func (decoder *Decoder) EnableCompression(compression Compression) {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()
	decoder.compression = compression
}

// SetMaxDecompressedSize limits how large a single batch may inflate to. Zero disables the limit.
func (decoder *Decoder) SetMaxDecompressedSize(size datasize.ByteSize) {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()
	decoder.maxDecompressedSize = size
}

// EnableEncryption enables encryption for the Decoder using the 32 byte key passed.
func (decoder *Decoder) EnableEncryption(key []byte) error {
	e, err := newEncryption(key)
	if err != nil {
		return err
	}

	decoder.mu.Lock()
	defer decoder.mu.Unlock()
	decoder.encrypt = e
	return nil
}

// DisableBatchPacketLimit disables the check that limits the number of packets allowed in a single packet
// batch. This should typically be called for Decoders decoding from a server connection.
func (decoder *Decoder) DisableBatchPacketLimit() {
	decoder.mu.Lock()
	defer decoder.mu.Unlock()
	decoder.checkPacketLimit = false
}

// Decode decodes one 'packet' from the io.Reader passed in NewDecoder(), producing a slice of packets that it
// held and an error if not successful.
func (decoder *Decoder) Decode() (packets [][]byte, err error) {
	var data []byte
	if decoder.pr == nil {
		var n int
		n, err = decoder.r.Read(decoder.buf)
		data = decoder.buf[:n]
	} else {
		data, err = decoder.pr.ReadPacket()
	}
	if err != nil {
		return nil, fmt.Errorf("error reading batch from reader: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] != header {
		return nil, fmt.Errorf("error reading packet: invalid packet header %x: expected %x", data[0], header)
	}
	// Copy, so decrypting in place does not touch the read buffer of the underlying reader.
	data = append([]byte(nil), data[1:]...)

	decoder.mu.Lock()
	defer decoder.mu.Unlock()

	if decoder.encrypt != nil {
		data, err = decoder.encrypt.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("error decrypting packet: %w", err)
		}
	}

	if decoder.compression != nil {
		data, err = decompress(decoder.compression, data, int(decoder.maxDecompressedSize.Bytes()))
		if err != nil {
			return nil, fmt.Errorf("error decompressing packet: %w", err)
		}
	}

	b := bytes.NewBuffer(data)
	for b.Len() != 0 {
		var length uint32
		if err := Varuint32(b, &length); err != nil {
			return nil, fmt.Errorf("error reading packet length: %w", err)
		}
		if int(length) > b.Len() {
			return nil, fmt.Errorf("packet length %d exceeds remaining %d bytes", length, b.Len())
		}
		packets = append(packets, b.Next(int(length)))
	}
	if len(packets) > maximumInBatch && decoder.checkPacketLimit {
		return nil, fmt.Errorf("number of packets %v in compressed batch exceeds %v", len(packets), maximumInBatch)
	}
	return packets, nil
}

func Varuint32(src io.ByteReader, x *uint32) error {
	var v uint32
	for i := uint(0); i < 35; i += 7 {
		b, err := src.ReadByte()
		if err != nil {
			return err
		}
		v |= uint32(b&0x7f) << i
		if b&0x80 == 0 {
			*x = v
			return nil
		}
	}
	return errors.New("varuint32 did not terminate after 5 bytes")
}
