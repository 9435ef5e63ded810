package packet

import (
	"fmt"
	"io"
	"sync"

	"github.com/haveachin/proxypass/internal"
)

// Encoder handles the encoding of Minecraft packets that are sent to an io.Writer. The packets are compressed
// and optionally encrypted before they are sent to the io.Writer.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer

	compression Compression
	encrypt     *encryption
}

// NewEncoder returns a new Encoder for the io.Writer passed. Each final packet produced by the Encoder is
// sent with a single call to io.Writer.Write().
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w: w,
	}
}

// EnableCompression enables compression for the Encoder.
func (encoder *Encoder) EnableCompression(compression Compression) {
	encoder.mu.Lock()
	defer encoder.mu.Unlock()
	encoder.compression = compression
}

// EnableEncryption enables encryption for the Encoder using the 32 byte key passed.
func (encoder *Encoder) EnableEncryption(key []byte) error {
	e, err := newEncryption(key)
	if err != nil {
		return err
	}

	encoder.mu.Lock()
	defer encoder.mu.Unlock()
	encoder.encrypt = e
	return nil
}

// Encode encodes the packets passed. It writes all of them as a single batch which is compressed and
// optionally encrypted.
func (encoder *Encoder) Encode(packets ...[]byte) error {
	buf := internal.GetBuffer()
	defer internal.PutBuffer(buf)

	l := make([]byte, 5)
	for _, packet := range packets {
		// Each packet is prefixed with a varuint32 specifying the length of the packet.
		if err := writeVaruint32(buf, uint32(len(packet)), l); err != nil {
			return fmt.Errorf("error writing varuint32 length: %w", err)
		}
		if _, err := buf.Write(packet); err != nil {
			return fmt.Errorf("error writing packet payload: %w", err)
		}
	}

	encoder.mu.Lock()
	defer encoder.mu.Unlock()

	data := append([]byte(nil), buf.Bytes()...)
	if encoder.compression != nil {
		var err error
		data, err = encoder.compression.Compress(data)
		if err != nil {
			return fmt.Errorf("error compressing packet: %w", err)
		}
	}

	if encoder.encrypt != nil {
		data = encoder.encrypt.encrypt(data)
	}

	data = append([]byte{header}, data...)
	if _, err := encoder.w.Write(data); err != nil {
		return fmt.Errorf("error writing compressed packet to io.Writer: %w", err)
	}
	return nil
}

// writeVaruint32 writes a uint32 to the destination buffer passed with a size of 1-5 bytes. It uses byte
// slice b in order to prevent allocations.
func writeVaruint32(dst io.Writer, x uint32, b []byte) error {
	b[4] = 0
	b[3] = 0
	b[2] = 0
	b[1] = 0
	b[0] = 0

	i := 0
	for x >= 0x80 {
		b[i] = byte(x) | 0x80
		i++
		x >>= 7
	}
	b[i] = byte(x)
	_, err := dst.Write(b[:i+1])
	return err
}
