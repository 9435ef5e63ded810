package packet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrInvalidChecksum = errors.New("invalid packet checksum")

// encryption is the AES-256-CTR stream cipher that is used once the server has sent a
// ServerToClientHandshake. Every batch carries an 8 byte checksum over a running counter,
// the compressed payload and the key.
type encryption struct {
	key    []byte
	stream cipher.Stream
	count  uint64
}

func newEncryption(key []byte) (*encryption, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}

	iv := append(append([]byte(nil), key[:12]...), 0, 0, 0, 2)
	return &encryption{
		key:    append([]byte(nil), key...),
		stream: cipher.NewCTR(block, iv),
	}, nil
}

func (e *encryption) checksum(data []byte) []byte {
	counter := make([]byte, 8)
	binary.LittleEndian.PutUint64(counter, e.count)
	e.count++

	h := sha256.New()
	h.Write(counter)
	h.Write(data)
	h.Write(e.key)
	return h.Sum(nil)[:8]
}

// encrypt appends the checksum to data and encrypts it in place.
func (e *encryption) encrypt(data []byte) []byte {
	data = append(data, e.checksum(data)...)
	e.stream.XORKeyStream(data, data)
	return data
}

// decrypt decrypts data in place and returns it without the trailing checksum.
func (e *encryption) decrypt(data []byte) ([]byte, error) {
	e.stream.XORKeyStream(data, data)
	if len(data) < 8 {
		return nil, fmt.Errorf("encrypted batch of %d bytes is too short", len(data))
	}

	payload, sum := data[:len(data)-8], data[len(data)-8:]
	if !bytes.Equal(e.checksum(payload), sum) {
		return nil, ErrInvalidChecksum
	}
	return payload, nil
}
