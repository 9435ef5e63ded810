package packet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/haveachin/proxypass/internal"
	"github.com/klauspost/compress/flate"
)

// Compression represents a compression algorithm that can compress and decompress data.
type Compression interface {
	// EncodeCompression encodes the compression algorithm into a uint16 ID.
	EncodeCompression() uint16
	// Compress compresses the given data and returns the compressed data.
	Compress(decompressed []byte) ([]byte, error)
	// Decompress decompresses the given data and returns the decompressed data.
	Decompress(compressed []byte) ([]byte, error)
}

// ErrDecompressedTooLarge is returned if a batch inflates beyond the limit of the decoder.
var ErrDecompressedTooLarge = errors.New("decompressed batch too large")

// LimitedDecompressor is implemented by compressions that can stop inflating data once it grows past limit
// bytes.
type LimitedDecompressor interface {
	DecompressLimit(compressed []byte, limit int) ([]byte, error)
}

// decompress inflates compressed with c. A limit of zero or less disables the limit.
func decompress(c Compression, compressed []byte, limit int) ([]byte, error) {
	if limit <= 0 {
		return c.Decompress(compressed)
	}

	if lc, ok := c.(LimitedDecompressor); ok {
		return lc.DecompressLimit(compressed, limit)
	}

	decompressed, err := c.Decompress(compressed)
	if err != nil {
		return nil, err
	}
	if len(decompressed) > limit {
		return nil, ErrDecompressedTooLarge
	}
	return decompressed, nil
}

type (
	// FlateCompression is the raw deflate algorithm which the protocol calls ZLIB.
	FlateCompression struct{}
	// SnappyCompression is the implementation of the Snappy compression algorithm.
	SnappyCompression struct{}
)

var (
	flateDecompressPool = sync.Pool{
		New: func() any { return flate.NewReader(bytes.NewReader(nil)) },
	}
	flateCompressPool = sync.Pool{
		New: func() any {
			w, _ := flate.NewWriter(io.Discard, 6)
			return w
		},
	}
)

// EncodeCompression ...
func (FlateCompression) EncodeCompression() uint16 {
	return 0
}

// Compress ...
func (FlateCompression) Compress(decompressed []byte) ([]byte, error) {
	compressed := internal.GetBuffer()
	w := flateCompressPool.Get().(*flate.Writer)
	defer func() {
		internal.PutBuffer(compressed)
		flateCompressPool.Put(w)
	}()

	w.Reset(compressed)
	if _, err := w.Write(decompressed); err != nil {
		return nil, fmt.Errorf("compress flate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close flate writer: %w", err)
	}
	// The buffer goes back to the pool, so its bytes must not escape.
	return append([]byte(nil), compressed.Bytes()...), nil
}

// Decompress ...
func (c FlateCompression) Decompress(compressed []byte) ([]byte, error) {
	return c.DecompressLimit(compressed, 0)
}

// DecompressLimit ...
func (FlateCompression) DecompressLimit(compressed []byte, limit int) ([]byte, error) {
	c := flateDecompressPool.Get().(io.ReadCloser)
	defer flateDecompressPool.Put(c)

	if err := c.(flate.Resetter).Reset(bytes.NewReader(compressed), nil); err != nil {
		return nil, fmt.Errorf("reset flate: %w", err)
	}
	_ = c.Close()

	// Guess an uncompressed size of 2*len(compressed).
	guess := len(compressed) * 2
	var r io.Reader = c
	if limit > 0 {
		if guess > limit {
			guess = limit
		}
		// One byte past the limit tells a full batch apart from an oversized one.
		r = io.LimitReader(c, int64(limit)+1)
	}

	decompressed := bytes.NewBuffer(make([]byte, 0, guess))
	if _, err := io.Copy(decompressed, r); err != nil {
		return nil, fmt.Errorf("decompress flate: %w", err)
	}
	if limit > 0 && decompressed.Len() > limit {
		return nil, ErrDecompressedTooLarge
	}
	return decompressed.Bytes(), nil
}

// EncodeCompression ...
func (SnappyCompression) EncodeCompression() uint16 {
	return 1
}

// Compress ...
func (SnappyCompression) Compress(decompressed []byte) ([]byte, error) {
	return snappy.Encode(nil, decompressed), nil
}

// Decompress ...
func (c SnappyCompression) Decompress(compressed []byte) ([]byte, error) {
	return c.DecompressLimit(compressed, 0)
}

// DecompressLimit checks the length stored in the snappy header before anything is allocated.
func (SnappyCompression) DecompressLimit(compressed []byte, limit int) ([]byte, error) {
	if limit > 0 {
		n, err := snappy.DecodedLen(compressed)
		if err != nil {
			return nil, fmt.Errorf("decompress snappy: %w", err)
		}
		if n > limit {
			return nil, ErrDecompressedTooLarge
		}
	}

	decompressed, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress snappy: %w", err)
	}
	return decompressed, nil
}

// init registers all valid compressions with the protocol.
func init() {
	RegisterCompression(FlateCompression{}, "flate", "zlib")
	RegisterCompression(SnappyCompression{}, "snappy")
}

var (
	compressions       = map[uint16]Compression{}
	compressionsByName = map[string]Compression{}
)

// RegisterCompression registers a compression under one or more names so that it can be used by the
// protocol. Names are case insensitive.
func RegisterCompression(compression Compression, names ...string) {
	compressions[compression.EncodeCompression()] = compression
	for _, name := range names {
		compressionsByName[strings.ToLower(name)] = compression
	}
}

// CompressionByID attempts to return a compression by the ID it was registered with. If found, the compression found
// is returned and the bool is true.
func CompressionByID(id uint16) (Compression, bool) {
	c, ok := compressions[id]
	return c, ok
}

// CompressionByName attempts to return a compression by the name it was registered with. If found, the compression found
// is returned and the bool is true. Name is case insensitive.
func CompressionByName(name string) (Compression, bool) {
	c, ok := compressionsByName[strings.ToLower(name)]
	return c, ok
}
