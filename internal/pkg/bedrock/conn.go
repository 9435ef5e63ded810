package bedrock

import (
	"fmt"
	"net"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Conn is a Minecraft Bedrock connection. It implements proxypass.Transport.
type Conn struct {
	conn net.Conn

	decoder *packet.Decoder
	encoder *packet.Encoder

	mu     sync.RWMutex
	codec  proxypass.Codec
	logger *zap.Logger

	closed atomic.Bool
}

// NewConn wraps c. If c is a *raknet.Conn, batches are read packet by packet without an extra buffer.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		conn:    c,
		decoder: packet.NewDecoder(c),
		encoder: packet.NewEncoder(c),
	}
}

func (c *Conn) ReadPackets() ([]packet.Data, error) {
	pks, err := c.decoder.Decode()
	if err != nil {
		return nil, err
	}

	pksData := make([]packet.Data, 0, len(pks))
	for _, pk := range pks {
		pkData, err := packet.ParseData(pk)
		if err != nil {
			return nil, err
		}

		c.logPacket("read packet", pkData.Header.PacketID, len(pk))
		pksData = append(pksData, pkData)
	}
	return pksData, nil
}

func (c *Conn) WritePacket(pk packet.Packet) error {
	b := packet.Marshal(pk)
	c.logPacket("write packet", pk.ID(), len(b))
	return c.encoder.Encode(b)
}

func (c *Conn) WriteData(data ...packet.Data) error {
	pks := make([][]byte, len(data))
	for i, d := range data {
		c.logPacket("forward packet", d.Header.PacketID, len(d.Full))
		pks[i] = d.Full
	}
	return c.encoder.Encode(pks...)
}

func (c *Conn) SetCodec(codec proxypass.Codec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codec = codec
}

func (c *Conn) Codec() proxypass.Codec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.codec
}

func (c *Conn) EnableCompression(compression packet.Compression) {
	c.decoder.EnableCompression(compression)
	c.encoder.EnableCompression(compression)
}

// SetMaxDecompressedSize limits how large a single inbound batch may inflate to.
func (c *Conn) SetMaxDecompressedSize(size datasize.ByteSize) {
	c.decoder.SetMaxDecompressedSize(size)
}

func (c *Conn) EnableEncryption(key []byte) error {
	if err := c.decoder.EnableEncryption(key); err != nil {
		return err
	}
	return c.encoder.EnableEncryption(key)
}

func (c *Conn) SetPacketLogger(logger *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = logger
}

// Disconnect sends a disconnect packet with msg and closes the connection. An empty msg hides the
// disconnection screen.
func (c *Conn) Disconnect(msg string) error {
	defer c.Close()
	pk := packet.Disconnect{
		HideDisconnectionScreen: msg == "",
		Message:                 msg,
	}

	if err := c.WritePacket(&pk); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Close closes the underlying connection. Only the first call closes it.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Conn) logPacket(msg string, id uint32, size int) {
	c.mu.RLock()
	logger := c.logger
	codec := c.codec
	c.mu.RUnlock()

	if logger == nil {
		return
	}

	logger.Debug(msg,
		zap.String("packetId", fmt.Sprintf("0x%02x", id)),
		zap.Int("size", size),
		zap.Int32("protocol", codec.ProtocolVersion),
		zap.String("connRemoteAddr", c.conn.RemoteAddr().String()),
	)
}
