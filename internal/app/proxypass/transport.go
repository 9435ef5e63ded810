package proxypass

//go:generate mockgen -destination=proxypass_mock_test.go -package=proxypass_test github.com/haveachin/proxypass/internal/app/proxypass Transport,Connector,Sink,Listener

import (
	"context"
	"net"

	"github.com/gofrs/uuid"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
	"go.uber.org/zap"
)

// Transport is a connection that speaks the batch protocol. All methods need to be thread-safe.
type Transport interface {
	// ReadPackets blocks until the next batch arrives and returns its packets.
	ReadPackets() ([]packet.Data, error)
	// WritePacket encodes the packet and writes it immediately in a batch of its own.
	WritePacket(pk packet.Packet) error
	// WriteData forwards already encoded packets in a single batch.
	WriteData(data ...packet.Data) error
	SetCodec(codec Codec)
	EnableCompression(c packet.Compression)
	// EnableEncryption enables encryption of both directions with the 32 byte key.
	EnableEncryption(key []byte) error
	// SetPacketLogger enables logging of every packet that is read or written. A nil logger disables it.
	SetPacketLogger(logger *zap.Logger)
	// Disconnect sends a disconnect with the message and closes the connection.
	Disconnect(msg string) error
	Close() error
	RemoteAddr() net.Addr
}

// Connector opens connections to downstream servers.
type Connector interface {
	// Connect dials addr on behalf of the player connected from clientAddr.
	Connect(ctx context.Context, addr string, clientAddr net.Addr) (Transport, error)
}

// Sink stores named structured data of a session for inspection.
type Sink interface {
	Save(sessionID uuid.UUID, name string, data any) error
}

// Listener accepts the connections of players.
type Listener interface {
	Accept() (Transport, error)
	Addr() net.Addr
	Close() error
}
