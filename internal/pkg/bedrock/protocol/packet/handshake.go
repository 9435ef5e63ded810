package packet

import (
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol"
)

// ServerToClientHandshake is sent by the server to the client after the Login packet. It holds a JWT
// signed by the server, carrying its public key and the salt used to derive the encryption key.
type ServerToClientHandshake struct {
	JWT []byte
}

// ID ...
func (*ServerToClientHandshake) ID() uint32 {
	return IDServerToClientHandshake
}

// Marshal ...
func (pk *ServerToClientHandshake) Marshal(w *protocol.Writer) {
	w.ByteSlice(pk.JWT)
}

// Unmarshal ...
func (pk *ServerToClientHandshake) Unmarshal(r *protocol.Reader) error {
	return r.ByteSlice(&pk.JWT)
}

// ClientToServerHandshake is sent by the client, encrypted, to confirm the encryption handshake. It has
// no payload.
type ClientToServerHandshake struct{}

// ID ...
func (*ClientToServerHandshake) ID() uint32 {
	return IDClientToServerHandshake
}

// Marshal ...
func (*ClientToServerHandshake) Marshal(*protocol.Writer) {}

// Unmarshal ...
func (*ClientToServerHandshake) Unmarshal(*protocol.Reader) error {
	return nil
}
