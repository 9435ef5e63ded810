package packet

import (
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol"
)

// Login is sent when the client initially tries to join the server. It is the first packet sent after the
// network settings were negotiated and contains information specific to the player.
type Login struct {
	// ClientProtocol is the protocol version of the player. The player is disconnected if the protocol is
	// incompatible with the protocol of the server.
	ClientProtocol int32
	// ConnectionRequest holds the certificate chain of the player and the client data token. See
	// login.ParseRequest for its layout.
	ConnectionRequest []byte
}

func (pk *Login) ID() uint32 {
	return IDLogin
}

// Marshal ...
func (pk *Login) Marshal(w *protocol.Writer) {
	w.BEInt32(pk.ClientProtocol)
	w.ByteSlice(pk.ConnectionRequest)
}

func (pk *Login) Unmarshal(r *protocol.Reader) error {
	if err := r.BEInt32(&pk.ClientProtocol); err != nil {
		return err
	}
	return r.ByteSlice(&pk.ConnectionRequest)
}
