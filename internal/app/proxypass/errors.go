package proxypass

import "errors"

var (
	// ErrProtocolMismatch is recorded if the player uses another protocol version than the proxy.
	// The player is notified with a play status and the error is never returned by Handle.
	ErrProtocolMismatch = errors.New("protocol version mismatch")
	// ErrDownstreamConnect is returned if the proxy could not connect to the target server.
	ErrDownstreamConnect = errors.New("unable to connect to downstream server")
	// ErrSessionClosed is returned if the session closed while the downstream connection was pending.
	ErrSessionClosed = errors.New("session closed")
	// ErrUnexpectedPacket is returned for packets the handshake does not expect in its current state.
	ErrUnexpectedPacket = errors.New("unexpected packet")
)

const disconnectCantConnect = "disconnectionScreen.internalError.cantConnect"
