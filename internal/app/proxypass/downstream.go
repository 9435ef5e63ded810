package proxypass

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
	"go.uber.org/zap"
)

var errInvalidServerHandshake = errors.New("invalid server to client handshake")

// downstreamHandler completes the handshake with the target server on behalf of the player and
// forwards everything else the server sends to the player.
type downstreamHandler struct {
	session *Session
	down    Transport
	login   *packet.Login
	logger  *zap.Logger

	loginSent bool
	encrypted bool
}

func (d *downstreamHandler) serve() {
	defer d.session.Close()

	for {
		pks, err := d.down.ReadPackets()
		if err != nil {
			if !d.session.Closed() {
				d.logger.Debug("downstream connection closed", zap.Error(err))
			}
			return
		}

		forward := make([]packet.Data, 0, len(pks))
		for _, data := range pks {
			handled, err := d.handle(data)
			if err != nil {
				d.logger.Info("downstream handshake failed", zap.Error(err))
				return
			}

			if !handled {
				forward = append(forward, data)
			}
		}

		if len(forward) == 0 {
			continue
		}

		if err := d.session.Upstream().WriteData(forward...); err != nil {
			d.logger.Debug("failed to forward packets upstream", zap.Error(err))
			return
		}
	}
}

// handle reports whether the packet was consumed by the handshake.
func (d *downstreamHandler) handle(data packet.Data) (bool, error) {
	switch data.Header.PacketID {
	case packet.IDNetworkSettings:
		if d.loginSent {
			return false, nil
		}

		pk := packet.NetworkSettings{}
		if err := data.Decode(&pk); err != nil {
			return true, err
		}
		return true, d.handleNetworkSettings(&pk)
	case packet.IDServerToClientHandshake:
		if d.encrypted {
			return false, nil
		}

		pk := packet.ServerToClientHandshake{}
		if err := data.Decode(&pk); err != nil {
			return true, err
		}
		return true, d.handleServerToClientHandshake(&pk)
	}
	return false, nil
}

func (d *downstreamHandler) handleNetworkSettings(pk *packet.NetworkSettings) error {
	d.down.EnableCompression(pk.CompressionAlgorithm)
	if err := d.down.WritePacket(d.login); err != nil {
		return err
	}
	d.loginSent = true
	d.logger.Debug("sent forged login")
	return nil
}

func (d *downstreamHandler) handleServerToClientHandshake(pk *packet.ServerToClientHandshake) error {
	key, err := deriveEncryptionKey(d.session.KeyPair(), string(pk.JWT))
	if err != nil {
		return err
	}

	if err := d.down.EnableEncryption(key); err != nil {
		return err
	}
	d.encrypted = true

	return d.down.WritePacket(&packet.ClientToServerHandshake{})
}

// deriveEncryptionKey verifies the handshake token of the server against the key in its x5u header
// and derives the shared key from the salt claim.
func deriveEncryptionKey(priv *ecdsa.PrivateKey, raw string) ([]byte, error) {
	token, err := login.ParseToken(raw)
	if err != nil {
		return nil, err
	}

	x5u, ok := token.X5U()
	if !ok {
		return nil, fmt.Errorf("%w: x5u is missing", errInvalidServerHandshake)
	}

	serverKey, err := login.ParsePublicKey(x5u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidServerHandshake, err)
	}

	if !token.Verify(serverKey) {
		return nil, fmt.Errorf("%w: signature mismatch", errInvalidServerHandshake)
	}

	s, ok := token.Payload()["salt"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: salt is missing", errInvalidServerHandshake)
	}

	salt, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", errInvalidServerHandshake, err)
	}

	ecdhPriv, err := priv.ECDH()
	if err != nil {
		return nil, err
	}

	ecdhPub, err := serverKey.ECDH()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidServerHandshake, err)
	}

	secret, err := ecdhPriv.ECDH(ecdhPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidServerHandshake, err)
	}

	h := sha256.New()
	h.Write(salt)
	h.Write(secret)
	return h.Sum(nil), nil
}
