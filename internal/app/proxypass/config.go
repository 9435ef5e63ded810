package proxypass

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
)

// Codec is the protocol version the proxy speaks on both legs of a session.
type Codec struct {
	ProtocolVersion  int32
	MinecraftVersion string
}

var DefaultCodec = Codec{
	ProtocolVersion:  594,
	MinecraftVersion: "1.20.10",
}

func (c Codec) String() string {
	return fmt.Sprintf("%s (%d)", c.MinecraftVersion, c.ProtocolVersion)
}

// Config is shared by all sessions of a proxy and must not be modified after the proxy started.
type Config struct {
	// TargetAddr is the address of the server every session is bridged to.
	TargetAddr string
	Codec      Codec
	// RootKey is the key that anchors the identity chain of a player.
	RootKey *ecdsa.PublicKey
	// AllowUnanchoredChains accepts chains that are consistent in themselves but not signed by RootKey.
	AllowUnanchoredChains bool
	// ClientDataOverrides are written into the client data sent downstream.
	// login.DefaultClientDataOverrides are used if nil.
	ClientDataOverrides map[string]any
	// ForgeValidity is the lifetime of the chain forged for the downstream server.
	ForgeValidity time.Duration
}

// DefaultConfig returns a Config anchored in the mojang key.
func DefaultConfig(targetAddr string) (Config, error) {
	rootKey, err := login.ParsePublicKey(login.MojangPublicKey)
	if err != nil {
		return Config{}, err
	}

	return Config{
		TargetAddr: targetAddr,
		Codec:      DefaultCodec,
		RootKey:    rootKey,
	}, nil
}
