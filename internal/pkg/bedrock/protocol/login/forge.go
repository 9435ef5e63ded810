package login

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
)

// DefaultClientDataOverrides are the client data fields the downstream server expects from the proxy.
var DefaultClientDataOverrides = map[string]any{
	"DeviceOS": 1,
}

const DefaultForgeValidity = 24 * time.Hour

// Forger issues a new login on behalf of an authenticated player, signed by a key the proxy owns.
type Forger struct {
	// Overrides are written into the client data before it is signed.
	// DefaultClientDataOverrides are used if nil.
	Overrides map[string]any
	// Now defaults to time.Now.
	Now func() time.Time
	// Validity is the lifetime of the forged chain. DefaultForgeValidity is used if zero.
	Validity time.Duration
}

// ForgedLogin is a chain and client data token signed by the proxy.
type ForgedLogin struct {
	Chain      []Token
	ClientData Token
}

func (l ForgedLogin) Request() Request {
	return Request{
		Chain:      l.Chain,
		ClientData: l.ClientData,
	}
}

// Packet returns the login packet that carries the forged login.
func (l ForgedLogin) Packet(protocolVersion int32) *packet.Login {
	return &packet.Login{
		ClientProtocol:    protocolVersion,
		ConnectionRequest: l.Request().Encode(),
	}
}

// Forge signs a copy of skin and a single link chain claiming auth with key. The chain is self signed,
// so validating it against the public key of key reports it as anchored.
func (f Forger) Forge(key *ecdsa.PrivateKey, auth AuthData, skin ClientData, protocolVersion int32) (ForgedLogin, error) {
	pubKey, err := MarshalPublicKey(&key.PublicKey)
	if err != nil {
		return ForgedLogin{}, fmt.Errorf("%w: %v", ErrForge, err)
	}

	clientData := f.injectOverrides(skin)
	rawClientData, err := signToken(jwt.MapClaims(clientData), key, pubKey)
	if err != nil {
		return ForgedLogin{}, fmt.Errorf("%w: client data: %v", ErrForge, err)
	}

	now := f.now()
	rawLink, err := signToken(jwt.MapClaims{
		"certificateAuthority": true,
		"extraData": map[string]any{
			"displayName": auth.DisplayName,
			"identity":    auth.Identity.String(),
			"XUID":        auth.XUID,
		},
		"identityPublicKey": pubKey,
		"nbf":               now.Add(-time.Second).Unix(),
		"exp":               now.Add(f.validity()).Unix(),
		"iat":               now.Unix(),
	}, key, pubKey)
	if err != nil {
		return ForgedLogin{}, fmt.Errorf("%w: chain: %v", ErrForge, err)
	}

	chainData, err := json.Marshal(chainJSON{Chain: []string{rawLink}})
	if err != nil {
		return ForgedLogin{}, fmt.Errorf("%w: %v", ErrForge, err)
	}

	chain, err := ParseChain(chainData)
	if err != nil {
		return ForgedLogin{}, fmt.Errorf("%w: unable to decode forged token: %v", ErrForge, err)
	}

	clientDataToken, err := ParseToken(rawClientData)
	if err != nil {
		return ForgedLogin{}, fmt.Errorf("%w: unable to decode forged token: %v", ErrForge, err)
	}

	return ForgedLogin{
		Chain:      chain,
		ClientData: clientDataToken,
	}, nil
}

// injectOverrides is the only place the client data of a player is modified.
func (f Forger) injectOverrides(skin ClientData) ClientData {
	overrides := f.Overrides
	if overrides == nil {
		overrides = DefaultClientDataOverrides
	}

	clientData := skin.Clone()
	for k, v := range overrides {
		clientData[k] = v
	}
	return clientData
}

func (f Forger) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func (f Forger) validity() time.Duration {
	if f.Validity <= 0 {
		return DefaultForgeValidity
	}
	return f.Validity
}

func signToken(claims jwt.MapClaims, key *ecdsa.PrivateKey, x5u string) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES384, claims)
	t.Header["x5u"] = x5u
	return t.SignedString(key)
}
