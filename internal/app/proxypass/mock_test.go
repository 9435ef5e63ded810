package proxypass_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	gomock "github.com/golang/mock/gomock"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
)

const (
	targetAddr = "target:19132"
	identity   = "8f3a6b2e-35a0-4a7c-b7b5-6d5b0a0f4e21"
)

var clientAddr = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}

func mockTransport(ctrl *gomock.Controller) *MockTransport {
	t := NewMockTransport(ctrl)
	t.EXPECT().RemoteAddr().AnyTimes().Return(clientAddr)
	return t
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func encodeKey(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	s, err := login.MarshalPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sign(t *testing.T, signer *ecdsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES384, claims)
	token.Header["x5u"] = encodeKey(t, signer)
	raw, err := token.SignedString(signer)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func steveExtraData() map[string]any {
	return map[string]any{
		"displayName": "Steve",
		"identity":    identity,
		"XUID":        "123",
	}
}

// loginFixture is a valid login of Steve anchored in root.
type loginFixture struct {
	root   *ecdsa.PrivateKey
	a      *ecdsa.PrivateKey
	b      *ecdsa.PrivateKey
	chain  []string
	client string
}

func newLoginFixture(t *testing.T) loginFixture {
	t.Helper()
	f := loginFixture{
		root: newKey(t),
		a:    newKey(t),
		b:    newKey(t),
	}
	f.chain = []string{
		sign(t, f.root, jwt.MapClaims{"identityPublicKey": encodeKey(t, f.a)}),
		sign(t, f.a, jwt.MapClaims{
			"identityPublicKey": encodeKey(t, f.b),
			"extraData":         steveExtraData(),
		}),
	}
	f.client = sign(t, f.b, jwt.MapClaims{"SkinId": "steve", "DeviceOS": 7})
	return f
}

func (f loginFixture) packet() *packet.Login {
	return &packet.Login{
		ClientProtocol:    proxypass.DefaultCodec.ProtocolVersion,
		ConnectionRequest: login.EncodeRequest(f.chain, f.client),
	}
}

func (f loginFixture) config() proxypass.Config {
	return proxypass.Config{
		TargetAddr: targetAddr,
		Codec:      proxypass.DefaultCodec,
		RootKey:    &f.root.PublicKey,
	}
}

func data(t *testing.T, pk packet.Packet) packet.Data {
	t.Helper()
	d, err := packet.ParseData(packet.Marshal(pk))
	if err != nil {
		t.Fatal(err)
	}
	return d
}
