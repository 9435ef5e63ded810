package login

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Token is a parsed but not necessarily verified JWS in compact serialization. It is immutable, every
// accessor returns a copy.
type Token struct {
	raw       string
	header    map[string]any
	claims    jwt.MapClaims
	method    jwt.SigningMethod
	signing   string
	signature string
}

// Claim validation (exp, nbf) is left out on purpose, the chain only proves key ownership.
// Numbers are kept as json.Number so 64 bit values like ClientRandomId survive re-signing.
var parser = &jwt.Parser{SkipClaimsValidation: true, UseJSONNumber: true}

// ParseToken parses the compact serialization of a token without verifying it.
func ParseToken(raw string) (Token, error) {
	claims := jwt.MapClaims{}
	t, parts, err := parser.ParseUnverified(raw, claims)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	return Token{
		raw:       raw,
		header:    t.Header,
		claims:    claims,
		method:    t.Method,
		signing:   strings.Join(parts[:2], "."),
		signature: parts[2],
	}, nil
}

// Verify reports whether the token is signed by key. It fails closed, any error is reported as false.
func (t Token) Verify(key *ecdsa.PublicKey) bool {
	if key == nil || key.Curve == nil {
		return false
	}
	if _, ok := t.method.(*jwt.SigningMethodECDSA); !ok {
		return false
	}
	return t.method.Verify(t.signing, t.signature, key) == nil
}

// Payload returns a copy of the claims of the token. It is available for unverified tokens, so the key
// of the next link can be read before the link itself is verified.
func (t Token) Payload() map[string]any {
	return copyMap(t.claims)
}

func (t Token) Header() map[string]any {
	return copyMap(t.header)
}

// X5U returns the public key the token claims to be signed with.
func (t Token) X5U() (string, bool) {
	x5u, ok := t.header["x5u"].(string)
	return x5u, ok
}

func (t Token) Raw() string {
	return t.raw
}

func (t Token) String() string {
	return t.raw
}

func copyMap(m map[string]any) map[string]any {
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
