package login

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/gofrs/uuid"
)

// AuthData is the identity of a player as claimed in the extraData of the last link of the chain.
type AuthData struct {
	DisplayName string
	Identity    uuid.UUID
	XUID        string
}

// ClientData is the payload of the client data token. It holds the skin of the player and details about
// the device the player is playing on.
type ClientData map[string]any

// Clone returns a shallow copy of the client data.
func (d ClientData) Clone() ClientData {
	return copyMap(d)
}

// ExtractAuthData reads the AuthData out of the extraData claim of the token. Every field is required.
func ExtractAuthData(last Token) (AuthData, error) {
	extraData, ok := last.claims["extraData"].(map[string]any)
	if !ok {
		return AuthData{}, fmt.Errorf("%w: extraData is not an object", ErrMissingIdentityClaims)
	}

	displayName, err := stringClaim(extraData, "displayName")
	if err != nil {
		return AuthData{}, err
	}

	identity, err := stringClaim(extraData, "identity")
	if err != nil {
		return AuthData{}, err
	}

	id, err := uuid.FromString(identity)
	if err != nil {
		return AuthData{}, fmt.Errorf("%w: identity: %v", ErrMissingIdentityClaims, err)
	}

	xuid, err := stringClaim(extraData, "XUID")
	if err != nil {
		return AuthData{}, err
	}

	return AuthData{
		DisplayName: displayName,
		Identity:    id,
		XUID:        xuid,
	}, nil
}

func stringClaim(claims map[string]any, name string) (string, error) {
	v, ok := claims[name]
	if !ok {
		return "", fmt.Errorf("%w: %s is missing", ErrMissingIdentityClaims, name)
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is a %T, not a string", ErrMissingIdentityClaims, name, v)
	}
	return s, nil
}

// VerifyClientData verifies that the client data token is signed by the identity key of the chain and
// returns its payload.
func VerifyClientData(token Token, identityKey *ecdsa.PublicKey) (ClientData, error) {
	if !token.Verify(identityKey) {
		return nil, ErrClientDataSignature
	}
	return token.Payload(), nil
}

// Identity is everything the proxy learns from a connection request.
type Identity struct {
	Chain      ChainResult
	AuthData   AuthData
	ClientData ClientData
	// ChainData is the payload of the last link of the chain.
	ChainData map[string]any
}

// Authenticate validates the chain of the request against root, extracts the AuthData and verifies
// the client data. Whether an unanchored chain is acceptable is left to the caller.
func Authenticate(req Request, root *ecdsa.PublicKey) (Identity, error) {
	result, err := ValidateChain(req.Chain, root)
	if err != nil {
		return Identity{}, err
	}

	last := req.Chain[len(req.Chain)-1]
	authData, err := ExtractAuthData(last)
	if err != nil {
		return Identity{}, err
	}

	clientData, err := VerifyClientData(req.ClientData, result.IdentityPublicKey)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Chain:      result,
		AuthData:   authData,
		ClientData: clientData,
		ChainData:  last.Payload(),
	}, nil
}
