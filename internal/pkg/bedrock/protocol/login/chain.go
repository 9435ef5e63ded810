package login

import (
	"crypto/ecdsa"
	"fmt"
)

// ChainResult is the outcome of a successful chain validation.
type ChainResult struct {
	// Anchored is true if a link of the chain is signed by the root key. A chain that is only
	// consistent in itself is valid, but not vouched for by the root.
	Anchored bool
	// IdentityPublicKey is the key carried by the last link. It signs the client data.
	IdentityPublicKey *ecdsa.PublicKey
}

// ValidateChain checks that every link of the chain is signed by the identityPublicKey of its
// predecessor and whether any link is signed by root. The first link is never checked against a
// predecessor, so a single link chain is valid and only anchoring is decided for it.
func ValidateChain(chain []Token, root *ecdsa.PublicKey) (ChainResult, error) {
	if len(chain) == 0 {
		return ChainResult{}, fmt.Errorf("%w: empty chain", ErrMalformedToken)
	}

	var (
		lastKey  *ecdsa.PublicKey
		anchored bool
	)
	for i, token := range chain {
		if !anchored && token.Verify(root) {
			anchored = true
		}

		if lastKey != nil && !token.Verify(lastKey) {
			return ChainResult{}, fmt.Errorf("%w: link %d is not signed by link %d", ErrChainValidation, i, i-1)
		}

		key, err := identityPublicKey(token)
		if err != nil {
			return ChainResult{}, fmt.Errorf("%w: link %d: %v", ErrChainValidation, i, err)
		}
		lastKey = key
	}

	return ChainResult{
		Anchored:          anchored,
		IdentityPublicKey: lastKey,
	}, nil
}

func identityPublicKey(token Token) (*ecdsa.PublicKey, error) {
	v, ok := token.claims["identityPublicKey"]
	if !ok {
		return nil, fmt.Errorf("identityPublicKey is missing")
	}

	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("identityPublicKey is a %T, not a string", v)
	}
	return ParsePublicKey(s)
}
