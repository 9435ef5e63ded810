package login

import "errors"

var (
	// ErrMalformedToken is returned if a token or the connection request that carries it cannot be parsed.
	ErrMalformedToken = errors.New("malformed token")
	// ErrChainValidation is returned if a link of the chain is not signed by the key of the previous link
	// or does not carry an identity public key.
	ErrChainValidation = errors.New("chain validation failed")
	// ErrUnanchoredChain is returned by callers that require the chain to be signed by the root key.
	ErrUnanchoredChain = errors.New("chain is not signed by the root key")
	// ErrMissingIdentityClaims is returned if the extra data of the last link is absent or incomplete.
	ErrMissingIdentityClaims = errors.New("missing identity claims")
	// ErrClientDataSignature is returned if the client data token is not signed by the identity key.
	ErrClientDataSignature = errors.New("client data signature mismatch")
	// ErrForge is returned if the proxy cannot build or re-read its own login chain.
	ErrForge = errors.New("unable to forge login")
)
