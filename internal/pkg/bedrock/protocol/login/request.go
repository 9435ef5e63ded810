package login

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Request is the connection request carried by the Login packet.
type Request struct {
	Chain      []Token
	ClientData Token
}

type chainJSON struct {
	Chain []string `json:"chain"`
}

// ParseRequest parses a connection request. It exists out of a little endian int32 prefixed JSON object
// holding the chain and a little endian int32 prefixed client data token.
func ParseRequest(b []byte) (Request, error) {
	buf := bytes.NewBuffer(b)

	chainData, err := readLengthPrefixed(buf)
	if err != nil {
		return Request{}, fmt.Errorf("%w: chain: %v", ErrMalformedToken, err)
	}

	chain, err := ParseChain(chainData)
	if err != nil {
		return Request{}, err
	}

	rawToken, err := readLengthPrefixed(buf)
	if err != nil {
		return Request{}, fmt.Errorf("%w: client data: %v", ErrMalformedToken, err)
	}

	clientData, err := ParseToken(string(rawToken))
	if err != nil {
		return Request{}, err
	}

	return Request{
		Chain:      chain,
		ClientData: clientData,
	}, nil
}

// ParseChain parses the JSON representation of a chain. Every element has to be a valid token.
func ParseChain(b []byte) ([]Token, error) {
	var data chainJSON
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("%w: chain: %v", ErrMalformedToken, err)
	}

	if len(data.Chain) == 0 {
		return nil, fmt.Errorf("%w: empty chain", ErrMalformedToken)
	}

	chain := make([]Token, len(data.Chain))
	for i, raw := range data.Chain {
		token, err := ParseToken(raw)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		chain[i] = token
	}
	return chain, nil
}

// Encode is the inverse of ParseRequest.
func (r Request) Encode() []byte {
	raw := make([]string, len(r.Chain))
	for i, token := range r.Chain {
		raw[i] = token.Raw()
	}
	return EncodeRequest(raw, r.ClientData.Raw())
}

// EncodeRequest encodes raw tokens into a connection request.
func EncodeRequest(chain []string, clientData string) []byte {
	// A slice of strings always marshals.
	chainData, _ := json.Marshal(chainJSON{Chain: chain})

	buf := bytes.NewBuffer(make([]byte, 0, len(chainData)+len(clientData)+8))
	writeLengthPrefixed(buf, chainData)
	writeLengthPrefixed(buf, []byte(clientData))
	return buf.Bytes()
}

func readLengthPrefixed(buf *bytes.Buffer) ([]byte, error) {
	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, err
	}

	if length < 0 || int(length) > buf.Len() {
		return nil, fmt.Errorf("invalid length %d", length)
	}

	b := make([]byte, length)
	if _, err := io.ReadFull(buf, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeLengthPrefixed(buf *bytes.Buffer, b []byte) {
	_ = binary.Write(buf, binary.LittleEndian, int32(len(b)))
	buf.Write(b)
}
