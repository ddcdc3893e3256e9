package secrettoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// ErrMalformed is returned for any token or envelope that cannot be decoded or decrypted.
var ErrMalformed = errors.New("malformed secret token")

// wireEnvelope is the JSON record carried inside the base58 token.
// Field order matters: tokens issued earlier are echoed back verbatim by Telegram.
type wireEnvelope struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// Encode serializes an envelope into the opaque token handed to Telegram as the webhook secret.
func Encode(envelope Envelope) (string, error) {
	raw, err := json.Marshal(wireEnvelope{
		IV:   base64.StdEncoding.EncodeToString(envelope.IV),
		Data: base64.StdEncoding.EncodeToString(envelope.Ciphertext),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return base58.Encode(raw), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) (Envelope, error) {
	raw, err := base58.Decode(token)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid base58: %v", ErrMalformed, err)
	}

	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid envelope: %v", ErrMalformed, err)
	}

	if wire.IV == "" || wire.Data == "" {
		return Envelope{}, fmt.Errorf("%w: missing iv or data", ErrMalformed)
	}

	iv, err := base64.StdEncoding.DecodeString(wire.IV)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid iv encoding: %v", ErrMalformed, err)
	}

	if len(iv) != IVSize {
		return Envelope{}, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrMalformed, IVSize, len(iv))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(wire.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid data encoding: %v", ErrMalformed, err)
	}

	return Envelope{IV: iv, Ciphertext: ciphertext}, nil
}
