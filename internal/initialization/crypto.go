package initialization

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/flowbaker/tgbridge/internal/auth"
	"github.com/flowbaker/tgbridge/internal/secrettoken"
)

type CryptoKeys struct {
	StateKey          string
	SigningPrivateKey string
	SigningPublicKey  string
}

// GenerateStateKey returns a random AES-192 key, hex encoded for STATE_KEY.
func GenerateStateKey() (string, error) {
	key := make([]byte, secrettoken.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate state key: %w", err)
	}

	return hex.EncodeToString(key), nil
}

// GenerateAllKeys also creates the Ed25519 pair used to sign management requests.
func GenerateAllKeys() (CryptoKeys, error) {
	var keys CryptoKeys

	stateKey, err := GenerateStateKey()
	if err != nil {
		return keys, err
	}

	signingPrivate, signingPublic, err := auth.GenerateKeyPair()
	if err != nil {
		return keys, fmt.Errorf("failed to generate Ed25519 keys: %w", err)
	}

	keys.StateKey = stateKey
	keys.SigningPrivateKey = signingPrivate
	keys.SigningPublicKey = signingPublic

	return keys, nil
}
