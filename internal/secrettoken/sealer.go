package secrettoken

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Sealer turns credentials into opaque tokens and back.
// Every Seal call uses a fresh random IV, so two tokens for the same credential never match;
// compare the results of Open instead.
type Sealer struct {
	cipher *Cipher
	random io.Reader
}

type SealerOption func(*Sealer)

// WithRandom overrides the IV source. Tests use it for deterministic tokens.
func WithRandom(r io.Reader) SealerOption {
	return func(s *Sealer) {
		s.random = r
	}
}

func NewSealer(c *Cipher, options ...SealerOption) *Sealer {
	s := &Sealer{
		cipher: c,
		random: rand.Reader,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

func (s *Sealer) Seal(credential string) (string, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(s.random, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	envelope, err := s.cipher.Encrypt(credential, iv)
	if err != nil {
		return "", err
	}

	return Encode(envelope)
}

func (s *Sealer) Open(token string) (string, error) {
	envelope, err := Decode(token)
	if err != nil {
		return "", err
	}

	return s.cipher.Decrypt(envelope)
}
