package secrettoken

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

const (
	// KeySize is the AES-192 key length in bytes.
	KeySize = 24

	// IVSize is the CBC initialization vector length in bytes.
	IVSize = aes.BlockSize
)

// Envelope is an encrypted credential together with the IV it was encrypted under.
type Envelope struct {
	IV         []byte
	Ciphertext []byte
}

// Cipher encrypts bot credentials with AES-192-CBC and PKCS#7 padding.
// A Cipher is immutable and safe for concurrent use.
type Cipher struct {
	block cipher.Block
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &Cipher{block: block}, nil
}

// NewCipherFromHex builds a Cipher from a hex encoded key, the form used in configuration.
func NewCipherFromHex(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid key hex: %w", err)
	}

	return NewCipher(key)
}

func (c *Cipher) Encrypt(credential string, iv []byte) (Envelope, error) {
	if len(iv) != IVSize {
		return Envelope{}, fmt.Errorf("invalid iv length: expected %d bytes, got %d", IVSize, len(iv))
	}

	padded := pad([]byte(credential), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	return Envelope{
		IV:         bytes.Clone(iv),
		Ciphertext: ciphertext,
	}, nil
}

func (c *Cipher) Decrypt(envelope Envelope) (string, error) {
	if len(envelope.IV) != IVSize {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", ErrMalformed, IVSize, len(envelope.IV))
	}

	if len(envelope.Ciphertext) == 0 || len(envelope.Ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d", ErrMalformed, len(envelope.Ciphertext), aes.BlockSize)
	}

	plaintext := make([]byte, len(envelope.Ciphertext))
	cipher.NewCBCDecrypter(c.block, envelope.IV).CryptBlocks(plaintext, envelope.Ciphertext)

	plaintext, err := unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid utf-8", ErrMalformed)
	}

	return string(plaintext), nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize

	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrMalformed)
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", ErrMalformed)
		}
	}

	return data[:len(data)-n], nil
}
