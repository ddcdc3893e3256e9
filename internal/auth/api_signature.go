package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-API-Signature"
	TimestampHeader = "X-API-Timestamp"

	signaturePrefix = "ed25519="

	// MaxClockSkew bounds how far a request timestamp may drift from local time.
	MaxClockSkew = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid api signature")

// canonicalRequest is the string both sides sign: method, path, raw query, the unix
// timestamp and the body digest, one per line.
func canonicalRequest(method, path, query, timestamp string, body []byte) []byte {
	bodyHash := sha256.Sum256(body)

	return []byte(fmt.Sprintf("%s\n%s\n%s\n%s\nsha256:%x", method, path, query, timestamp, bodyHash))
}

// RequestSigner is the client half of the scheme. The bridge never signs its own requests;
// the flows platform (or any Go caller of the management routes) uses it to produce the
// headers RequestVerifier checks.
type RequestSigner struct {
	privateKey ed25519.PrivateKey
	now        func() time.Time
}

func NewRequestSigner(privateKeyBase64 string) (*RequestSigner, error) {
	privateKeyBytes, err := base64.StdEncoding.DecodeString(privateKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	if len(privateKeyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: expected %d, got %d", ed25519.PrivateKeySize, len(privateKeyBytes))
	}

	return &RequestSigner{
		privateKey: ed25519.PrivateKey(privateKeyBytes),
		now:        time.Now,
	}, nil
}

// Sign returns the signature and timestamp headers to set on a request. query is the raw query
// string without the leading "?".
func (s *RequestSigner) Sign(method, path, query string, body []byte) map[string]string {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	signature := ed25519.Sign(s.privateKey, canonicalRequest(method, path, query, timestamp, body))

	return map[string]string{
		SignatureHeader: signaturePrefix + base64.StdEncoding.EncodeToString(signature),
		TimestampHeader: timestamp,
	}
}

// RequestVerifier checks signatures produced by RequestSigner.
type RequestVerifier struct {
	publicKey ed25519.PublicKey
	now       func() time.Time
}

func NewRequestVerifier(publicKeyBase64 string) (*RequestVerifier, error) {
	publicKeyBytes, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}

	if len(publicKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(publicKeyBytes))
	}

	return &RequestVerifier{
		publicKey: ed25519.PublicKey(publicKeyBytes),
		now:       time.Now,
	}, nil
}

func (v *RequestVerifier) Verify(method, path, query, signatureHeader, timestampHeader string, body []byte) error {
	signatureB64, ok := strings.CutPrefix(signatureHeader, signaturePrefix)
	if !ok || signatureB64 == "" {
		return fmt.Errorf("%w: unsupported signature format", ErrInvalidSignature)
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("%w: failed to decode signature: %v", ErrInvalidSignature, err)
	}

	timestamp, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp: %v", ErrInvalidSignature, err)
	}

	skew := v.now().Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return fmt.Errorf("%w: timestamp outside allowed window", ErrInvalidSignature)
	}

	if !ed25519.Verify(v.publicKey, canonicalRequest(method, path, query, timestampHeader, body), signature) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}

	return nil
}

// GenerateKeyPair returns a base64 encoded Ed25519 key pair for request signing.
func GenerateKeyPair() (privateKeyBase64, publicKeyBase64 string, err error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate signing key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(privateKey), base64.StdEncoding.EncodeToString(publicKey), nil
}
