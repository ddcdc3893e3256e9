package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPair(t *testing.T) (*RequestSigner, *RequestVerifier) {
	t.Helper()

	privateKey, publicKey, err := GenerateKeyPair()
	require.NoError(t, err)

	signer, err := NewRequestSigner(privateKey)
	require.NoError(t, err)

	verifier, err := NewRequestVerifier(publicKey)
	require.NoError(t, err)

	return signer, verifier
}

func TestRequestVerifier_AcceptsSignedRequest(t *testing.T) {
	signer, verifier := newTestPair(t)

	headers := signer.Sign("POST", "/api/u1/f1/listen", "handler_fn=h", []byte("token=ABC"))

	err := verifier.Verify("POST", "/api/u1/f1/listen", "handler_fn=h", headers[SignatureHeader], headers[TimestampHeader], []byte("token=ABC"))
	assert.NoError(t, err)
}

func TestRequestVerifier_Rejects(t *testing.T) {
	signer, verifier := newTestPair(t)
	headers := signer.Sign("GET", "/api/connected/u1", "", nil)

	_, otherVerifier := newTestPair(t)

	stale := *signer
	stale.now = func() time.Time { return time.Now().Add(-2 * MaxClockSkew) }
	staleHeaders := stale.Sign("GET", "/api/connected/u1", "", nil)

	tests := []struct {
		name      string
		verifier  *RequestVerifier
		method    string
		path      string
		query     string
		signature string
		timestamp string
		body      []byte
	}{
		{name: "other key", verifier: otherVerifier, method: "GET", path: "/api/connected/u1", signature: headers[SignatureHeader], timestamp: headers[TimestampHeader]},
		{name: "other path", verifier: verifier, method: "GET", path: "/api/connected/u2", signature: headers[SignatureHeader], timestamp: headers[TimestampHeader]},
		{name: "other query", verifier: verifier, method: "GET", path: "/api/connected/u1", query: "token=XYZ", signature: headers[SignatureHeader], timestamp: headers[TimestampHeader]},
		{name: "other body", verifier: verifier, method: "GET", path: "/api/connected/u1", signature: headers[SignatureHeader], timestamp: headers[TimestampHeader], body: []byte("x")},
		{name: "missing signature", verifier: verifier, method: "GET", path: "/api/connected/u1", timestamp: headers[TimestampHeader]},
		{name: "wrong scheme", verifier: verifier, method: "GET", path: "/api/connected/u1", signature: "rsa=abc", timestamp: headers[TimestampHeader]},
		{name: "bad timestamp", verifier: verifier, method: "GET", path: "/api/connected/u1", signature: headers[SignatureHeader], timestamp: "yesterday"},
		{name: "stale timestamp", verifier: verifier, method: "GET", path: "/api/connected/u1", signature: staleHeaders[SignatureHeader], timestamp: staleHeaders[TimestampHeader]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.verifier.Verify(tt.method, tt.path, tt.query, tt.signature, tt.timestamp, tt.body)
			assert.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)
		})
	}
}

func TestNewRequestVerifier_InvalidKey(t *testing.T) {
	_, err := NewRequestVerifier("not base64!")
	assert.Error(t, err)

	_, err = NewRequestVerifier("AAAA")
	assert.Error(t, err)

	_, err = NewRequestSigner("AAAA")
	assert.Error(t, err)
}
