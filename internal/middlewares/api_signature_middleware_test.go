package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyCall struct {
	method, path, query, signature, timestamp, body string
}

type stubVerifier struct {
	err   error
	calls []verifyCall
}

func (s *stubVerifier) Verify(method, path, query, signatureHeader, timestampHeader string, body []byte) error {
	s.calls = append(s.calls, verifyCall{method, path, query, signatureHeader, timestampHeader, string(body)})
	return s.err
}

func newApp(verifier SignatureVerifier) *fiber.App {
	app := fiber.New()
	app.Post("/api/:flows_user/:flow_id/listen", APISignatureMiddleware(verifier), func(c fiber.Ctx) error {
		return c.SendString("reached")
	})

	return app
}

func TestAPISignatureMiddleware_PassesRequestParts(t *testing.T) {
	verifier := &stubVerifier{}

	req := httptest.NewRequest(http.MethodPost, "/api/u1/f1/listen?token=ABC&handler_fn=h", strings.NewReader("x=1"))
	req.Header.Set("X-API-Signature", "ed25519=c2ln")
	req.Header.Set("X-API-Timestamp", "1700000000")

	resp, err := newApp(verifier).Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, verifier.calls, 1)
	assert.Equal(t, verifyCall{
		method:    http.MethodPost,
		path:      "/api/u1/f1/listen",
		query:     "token=ABC&handler_fn=h",
		signature: "ed25519=c2ln",
		timestamp: "1700000000",
		body:      "x=1",
	}, verifier.calls[0])
}

func TestAPISignatureMiddleware_Rejects(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("signature mismatch")}

	resp, err := newApp(verifier).Test(httptest.NewRequest(http.MethodPost, "/api/u1/f1/listen", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
