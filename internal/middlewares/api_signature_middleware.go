package middlewares

import (
	"github.com/flowbaker/tgbridge/internal/auth"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

type SignatureVerifier interface {
	Verify(method, path, query, signatureHeader, timestampHeader string, body []byte) error
}

// APISignatureMiddleware rejects management requests that are not signed by the flows platform.
func APISignatureMiddleware(verifier SignatureVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		err := verifier.Verify(
			c.Method(),
			c.Path(),
			string(c.Request().URI().QueryString()),
			c.Get(auth.SignatureHeader),
			c.Get(auth.TimestampHeader),
			c.Body(),
		)
		if err != nil {
			log.Warn().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("API signature verification failed")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API signature",
			})
		}

		return c.Next()
	}
}
