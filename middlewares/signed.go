package middlewares

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"seamless/helpers"
	"seamless/services"
)

// SignedHook authenticates every hook before any parsing happens: the
// signature is verified over the raw body bytes exactly as transmitted, then
// the replay guard checks freshness. Nothing downstream runs once a stage
// fails.
func SignedHook(creds services.CredentialStore, guard *services.ReplayGuard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := bearerToken(c.Get(fiber.HeaderAuthorization))
		timestamp := c.Get("X-Timestamp")
		signature := c.Get("X-Signature")

		if apiKey == "" || timestamp == "" || signature == "" {
			return helpers.HookError(c,
				fmt.Errorf("%w: missing auth headers", services.ErrInvalidSignature))
		}

		secret, err := creds.SecretForKey(c.UserContext(), apiKey)
		if err != nil {
			return helpers.HookError(c, err)
		}

		ok, err := helpers.Verify(c.Body(), timestamp, signature, secret)
		if err != nil || !ok {
			return helpers.HookError(c, services.ErrInvalidSignature)
		}

		if err := guard.Accept(c.UserContext(), apiKey, timestamp, signature); err != nil {
			return helpers.HookError(c, err)
		}

		c.Locals("api_key", apiKey)
		return c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
