package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/flowbaker/automations/internal/auth"
)

const localUserID = "user_id"

type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// RequireToken accepts a bearer token carrying the scope and stores its
// subject for UserID.
func RequireToken(verifier TokenVerifier, scope string) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Bearer token required",
			})
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Debug().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Token verification failed")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		if !claims.HasScope(scope) {
			log.Debug().
				Str("path", c.Path()).
				Str("user_id", claims.Subject).
				Str("scope", scope).
				Msg("Token lacks scope")

			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Token lacks the required scope",
			})
		}

		c.Locals(localUserID, claims.Subject)

		return c.Next()
	}
}

func UserID(c fiber.Ctx) string {
	userID, _ := c.Locals(localUserID).(string)
	return userID
}
