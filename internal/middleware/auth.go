package middleware

import (
	"strings"

	"github.com/PaulBabatuyi/socialchat/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// TokenVerifier is satisfied by *auth.JWTManager.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// ClaimsLocal is the fiber Locals key holding the caller's *auth.Claims.
const ClaimsLocal = "claims"

// AuthRequired verifies a bearer token from the Authorization header, or the "token"
// query parameter for browser websocket clients, and stores the claims on the request.
func AuthRequired(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization token",
			})
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals(ClaimsLocal, claims)
		c.SetUserContext(auth.NewContext(c.UserContext(), claims))
		return c.Next()
	}
}

// Claims returns the claims stored by AuthRequired.
func Claims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(ClaimsLocal).(*auth.Claims)
	return claims, ok && claims != nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
