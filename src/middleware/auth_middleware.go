package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/posts-api/src/lib"
	"github.com/theleywin/posts-api/src/models"
)

const userLocalKey = "user"

// ProtectRoute returns a middleware that checks for a valid bearer JWT and attaches the caller identity to the request context
func ProtectRoute(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(lib.MessageResponse("Unauthorized - No token provided"))
		}

		// Expected format: "Bearer <token>"
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(lib.MessageResponse("Unauthorized - Invalid token format"))
		}

		claims, err := lib.VerifyJWT(secret, token)
		if err != nil || claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(lib.MessageResponse("Unauthorized - Invalid token"))
		}

		identity, ok := lib.IdentityFromClaims(claims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(lib.MessageResponse("Unauthorized - Invalid token"))
		}

		c.Locals(userLocalKey, identity)

		return c.Next()
	}
}

// CurrentUser returns the identity stored by ProtectRoute
func CurrentUser(c *fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals(userLocalKey).(models.Identity)
	return identity, ok
}
