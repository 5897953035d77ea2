package lib

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/theleywin/posts-api/src/models"
)

// Returns a map with a message key for API responses
func MessageResponse(message string) fiber.Map {
	return fiber.Map{
		"message": message,
	}
}

// Returns a single-key error payload, e.g. {"postnotfound": "No post found"}
func KeyedResponse(key, message string) fiber.Map {
	return fiber.Map{
		key: message,
	}
}

// Generates a signed JWT carrying the identity of the caller
func GenerateJWT(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":     identity.ID,
		"name":   identity.Name,
		"avatar": identity.Avatar,
		"exp":    time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secret))
}

// Verifies and decodes a JWT token, returning its claims
func VerifyJWT(secret, tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
}

// IdentityFromClaims extracts the caller identity; the id claim is mandatory
func IdentityFromClaims(claims jwt.MapClaims) (models.Identity, bool) {
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return models.Identity{}, false
	}

	name, _ := claims["name"].(string)
	avatar, _ := claims["avatar"].(string)

	return models.Identity{ID: id, Name: name, Avatar: avatar}, true
}
