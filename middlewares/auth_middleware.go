package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"github.com/rishcx/newtrip/configs"
)

// GuestUserID is the fixed principal used when no valid credential is
// presented, so unauthenticated checkout still works.
const GuestUserID = "guest"

// AuthMiddleware resolves the Bearer token to a user id in Locals("userId").
// A missing or invalid token resolves to the guest identity rather than
// failing the request.
func AuthMiddleware(cfg configs.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userId", resolveUserID(c.Get("Authorization"), cfg.JWTSecret))
		return c.Next()
	}
}

func resolveUserID(authHeader, secret string) string {
	bearerToken := strings.Split(authHeader, " ")
	if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
		return GuestUserID
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(bearerToken[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return GuestUserID
	}

	// Supabase puts the user id in the sub claim.
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return GuestUserID
}
