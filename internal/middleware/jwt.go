package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/artdirector-api/internal/dto"
	"github.com/noah-isme/artdirector-api/internal/utils"
)

const identityLocalKey = "identity"

// JWTProtected returns a middleware that validates JWT bearer tokens issued by
// the identity provider and exposes the caller as a dto.Identity.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		identity := identityFromClaims(claims)
		if identity.Subject == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}

		c.Locals("user_id", identity.Subject)
		c.Locals(identityLocalKey, identity)
		return c.Next()
	}
}

// IdentityFromContext returns the caller bound by JWTProtected.
func IdentityFromContext(c *fiber.Ctx) (dto.Identity, bool) {
	identity, ok := c.Locals(identityLocalKey).(dto.Identity)
	if !ok || identity.Subject == "" {
		return dto.Identity{}, false
	}
	return identity, true
}

// SetIdentity binds an identity to the request. It is used by alternative
// authenticators and tests.
func SetIdentity(c *fiber.Ctx, identity dto.Identity) {
	c.Locals("user_id", identity.Subject)
	c.Locals(identityLocalKey, identity)
}

func identityFromClaims(claims jwt.MapClaims) dto.Identity {
	identity := dto.Identity{
		Email: stringClaim(claims, "email"),
		Name:  stringClaim(claims, "name"),
	}
	for _, key := range []string{"sub", "user_id", "id"} {
		if subject := normalizeSubject(claims[key]); subject != "" {
			identity.Subject = subject
			break
		}
	}
	return identity
}

func normalizeSubject(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
