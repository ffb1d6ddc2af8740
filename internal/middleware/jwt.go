package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sacel-api/internal/utils"
)

// SessionClaims is the payload of an access token. The subject carries the user id;
// user_id is accepted for tokens minted by older identity services.
type SessionClaims struct {
	UserID   uint   `json:"user_id,omitempty"`
	Role     string `json:"role"`
	SchoolID uint   `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}

// ResolvedUserID prefers the numeric subject over the legacy user_id claim.
func (c SessionClaims) ResolvedUserID() uint {
	if parsed, err := strconv.ParseUint(strings.TrimSpace(c.Subject), 10, 64); err == nil && parsed > 0 {
		return uint(parsed)
	}
	return c.UserID
}

var knownRoles = map[string]struct{}{
	"student": {},
	"teacher": {},
	"admin":   {},
}

// JWTProtected validates HS256 bearer tokens and binds user_id, user_role and school_id
// to the request locals. Unknown roles are dropped so role guards reject the caller.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing or malformed")
		}

		var claims SessionClaims
		token, err := parser.ParseWithClaims(tokenString, &claims, keyFunc)
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		userID := claims.ResolvedUserID()
		if userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "token has no subject")
		}
		c.Locals("user_id", userID)

		role := strings.ToLower(strings.TrimSpace(claims.Role))
		if _, known := knownRoles[role]; known {
			c.Locals("user_role", role)
		}
		if claims.SchoolID != 0 {
			c.Locals("school_id", claims.SchoolID)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
