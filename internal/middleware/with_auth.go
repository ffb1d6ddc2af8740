package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sacel-api/internal/utils"
)

// Identity is the caller bound to the request by JWTProtected.
type Identity struct {
	UserID   uint
	Role     string
	SchoolID uint
}

// HasRole reports whether the caller holds one of roles.
func (i Identity) HasRole(roles ...string) bool {
	for _, role := range roles {
		if normalizeRoleValue(role) == i.Role && i.Role != "" {
			return true
		}
	}
	return false
}

// IdentityFromCtx reads the caller from request locals. ok is false for anonymous requests.
func IdentityFromCtx(c *fiber.Ctx) (Identity, bool) {
	id := Identity{
		UserID:   localID(c.Locals("user_id")),
		Role:     normalizeRoleValue(c.Locals("user_role")),
		SchoolID: localID(c.Locals("school_id")),
	}
	return id, id.UserID != 0
}

// RequireUser rejects requests whose token carried no user identifier.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromCtx(c); !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		return c.Next()
	}
}

func localID(value interface{}) uint {
	switch v := value.(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
