package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role   interface{}
		status int
	}{
		{"admin", fiber.StatusOK},
		{"Teacher", fiber.StatusOK},
		{" teacher ", fiber.StatusOK},
		{"student", fiber.StatusForbidden},
		{"", fiber.StatusForbidden},
		{nil, fiber.StatusForbidden},
		{42, fiber.StatusForbidden},
	}

	for _, tc := range cases {
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			if tc.role != nil {
				c.Locals("user_role", tc.role)
			}
			return c.Next()
		})
		app.Post("/rubrics", RequireRole("admin", "teacher"), func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusOK)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/rubrics", nil))
		require.NoError(t, err)
		require.Equal(t, tc.status, resp.StatusCode, "role %v", tc.role)
	}
}
