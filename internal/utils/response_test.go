package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sacel-api/internal/utils"
)

func TestResponseEnvelopes(t *testing.T) {
	cases := []struct {
		name    string
		handler fiber.Handler
		status  int
		want    map[string]interface{}
	}{
		{
			name: "success defaults message",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccess(c, "", map[string]string{"letter_grade": "B"})
			},
			status: fiber.StatusOK,
			want: map[string]interface{}{
				"success": true,
				"message": "success",
				"data":    map[string]interface{}{"letter_grade": "B"},
			},
		},
		{
			name: "created",
			handler: func(c *fiber.Ctx) error {
				return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", map[string]int{"id": 3})
			},
			status: fiber.StatusCreated,
			want: map[string]interface{}{
				"success": true,
				"message": "rubric created",
				"data":    map[string]interface{}{"id": float64(3)},
			},
		},
		{
			name: "paginated",
			handler: func(c *fiber.Ctx) error {
				return utils.OK(c, []int{1}, "activity logs", map[string]int{"page": 2})
			},
			status: fiber.StatusOK,
			want: map[string]interface{}{
				"success": true,
				"message": "activity logs",
				"data":    []interface{}{float64(1)},
				"meta":    map[string]interface{}{"page": float64(2)},
			},
		},
		{
			name: "error without details",
			handler: func(c *fiber.Ctx) error {
				return utils.SendError(c, fiber.StatusNotFound, "submission not found")
			},
			status: fiber.StatusNotFound,
			want: map[string]interface{}{
				"success": false,
				"message": "submission not found",
			},
		},
		{
			name: "validation details",
			handler: func(c *fiber.Ctx) error {
				return utils.Fail(c, fiber.StatusBadRequest, "", map[string]string{"AutoGradeRequest.RubricID": "gt"})
			},
			status: fiber.StatusBadRequest,
			want: map[string]interface{}{
				"success": false,
				"message": "error",
				"details": map[string]interface{}{"AutoGradeRequest.RubricID": "gt"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", tc.handler)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)

			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			require.Equal(t, tc.want, payload)
		})
	}
}
