package handler_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sacel-api/internal/models"
)

const rubricSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["success", "message", "data"],
  "properties": {
    "success": {"const": true},
    "message": {"type": "string"},
    "data": {
      "type": "object",
      "required": ["id", "slug", "title", "total_points", "criteria"],
      "properties": {
        "id": {"type": "integer", "minimum": 1},
        "slug": {"type": "string"},
        "title": {"type": "string", "minLength": 1},
        "total_points": {"type": "integer", "minimum": 1},
        "criteria": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["name", "points", "bands"],
            "properties": {
              "name": {"type": "string"},
              "points": {"type": "integer", "minimum": 1},
              "bands": {
                "type": "array",
                "minItems": 4,
                "maxItems": 4,
                "items": {
                  "type": "object",
                  "required": ["level", "min", "max"],
                  "properties": {
                    "level": {"enum": ["excellent", "good", "satisfactory", "needs_improvement"]},
                    "min": {"type": "integer", "minimum": 0},
                    "max": {"type": "integer", "minimum": 0}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

func compileSchema(t *testing.T, name, source string) *jsonschema.Schema {
	t.Helper()
	compiler := jsonschema.NewCompiler()
	require.NoError(t, compiler.AddResource(name, strings.NewReader(source)))
	schema, err := compiler.Compile(name)
	require.NoError(t, err)
	return schema
}

func TestRubricHandlerContract(t *testing.T) {
	ta := setupApp(t)
	student := ta.seedUser(t, 1, models.RoleStudent, "Ana")
	schema := compileSchema(t, "rubric.schema.json", rubricSchema)

	for _, slug := range []string{"essay", "mathematics"} {
		resp, payload := ta.do(t, http.MethodGet, "/api/v1/rubrics/"+slug, asStudent(student), nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, slug)
		require.NoError(t, schema.Validate(map[string]interface{}(payload)), slug)
	}
}

func TestRubricHandlerListAndGetByID(t *testing.T) {
	ta := setupApp(t)
	teacher := ta.seedUser(t, 1, models.RoleTeacher, "Ms Rivera")

	resp, payload := ta.do(t, http.MethodGet, "/api/v1/rubrics", asTeacher(teacher), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	items, ok := payload["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 2)

	first := items[0].(map[string]interface{})
	resp, payload = ta.do(t, http.MethodGet, "/api/v1/rubrics/"+formatID(first["id"]), asTeacher(teacher), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, first["slug"], dataOf(t, payload)["slug"])

	resp, _ = ta.do(t, http.MethodGet, "/api/v1/rubrics/unknown", asTeacher(teacher), nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRubricHandlerCreate(t *testing.T) {
	ta := setupApp(t)
	teacher := ta.seedUser(t, 1, models.RoleTeacher, "Ms Rivera")
	student := ta.seedUser(t, 1, models.RoleStudent, "Ana")

	band := func(level string, min, max int) map[string]interface{} {
		return map[string]interface{}{"level": level, "description": level + " work", "min": min, "max": max}
	}
	payload := map[string]interface{}{
		"slug":  "lab-report",
		"title": "Lab Report",
		"criteria": []interface{}{
			map[string]interface{}{
				"name":   "Method",
				"points": 10,
				"bands": []interface{}{
					band("excellent", 9, 10),
					band("good", 7, 8),
					band("satisfactory", 5, 6),
					band("needs_improvement", 0, 4),
				},
			},
		},
	}

	resp, _ := ta.do(t, http.MethodPost, "/api/v1/rubrics", asStudent(student), payload)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body := ta.do(t, http.MethodPost, "/api/v1/rubrics", asTeacher(teacher), payload)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	created := dataOf(t, body)
	require.Equal(t, "lab-report", created["slug"])
	require.Equal(t, float64(10), created["total_points"])

	resp, body = ta.do(t, http.MethodPost, "/api/v1/rubrics", asTeacher(teacher), payload)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode, body)

	resp, body = ta.do(t, http.MethodPost, "/api/v1/rubrics", asTeacher(teacher), map[string]interface{}{"title": "Empty"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation failed", body["message"])
	require.Contains(t, body["details"], "RubricCreateRequest.Criteria")
}
