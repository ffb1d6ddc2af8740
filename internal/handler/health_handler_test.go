package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sacel-api/internal/config"
	"github.com/noah-isme/sacel-api/internal/handler"
)

func TestHealthCheckReportsDependencies(t *testing.T) {
	cfg := config.Config{AppName: "SACEL", AppEnv: "test"}

	cases := []struct {
		name   string
		probes map[string]handler.HealthProbe
		status int
		state  string
		deps   map[string]interface{}
	}{
		{
			name:   "no probes",
			status: fiber.StatusOK,
			state:  "ok",
		},
		{
			name: "all up",
			probes: map[string]handler.HealthProbe{
				"database": func(context.Context) error { return nil },
			},
			status: fiber.StatusOK,
			state:  "ok",
			deps:   map[string]interface{}{"database": "up"},
		},
		{
			name: "redis down",
			probes: map[string]handler.HealthProbe{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("connection refused") },
			},
			status: fiber.StatusServiceUnavailable,
			state:  "degraded",
			deps:   map[string]interface{}{"database": "up", "redis": "down: connection refused"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", handler.HealthCheck(cfg, tc.probes))

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)

			var payload struct {
				Data struct {
					Status       string                 `json:"status"`
					Oracle       string                 `json:"oracle"`
					Dependencies map[string]interface{} `json:"dependencies"`
				} `json:"data"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			require.Equal(t, tc.state, payload.Data.Status)
			require.Equal(t, "keyword", payload.Data.Oracle)
			require.Equal(t, tc.deps, payload.Data.Dependencies)
		})
	}
}
