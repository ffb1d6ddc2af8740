package handler

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sacel-api/internal/config"
	"github.com/noah-isme/sacel-api/internal/utils"
)

const probeTimeout = 2 * time.Second

// HealthProbe checks one backing dependency.
type HealthProbe func(ctx context.Context) error

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Oracle       string            `json:"oracle"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck reports the grading oracle in use and the state of each probed dependency.
// Any failing probe turns the response into a 503.
func HealthCheck(cfg config.Config, probes map[string]HealthProbe) fiber.Handler {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		oracle := "keyword"
		if cfg.OracleEnabled() {
			oracle = cfg.AIProvider
		}

		resp := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Oracle:      oracle,
		}
		if len(names) > 0 {
			resp.Dependencies = make(map[string]string, len(names))
		}
		for _, name := range names {
			ctx, cancel := context.WithTimeout(c.UserContext(), probeTimeout)
			err := probes[name](ctx)
			cancel()
			if err != nil {
				resp.Status = "degraded"
				resp.Dependencies[name] = "down: " + err.Error()
				continue
			}
			resp.Dependencies[name] = "up"
		}

		if resp.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", resp)
		}
		return utils.SendSuccess(c, "service healthy", resp)
	}
}
