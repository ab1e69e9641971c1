package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthCheck struct {
	name   string
	pinger Pinger
}

// AddHealthCheck registers a dependency reported by GET /healthz.
func (h *Handler) AddHealthCheck(name string, p Pinger) {
	if p == nil {
		return
	}
	h.checks = append(h.checks, healthCheck{name: name, pinger: p})
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := check.pinger.Ping(ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			results[check.name] = err.Error()
			continue
		}
		results[check.name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}
