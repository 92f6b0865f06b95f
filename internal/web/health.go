package web

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jgrana2/prompt-manager/internal/session"
)

// HealthStatus is the state of one component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the result of one check.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the body of /api/health.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker performs a single check.
type HealthChecker func(ctx context.Context) HealthCheck

// Health aggregates named checks.
type Health struct {
	mu     sync.RWMutex
	checks map[string]HealthChecker
}

// NewHealth creates an empty check set.
func NewHealth() *Health {
	return &Health{checks: make(map[string]HealthChecker)}
}

// RegisterCheck adds or replaces a check.
func (h *Health) RegisterCheck(name string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = checker
}

// Check runs every check. The overall status is the worst individual one.
func (h *Health) Check(ctx context.Context) HealthResponse {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthChecker, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make([]HealthCheck, 0, len(names)),
	}
	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		resp.Checks = append(resp.Checks, check)

		if check.Status == HealthStatusUnhealthy {
			resp.Status = HealthStatusUnhealthy
		} else if check.Status == HealthStatusDegraded && resp.Status == HealthStatusHealthy {
			resp.Status = HealthStatusDegraded
		}
	}
	return resp
}

func (h *Health) handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := h.Check(ctx)
	status := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// CredentialChecker reports degraded when no API key is configured, since
// runs will fail until one is saved.
func CredentialChecker(ctrl *session.Controller) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		masked, source, err := ctrl.APIKey(ctx)
		switch {
		case err != nil:
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "credential lookup failed: " + err.Error()}
		case masked == "":
			return HealthCheck{Status: HealthStatusDegraded, Message: "no API key configured"}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "API key configured",
			Details: map[string]string{"source": source},
		}
	}
}

// PromptsChecker reports the prompt store size.
func PromptsChecker(ctrl *session.Controller) HealthChecker {
	return func(context.Context) HealthCheck {
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "prompt store loaded",
			Details: map[string]string{"prompts": strconv.Itoa(ctrl.Prompts().Len())},
		}
	}
}
