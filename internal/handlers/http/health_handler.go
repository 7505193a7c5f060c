package http

import (
	"net/http"
	"sort"
	"strings"

	"weylus/internal/infrastructure/monitoring"
	apperrors "weylus/pkg/errors"
	"weylus/pkg/result"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker *monitoring.HealthChecker
}

type Readiness struct {
	Ready bool `json:"ready"`
}

func NewHealthHandler(checker *monitoring.HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) SetupRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}

// Health reports degraded as success; only a failing critical check is an
// error.
func (h *HealthHandler) Health(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	if status.Status != "unhealthy" {
		c.JSON(http.StatusOK, result.Success(status))
		return
	}
	appErr := apperrors.NewServiceUnavailableError("unhealthy: " + failedChecks(status))
	c.JSON(appErr.HTTPStatus, result.Error[monitoring.HealthStatus](appErr, appErr.Message))
}

func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.checker.IsReady(c.Request.Context()) {
		appErr := apperrors.NewServiceUnavailableError("not ready")
		c.JSON(appErr.HTTPStatus, result.Error[Readiness](appErr, appErr.Message))
		return
	}
	c.JSON(http.StatusOK, result.Success(Readiness{Ready: true}))
}

// failedChecks lists "name: reason" for every failing check, sorted by name.
func failedChecks(status monitoring.HealthStatus) string {
	var failed []string
	for name, state := range status.Checks {
		if state != "healthy" {
			failed = append(failed, name+": "+state)
		}
	}
	sort.Strings(failed)
	return strings.Join(failed, "; ")
}
