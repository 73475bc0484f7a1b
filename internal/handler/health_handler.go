package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/minisource/dbscheduler/internal/apiresponse"
	"github.com/minisource/dbscheduler/internal/scheduler"
	"gorm.io/gorm"
)

// HealthHandler handles health/readiness/liveness endpoints.
type HealthHandler struct {
	db        *gorm.DB
	scheduler *scheduler.Scheduler
}

// NewHealthHandler builds a handler bound to db and sched.
func NewHealthHandler(db *gorm.DB, sched *scheduler.Scheduler) *HealthHandler {
	return &HealthHandler{db: db, scheduler: sched}
}

// Health returns the service health status.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} apiresponse.Response
// @Failure 503 {object} apiresponse.Response
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return apiresponse.ServiceUnavailable(c, "database connection error")
	}
	if err := sqlDB.Ping(); err != nil {
		return apiresponse.ServiceUnavailable(c, "database ping failed")
	}

	return apiresponse.OK(c, fiber.Map{
		"status":               "healthy",
		"scheduler_state":      h.scheduler.State().String(),
		"currently_processing": h.scheduler.CurrentlyProcessingCount(),
		"database":             "connected",
	})
}

// Ready returns the service readiness status.
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} apiresponse.Response
// @Failure 503 {object} apiresponse.Response
// @Router /ready [get]
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.scheduler.State() != scheduler.StateStarted {
		return apiresponse.ServiceUnavailable(c, "scheduler is not running")
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		return apiresponse.ServiceUnavailable(c, "database connection error")
	}
	if err := sqlDB.Ping(); err != nil {
		return apiresponse.ServiceUnavailable(c, "database ping failed")
	}

	return apiresponse.OK(c, fiber.Map{"status": "ready"})
}

// Live returns the liveness status.
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} apiresponse.Response
// @Router /live [get]
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return apiresponse.OK(c, fiber.Map{"status": "alive"})
}
