package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/minisource/dbscheduler/internal/handler"
)

// traceIDHeader is the admin API's request-scoped trace id, for correlating
// a request with the log lines it produced.
const traceIDHeader = "X-Execution-Trace-ID"

func traceID(c *fiber.Ctx) error {
	id := c.Get(traceIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(traceIDHeader, id)
	c.Locals(traceIDHeader, id)
	return c.Next()
}

// Handlers contains all HTTP handlers wired into the admin API.
type Handlers struct {
	Scheduling *handler.SchedulingHandler
	Health     *handler.HealthHandler
}

// SetupRouter configures the Fiber router.
func SetupRouter(app *fiber.App, h *Handlers) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(traceID)
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency} - ${locals:X-Execution-Trace-ID}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", h.Health.Health)
	app.Get("/ready", h.Health.Ready)
	app.Get("/live", h.Health.Live)

	v1 := app.Group("/api/v1")

	executions := v1.Group("/executions")
	executions.Get("/", h.Scheduling.ListDue)
	executions.Post("/", h.Scheduling.Schedule)
	executions.Put("/:taskName/:instanceId", h.Scheduling.Reschedule)
	executions.Delete("/:taskName/:instanceId", h.Scheduling.Cancel)
}
