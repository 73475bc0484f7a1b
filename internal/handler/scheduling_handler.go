package handler

import (
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/minisource/dbscheduler/internal/apiresponse"
	"github.com/minisource/dbscheduler/internal/client"
)

// SchedulingHandler exposes the client package's Schedule/Reschedule/
// Cancel/GetScheduledExecutions contract over HTTP (spec.md §6).
type SchedulingHandler struct {
	client *client.Client
}

// NewSchedulingHandler builds a handler bound to c.
func NewSchedulingHandler(c *client.Client) *SchedulingHandler {
	return &SchedulingHandler{client: c}
}

type scheduleRequest struct {
	TaskName      string    `json:"task_name" validate:"required"`
	InstanceID    string    `json:"instance_id" validate:"required"`
	ExecutionTime time.Time `json:"execution_time" validate:"required"`
	Data          string    `json:"data,omitempty"` // base64-encoded opaque payload
}

// Schedule creates a new execution.
// @Summary Schedule an execution
// @Tags executions
// @Accept json
// @Produce json
// @Param request body scheduleRequest true "execution to schedule"
// @Success 201 {object} apiresponse.Response
// @Failure 400 {object} apiresponse.Response
// @Failure 409 {object} apiresponse.Response
// @Router /api/v1/executions [post]
func (h *SchedulingHandler) Schedule(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return apiresponse.BadRequest(c, "invalid request body")
	}
	if req.TaskName == "" || req.InstanceID == "" {
		return apiresponse.BadRequest(c, "task_name and instance_id are required")
	}

	var data []byte
	if req.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return apiresponse.BadRequest(c, "data must be base64-encoded")
		}
		data = decoded
	}

	created, err := h.client.Schedule(c.Context(), req.TaskName, req.InstanceID, req.ExecutionTime, data)
	if err != nil {
		return apiresponse.InternalError(c, err.Error())
	}
	if !created {
		return apiresponse.Conflict(c, "an execution with this task_name/instance_id already exists")
	}
	return apiresponse.Created(c, fiber.Map{
		"task_name":      req.TaskName,
		"instance_id":    req.InstanceID,
		"execution_time": req.ExecutionTime,
	})
}

type rescheduleRequest struct {
	ExecutionTime time.Time `json:"execution_time" validate:"required"`
}

// Reschedule moves an existing execution to a new time.
// @Summary Reschedule an execution
// @Tags executions
// @Accept json
// @Produce json
// @Param taskName path string true "task name"
// @Param instanceId path string true "instance id"
// @Param request body rescheduleRequest true "new execution time"
// @Success 200 {object} apiresponse.Response
// @Router /api/v1/executions/{taskName}/{instanceId} [put]
func (h *SchedulingHandler) Reschedule(c *fiber.Ctx) error {
	taskName := c.Params("taskName")
	instanceID := c.Params("instanceId")

	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return apiresponse.BadRequest(c, "invalid request body")
	}

	if err := h.client.Reschedule(c.Context(), taskName, instanceID, req.ExecutionTime); err != nil {
		return apiresponse.InternalError(c, err.Error())
	}
	return apiresponse.OK(c, fiber.Map{"task_name": taskName, "instance_id": instanceID})
}

// Cancel deletes a scheduled execution.
// @Summary Cancel an execution
// @Tags executions
// @Produce json
// @Param taskName path string true "task name"
// @Param instanceId path string true "instance id"
// @Success 204
// @Router /api/v1/executions/{taskName}/{instanceId} [delete]
func (h *SchedulingHandler) Cancel(c *fiber.Ctx) error {
	taskName := c.Params("taskName")
	instanceID := c.Params("instanceId")

	if err := h.client.Cancel(c.Context(), taskName, instanceID); err != nil {
		return apiresponse.InternalError(c, err.Error())
	}
	return apiresponse.NoContent(c)
}

// ListDue returns executions due at or before now.
// @Summary List due executions
// @Tags executions
// @Produce json
// @Param limit query int false "max rows"
// @Success 200 {object} apiresponse.Response
// @Router /api/v1/executions [get]
func (h *SchedulingHandler) ListDue(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)

	executions, err := h.client.GetScheduledExecutions(c.Context(), time.Now(), limit)
	if err != nil {
		return apiresponse.InternalError(c, err.Error())
	}
	return apiresponse.OK(c, executions)
}
