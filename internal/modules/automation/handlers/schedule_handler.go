package handlers

import (
	"fmt"

	"github.com/coursepulse/coursepulse-be/internal/core/export"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ScheduleHandler handles evaluation previews, force triggers and reports
type ScheduleHandler struct {
	triggerService *services.TriggerService
	reportService  *services.ReportService
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(triggerService *services.TriggerService, reportService *services.ReportService) *ScheduleHandler {
	return &ScheduleHandler{
		triggerService: triggerService,
		reportService:  reportService,
	}
}

// PreviewPair evaluates one (instance, user) pair without side effects
func (h *ScheduleHandler) PreviewPair(c *fiber.Ctx) error {
	instanceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid instance id",
		})
	}
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}

	state, err := h.triggerService.PreviewPair(c.Context(), instanceID, userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"state": state})
}

// ForceTrigger queues a pair immediately regardless of eligibility
func (h *ScheduleHandler) ForceTrigger(c *fiber.Ctx) error {
	instanceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid instance id",
		})
	}
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}

	schedule, err := h.triggerService.ForceTrigger(instanceID, userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Schedule queued for immediate delivery",
		"schedule": schedule,
	})
}

// InstanceReport returns the delivery report of one instance
func (h *ScheduleHandler) InstanceReport(c *fiber.Ctx) error {
	instanceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid instance id",
		})
	}

	report, err := h.reportService.InstanceReport(instanceID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"report": report})
}

// ExportReport downloads the instance report as an Excel or PDF file
func (h *ScheduleHandler) ExportReport(c *fiber.Ctx) error {
	instanceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid instance id",
		})
	}

	format, ok := export.ParseFormat(c.Query("format", "excel"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "format must be 'excel' or 'pdf'",
		})
	}

	content, contentType, filename, err := h.reportService.ExportInstanceReport(instanceID, format)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(content)
}
