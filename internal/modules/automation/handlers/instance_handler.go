package handlers

import (
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// InstanceHandler handles per-course instance requests
type InstanceHandler struct {
	instanceService *services.InstanceService
}

// NewInstanceHandler creates a new instance handler
func NewInstanceHandler(instanceService *services.InstanceService) *InstanceHandler {
	return &InstanceHandler{instanceService: instanceService}
}

// AttachTemplate attaches a template to a course
func (h *InstanceHandler) AttachTemplate(c *fiber.Ctx) error {
	var req services.AttachInstanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	instance, err := h.instanceService.AttachTemplate(req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Template attached successfully",
		"instance": instance,
	})
}

// ListByCourse lists instances attached to a course
func (h *InstanceHandler) ListByCourse(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid course id",
		})
	}

	instances, err := h.instanceService.ListByCourse(courseID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list instances",
		})
	}

	return c.JSON(fiber.Map{
		"instances": instances,
		"count":     len(instances),
	})
}

// GetInstance returns one instance with its template and overrides
func (h *InstanceHandler) GetInstance(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid instance id",
		})
	}

	instance, err := h.instanceService.GetInstance(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "instance not found",
		})
	}

	return c.JSON(fiber.Map{"instance": instance})
}

// UpdateInstance applies per-course overrides and status changes
func (h *InstanceHandler) UpdateInstance(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid instance id",
		})
	}

	var req services.UpdateInstanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	instance, err := h.instanceService.UpdateInstance(id, req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Instance updated successfully",
		"instance": instance,
	})
}

// DeleteInstance removes an instance with its overrides and schedules
func (h *InstanceHandler) DeleteInstance(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid instance id",
		})
	}

	if err := h.instanceService.DeleteInstance(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Instance deleted successfully",
	})
}
