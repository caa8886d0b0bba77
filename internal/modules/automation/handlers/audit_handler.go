package handlers

import (
	"github.com/coursepulse/coursepulse-be/internal/core/audit"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AuditHandler exposes the automation audit trail
type AuditHandler struct {
	auditService *audit.Service
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *audit.Service) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ListEntries returns a filtered page of audit entries
func (h *AuditHandler) ListEntries(c *fiber.Ctx) error {
	filter := audit.Filter{
		Action:   c.Query("action"),
		Entity:   c.Query("entity"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 50),
	}
	if actorID, err := uuid.Parse(c.Query("actor_id")); err == nil {
		filter.ActorID = &actorID
	}
	if entityID, err := uuid.Parse(c.Query("entity_id")); err == nil {
		filter.EntityID = &entityID
	}

	page, err := h.auditService.Query(filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to query audit trail",
		})
	}

	return c.JSON(page)
}

// EntityHistory returns all recorded changes for one entity
func (h *AuditHandler) EntityHistory(c *fiber.Ctx) error {
	entity := c.Params("entity")
	if entity != audit.EntityTemplate && entity != audit.EntityInstance && entity != audit.EntitySchedule {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown entity",
		})
	}

	entityID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid entity id",
		})
	}

	entries, err := h.auditService.EntityHistory(entity, entityID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load entity history",
		})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}
