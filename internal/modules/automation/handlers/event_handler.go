package handlers

import (
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/events"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var knownEvents = map[string]bool{
	events.EnrolmentCreated:  true,
	events.EnrolmentDeleted:  true,
	events.CompletionUpdated: true,
	events.CohortMemberAdded: true,
	events.SessionSignup:     true,
}

// EventHandler ingests platform events over HTTP and publishes them on the bus
type EventHandler struct {
	bus *events.Bus
}

// NewEventHandler creates a new event handler
func NewEventHandler(bus *events.Bus) *EventHandler {
	return &EventHandler{bus: bus}
}

type ingestEventRequest struct {
	Name       string                 `json:"name"`
	CourseID   uuid.UUID              `json:"course_id"`
	UserID     uuid.UUID              `json:"user_id"`
	SubjectID  uuid.UUID              `json:"subject_id"`
	OccurredAt *time.Time             `json:"occurred_at"`
	Data       map[string]interface{} `json:"data"`
}

// IngestEvent accepts one platform event and runs the trigger paths
func (h *EventHandler) IngestEvent(c *fiber.Ctx) error {
	var req ingestEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if !knownEvents[req.Name] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown event name",
		})
	}
	if req.CourseID == uuid.Nil || req.UserID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "course_id and user_id are required",
		})
	}

	evt := events.Event{
		Name:      req.Name,
		CourseID:  req.CourseID,
		UserID:    req.UserID,
		SubjectID: req.SubjectID,
		Data:      req.Data,
	}
	if req.OccurredAt != nil {
		evt.OccurredAt = *req.OccurredAt
	}

	if err := h.bus.Publish(c.Context(), evt); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Event accepted",
	})
}
