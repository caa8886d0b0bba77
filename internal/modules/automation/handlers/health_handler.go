package handlers

import (
	"github.com/coursepulse/coursepulse-be/internal/core/mailer"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	mailerService *mailer.Service
}

func NewHealthHandler(mailerService *mailer.Service) *HealthHandler {
	return &HealthHandler{mailerService: mailerService}
}

// GetHealth checks if the API is alive
func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  "automation-api",
		"provider": h.mailerService.GetProviderName(),
	})
}
