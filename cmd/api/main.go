package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/coursepulse/coursepulse-be/internal/core/action"
	"github.com/coursepulse/coursepulse-be/internal/core/audit"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/core/events"
	"github.com/coursepulse/coursepulse-be/internal/core/export"
	"github.com/coursepulse/coursepulse-be/internal/core/jobs"
	"github.com/coursepulse/coursepulse-be/internal/core/mailer"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/handlers"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/services"
	"github.com/coursepulse/coursepulse-be/internal/shared/config"
	"github.com/coursepulse/coursepulse-be/internal/shared/database"
	"github.com/coursepulse/coursepulse-be/internal/shared/utils"
)

func main() {
	utils.InitLogger("automation-api")

	cfg := config.LoadConfig()
	log.Printf("🚀 Starting automation-api on port %s", cfg.Port)

	db := database.NewDB(cfg.DatabaseURL)
	defer db.Close()

	// Plugin registries
	conditionRegistry := condition.DefaultRegistry()
	actionRegistry := action.DefaultRegistry()

	// Repositories
	templateRepo := repositories.NewTemplateRepo(db.GORM)
	instanceRepo := repositories.NewInstanceRepo(db.GORM)
	scheduleRepo := repositories.NewScheduleRepo(db.GORM)
	eventRepo := repositories.NewEventRepo(db.GORM)

	// Mail transport
	mailProvider := mailer.SelectProvider(cfg.MailProvider, cfg.MailAPIKey, mailer.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		FromName:  cfg.SMTPFromName,
		FromEmail: cfg.SMTPFromEmail,
	})
	mailerService := mailer.NewService(mailProvider)
	log.Printf("📧 Using mail provider: %s", mailerService.GetProviderName())

	// Services
	auditService := audit.NewService(db.GORM)
	resolver := services.NewResolver(conditionRegistry)
	evaluator := condition.NewEvaluator(conditionRegistry, db.GORM)
	templateService := services.NewTemplateService(templateRepo, instanceRepo, conditionRegistry, actionRegistry, auditService)
	instanceService := services.NewInstanceService(instanceRepo, templateRepo, scheduleRepo, resolver, conditionRegistry, auditService)
	jobService := jobs.NewService(db.GORM)
	triggerService := services.NewTriggerService(db.GORM, instanceRepo, scheduleRepo, resolver, evaluator, conditionRegistry, actionRegistry, jobService)
	exportService := export.NewService()
	reportService := services.NewReportService(db.GORM, instanceRepo, scheduleRepo, exportService)

	// Event bus with durable store and trigger subscriptions
	bus := events.NewBus(eventRepo)
	triggerService.RegisterHandlers(bus)

	// Handlers
	templateHandler := handlers.NewTemplateHandler(templateService)
	instanceHandler := handlers.NewInstanceHandler(instanceService)
	scheduleHandler := handlers.NewScheduleHandler(triggerService, reportService)
	eventHandler := handlers.NewEventHandler(bus)
	auditHandler := handlers.NewAuditHandler(auditService)
	healthHandler := handlers.NewHealthHandler(mailerService)

	app := fiber.New(fiber.Config{
		AppName: "CoursePulse Automation API",
	})
	app.Use(cors.New())

	// Health check
	app.Get("/health", healthHandler.GetHealth)

	// Template routes
	app.Post("/templates", templateHandler.CreateTemplate)
	app.Get("/templates", templateHandler.ListTemplates)
	app.Get("/templates/:id", templateHandler.GetTemplate)
	app.Put("/templates/:id", templateHandler.UpdateTemplate)
	app.Delete("/templates/:id", templateHandler.DeleteTemplate)

	// Instance routes
	app.Post("/instances", instanceHandler.AttachTemplate)
	app.Get("/courses/:courseId/instances", instanceHandler.ListByCourse)
	app.Get("/instances/:id", instanceHandler.GetInstance)
	app.Put("/instances/:id", instanceHandler.UpdateInstance)
	app.Delete("/instances/:id", instanceHandler.DeleteInstance)

	// Evaluation and schedule routes
	app.Get("/instances/:id/users/:userId/preview", scheduleHandler.PreviewPair)
	app.Post("/instances/:id/users/:userId/trigger", scheduleHandler.ForceTrigger)
	app.Get("/instances/:id/report", scheduleHandler.InstanceReport)
	app.Get("/instances/:id/report/export", scheduleHandler.ExportReport)

	// Event ingestion
	app.Post("/events", eventHandler.IngestEvent)

	// Audit trail
	app.Get("/audit", auditHandler.ListEntries)
	app.Get("/audit/:entity/:id", auditHandler.EntityHistory)

	log.Printf("✅ automation-api running at :%s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
