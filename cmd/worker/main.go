package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coursepulse/coursepulse-be/internal/core/action"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/core/jobs"
	"github.com/coursepulse/coursepulse-be/internal/core/mailer"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/services"
	"github.com/coursepulse/coursepulse-be/internal/shared/config"
	"github.com/coursepulse/coursepulse-be/internal/shared/database"
	"github.com/coursepulse/coursepulse-be/internal/shared/utils"
)

func main() {
	utils.InitLogger("automation-worker")

	cfg := config.LoadConfig()
	log.Println("🚀 Starting automation-worker")

	db := database.NewDB(cfg.DatabaseURL)
	defer db.Close()

	conditionRegistry := condition.DefaultRegistry()
	actionRegistry := action.DefaultRegistry()

	instanceRepo := repositories.NewInstanceRepo(db.GORM)
	scheduleRepo := repositories.NewScheduleRepo(db.GORM)
	eventRepo := repositories.NewEventRepo(db.GORM)
	cursorRepo := repositories.NewCursorRepo(db.GORM)

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

	senderResolver := action.NewSenderResolver(db.GORM, action.Sender{
		Name:  cfg.SupportName,
		Email: cfg.SupportEmail,
	})
	deps := action.Deps{DB: db.GORM, Mailer: mailerService, Senders: senderResolver}

	jobService := jobs.NewService(db.GORM)

	resolver := services.NewResolver(conditionRegistry)
	evaluator := condition.NewEvaluator(conditionRegistry, db.GORM)
	triggerService := services.NewTriggerService(db.GORM, instanceRepo, scheduleRepo, resolver, evaluator, conditionRegistry, actionRegistry, jobService)
	deliveryService := services.NewDeliveryService(db.GORM, instanceRepo, scheduleRepo, resolver, evaluator, triggerService, actionRegistry, deps, jobService)
	sweepService := services.NewSweepService(instanceRepo, eventRepo, cursorRepo, triggerService, resolver, deliveryService, jobService, cfg.SweepPageSize)

	// Background job workers
	workerConfig := jobs.DefaultWorkerConfig()
	workerConfig.Concurrency = cfg.WorkerConcurrency
	jobService.RegisterWorker(workerConfig,
		services.NewEvaluatePairHandler(triggerService),
		services.NewSweepInstanceHandler(sweepService),
		services.NewDeliverScheduleHandler(deliveryService),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := jobService.StartWorkers(ctx); err != nil {
		log.Fatalf("❌ Failed to start job workers: %v", err)
	}
	if err := sweepService.Start(cfg.SweepInterval, cfg.DeliveryBatchSize); err != nil {
		log.Fatalf("❌ Failed to start sweep scheduler: %v", err)
	}

	log.Println("✅ automation-worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down automation-worker...")
	sweepService.Stop()
	cancel()
	jobService.StopWorkers()
	log.Println("✅ automation-worker stopped")
}
