package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/jobs"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// SweepService walks every active instance on a timer and re-evaluates its
// enrolled users. The sweep catches pairs that events missed: users who
// became eligible through time passing rather than through an action
type SweepService struct {
	instanceRepo repositories.InstanceRepo
	eventRepo    repositories.EventRepo
	cursorRepo   repositories.CursorRepo
	trigger      *TriggerService
	resolver     *Resolver
	delivery     *DeliveryService
	jobs         *jobs.Service
	pageSize     int
	cron         *cron.Cron
}

// NewSweepService creates a new sweep service. With a job queue attached,
// each sweep run handles one page and queues a continuation for the rest,
// bounding the work done per job. jobQueue may be nil, in which case a sweep
// walks all pages in one call
func NewSweepService(
	instanceRepo repositories.InstanceRepo,
	eventRepo repositories.EventRepo,
	cursorRepo repositories.CursorRepo,
	trigger *TriggerService,
	resolver *Resolver,
	delivery *DeliveryService,
	jobQueue *jobs.Service,
	pageSize int,
) *SweepService {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &SweepService{
		instanceRepo: instanceRepo,
		eventRepo:    eventRepo,
		cursorRepo:   cursorRepo,
		trigger:      trigger,
		resolver:     resolver,
		delivery:     delivery,
		jobs:         jobQueue,
		pageSize:     pageSize,
		cron:         cron.New(),
	}
}

// Start registers the periodic sweep and delivery jobs and starts the cron
func (s *SweepService) Start(interval time.Duration, deliveryBatch int) error {
	log.Println("⏰ Starting automation sweep scheduler...")

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.SweepAll(context.Background()); err != nil {
			log.Printf("⚠️ Sweep run failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	if _, err := s.cron.AddFunc("@every 1m", func() {
		dispatched, err := s.delivery.DispatchDue(context.Background(), deliveryBatch)
		if err != nil {
			log.Printf("⚠️ Delivery run failed: %v", err)
			return
		}
		if dispatched > 0 {
			log.Printf("📬 Delivery run dispatched %d notifications", dispatched)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule delivery: %w", err)
	}

	s.cron.Start()
	log.Println("✅ Automation sweep scheduler started")
	return nil
}

// Stop stops the cron scheduler
func (s *SweepService) Stop() {
	log.Println("⏰ Stopping automation sweep scheduler...")
	s.cron.Stop()
	log.Println("✅ Automation sweep scheduler stopped")
}

// SweepAll sweeps every enabled instance
func (s *SweepService) SweepAll(ctx context.Context) error {
	ids, err := s.instanceRepo.FindActiveIDs()
	if err != nil {
		return fmt.Errorf("failed to list active instances: %w", err)
	}
	for _, id := range ids {
		if s.jobs != nil {
			if _, err := s.jobs.EnqueueSweep(ctx, id); err != nil {
				log.Printf("⚠️ Failed to queue sweep for instance %s: %v", id, err)
			}
			continue
		}
		if err := s.SweepInstance(ctx, id); err != nil {
			log.Printf("⚠️ Sweep failed for instance %s: %v", id, err)
		}
	}
	return nil
}

// SweepInstance re-evaluates every active enrolment of one instance, resuming
// from the persisted cursor and advancing it page by page so an interrupted
// sweep picks up where it stopped
func (s *SweepService) SweepInstance(ctx context.Context, instanceID uuid.UUID) error {
	instance, err := s.instanceRepo.FindByIDFull(instanceID)
	if err != nil {
		return fmt.Errorf("instance not found: %w", err)
	}
	if !instance.Active() || instance.Template == nil || !instance.Template.Enabled {
		return nil
	}

	cfg, err := s.resolver.Resolve(instance)
	if err != nil {
		return err
	}

	cursor, err := s.cursorRepo.Get(instanceID)
	if err != nil {
		return fmt.Errorf("failed to load sweep cursor: %w", err)
	}

	offset := cursor.Offset
	evaluated := 0
	for {
		page, err := s.eventRepo.EnrolmentsPage(instance.CourseID, offset, s.pageSize)
		if err != nil {
			return fmt.Errorf("failed to page enrolments (course=%s offset=%d): %w", instance.CourseID, offset, err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			if err := s.trigger.advancePair(ctx, instance, cfg, page[i].UserID, time.Now()); err != nil {
				log.Printf("⚠️ Sweep pair failed (instance=%s user=%s): %v", instanceID, page[i].UserID, err)
			}
			evaluated++
		}

		offset += len(page)
		cursor.Offset = offset
		cursor.SweptAt = time.Now()
		if err := s.cursorRepo.Save(cursor); err != nil {
			return fmt.Errorf("failed to persist sweep cursor: %w", err)
		}
		if len(page) < s.pageSize {
			break
		}
		// More users remain: hand them to a continuation job so one run
		// never exceeds a single page of work
		if s.jobs != nil {
			if _, err := s.jobs.EnqueueSweep(ctx, instanceID); err != nil {
				return fmt.Errorf("failed to queue sweep continuation: %w", err)
			}
			log.Printf("🧹 Sweep page done, continuation queued (instance=%s offset=%d)", instanceID, offset)
			return nil
		}
	}

	if err := s.cursorRepo.Reset(instanceID, time.Now()); err != nil {
		return fmt.Errorf("failed to reset sweep cursor: %w", err)
	}
	if evaluated > 0 {
		log.Printf("🧹 Swept instance %s: %d users evaluated", instanceID, evaluated)
	}
	return nil
}
