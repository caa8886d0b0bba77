package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/action"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/core/jobs"
	"github.com/coursepulse/coursepulse-be/internal/core/schedule"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryService fires due schedules. A schedule is claimed with a
// compare-and-set to sent before the transport runs, so a delivery happens
// at most once even with concurrent workers
type DeliveryService struct {
	db           *gorm.DB
	instanceRepo repositories.InstanceRepo
	scheduleRepo repositories.ScheduleRepo
	resolver     *Resolver
	evaluator    *condition.Evaluator
	trigger      *TriggerService
	actions      *action.Registry
	deps         action.Deps
	jobs         *jobs.Service
}

// NewDeliveryService creates a new delivery service. jobQueue may be nil, in
// which case due schedules are delivered inline
func NewDeliveryService(
	db *gorm.DB,
	instanceRepo repositories.InstanceRepo,
	scheduleRepo repositories.ScheduleRepo,
	resolver *Resolver,
	evaluator *condition.Evaluator,
	trigger *TriggerService,
	actions *action.Registry,
	deps action.Deps,
	jobQueue *jobs.Service,
) *DeliveryService {
	return &DeliveryService{
		db:           db,
		instanceRepo: instanceRepo,
		scheduleRepo: scheduleRepo,
		resolver:     resolver,
		evaluator:    evaluator,
		trigger:      trigger,
		actions:      actions,
		deps:         deps,
		jobs:         jobQueue,
	}
}

// DispatchDue hands every due schedule to the job queue, one delivery job
// per row. Without a queue it falls back to inline delivery. Returns how
// many schedules were dispatched
func (s *DeliveryService) DispatchDue(ctx context.Context, limit int) (int, error) {
	if s.jobs == nil {
		return s.DeliverDue(ctx, limit)
	}

	due, err := s.scheduleRepo.FindDue(time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load due schedules: %w", err)
	}

	dispatched := 0
	for i := range due {
		if _, err := s.jobs.EnqueueDelivery(ctx, due[i].ID); err != nil {
			log.Printf("⚠️ Failed to queue delivery (schedule=%s): %v", due[i].ID, err)
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

// DeliverDue claims and fires every due schedule, up to limit. Returns how
// many deliveries were dispatched
func (s *DeliveryService) DeliverDue(ctx context.Context, limit int) (int, error) {
	due, err := s.scheduleRepo.FindDue(time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to load due schedules: %w", err)
	}

	delivered := 0
	for i := range due {
		ok, err := s.Deliver(ctx, due[i].ID)
		if err != nil {
			log.Printf("⚠️ Delivery failed (schedule=%s): %v", due[i].ID, err)
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// Deliver fires one schedule end to end: re-verify eligibility, claim the
// row, execute the action, then settle the outcome. Returns true when a
// delivery was actually dispatched
func (s *DeliveryService) Deliver(ctx context.Context, scheduleID uuid.UUID) (bool, error) {
	sched, err := s.scheduleRepo.FindByID(scheduleID)
	if err != nil {
		return false, fmt.Errorf("schedule not found: %w", err)
	}
	if !sched.Due(time.Now()) || sched.SuppressReached {
		return false, nil
	}

	instance, err := s.instanceRepo.FindByIDFull(sched.InstanceID)
	if err != nil {
		return false, fmt.Errorf("instance not found: %w", err)
	}
	if !instance.Active() || !instance.Template.Enabled {
		return false, nil
	}

	cfg, err := s.resolver.Resolve(instance)
	if err != nil {
		return false, err
	}

	// Eligibility can have lapsed since queueing; park instead of sending
	enrolledAt := s.enrolmentTime(instance.CourseID, sched.UserID)
	if !s.evaluator.IsEligible(ctx, cfg.Conditions, cfg.Operator, instance.CourseID, sched.UserID, enrolledAt, time.Now()) {
		if _, err := s.scheduleRepo.MarkOnHold(sched.ID); err != nil {
			return false, err
		}
		log.Printf("⏸️ Schedule parked at send time (instance=%s user=%s)", instance.ID, sched.UserID)
		return false, nil
	}

	plugin, ok := s.actions.Get(cfg.ActionType)
	if !ok {
		return false, fmt.Errorf("unknown action type %q", cfg.ActionType)
	}
	decoded, err := plugin.DecodeConfig(cfg.ActionConfig)
	if err != nil {
		return false, fmt.Errorf("invalid action config: %w", err)
	}

	// Claim before transport; losing the race means another worker sent it
	claimed, err := s.scheduleRepo.ClaimForSend(sched.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	sent, execErr := plugin.Execute(ctx, s.deps, decoded, instance.CourseID, sched.UserID, sched.ID)
	if execErr != nil || !sent {
		reason := "delivery not made"
		if execErr != nil {
			reason = execErr.Error()
		}
		return false, s.settleFailure(sched, decoded.Timing(), reason)
	}

	now := time.Now()
	if err := s.scheduleRepo.RecordSent(sched.ID, now); err != nil {
		return true, err
	}
	log.Printf("📬 Delivered (instance=%s user=%s schedule=%s)", instance.ID, sched.UserID, sched.ID)

	return true, s.settleRecurring(sched.ID, decoded.Timing(), now)
}

// settleFailure decides what a failed delivery leaves behind. One-shot
// schedules fail terminally; recurring ones retry on their next natural
// cycle while the notify limit still allows further sends
func (s *DeliveryService) settleFailure(sched *models.Schedule, timing schedule.Config, reason string) error {
	exhausted := timing.NotifyLimit > 0 && sched.NotifyCount >= timing.NotifyLimit
	if !timing.Recurring() || exhausted {
		if err := s.scheduleRepo.MarkFailed(sched.ID, reason); err != nil {
			return err
		}
		log.Printf("❌ Delivery failed permanently (schedule=%s): %s", sched.ID, reason)
		return nil
	}

	next := schedule.NextCycle(timing, time.Now())
	requeued, err := s.scheduleRepo.RetryNextCycle(sched.ID, reason, next)
	if err != nil {
		return err
	}
	if requeued {
		log.Printf("🔁 Delivery failed, retrying next cycle %s (schedule=%s): %s", next.Format(time.RFC3339), sched.ID, reason)
	}
	return nil
}

// settleRecurring rearms or suppresses a sent schedule depending on its
// interval and notify limit
func (s *DeliveryService) settleRecurring(scheduleID uuid.UUID, timing schedule.Config, sentAt time.Time) error {
	if !timing.Recurring() {
		return nil
	}

	sched, err := s.scheduleRepo.FindByID(scheduleID)
	if err != nil {
		return err
	}
	if timing.NotifyLimit > 0 && sched.NotifyCount >= timing.NotifyLimit {
		if err := s.scheduleRepo.MarkSuppressed(scheduleID); err != nil {
			return err
		}
		log.Printf("🧊 Schedule suppressed after %d cycles (schedule=%s)", sched.NotifyCount, scheduleID)
		return nil
	}

	next := schedule.NextCycle(timing, sentAt)
	rearmed, err := s.scheduleRepo.ResetForNextCycle(scheduleID, next)
	if err != nil {
		return err
	}
	if rearmed {
		log.Printf("🔁 Schedule rearmed for %s (schedule=%s)", next.Format(time.RFC3339), scheduleID)
	}
	return nil
}

func (s *DeliveryService) enrolmentTime(courseID, userID uuid.UUID) *time.Time {
	return s.trigger.enrolmentTime(courseID, userID)
}
