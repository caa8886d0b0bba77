package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/action"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/core/events"
	"github.com/coursepulse/coursepulse-be/internal/core/jobs"
	"github.com/coursepulse/coursepulse-be/internal/core/schedule"
	coremodels "github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PairState is the read-only evaluation preview for one (instance, user) pair
type PairState struct {
	InstanceID uuid.UUID  `json:"instance_id"`
	UserID     uuid.UUID  `json:"user_id"`
	Eligible   bool       `json:"eligible"`
	Status     string     `json:"status"`
	DueTime    *time.Time `json:"due_time,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// TriggerService reacts to platform events and moves schedules between
// on_hold and queued according to eligibility. With a job queue attached,
// pair evaluations run as queued jobs instead of inline
type TriggerService struct {
	db           *gorm.DB
	instanceRepo repositories.InstanceRepo
	scheduleRepo repositories.ScheduleRepo
	resolver     *Resolver
	evaluator    *condition.Evaluator
	conditions   *condition.Registry
	actions      *action.Registry
	jobs         *jobs.Service
}

// NewTriggerService creates a new trigger service. jobQueue may be nil, in
// which case pair evaluations run inline
func NewTriggerService(
	db *gorm.DB,
	instanceRepo repositories.InstanceRepo,
	scheduleRepo repositories.ScheduleRepo,
	resolver *Resolver,
	evaluator *condition.Evaluator,
	conditions *condition.Registry,
	actions *action.Registry,
	jobQueue *jobs.Service,
) *TriggerService {
	return &TriggerService{
		db:           db,
		instanceRepo: instanceRepo,
		scheduleRepo: scheduleRepo,
		resolver:     resolver,
		evaluator:    evaluator,
		conditions:   conditions,
		actions:      actions,
		jobs:         jobQueue,
	}
}

// RegisterHandlers subscribes the trigger paths on the event bus
func (s *TriggerService) RegisterHandlers(bus *events.Bus) {
	for _, name := range []string{
		events.EnrolmentCreated,
		events.CompletionUpdated,
		events.CohortMemberAdded,
		events.SessionSignup,
	} {
		bus.Subscribe(name, s.HandleEvent)
	}
	bus.Subscribe(events.EnrolmentDeleted, s.handleEnrolmentDeleted)
}

// HandleEvent re-evaluates the (instance, user) pairs an event can have
// affected. Only instances with a condition that claims the event are
// touched, except enrolment creation which concerns every instance
func (s *TriggerService) HandleEvent(ctx context.Context, evt events.Event) error {
	instances, err := s.instanceRepo.FindActiveByCourseID(evt.CourseID)
	if err != nil {
		return fmt.Errorf("failed to load instances for course %s: %w", evt.CourseID, err)
	}

	for i := range instances {
		instance := &instances[i]
		cfg, err := s.resolver.Resolve(instance)
		if err != nil {
			log.Printf("⚠️ Skipping instance %s: %v", instance.ID, err)
			continue
		}

		// Suppression is applied on the event itself, before any queued
		// evaluation has a chance to advance the pair
		if evt.Name == events.CompletionUpdated && cfg.Suppress.Listens(evt.SubjectID) {
			if err := s.applySuppression(ctx, instance, cfg.Suppress, evt.UserID); err != nil {
				log.Printf("⚠️ Suppression check failed (instance=%s user=%s): %v", instance.ID, evt.UserID, err)
			}
		}

		if evt.Name != events.EnrolmentCreated && !s.claimsEvent(cfg, evt) {
			continue
		}
		if s.jobs != nil {
			if _, err := s.jobs.EnqueueEvaluation(ctx, instance.ID, evt.UserID); err != nil {
				log.Printf("⚠️ Failed to queue evaluation (instance=%s user=%s): %v", instance.ID, evt.UserID, err)
			}
			continue
		}
		if err := s.advancePair(ctx, instance, cfg, evt.UserID, time.Now()); err != nil {
			log.Printf("⚠️ Pair evaluation failed (instance=%s user=%s): %v", instance.ID, evt.UserID, err)
		}
	}
	return nil
}

// applySuppression freezes the pair's active schedule when the suppress rule
// is satisfied. The schedule keeps its current status; only the flag flips
func (s *TriggerService) applySuppression(ctx context.Context, instance *models.Instance, rule SuppressRule, userID uuid.UUID) error {
	satisfied, err := s.suppressSatisfied(ctx, rule, userID)
	if err != nil {
		return err
	}
	if !satisfied {
		return nil
	}

	sched, err := s.scheduleRepo.FindActive(instance.ID, userID)
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if sched.SuppressReached {
		return nil
	}
	if err := s.scheduleRepo.MarkSuppressed(sched.ID); err != nil {
		return err
	}
	log.Printf("🚫 Schedule suppressed (instance=%s user=%s schedule=%s)", instance.ID, userID, sched.ID)
	return nil
}

// suppressSatisfied evaluates the rule's module completions under its
// any/all operator
func (s *TriggerService) suppressSatisfied(ctx context.Context, rule SuppressRule, userID uuid.UUID) (bool, error) {
	if !rule.Defined() {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&coremodels.Completion{}).
		Where("user_id = ? AND module_id IN ?", userID, rule.ModuleIDs).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count suppress completions: %w", err)
	}

	if rule.Operator == condition.OperatorAll {
		return count == int64(len(rule.ModuleIDs)), nil
	}
	return count > 0, nil
}

// handleEnrolmentDeleted parks every active schedule of the departing user
func (s *TriggerService) handleEnrolmentDeleted(ctx context.Context, evt events.Event) error {
	instances, err := s.instanceRepo.FindActiveByCourseID(evt.CourseID)
	if err != nil {
		return fmt.Errorf("failed to load instances for course %s: %w", evt.CourseID, err)
	}
	for i := range instances {
		sched, err := s.scheduleRepo.FindActive(instances[i].ID, evt.UserID)
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if sched.Status == models.ScheduleQueued {
			if _, err := s.scheduleRepo.MarkOnHold(sched.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// claimsEvent reports whether any enabled condition of the instance reacts
// to this event
func (s *TriggerService) claimsEvent(cfg *EffectiveConfig, evt events.Event) bool {
	for _, spec := range cfg.Conditions {
		if spec.Status == condition.StatusDisabled || spec.Status == "" {
			continue
		}
		plugin, ok := s.conditions.Get(spec.Plugin)
		if !ok {
			continue
		}
		if plugin.MatchesEvent(spec.Config, evt) {
			return true
		}
	}
	return false
}

// EvaluatePair evaluates one pair and advances its schedule
func (s *TriggerService) EvaluatePair(ctx context.Context, instanceID, userID uuid.UUID) error {
	instance, err := s.instanceRepo.FindByIDFull(instanceID)
	if err != nil {
		return fmt.Errorf("instance not found: %w", err)
	}
	if !instance.Active() {
		return nil
	}
	cfg, err := s.resolver.Resolve(instance)
	if err != nil {
		return err
	}
	return s.advancePair(ctx, instance, cfg, userID, time.Now())
}

// advancePair runs eligibility and applies the resulting transition.
// eligible + on_hold moves to queued with a computed fire time;
// ineligible + queued moves back to on_hold. Other states stay put
func (s *TriggerService) advancePair(ctx context.Context, instance *models.Instance, cfg *EffectiveConfig, userID uuid.UUID, now time.Time) error {
	if !instance.Template.Enabled {
		return nil
	}

	enrolledAt := s.enrolmentTime(instance.CourseID, userID)
	eligible := s.evaluator.IsEligible(ctx, cfg.Conditions, cfg.Operator, instance.CourseID, userID, enrolledAt, now)

	sched, created, err := s.scheduleRepo.EnsureActive(instance.ID, userID, instance.CourseID)
	if err != nil {
		return fmt.Errorf("failed to ensure schedule (instance=%s user=%s): %w", instance.ID, userID, err)
	}
	if sched.SuppressReached {
		return nil
	}

	switch {
	case eligible && sched.Status == models.ScheduleOnHold:
		timing, err := s.timing(cfg)
		if err != nil {
			return err
		}
		reference := s.evaluator.ReferenceTime(ctx, cfg.Conditions, instance.CourseID, userID)
		due, warnings := schedule.ComputeDueTime(timing, now, reference)
		for _, w := range warnings {
			log.Printf("⚠️ Schedule timing (instance=%s user=%s): %s", instance.ID, userID, w)
		}
		moved, err := s.scheduleRepo.MarkQueued(sched.ID, due)
		if err != nil {
			return err
		}
		if moved {
			log.Printf("📤 Schedule queued (instance=%s user=%s due=%s)", instance.ID, userID, due.Format(time.RFC3339))
		}

	case !eligible && sched.Status == models.ScheduleQueued:
		if _, err := s.scheduleRepo.MarkOnHold(sched.ID); err != nil {
			return err
		}
		log.Printf("⏸️ Schedule parked (instance=%s user=%s)", instance.ID, userID)

	case created:
		log.Printf("🆕 Schedule created on hold (instance=%s user=%s)", instance.ID, userID)
	}
	return nil
}

// PreviewPair evaluates a pair without writing anything
func (s *TriggerService) PreviewPair(ctx context.Context, instanceID, userID uuid.UUID) (*PairState, error) {
	instance, err := s.instanceRepo.FindByIDFull(instanceID)
	if err != nil {
		return nil, fmt.Errorf("instance not found: %w", err)
	}
	cfg, err := s.resolver.Resolve(instance)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	enrolledAt := s.enrolmentTime(instance.CourseID, userID)
	eligible := s.evaluator.IsEligible(ctx, cfg.Conditions, cfg.Operator, instance.CourseID, userID, enrolledAt, now)

	state := &PairState{
		InstanceID: instanceID,
		UserID:     userID,
		Eligible:   eligible,
		Status:     "none",
	}

	if sched, err := s.scheduleRepo.FindActive(instanceID, userID); err == nil {
		state.Status = sched.Status
		if sched.ScheduleTime != nil {
			state.DueTime = sched.ScheduleTime
		}
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if eligible && state.DueTime == nil {
		timing, err := s.timing(cfg)
		if err != nil {
			return nil, err
		}
		reference := s.evaluator.ReferenceTime(ctx, cfg.Conditions, instance.CourseID, userID)
		due, warnings := schedule.ComputeDueTime(timing, now, reference)
		state.DueTime = &due
		state.Warnings = warnings
	}
	return state, nil
}

// ForceTrigger queues the pair for immediate delivery regardless of
// eligibility. Suppressed and terminal schedules are not revived
func (s *TriggerService) ForceTrigger(instanceID, userID uuid.UUID) (*models.Schedule, error) {
	instance, err := s.instanceRepo.FindByIDFull(instanceID)
	if err != nil {
		return nil, fmt.Errorf("instance not found: %w", err)
	}
	if !instance.Active() {
		return nil, fmt.Errorf("instance %s is not enabled", instanceID)
	}

	sched, _, err := s.scheduleRepo.EnsureActive(instance.ID, userID, instance.CourseID)
	if err != nil {
		return nil, err
	}
	if sched.SuppressReached {
		return nil, fmt.Errorf("schedule %s is suppressed", sched.ID)
	}
	if sched.Status == models.ScheduleOnHold {
		if _, err := s.scheduleRepo.MarkQueued(sched.ID, time.Now()); err != nil {
			return nil, err
		}
	}
	log.Printf("⚡ Force trigger (instance=%s user=%s)", instanceID, userID)
	return s.scheduleRepo.FindByID(sched.ID)
}

// timing extracts the schedule portion of the resolved action config
func (s *TriggerService) timing(cfg *EffectiveConfig) (schedule.Config, error) {
	plugin, ok := s.actions.Get(cfg.ActionType)
	if !ok {
		return schedule.Config{}, fmt.Errorf("unknown action type %q", cfg.ActionType)
	}
	decoded, err := plugin.DecodeConfig(cfg.ActionConfig)
	if err != nil {
		return schedule.Config{}, fmt.Errorf("invalid action config: %w", err)
	}
	return decoded.Timing(), nil
}

// enrolmentTime returns when the user enrolled in the course, nil when the
// enrolment row is missing
func (s *TriggerService) enrolmentTime(courseID, userID uuid.UUID) *time.Time {
	var enrolment coremodels.Enrolment
	err := s.db.Where("course_id = ? AND user_id = ?", courseID, userID).First(&enrolment).Error
	if err != nil {
		return nil
	}
	t := enrolment.CreatedAt
	return &t
}
