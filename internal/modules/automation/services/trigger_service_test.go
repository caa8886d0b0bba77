package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/action"
	"github.com/coursepulse/coursepulse-be/internal/core/audit"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/core/events"
	"github.com/coursepulse/coursepulse-be/internal/core/jobs"
	"github.com/coursepulse/coursepulse-be/internal/core/mailer"
	coremodels "github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// capturingProvider records outgoing mail and can be told to fail
type capturingProvider struct {
	sent []mailer.Message
	fail bool
}

func (p *capturingProvider) GetProviderName() string { return "capturing" }

func (p *capturingProvider) Send(msg mailer.Message) error {
	if p.fail {
		return fmt.Errorf("transport unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

// harness wires the trigger and delivery stack onto an in-memory database
type harness struct {
	db           *gorm.DB
	instanceRepo repositories.InstanceRepo
	scheduleRepo repositories.ScheduleRepo
	trigger      *TriggerService
	delivery     *DeliveryService
	provider     *capturingProvider
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&coremodels.User{},
		&coremodels.Course{},
		&coremodels.CourseModule{},
		&coremodels.CourseRole{},
		&coremodels.GroupMember{},
		&coremodels.Enrolment{},
		&coremodels.Completion{},
		&coremodels.CohortMember{},
		&coremodels.SessionSignup{},
		&models.Template{},
		&models.Instance{},
		&models.ConditionOverride{},
		&models.Schedule{},
		&models.EventRecord{},
		&models.SweepCursor{},
		&audit.Entry{},
		&jobs.Job{},
	))

	conditions := condition.DefaultRegistry()
	actions := action.DefaultRegistry()
	instanceRepo := repositories.NewInstanceRepo(db)
	scheduleRepo := repositories.NewScheduleRepo(db)
	resolver := NewResolver(conditions)
	evaluator := condition.NewEvaluator(conditions, db)
	trigger := NewTriggerService(db, instanceRepo, scheduleRepo, resolver, evaluator, conditions, actions, nil)

	provider := &capturingProvider{}
	deps := action.Deps{
		DB:      db,
		Mailer:  mailer.NewService(provider),
		Senders: action.NewSenderResolver(db, action.Sender{Name: "Support", Email: "support@example.com"}),
	}
	delivery := NewDeliveryService(db, instanceRepo, scheduleRepo, resolver, evaluator, trigger, actions, deps, nil)

	return &harness{
		db:           db,
		instanceRepo: instanceRepo,
		scheduleRepo: scheduleRepo,
		trigger:      trigger,
		delivery:     delivery,
		provider:     provider,
	}
}

func (h *harness) seedEnrolledUser(t *testing.T) (*coremodels.Course, *coremodels.User) {
	t.Helper()
	course := &coremodels.Course{FullName: "Intro to Go", ShortName: "go101", TenantID: uuid.New()}
	require.NoError(t, h.db.Create(course).Error)

	user := &coremodels.User{Email: "ana@example.com", FirstName: "Ana", LastName: "Silva"}
	require.NoError(t, h.db.Create(user).Error)

	require.NoError(t, h.db.Create(&coremodels.Enrolment{
		CourseID: course.ID,
		UserID:   user.ID,
		Active:   true,
	}).Error)
	return course, user
}

func (h *harness) seedInstance(t *testing.T, courseID uuid.UUID, actionConfig string) *models.Instance {
	t.Helper()
	template := &models.Template{
		Title:             "Welcome mail",
		Reference:         fmt.Sprintf("welcome-%s", uuid.New()),
		Enabled:           true,
		TriggerConditions: datatypes.JSON(`["enrolment"]`),
		TriggerOperator:   "all",
		ConditionDefaults: datatypes.JSON(`{"enrolment":{"status":"all"}}`),
		ActionType:        "notification",
		ActionConfig:      datatypes.JSON(actionConfig),
	}
	require.NoError(t, h.db.Create(template).Error)

	instance := &models.Instance{
		TemplateID: template.ID,
		CourseID:   courseID,
		Status:     models.InstanceEnabled,
	}
	require.NoError(t, h.db.Create(instance).Error)
	return instance
}

func onceNotification() string {
	return `{"schedule":{"interval":"once"},"sender_policy":"custom","custom_sender_email":"team@example.com","subject":"Welcome to {coursename}","static_content":"<p>Hi {firstname}</p>"}`
}

func TestEvaluatePairQueuesEligibleUser(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))

	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleQueued, sched.Status)
	require.NotNil(t, sched.ScheduleTime)

	// Re-evaluating an already queued pair is a no-op
	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	again, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, sched.ID, again.ID)
}

func TestEvaluatePairHoldsIneligibleUser(t *testing.T) {
	h := newHarness(t)
	course, _ := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	outsider := &coremodels.User{Email: "bob@example.com", FirstName: "Bob"}
	require.NoError(t, h.db.Create(outsider).Error)

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, outsider.ID))

	sched, err := h.scheduleRepo.FindActive(instance.ID, outsider.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleOnHold, sched.Status)
}

func TestEvaluatePairParksWhenEligibilityLapses(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))

	require.NoError(t, h.db.Model(&coremodels.Enrolment{}).
		Where("course_id = ? AND user_id = ?", course.ID, user.ID).
		Update("active", false).Error)

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))

	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleOnHold, sched.Status)
	assert.Nil(t, sched.ScheduleTime)
}

func TestEvaluatePairDisabledTemplateNoop(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())
	require.NoError(t, h.db.Model(&models.Template{}).
		Where("id = ?", instance.TemplateID).
		Update("enabled", false).Error)

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))

	_, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "disabled templates never create schedules")
}

func TestHandleEnrolmentCreatedEvent(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	evt := events.Event{Name: events.EnrolmentCreated, CourseID: course.ID, UserID: user.ID}
	require.NoError(t, h.trigger.HandleEvent(context.Background(), evt))

	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleQueued, sched.Status)
}

func TestHandleEventSkipsUnclaimedInstances(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	// The enrolment condition does not react to completion changes, so the
	// instance must be left alone
	evt := events.Event{Name: events.CompletionUpdated, CourseID: course.ID, UserID: user.ID, SubjectID: uuid.New()}
	require.NoError(t, h.trigger.HandleEvent(context.Background(), evt))

	_, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHandleEnrolmentDeletedParksQueued(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())
	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))

	evt := events.Event{Name: events.EnrolmentDeleted, CourseID: course.ID, UserID: user.ID}
	require.NoError(t, h.trigger.handleEnrolmentDeleted(context.Background(), evt))

	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleOnHold, sched.Status)
}

func TestPreviewPairIsReadOnly(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	state, err := h.trigger.PreviewPair(context.Background(), instance.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, state.Eligible)
	assert.Equal(t, "none", state.Status)
	require.NotNil(t, state.DueTime, "eligible previews compute a hypothetical fire time")

	_, err = h.scheduleRepo.FindActive(instance.ID, user.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "preview must not write")
}

func TestForceTrigger(t *testing.T) {
	h := newHarness(t)
	course, _ := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	// Works even for a user who fails the conditions
	outsider := &coremodels.User{Email: "bob@example.com", FirstName: "Bob"}
	require.NoError(t, h.db.Create(outsider).Error)

	sched, err := h.trigger.ForceTrigger(instance.ID, outsider.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleQueued, sched.Status)
	require.NotNil(t, sched.ScheduleTime)
	assert.False(t, sched.ScheduleTime.After(time.Now()))

	// Suppressed schedules are not revived
	require.NoError(t, h.scheduleRepo.MarkSuppressed(sched.ID))
	_, err = h.trigger.ForceTrigger(instance.ID, outsider.ID)
	assert.Error(t, err)
}

func TestForceTriggerRejectsInactiveInstance(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())
	require.NoError(t, h.db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Update("status", models.InstanceDisabled).Error)

	_, err := h.trigger.ForceTrigger(instance.ID, user.ID)
	assert.Error(t, err)
}

func TestEvaluatePairMinimalActionConfig(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	// Only a subject is configured; the schedule defaults to a one-shot send
	instance := h.seedInstance(t, course.ID, `{"subject":"Nudge"}`)

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))

	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleQueued, sched.Status)
	require.NotNil(t, sched.ScheduleTime)
}
