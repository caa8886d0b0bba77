package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	coremodels "github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dailyNotification(limit int) string {
	return fmt.Sprintf(`{"schedule":{"interval":"daily","notify_limit":%d},"sender_policy":"custom","custom_sender_email":"team@example.com","subject":"Daily nudge","static_content":"<p>Keep going</p>"}`, limit)
}

func TestDeliverSendsAtMostOnce(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, h.provider.sent, 1)
	assert.Equal(t, "ana@example.com", h.provider.sent[0].To)
	assert.Equal(t, "Welcome to Intro to Go", h.provider.sent[0].Subject)

	final, err := h.scheduleRepo.FindByID(sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleSent, final.Status)
	assert.Equal(t, 1, final.NotifyCount)
	require.NotNil(t, final.LastSentAt)

	// A terminal schedule never fires again
	sent, err = h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, h.provider.sent, 1)
}

func TestDeliverParksLapsedEligibility(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	// The user unenrols between queueing and delivery
	require.NoError(t, h.db.Model(&coremodels.Enrolment{}).
		Where("course_id = ? AND user_id = ?", course.ID, user.ID).
		Update("active", false).Error)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, h.provider.sent)

	parked, err := h.scheduleRepo.FindByID(sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleOnHold, parked.Status)
}

func TestDeliverOneShotFailureIsTerminal(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())
	h.provider.fail = true

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)

	failed, err := h.scheduleRepo.FindByID(sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleFailed, failed.Status)
	assert.NotEmpty(t, failed.LastError)

	// One-shot schedules have no retry path out of failed
	h.provider.fail = false
	sent, err = h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, h.provider.sent)
}

func TestDeliverSkipsDisabledInstance(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	require.NoError(t, h.db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Update("status", models.InstanceDisabled).Error)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, h.provider.sent)
}

func TestDeliverRecurringRearms(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, dailyNotification(0))

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.True(t, sent)

	rearmed, err := h.scheduleRepo.FindByID(sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleQueued, rearmed.Status)
	assert.Equal(t, 1, rearmed.NotifyCount)
	require.NotNil(t, rearmed.ScheduleTime)
	assert.True(t, rearmed.ScheduleTime.After(time.Now()), "next cycle is in the future")
}

func TestDeliverRecurringSuppressesAtLimit(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, dailyNotification(1))

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.True(t, sent)

	suppressed, err := h.scheduleRepo.FindByID(sched.ID)
	require.NoError(t, err)
	assert.True(t, suppressed.SuppressReached)
	assert.Equal(t, models.ScheduleSent, suppressed.Status)

	sent, err = h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Len(t, h.provider.sent, 1)
}

func TestDeliverDueBatch(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	other := &coremodels.User{Email: "carl@example.com", FirstName: "Carl"}
	require.NoError(t, h.db.Create(other).Error)
	require.NoError(t, h.db.Create(&coremodels.Enrolment{
		CourseID: course.ID,
		UserID:   other.ID,
		Active:   true,
	}).Error)

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, other.ID))

	// Schedules queue with due = now; give the clock a beat
	time.Sleep(10 * time.Millisecond)

	delivered, err := h.delivery.DeliverDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Len(t, h.provider.sent, 2)
}

func TestDeliverRecurringFailureRetriesNextCycle(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, dailyNotification(0))
	h.provider.fail = true

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)

	retrying, err := h.scheduleRepo.FindByID(sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleQueued, retrying.Status, "a recurring failure waits for its next cycle")
	assert.NotEmpty(t, retrying.LastError)
	assert.Equal(t, 0, retrying.NotifyCount)
	require.NotNil(t, retrying.ScheduleTime)
	assert.True(t, retrying.ScheduleTime.After(time.Now()))

	// A healed transport delivers once the next cycle comes around
	h.provider.fail = false
	require.NoError(t, h.db.Model(&models.Schedule{}).
		Where("id = ?", sched.ID).
		Update("schedule_time", time.Now().Add(-time.Minute)).Error)

	sent, err = h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Len(t, h.provider.sent, 1)
}

func TestDeliverRecurringFailureAtLimitIsTerminal(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, dailyNotification(2))
	h.provider.fail = true

	require.NoError(t, h.trigger.EvaluatePair(context.Background(), instance.ID, user.ID))
	sched, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	require.NoError(t, err)

	// The pair already used up its allowed sends in earlier cycles
	require.NoError(t, h.db.Model(&models.Schedule{}).
		Where("id = ?", sched.ID).
		Update("notify_count", 2).Error)

	sent, err := h.delivery.Deliver(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.False(t, sent)

	failed, err := h.scheduleRepo.FindByID(sched.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleFailed, failed.Status, "no cycles left to retry on")
}
