package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	coremodels "github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweepService(h *harness, pageSize int) *SweepService {
	return NewSweepService(
		h.instanceRepo,
		repositories.NewEventRepo(h.db),
		repositories.NewCursorRepo(h.db),
		h.trigger,
		NewResolver(condition.DefaultRegistry()),
		h.delivery,
		nil,
		pageSize,
	)
}

func TestSweepInstanceQueuesEligibleEnrolments(t *testing.T) {
	h := newHarness(t)
	course, _ := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	// More enrolled users than one page so the sweep has to paginate
	for i := 0; i < 5; i++ {
		user := &coremodels.User{Email: fmt.Sprintf("user%d@example.com", i), FirstName: "U"}
		require.NoError(t, h.db.Create(user).Error)
		require.NoError(t, h.db.Create(&coremodels.Enrolment{
			CourseID: course.ID,
			UserID:   user.ID,
			Active:   true,
		}).Error)
	}

	sweep := newSweepService(h, 2)
	require.NoError(t, sweep.SweepAll(context.Background()))

	counts, err := h.scheduleRepo.CountByInstanceStatus(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), counts[models.ScheduleQueued], "every active enrolment is queued")

	// A completed sweep rewinds its cursor so the next run starts over
	cursor, err := repositories.NewCursorRepo(h.db).Get(instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cursor.Offset)
	assert.False(t, cursor.SweptAt.IsZero())
}

func TestSweepInstanceSkipsInactive(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())
	require.NoError(t, h.db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Update("status", models.InstanceDisabled).Error)

	sweep := newSweepService(h, 10)
	require.NoError(t, sweep.SweepInstance(context.Background(), instance.ID))

	_, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	assert.Error(t, err)
}

func TestSweepInstanceIgnoresInactiveEnrolments(t *testing.T) {
	h := newHarness(t)
	course, user := h.seedEnrolledUser(t)
	instance := h.seedInstance(t, course.ID, onceNotification())

	require.NoError(t, h.db.Model(&coremodels.Enrolment{}).
		Where("course_id = ? AND user_id = ?", course.ID, user.ID).
		Update("active", false).Error)

	sweep := newSweepService(h, 10)
	require.NoError(t, sweep.SweepInstance(context.Background(), instance.ID))

	_, err := h.scheduleRepo.FindActive(instance.ID, user.ID)
	assert.Error(t, err, "withdrawn enrolments are not swept")
}
