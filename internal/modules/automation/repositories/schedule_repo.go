package repositories

import (
	"errors"
	"strings"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleRepo interface for schedule state machine persistence. Transitions
// are compare-and-set updates keyed on the current status so two workers
// racing on the same row resolve to exactly one winner
type ScheduleRepo interface {
	EnsureActive(instanceID, userID, courseID uuid.UUID) (*models.Schedule, bool, error)
	FindByID(id uuid.UUID) (*models.Schedule, error)
	FindActive(instanceID, userID uuid.UUID) (*models.Schedule, error)
	FindDue(now time.Time, limit int) ([]models.Schedule, error)
	FindByInstance(instanceID uuid.UUID) ([]models.Schedule, error)
	CountByInstanceStatus(instanceID uuid.UUID) (map[string]int64, error)
	MarkQueued(id uuid.UUID, scheduleTime time.Time) (bool, error)
	MarkOnHold(id uuid.UUID) (bool, error)
	ClaimForSend(id uuid.UUID) (bool, error)
	MarkFailed(id uuid.UUID, reason string) error
	RecordSent(id uuid.UUID, sentAt time.Time) error
	ResetForNextCycle(id uuid.UUID, nextTime time.Time) (bool, error)
	RetryNextCycle(id uuid.UUID, reason string, nextTime time.Time) (bool, error)
	MarkSuppressed(id uuid.UUID) error
	DeleteByInstance(instanceID uuid.UUID) error
}

type scheduleRepo struct {
	db *gorm.DB
}

// NewScheduleRepo creates a new schedule repository
func NewScheduleRepo(db *gorm.DB) ScheduleRepo {
	return &scheduleRepo{db: db}
}

// EnsureActive returns the active schedule for the pair, creating an on_hold
// row when none exists. The second return is true when a row was created.
// Runs read-then-insert inside a transaction; the partial unique index on
// (instance_id, user_id) where status not in (sent, failed) backstops races.
// The race loser re-reads and returns the winner's row instead of erroring
func (r *scheduleRepo) EnsureActive(instanceID, userID, courseID uuid.UUID) (*models.Schedule, bool, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		schedule, created, err := r.ensureActiveOnce(instanceID, userID, courseID)
		if err == nil {
			return schedule, created, nil
		}
		if !isDuplicateKey(err) {
			return nil, false, err
		}
		lastErr = err
	}
	return nil, false, lastErr
}

func (r *scheduleRepo) ensureActiveOnce(instanceID, userID, courseID uuid.UUID) (*models.Schedule, bool, error) {
	var schedule models.Schedule
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("instance_id = ? AND user_id = ? AND status NOT IN ?",
			instanceID, userID, []string{models.ScheduleSent, models.ScheduleFailed}).
			First(&schedule).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		schedule = models.Schedule{
			InstanceID: instanceID,
			UserID:     userID,
			CourseID:   courseID,
			Status:     models.ScheduleOnHold,
		}
		created = true
		return tx.Create(&schedule).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &schedule, created, nil
}

// isDuplicateKey matches unique violations across the drivers in use
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}

func (r *scheduleRepo) FindByID(id uuid.UUID) (*models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.Where("id = ?", id).First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) FindActive(instanceID, userID uuid.UUID) (*models.Schedule, error) {
	var schedule models.Schedule
	err := r.db.Where("instance_id = ? AND user_id = ? AND status NOT IN ?",
		instanceID, userID, []string{models.ScheduleSent, models.ScheduleFailed}).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) FindDue(now time.Time, limit int) ([]models.Schedule, error) {
	var schedules []models.Schedule
	query := r.db.Where("status = ? AND suppress_reached = ? AND schedule_time IS NOT NULL AND schedule_time <= ?",
		models.ScheduleQueued, false, now).
		Order("schedule_time ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepo) FindByInstance(instanceID uuid.UUID) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := r.db.Where("instance_id = ?", instanceID).Order("created_at ASC").Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepo) CountByInstanceStatus(instanceID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&models.Schedule{}).
		Select("status, count(*) as count").
		Where("instance_id = ?", instanceID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

// MarkQueued moves on_hold -> queued with the computed fire time
func (r *scheduleRepo) MarkQueued(id uuid.UUID, scheduleTime time.Time) (bool, error) {
	result := r.db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleOnHold).
		Updates(map[string]interface{}{
			"status":        models.ScheduleQueued,
			"schedule_time": scheduleTime,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkOnHold moves queued -> on_hold when the user is no longer eligible
func (r *scheduleRepo) MarkOnHold(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleQueued).
		Updates(map[string]interface{}{
			"status":        models.ScheduleOnHold,
			"schedule_time": nil,
		})
	return result.RowsAffected > 0, result.Error
}

// ClaimForSend moves queued -> sent before any delivery attempt. Only the
// caller that flipped the row may dispatch, which keeps delivery at-most-once
func (r *scheduleRepo) ClaimForSend(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.Schedule{}).
		Where("id = ? AND status = ? AND suppress_reached = ?", id, models.ScheduleQueued, false).
		Update("status", models.ScheduleSent)
	return result.RowsAffected > 0, result.Error
}

// MarkFailed rewrites a claimed row after the transport reported an error.
// Terminal for one-shot schedules; recurring ones go through RetryNextCycle
func (r *scheduleRepo) MarkFailed(id uuid.UUID, reason string) error {
	return r.db.Model(&models.Schedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.ScheduleFailed,
			"last_error": reason,
		}).Error
}

func (r *scheduleRepo) RecordSent(id uuid.UUID, sentAt time.Time) error {
	return r.db.Model(&models.Schedule{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sent_at": sentAt,
			"notify_count": gorm.Expr("notify_count + 1"),
		}).Error
}

// ResetForNextCycle rearms a sent recurring schedule as queued for the next
// fire time, keeping notify_count
func (r *scheduleRepo) ResetForNextCycle(id uuid.UUID, nextTime time.Time) (bool, error) {
	result := r.db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleSent).
		Updates(map[string]interface{}{
			"status":        models.ScheduleQueued,
			"schedule_time": nextTime,
		})
	return result.RowsAffected > 0, result.Error
}

// RetryNextCycle rearms a claimed recurring schedule after a failed
// delivery, recording the error and the next natural fire time
func (r *scheduleRepo) RetryNextCycle(id uuid.UUID, reason string, nextTime time.Time) (bool, error) {
	result := r.db.Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, models.ScheduleSent).
		Updates(map[string]interface{}{
			"status":        models.ScheduleQueued,
			"schedule_time": nextTime,
			"last_error":    reason,
		})
	return result.RowsAffected > 0, result.Error
}

// MarkSuppressed freezes a schedule. The flag is sticky: it survives status
// changes and is only honoured, never cleared, by the engine
func (r *scheduleRepo) MarkSuppressed(id uuid.UUID) error {
	return r.db.Model(&models.Schedule{}).
		Where("id = ?", id).
		Update("suppress_reached", true).Error
}

func (r *scheduleRepo) DeleteByInstance(instanceID uuid.UUID) error {
	return r.db.Where("instance_id = ?", instanceID).Delete(&models.Schedule{}).Error
}
