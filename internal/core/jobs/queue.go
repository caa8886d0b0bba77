package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Queue manages job queue operations
type Queue struct {
	db *gorm.DB
}

// NewQueue creates a new job queue
func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}, opts EnqueueOptions) (*Job, error) {
	if opts.Queue == "" {
		opts.Queue = "automation"
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	job := &Job{
		Queue:       opts.Queue,
		Type:        jobType,
		Payload:     payloadJSON,
		Status:      StatusPending,
		Priority:    opts.Priority,
		MaxRetries:  opts.MaxRetries,
		ScheduledAt: opts.ScheduleAt,
	}

	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// Dequeue claims the next runnable job. The claim is a compare-and-set on the
// job's status, so two workers polling the same queue never both take one row
func (q *Queue) Dequeue(ctx context.Context, queueName string) (*Job, error) {
	for {
		var job Job
		err := q.db.WithContext(ctx).
			Where("queue = ? AND status IN ?", queueName, []JobStatus{StatusPending, StatusRetrying}).
			Where("scheduled_at IS NULL OR scheduled_at <= ?", time.Now()).
			Order("priority DESC, created_at ASC").
			First(&job).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to dequeue job: %w", err)
		}

		now := time.Now()
		result := q.db.WithContext(ctx).Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, job.Status).
			Updates(map[string]interface{}{
				"status":     StatusProcessing,
				"started_at": now,
				"attempts":   gorm.Expr("attempts + 1"),
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost the race, try the next candidate
			continue
		}

		job.Status = StatusProcessing
		job.StartedAt = &now
		job.Attempts++
		return &job, nil
	}
}

// MarkCompleted marks a job as completed
func (q *Queue) MarkCompleted(ctx context.Context, jobID uuid.UUID) error {
	return q.db.WithContext(ctx).Model(&Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":       StatusCompleted,
		"completed_at": time.Now(),
	}).Error
}

// MarkFailed marks a job as failed, rescheduling it with exponential backoff
// while attempts remain
func (q *Queue) MarkFailed(ctx context.Context, jobID uuid.UUID, jobErr error) error {
	var job Job
	if err := q.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to find job: %w", err)
	}

	now := time.Now()
	job.Error = jobErr.Error()
	job.FailedAt = &now

	if job.Attempts < job.MaxRetries {
		scheduleAt := now.Add(time.Duration(backoffSeconds(job.Attempts)) * time.Second)
		job.Status = StatusRetrying
		job.ScheduledAt = &scheduleAt
	} else {
		job.Status = StatusFailed
	}

	return q.db.WithContext(ctx).Save(&job).Error
}

// Cancel cancels a job that has not started yet
func (q *Queue) Cancel(ctx context.Context, jobID uuid.UUID) error {
	result := q.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", jobID, []JobStatus{StatusPending, StatusRetrying}).
		Update("status", StatusCancelled)
	if result.Error != nil {
		return fmt.Errorf("failed to cancel job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job not found or not in cancellable state")
	}
	return nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	var job Job
	if err := q.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs lists jobs with optional filters
func (q *Queue) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := q.db.WithContext(ctx).Model(&Job{})

	if filter.Queue != "" {
		query = query.Where("queue = ?", filter.Queue)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var jobs []Job
	if err := query.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// GetStats retrieves statistics about jobs
func (q *Queue) GetStats(ctx context.Context) (*JobStats, error) {
	stats := &JobStats{
		JobsByType: make(map[string]int64),
	}

	base := q.db.WithContext(ctx).Model(&Job{})
	base.Count(&stats.TotalJobs)
	q.db.WithContext(ctx).Model(&Job{}).Where("status = ?", StatusPending).Count(&stats.PendingJobs)
	q.db.WithContext(ctx).Model(&Job{}).Where("status = ?", StatusProcessing).Count(&stats.ProcessingJobs)
	q.db.WithContext(ctx).Model(&Job{}).Where("status = ?", StatusCompleted).Count(&stats.CompletedJobs)
	q.db.WithContext(ctx).Model(&Job{}).Where("status = ?", StatusFailed).Count(&stats.FailedJobs)

	var typeStats []struct {
		Type  string
		Count int64
	}
	q.db.WithContext(ctx).Model(&Job{}).Select("type, COUNT(*) as count").Group("type").Find(&typeStats)
	for _, ts := range typeStats {
		stats.JobsByType[ts.Type] = ts.Count
	}

	return stats, nil
}

// DeleteOldJobs deletes completed/failed jobs older than the specified duration
func (q *Queue) DeleteOldJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	result := q.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", []JobStatus{StatusCompleted, StatusFailed}, cutoff).
		Delete(&Job{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// backoffSeconds is exponential with a one hour cap
func backoffSeconds(attempt int) int {
	backoff := 1 << attempt
	if backoff > 3600 {
		backoff = 3600
	}
	return backoff
}
