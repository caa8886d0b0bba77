package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service provides high-level job queue functionality
type Service struct {
	queue   *Queue
	workers []*Worker
}

// NewService creates a new job service
func NewService(db *gorm.DB) *Service {
	return &Service{queue: NewQueue(db)}
}

// Enqueue adds a new job to the queue
func (s *Service) Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...EnqueueOptions) (*Job, error) {
	options := DefaultEnqueueOptions()
	if len(opts) > 0 {
		options = opts[0]
	}
	return s.queue.Enqueue(ctx, jobType, payload, options)
}

// EnqueueAt adds a scheduled job to the queue
func (s *Service) EnqueueAt(ctx context.Context, jobType string, payload interface{}, scheduleAt time.Time) (*Job, error) {
	options := DefaultEnqueueOptions()
	options.ScheduleAt = &scheduleAt
	return s.queue.Enqueue(ctx, jobType, payload, options)
}

// EnqueueEvaluation queues an eligibility evaluation for one pair
func (s *Service) EnqueueEvaluation(ctx context.Context, instanceID, userID uuid.UUID) (*Job, error) {
	return s.Enqueue(ctx, TypeEvaluatePair, EvaluatePairPayload{InstanceID: instanceID, UserID: userID}, EnqueueOptions{
		Queue:    "automation",
		Priority: PriorityHigh,
	})
}

// EnqueueSweep queues a full sweep of one instance
func (s *Service) EnqueueSweep(ctx context.Context, instanceID uuid.UUID) (*Job, error) {
	return s.Enqueue(ctx, TypeSweepInstance, SweepInstancePayload{InstanceID: instanceID}, EnqueueOptions{
		Queue:    "automation",
		Priority: PriorityLow,
	})
}

// EnqueueDelivery queues the delivery of one due schedule. The job itself
// never retries: failed sends are settled on the schedule row, where recurring
// ones re-arm for the next cycle
func (s *Service) EnqueueDelivery(ctx context.Context, scheduleID uuid.UUID) (*Job, error) {
	return s.Enqueue(ctx, TypeDeliverSchedule, DeliverSchedulePayload{ScheduleID: scheduleID}, EnqueueOptions{
		Queue:      "automation",
		Priority:   PriorityCritical,
		MaxRetries: 1,
	})
}

// Cancel cancels a pending job
func (s *Service) Cancel(ctx context.Context, jobID uuid.UUID) error {
	return s.queue.Cancel(ctx, jobID)
}

// GetJob retrieves a job by ID
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	return s.queue.GetJob(ctx, jobID)
}

// ListJobs lists jobs with filters
func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	return s.queue.ListJobs(ctx, filter)
}

// GetStats retrieves job statistics
func (s *Service) GetStats(ctx context.Context) (*JobStats, error) {
	return s.queue.GetStats(ctx)
}

// RegisterWorker creates and registers a worker for a queue
func (s *Service) RegisterWorker(config WorkerConfig, handlers ...JobHandler) *Worker {
	worker := NewWorker(s.queue, config)
	for _, handler := range handlers {
		worker.RegisterHandler(handler)
	}
	s.workers = append(s.workers, worker)
	return worker
}

// StartWorkers starts all registered workers
func (s *Service) StartWorkers(ctx context.Context) error {
	for _, worker := range s.workers {
		if err := worker.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopWorkers stops all workers
func (s *Service) StopWorkers() {
	for _, worker := range s.workers {
		worker.Stop()
	}
}

// Cleanup deletes old completed/failed jobs
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queue.DeleteOldJobs(ctx, olderThan)
}
