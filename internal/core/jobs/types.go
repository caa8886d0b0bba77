package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusRetrying   JobStatus = "retrying"
	StatusCancelled  JobStatus = "cancelled"
)

// JobPriority represents the priority of a job
type JobPriority int

const (
	PriorityLow      JobPriority = 0
	PriorityNormal   JobPriority = 5
	PriorityHigh     JobPriority = 10
	PriorityCritical JobPriority = 20
)

// Automation job types
const (
	TypeEvaluatePair    = "evaluate_pair"
	TypeSweepInstance   = "sweep_instance"
	TypeDeliverSchedule = "deliver_schedule"
)

// EvaluatePairPayload asks for one (instance, user) eligibility evaluation
type EvaluatePairPayload struct {
	InstanceID uuid.UUID `json:"instance_id"`
	UserID     uuid.UUID `json:"user_id"`
}

// SweepInstancePayload asks for a full sweep of one instance
type SweepInstancePayload struct {
	InstanceID uuid.UUID `json:"instance_id"`
}

// DeliverSchedulePayload asks for the delivery of one due schedule
type DeliverSchedulePayload struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
}

// Job represents a background job in the database
type Job struct {
	ID      uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Queue   string         `gorm:"type:varchar(100);not null;index"`
	Type    string         `gorm:"type:varchar(100);not null"`
	Payload datatypes.JSON `gorm:"type:jsonb"`

	Status   JobStatus   `gorm:"type:varchar(20);not null;default:'pending';index"`
	Priority JobPriority `gorm:"type:int;not null;default:5;index"`

	Attempts   int `gorm:"not null;default:0"`
	MaxRetries int `gorm:"not null;default:3"`

	ScheduledAt *time.Time `gorm:"index"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time

	Error string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the table name for Job model
func (Job) TableName() string {
	return "pulse_jobs"
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// JobHandler is the interface that job handlers must implement
type JobHandler interface {
	Handle(ctx context.Context, job *Job) error
	GetType() string
}

// EnqueueOptions contains options for enqueueing a job
type EnqueueOptions struct {
	Queue      string
	Priority   JobPriority
	MaxRetries int
	ScheduleAt *time.Time
}

// DefaultEnqueueOptions returns default enqueue options
func DefaultEnqueueOptions() EnqueueOptions {
	return EnqueueOptions{
		Queue:      "automation",
		Priority:   PriorityNormal,
		MaxRetries: 3,
	}
}

// JobFilter contains options for filtering jobs
type JobFilter struct {
	Queue  string
	Type   string
	Status JobStatus
	Limit  int
}

// JobStats represents statistics about jobs
type JobStats struct {
	TotalJobs      int64            `json:"total_jobs"`
	PendingJobs    int64            `json:"pending_jobs"`
	ProcessingJobs int64            `json:"processing_jobs"`
	CompletedJobs  int64            `json:"completed_jobs"`
	FailedJobs     int64            `json:"failed_jobs"`
	JobsByType     map[string]int64 `json:"jobs_by_type"`
}

// WorkerConfig contains configuration for job workers
type WorkerConfig struct {
	Queue        string
	Concurrency  int
	PollInterval time.Duration
	Timeout      time.Duration
}

// DefaultWorkerConfig returns default worker configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Queue:        "automation",
		Concurrency:  5,
		PollInterval: 1 * time.Second,
		Timeout:      2 * time.Minute,
	}
}
