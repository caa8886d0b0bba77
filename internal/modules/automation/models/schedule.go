package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Schedule statuses
const (
	ScheduleOnHold = "on_hold"
	ScheduleQueued = "queued"
	ScheduleSent   = "sent"
	ScheduleFailed = "failed"
)

// Schedule is the per-(instance,user) delivery state machine. At most one
// active (non-sent, non-failed) row exists per pair; the partial unique index
// in migrations enforces this for terminal recycling
type Schedule struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	InstanceID uuid.UUID `json:"instance_id" gorm:"type:uuid;not null;index:idx_pulse_schedules_pair"`
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_pulse_schedules_pair"`
	CourseID   uuid.UUID `json:"course_id" gorm:"type:uuid;not null;index"`

	Status       string     `json:"status" gorm:"type:varchar(20);not null;default:'on_hold';index"` // 'on_hold', 'queued', 'sent', 'failed'
	ScheduleTime *time.Time `json:"schedule_time" gorm:"index"`

	// NotifyCount counts completed cycles for recurring schedules
	NotifyCount     int        `json:"notify_count" gorm:"default:0"`
	SuppressReached bool       `json:"suppress_reached" gorm:"default:false"`
	LastSentAt      *time.Time `json:"last_sent_at"`
	LastError       string     `json:"last_error" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Schedule
func (Schedule) TableName() string {
	return "pulse_schedules"
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the schedule can never send again
func (s *Schedule) Terminal() bool {
	return s.Status == ScheduleSent || s.Status == ScheduleFailed
}

// Due reports whether a queued schedule is past its fire time
func (s *Schedule) Due(now time.Time) bool {
	return s.Status == ScheduleQueued && s.ScheduleTime != nil && !s.ScheduleTime.After(now)
}
