package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRecord is the durable copy of every observed platform event, persisted
// before any trigger evaluation runs
type EventRecord struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string         `json:"name" gorm:"type:varchar(100);not null;index"`
	CourseID   uuid.UUID      `json:"course_id" gorm:"type:uuid;index"`
	UserID     uuid.UUID      `json:"user_id" gorm:"type:uuid;index"`
	SubjectID  *uuid.UUID     `json:"subject_id" gorm:"type:uuid"`
	Data       datatypes.JSON `json:"data" gorm:"type:jsonb;default:'{}'"`
	OccurredAt time.Time      `json:"occurred_at" gorm:"not null;index:,sort:desc"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for EventRecord
func (EventRecord) TableName() string {
	return "pulse_events"
}

func (e *EventRecord) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// SweepCursor persists the enrolment offset a sweep reached for one instance,
// so an interrupted sweep resumes instead of restarting
type SweepCursor struct {
	InstanceID uuid.UUID `json:"instance_id" gorm:"type:uuid;primaryKey"`
	Offset     int       `json:"offset" gorm:"not null;default:0"`
	SweptAt    time.Time `json:"swept_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for SweepCursor
func (SweepCursor) TableName() string {
	return "pulse_sweep_cursors"
}
