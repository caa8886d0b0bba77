package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrolment links a user to a course
type Enrolment struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CourseID  uuid.UUID `json:"course_id" gorm:"type:uuid;not null;index:idx_enrolments_course_user,unique"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_enrolments_course_user,unique"`
	Active    bool      `json:"active" gorm:"index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Enrolment
func (Enrolment) TableName() string {
	return "enrolments"
}

func (e *Enrolment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Completion records that a user completed a course module
type Completion struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ModuleID    uuid.UUID `json:"module_id" gorm:"type:uuid;not null;index:idx_completions_module_user,unique"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_completions_module_user,unique"`
	CompletedAt time.Time `json:"completed_at" gorm:"not null"`
}

// TableName specifies the table name for Completion
func (Completion) TableName() string {
	return "completions"
}

func (c *Completion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CohortMember links a user to a cohort (site-wide audience group)
type CohortMember struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CohortID  uuid.UUID `json:"cohort_id" gorm:"type:uuid;not null;index:idx_cohort_members,unique"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_cohort_members,unique"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for CohortMember
func (CohortMember) TableName() string {
	return "cohort_members"
}

func (m *CohortMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// SessionSignup records that a user signed up for a scheduled session
type SessionSignup struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID    uuid.UUID `json:"session_id" gorm:"type:uuid;not null;index:idx_session_signups,unique"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_session_signups,unique"`
	SessionStart time.Time `json:"session_start" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for SessionSignup
func (SessionSignup) TableName() string {
	return "session_signups"
}

func (s *SessionSignup) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
