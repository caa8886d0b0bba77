package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CourseRole assigns a named role to a user within a course or tenant scope.
// Sender and recipient resolution query these rows.
type CourseRole struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	CourseID  *uuid.UUID `json:"course_id,omitempty" gorm:"type:uuid;index"` // nil for tenant-scoped roles
	TenantID  uuid.UUID  `json:"tenant_id" gorm:"type:uuid;index"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Role      string     `json:"role" gorm:"type:varchar(50);not null;index"` // 'teacher', 'manager', 'student', ...
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for CourseRole
func (CourseRole) TableName() string {
	return "course_roles"
}

func (r *CourseRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// GroupMember links a user to a working group inside a course
type GroupMember struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	GroupID   uuid.UUID `json:"group_id" gorm:"type:uuid;not null;index:idx_group_members,unique"`
	CourseID  uuid.UUID `json:"course_id" gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_group_members,unique"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GroupMember
func (GroupMember) TableName() string {
	return "group_members"
}

func (m *GroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
