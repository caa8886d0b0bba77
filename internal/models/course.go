package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course represents a course that automation instances attach to
type Course struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FullName   string    `json:"full_name" gorm:"type:varchar(255);not null"`
	ShortName  string    `json:"short_name" gorm:"type:varchar(100);not null;uniqueIndex"`
	CategoryID uuid.UUID `json:"category_id" gorm:"type:uuid;index"`
	TenantID   uuid.UUID `json:"tenant_id" gorm:"type:uuid;index"`
	Visible    bool      `json:"visible"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CourseModule represents one activity inside a course (assignment, page, etc.)
type CourseModule struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CourseID    uuid.UUID `json:"course_id" gorm:"type:uuid;not null;index"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	ModType     string    `json:"mod_type" gorm:"type:varchar(50);not null"` // 'assign', 'page', 'quiz', ...
	Description string    `json:"description" gorm:"type:text"`
	URL         string    `json:"url" gorm:"type:text"`
	Visible     bool      `json:"visible"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for CourseModule
func (CourseModule) TableName() string {
	return "course_modules"
}

func (m *CourseModule) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
