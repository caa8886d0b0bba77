package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template represents a reusable automation definition: zero or more trigger
// conditions combined with one action, sharable across courses
type Template struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Reference string    `json:"reference" gorm:"type:varchar(100);not null;uniqueIndex"`
	Visible   bool      `json:"visible"`
	Enabled   bool      `json:"enabled" gorm:"index"`

	// TriggerConditions is the ordered list of condition plugin names
	TriggerConditions datatypes.JSON `json:"trigger_conditions" gorm:"type:jsonb;not null;default:'[]'"`
	TriggerOperator   string         `json:"trigger_operator" gorm:"type:varchar(10);not null;default:'all'"` // 'all', 'any'

	// ConditionDefaults maps plugin name -> default status/payload for instances
	ConditionDefaults datatypes.JSON `json:"condition_defaults" gorm:"type:jsonb;default:'{}'"`

	// ActionType selects the action plugin; ActionConfig is its payload
	ActionType   string         `json:"action_type" gorm:"type:varchar(50);not null;default:'notification'"`
	ActionConfig datatypes.JSON `json:"action_config" gorm:"type:jsonb;not null;default:'{}'"`

	// SuppressModules lists course modules whose completion cancels delivery;
	// SuppressOperator decides whether any or all of them must be completed
	SuppressModules  datatypes.JSON `json:"suppress_modules" gorm:"type:jsonb;default:'[]'"`
	SuppressOperator string         `json:"suppress_operator" gorm:"type:varchar(10);not null;default:'any'"` // 'any', 'all'

	// Categories restricts which course categories may attach instances;
	// empty means site-wide
	Categories datatypes.JSON `json:"categories" gorm:"type:jsonb;default:'[]'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:,sort:desc"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Template
func (Template) TableName() string {
	return "pulse_templates"
}

func (t *Template) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ConditionDefault is one entry of a template's ConditionDefaults map
type ConditionDefault struct {
	Status       string          `json:"status"` // 'disabled', 'all', 'upcoming'
	UpcomingTime *time.Time      `json:"upcoming_time,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}
