package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Audited entities
const (
	EntityTemplate = "template"
	EntityInstance = "instance"
	EntitySchedule = "schedule"
)

// Audited actions
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionForceTrigger = "force_trigger"
)

// Entry records one administrative change to the automation configuration
type Entry struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`

	ActorID  uuid.UUID `json:"actor_id" gorm:"type:uuid;index"`
	Action   string    `json:"action" gorm:"type:varchar(30);not null;index"`
	Entity   string    `json:"entity" gorm:"type:varchar(30);not null;index"`
	EntityID uuid.UUID `json:"entity_id" gorm:"type:uuid;index"`

	// Before and after snapshots, absent for create/delete respectively
	OldValue datatypes.JSON `json:"old_value,omitempty" gorm:"type:jsonb"`
	NewValue datatypes.JSON `json:"new_value,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index:,sort:desc"`
}

// TableName specifies the table name
func (Entry) TableName() string {
	return "pulse_audit_log"
}

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Filter narrows audit queries
type Filter struct {
	ActorID  *uuid.UUID
	Action   string
	Entity   string
	EntityID *uuid.UUID
	Page     int
	PageSize int
}

// Page is one page of audit entries
type Page struct {
	Entries    []Entry `json:"entries"`
	TotalCount int64   `json:"total_count"`
	PageNum    int     `json:"page"`
	PageSize   int     `json:"page_size"`
}
