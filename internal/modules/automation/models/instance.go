package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Instance statuses
const (
	InstanceEnabled  = "enabled"
	InstanceDisabled = "disabled"
	InstanceOrphaned = "orphaned"
)

// Instance attaches a template to a course. Overridden fields shadow the
// template value for this course only; everything else follows the template
type Instance struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TemplateID uuid.UUID `json:"template_id" gorm:"type:uuid;not null;index:idx_pulse_instances_template"`
	CourseID   uuid.UUID `json:"course_id" gorm:"type:uuid;not null;index:idx_pulse_instances_course"`
	Status     string    `json:"status" gorm:"type:varchar(20);not null;default:'enabled';index"` // 'enabled', 'disabled', 'orphaned'

	// ActionOverride carries per-course action fields; OverriddenFields lists
	// which action config keys are shadowed here
	ActionOverride   datatypes.JSON `json:"action_override" gorm:"type:jsonb;default:'{}'"`
	OverriddenFields datatypes.JSON `json:"overridden_fields" gorm:"type:jsonb;default:'[]'"`

	// SuppressOverridden shadows the template's suppress rule with this
	// instance's own module list and operator
	SuppressOverridden bool           `json:"suppress_overridden"`
	SuppressModules    datatypes.JSON `json:"suppress_modules" gorm:"type:jsonb;default:'[]'"`
	SuppressOperator   string         `json:"suppress_operator" gorm:"type:varchar(10)"`

	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Template  *Template           `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
	Overrides []ConditionOverride `json:"overrides,omitempty" gorm:"foreignKey:InstanceID"`
}

// TableName specifies the table name for Instance
func (Instance) TableName() string {
	return "pulse_instances"
}

func (i *Instance) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Active reports whether this instance should trigger at all
func (i *Instance) Active() bool {
	return i.Status == InstanceEnabled
}

// ConditionOverride shadows one condition's status or payload for one instance
type ConditionOverride struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	InstanceID uuid.UUID `json:"instance_id" gorm:"type:uuid;not null;uniqueIndex:idx_pulse_overrides_instance_plugin"`
	Plugin     string    `json:"plugin" gorm:"type:varchar(50);not null;uniqueIndex:idx_pulse_overrides_instance_plugin"`

	StatusOverridden bool       `json:"status_overridden" gorm:"default:false"`
	Status           string     `json:"status" gorm:"type:varchar(20)"`
	UpcomingTime     *time.Time `json:"upcoming_time,omitempty"`

	PayloadOverridden bool           `json:"payload_overridden" gorm:"default:false"`
	Payload           datatypes.JSON `json:"payload" gorm:"type:jsonb;default:'{}'"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for ConditionOverride
func (ConditionOverride) TableName() string {
	return "pulse_condition_overrides"
}

func (o *ConditionOverride) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
