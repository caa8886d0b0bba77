package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/audit"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AttachInstanceRequest attaches a template to a course
type AttachInstanceRequest struct {
	TemplateID uuid.UUID `json:"template_id" validate:"required"`
	CourseID   uuid.UUID `json:"course_id" validate:"required"`
	CreatedBy  uuid.UUID `json:"created_by"`
}

// ConditionOverrideRequest shadows one condition for one instance
type ConditionOverrideRequest struct {
	Plugin            string          `json:"plugin" validate:"required"`
	StatusOverridden  bool            `json:"status_overridden"`
	Status            string          `json:"status" validate:"omitempty,oneof=disabled all upcoming"`
	UpcomingTime      *time.Time      `json:"upcoming_time"`
	PayloadOverridden bool            `json:"payload_overridden"`
	Payload           json.RawMessage `json:"payload"`
}

// UpdateInstanceRequest carries per-course changes to an instance
type UpdateInstanceRequest struct {
	Status             *string                    `json:"status" validate:"omitempty,oneof=enabled disabled"`
	ActionOverride     json.RawMessage            `json:"action_override"`
	OverriddenFields   []string                   `json:"overridden_fields"`
	SuppressOverridden *bool                      `json:"suppress_overridden"`
	SuppressModules    []uuid.UUID                `json:"suppress_modules"`
	SuppressOperator   string                     `json:"suppress_operator" validate:"omitempty,oneof=all any"`
	ConditionOverrides []ConditionOverrideRequest `json:"condition_overrides" validate:"dive"`
}

// InstanceService handles per-course instance lifecycle
type InstanceService struct {
	instanceRepo repositories.InstanceRepo
	templateRepo repositories.TemplateRepo
	scheduleRepo repositories.ScheduleRepo
	resolver     *Resolver
	conditions   *condition.Registry
	auditTrail   *audit.Service
	validate     *validator.Validate
}

// NewInstanceService creates a new instance service
func NewInstanceService(
	instanceRepo repositories.InstanceRepo,
	templateRepo repositories.TemplateRepo,
	scheduleRepo repositories.ScheduleRepo,
	resolver *Resolver,
	conditions *condition.Registry,
	auditTrail *audit.Service,
) *InstanceService {
	return &InstanceService{
		instanceRepo: instanceRepo,
		templateRepo: templateRepo,
		scheduleRepo: scheduleRepo,
		resolver:     resolver,
		conditions:   conditions,
		auditTrail:   auditTrail,
		validate:     validator.New(),
	}
}

// AttachTemplate creates an enabled instance of a template on a course
func (s *InstanceService) AttachTemplate(req AttachInstanceRequest) (*models.Instance, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid attach request: %w", err)
	}

	template, err := s.templateRepo.FindByID(req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	if !template.Enabled {
		return nil, fmt.Errorf("template %s is disabled", template.ID)
	}

	instance := &models.Instance{
		TemplateID:       template.ID,
		CourseID:         req.CourseID,
		Status:           models.InstanceEnabled,
		ActionOverride:   datatypes.JSON("{}"),
		OverriddenFields: datatypes.JSON("[]"),
		CreatedBy:        req.CreatedBy,
	}
	if err := s.instanceRepo.Create(instance); err != nil {
		return nil, fmt.Errorf("failed to attach template %s to course %s: %w", template.ID, req.CourseID, err)
	}

	if s.auditTrail != nil {
		s.auditTrail.Record(req.CreatedBy, audit.ActionCreate, audit.EntityInstance, instance.ID, nil, instance)
	}
	log.Printf("✅ Template %s attached to course %s (instance %s)", template.Title, req.CourseID, instance.ID)
	return instance, nil
}

// UpdateInstance applies status, action override and condition override
// changes, then verifies the merged config still resolves
func (s *InstanceService) UpdateInstance(id uuid.UUID, req UpdateInstanceRequest) (*models.Instance, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid update request: %w", err)
	}

	instance, err := s.instanceRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("instance not found: %w", err)
	}
	if instance.Status == models.InstanceOrphaned {
		return nil, fmt.Errorf("instance %s is orphaned and read-only", id)
	}
	before := *instance

	if req.Status != nil {
		instance.Status = *req.Status
	}
	if req.ActionOverride != nil {
		instance.ActionOverride = datatypes.JSON(req.ActionOverride)
	}
	if req.OverriddenFields != nil {
		raw, _ := json.Marshal(req.OverriddenFields)
		instance.OverriddenFields = datatypes.JSON(raw)
	}
	if req.SuppressOverridden != nil {
		instance.SuppressOverridden = *req.SuppressOverridden
	}
	if req.SuppressModules != nil {
		raw, _ := json.Marshal(req.SuppressModules)
		instance.SuppressModules = datatypes.JSON(raw)
	}
	if req.SuppressOperator != "" {
		instance.SuppressOperator = req.SuppressOperator
	}

	if err := s.instanceRepo.Update(instance); err != nil {
		return nil, fmt.Errorf("failed to update instance %s: %w", id, err)
	}

	for _, oreq := range req.ConditionOverrides {
		if err := s.applyConditionOverride(instance.ID, oreq); err != nil {
			return nil, err
		}
	}

	// Re-resolve to reject combinations that no longer decode
	full, err := s.instanceRepo.FindByIDFull(id)
	if err != nil {
		return nil, fmt.Errorf("instance not found after update: %w", err)
	}
	if _, err := s.resolver.Resolve(full); err != nil {
		return nil, fmt.Errorf("instance %s no longer resolves: %w", id, err)
	}

	if s.auditTrail != nil {
		s.auditTrail.Record(instance.CreatedBy, audit.ActionUpdate, audit.EntityInstance, id, before, full)
	}
	log.Printf("✅ Instance updated: %s (status: %s)", id, full.Status)
	return full, nil
}

func (s *InstanceService) applyConditionOverride(instanceID uuid.UUID, req ConditionOverrideRequest) error {
	if _, ok := s.conditions.Get(req.Plugin); !ok {
		return fmt.Errorf("unknown condition plugin %q", req.Plugin)
	}
	if req.StatusOverridden && condition.Status(req.Status) == condition.StatusFuture && req.UpcomingTime == nil {
		return fmt.Errorf("condition %q override has upcoming status without an upcoming time", req.Plugin)
	}

	if !req.StatusOverridden && !req.PayloadOverridden {
		// Nothing shadowed anymore: drop the row so the template default applies
		return s.instanceRepo.DeleteOverride(instanceID, req.Plugin)
	}

	override := &models.ConditionOverride{
		InstanceID:        instanceID,
		Plugin:            req.Plugin,
		StatusOverridden:  req.StatusOverridden,
		Status:            req.Status,
		UpcomingTime:      req.UpcomingTime,
		PayloadOverridden: req.PayloadOverridden,
		Payload:           datatypes.JSON("{}"),
	}
	if len(req.Payload) > 0 {
		override.Payload = datatypes.JSON(req.Payload)
	}
	return s.instanceRepo.UpsertOverride(override)
}

// DeleteInstance removes an instance with its overrides and schedules
func (s *InstanceService) DeleteInstance(id uuid.UUID) error {
	instance, err := s.instanceRepo.FindByID(id)
	if err != nil {
		return fmt.Errorf("instance not found: %w", err)
	}
	if err := s.scheduleRepo.DeleteByInstance(id); err != nil {
		return fmt.Errorf("failed to delete schedules of instance %s: %w", id, err)
	}
	if err := s.instanceRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete instance %s: %w", id, err)
	}
	if s.auditTrail != nil {
		s.auditTrail.Record(instance.CreatedBy, audit.ActionDelete, audit.EntityInstance, id, instance, nil)
	}
	log.Printf("🗑️ Instance deleted: %s", id)
	return nil
}

// GetInstance returns an instance with template and overrides loaded
func (s *InstanceService) GetInstance(id uuid.UUID) (*models.Instance, error) {
	return s.instanceRepo.FindByIDFull(id)
}

// ListByCourse returns every instance attached to a course
func (s *InstanceService) ListByCourse(courseID uuid.UUID) ([]models.Instance, error) {
	return s.instanceRepo.FindByCourseID(courseID)
}
