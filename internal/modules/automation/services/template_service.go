package services

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/coursepulse/coursepulse-be/internal/core/action"
	"github.com/coursepulse/coursepulse-be/internal/core/audit"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CreateTemplateRequest carries a new template definition
type CreateTemplateRequest struct {
	ActorID           uuid.UUID                          `json:"actor_id"`
	Title             string                             `json:"title" validate:"required,max=255"`
	Reference         string                             `json:"reference" validate:"required,max=100"`
	Visible           *bool                              `json:"visible"`
	Enabled           *bool                              `json:"enabled"`
	TriggerConditions []string                           `json:"trigger_conditions"`
	TriggerOperator   string                             `json:"trigger_operator" validate:"omitempty,oneof=all any"`
	ConditionDefaults map[string]models.ConditionDefault `json:"condition_defaults"`
	ActionType        string                             `json:"action_type" validate:"omitempty,max=50"`
	ActionConfig      json.RawMessage                    `json:"action_config"`
	SuppressModules   []uuid.UUID                        `json:"suppress_modules"`
	SuppressOperator  string                             `json:"suppress_operator" validate:"omitempty,oneof=all any"`
	Categories        []uuid.UUID                        `json:"categories"`
}

// UpdateTemplateRequest carries partial template changes
type UpdateTemplateRequest struct {
	ActorID           uuid.UUID                          `json:"actor_id"`
	Title             *string                            `json:"title" validate:"omitempty,max=255"`
	Visible           *bool                              `json:"visible"`
	Enabled           *bool                              `json:"enabled"`
	TriggerConditions []string                           `json:"trigger_conditions"`
	TriggerOperator   *string                            `json:"trigger_operator" validate:"omitempty,oneof=all any"`
	ConditionDefaults map[string]models.ConditionDefault `json:"condition_defaults"`
	ActionConfig      json.RawMessage                    `json:"action_config"`
	SuppressModules   []uuid.UUID                        `json:"suppress_modules"`
	SuppressOperator  *string                            `json:"suppress_operator" validate:"omitempty,oneof=all any"`
	Categories        []uuid.UUID                        `json:"categories"`
}

// TemplateService handles template lifecycle operations
type TemplateService struct {
	templateRepo repositoriesTemplate
	instanceRepo repositoriesInstance
	conditions   *condition.Registry
	actions      *action.Registry
	auditTrail   *audit.Service
	validate     *validator.Validate
}

// narrow views of the repos so tests can stub them
type repositoriesTemplate interface {
	Create(template *models.Template) error
	FindByID(id uuid.UUID) (*models.Template, error)
	FindByReference(reference string) (*models.Template, error)
	List(onlyVisible bool) ([]models.Template, error)
	Update(template *models.Template) error
	Delete(id uuid.UUID) error
	CountInstances(id uuid.UUID) (int64, error)
}

type repositoriesInstance interface {
	MarkOrphanedByTemplate(templateID uuid.UUID) (int64, error)
	MarkOrphanedOutsideCategories(templateID uuid.UUID, categoryIDs []uuid.UUID) (int64, error)
}

// NewTemplateService creates a new template service
func NewTemplateService(templateRepo repositoriesTemplate, instanceRepo repositoriesInstance, conditions *condition.Registry, actions *action.Registry, auditTrail *audit.Service) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		instanceRepo: instanceRepo,
		conditions:   conditions,
		actions:      actions,
		auditTrail:   auditTrail,
		validate:     validator.New(),
	}
}

// CreateTemplate validates and stores a new template
func (s *TemplateService) CreateTemplate(req CreateTemplateRequest) (*models.Template, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid template request: %w", err)
	}

	actionType := req.ActionType
	if actionType == "" {
		actionType = "notification"
	}
	if err := s.checkDefinition(req.TriggerConditions, req.ConditionDefaults, actionType, req.ActionConfig); err != nil {
		return nil, err
	}

	conditionsJSON, _ := json.Marshal(nonNilStrings(req.TriggerConditions))
	defaultsJSON, _ := json.Marshal(orEmptyDefaults(req.ConditionDefaults))
	categoriesJSON, _ := json.Marshal(nonNilUUIDs(req.Categories))
	suppressJSON, _ := json.Marshal(nonNilUUIDs(req.SuppressModules))

	suppressOperator := req.SuppressOperator
	if suppressOperator == "" {
		suppressOperator = string(condition.OperatorAny)
	}

	actionConfig := req.ActionConfig
	if len(actionConfig) == 0 {
		actionConfig = json.RawMessage("{}")
	}

	operator := req.TriggerOperator
	if operator == "" {
		operator = string(condition.OperatorAll)
	}

	template := &models.Template{
		Title:             req.Title,
		Reference:         req.Reference,
		Visible:           boolOr(req.Visible, true),
		Enabled:           boolOr(req.Enabled, true),
		TriggerConditions: datatypes.JSON(conditionsJSON),
		TriggerOperator:   operator,
		ConditionDefaults: datatypes.JSON(defaultsJSON),
		ActionType:        actionType,
		ActionConfig:      datatypes.JSON(actionConfig),
		SuppressModules:   datatypes.JSON(suppressJSON),
		SuppressOperator:  suppressOperator,
		Categories:        datatypes.JSON(categoriesJSON),
	}

	if err := s.templateRepo.Create(template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	if s.auditTrail != nil {
		s.auditTrail.Record(req.ActorID, audit.ActionCreate, audit.EntityTemplate, template.ID, nil, template)
	}
	log.Printf("✅ Template created: %s (ID: %s)", template.Title, template.ID)
	return template, nil
}

// UpdateTemplate applies partial changes to an existing template. Changes
// propagate to every instance that did not override the touched fields
func (s *TemplateService) UpdateTemplate(id uuid.UUID, req UpdateTemplateRequest) (*models.Template, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid template request: %w", err)
	}

	template, err := s.templateRepo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	before := *template

	if req.Title != nil {
		template.Title = *req.Title
	}
	if req.Visible != nil {
		template.Visible = *req.Visible
	}
	if req.Enabled != nil {
		template.Enabled = *req.Enabled
	}
	if req.TriggerOperator != nil {
		template.TriggerOperator = *req.TriggerOperator
	}
	if req.TriggerConditions != nil {
		raw, _ := json.Marshal(req.TriggerConditions)
		template.TriggerConditions = datatypes.JSON(raw)
	}
	if req.ConditionDefaults != nil {
		raw, _ := json.Marshal(req.ConditionDefaults)
		template.ConditionDefaults = datatypes.JSON(raw)
	}
	if len(req.ActionConfig) > 0 {
		template.ActionConfig = datatypes.JSON(req.ActionConfig)
	}
	if req.SuppressModules != nil {
		raw, _ := json.Marshal(req.SuppressModules)
		template.SuppressModules = datatypes.JSON(raw)
	}
	if req.SuppressOperator != nil {
		template.SuppressOperator = *req.SuppressOperator
	}
	if req.Categories != nil {
		raw, _ := json.Marshal(req.Categories)
		template.Categories = datatypes.JSON(raw)
	}

	var plugins []string
	if err := json.Unmarshal(template.TriggerConditions, &plugins); err != nil {
		return nil, fmt.Errorf("failed to parse trigger conditions: %w", err)
	}
	defaults := map[string]models.ConditionDefault{}
	if len(template.ConditionDefaults) > 0 {
		if err := json.Unmarshal(template.ConditionDefaults, &defaults); err != nil {
			return nil, fmt.Errorf("failed to parse condition defaults: %w", err)
		}
	}
	if err := s.checkDefinition(plugins, defaults, template.ActionType, json.RawMessage(template.ActionConfig)); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Update(template); err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}

	// A narrowed category list strands instances on courses the template no
	// longer permits. An empty list means site-wide, which permits everything.
	if len(req.Categories) > 0 {
		orphaned, err := s.instanceRepo.MarkOrphanedOutsideCategories(template.ID, req.Categories)
		if err != nil {
			return nil, fmt.Errorf("failed to orphan out-of-category instances: %w", err)
		}
		if orphaned > 0 {
			log.Printf("🪦 Orphaned %d out-of-category instances of template %s", orphaned, template.ID)
		}
	}

	if s.auditTrail != nil {
		s.auditTrail.Record(req.ActorID, audit.ActionUpdate, audit.EntityTemplate, template.ID, before, template)
	}
	log.Printf("✅ Template updated: %s (ID: %s)", template.Title, template.ID)
	return template, nil
}

// DeleteTemplate removes a template and orphans its instances. Orphaned
// instances stop triggering but remain visible on their courses
func (s *TemplateService) DeleteTemplate(id uuid.UUID, actorID uuid.UUID) error {
	template, err := s.templateRepo.FindByID(id)
	if err != nil {
		return fmt.Errorf("template not found: %w", err)
	}

	orphaned, err := s.instanceRepo.MarkOrphanedByTemplate(id)
	if err != nil {
		return fmt.Errorf("failed to orphan instances of template %s: %w", id, err)
	}

	if err := s.templateRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	if s.auditTrail != nil {
		s.auditTrail.Record(actorID, audit.ActionDelete, audit.EntityTemplate, id, template, nil)
	}
	log.Printf("🗑️ Template deleted: %s (ID: %s, orphaned instances: %d)", template.Title, id, orphaned)
	return nil
}

// GetTemplate returns one template by ID
func (s *TemplateService) GetTemplate(id uuid.UUID) (*models.Template, error) {
	return s.templateRepo.FindByID(id)
}

// ListTemplates returns all templates, optionally only visible ones
func (s *TemplateService) ListTemplates(onlyVisible bool) ([]models.Template, error) {
	return s.templateRepo.List(onlyVisible)
}

// checkDefinition verifies that every referenced plugin exists and every
// stored payload decodes through its plugin
func (s *TemplateService) checkDefinition(plugins []string, defaults map[string]models.ConditionDefault, actionType string, actionConfig json.RawMessage) error {
	seen := map[string]bool{}
	for _, name := range plugins {
		plugin, ok := s.conditions.Get(name)
		if !ok {
			return fmt.Errorf("unknown condition plugin %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate condition plugin %q", name)
		}
		seen[name] = true

		def, hasDefault := defaults[name]
		if !hasDefault {
			continue
		}
		if def.Status != "" && !validConditionStatus(def.Status) {
			return fmt.Errorf("invalid status %q for condition %q", def.Status, name)
		}
		if condition.Status(def.Status) == condition.StatusFuture && def.UpcomingTime == nil {
			return fmt.Errorf("condition %q has upcoming status without an upcoming time", name)
		}
		// Enabled defaults need a payload their plugin accepts; disabled
		// ones only need to decode if they carry one
		if defaultEnabled(def.Status) || len(def.Payload) > 0 {
			if _, err := plugin.DecodeConfig(def.Payload); err != nil {
				return fmt.Errorf("invalid default config for condition %q: %w", name, err)
			}
		}
	}
	for name := range defaults {
		if !seen[name] {
			return fmt.Errorf("condition default for %q is not among the trigger conditions", name)
		}
	}

	actionPlugin, ok := s.actions.Get(actionType)
	if !ok {
		return fmt.Errorf("unknown action type %q", actionType)
	}
	// An omitted config still has to decode, so a template that can never
	// deliver is caught here rather than at trigger time
	if len(actionConfig) == 0 {
		actionConfig = json.RawMessage("{}")
	}
	if _, err := actionPlugin.DecodeConfig(actionConfig); err != nil {
		return fmt.Errorf("invalid action config: %w", err)
	}
	return nil
}

func defaultEnabled(status string) bool {
	s := condition.Status(status)
	return s == condition.StatusAll || s == condition.StatusFuture
}

func validConditionStatus(status string) bool {
	switch condition.Status(status) {
	case condition.StatusDisabled, condition.StatusAll, condition.StatusFuture:
		return true
	}
	return false
}

func boolOr(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilUUIDs(v []uuid.UUID) []uuid.UUID {
	if v == nil {
		return []uuid.UUID{}
	}
	return v
}

func orEmptyDefaults(v map[string]models.ConditionDefault) map[string]models.ConditionDefault {
	if v == nil {
		return map[string]models.ConditionDefault{}
	}
	return v
}
