package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/google/uuid"
)

// EffectiveConfig is the fully resolved view of one instance: template values
// with the instance's overridden fields shadowing them
type EffectiveConfig struct {
	Conditions   []condition.Spec
	Operator     condition.Operator
	ActionType   string
	ActionConfig json.RawMessage
	Suppress     SuppressRule
}

// SuppressRule cancels delivery when the listed modules are completed.
// An empty module list means the instance has no suppression configured
type SuppressRule struct {
	ModuleIDs []uuid.UUID
	Operator  condition.Operator
}

// Defined reports whether the rule has anything to evaluate
func (r SuppressRule) Defined() bool {
	return len(r.ModuleIDs) > 0
}

// Listens reports whether a completed module is relevant to this rule
func (r SuppressRule) Listens(moduleID uuid.UUID) bool {
	for _, id := range r.ModuleIDs {
		if id == moduleID {
			return true
		}
	}
	return false
}

// Resolver merges template defaults with per-instance overrides. Resolution
// is field-level: an instance value only wins where the instance explicitly
// marked the field as overridden
type Resolver struct {
	registry *condition.Registry
}

// NewResolver creates a new config resolver
func NewResolver(registry *condition.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve computes the effective config for an instance. The instance must
// carry its Template and Overrides preloaded
func (r *Resolver) Resolve(instance *models.Instance) (*EffectiveConfig, error) {
	if instance.Template == nil {
		return nil, fmt.Errorf("instance %s has no template loaded", instance.ID)
	}
	template := instance.Template

	conditions, err := r.resolveConditions(template, instance.Overrides)
	if err != nil {
		return nil, err
	}

	actionConfig, err := mergeActionConfig(template.ActionConfig, instance.ActionOverride, instance.OverriddenFields)
	if err != nil {
		return nil, err
	}

	operator := condition.Operator(template.TriggerOperator)
	if operator != condition.OperatorAny {
		operator = condition.OperatorAll
	}

	suppress, err := resolveSuppress(template, instance)
	if err != nil {
		return nil, err
	}

	return &EffectiveConfig{
		Conditions:   conditions,
		Operator:     operator,
		ActionType:   template.ActionType,
		ActionConfig: actionConfig,
		Suppress:     suppress,
	}, nil
}

// resolveSuppress picks the instance's suppress rule when overridden,
// otherwise the template's
func resolveSuppress(template *models.Template, instance *models.Instance) (SuppressRule, error) {
	modulesRaw := template.SuppressModules
	operatorRaw := template.SuppressOperator
	if instance.SuppressOverridden {
		modulesRaw = instance.SuppressModules
		operatorRaw = instance.SuppressOperator
	}

	var moduleIDs []uuid.UUID
	if len(modulesRaw) > 0 {
		if err := json.Unmarshal(modulesRaw, &moduleIDs); err != nil {
			return SuppressRule{}, fmt.Errorf("failed to parse suppress modules of instance %s: %w", instance.ID, err)
		}
	}

	operator := condition.Operator(operatorRaw)
	if operator != condition.OperatorAll {
		operator = condition.OperatorAny
	}
	return SuppressRule{ModuleIDs: moduleIDs, Operator: operator}, nil
}

// resolveConditions builds one Spec per template trigger condition, applying
// status and payload overrides independently
func (r *Resolver) resolveConditions(template *models.Template, overrides []models.ConditionOverride) ([]condition.Spec, error) {
	var plugins []string
	if len(template.TriggerConditions) > 0 {
		if err := json.Unmarshal(template.TriggerConditions, &plugins); err != nil {
			return nil, fmt.Errorf("failed to parse trigger conditions of template %s: %w", template.ID, err)
		}
	}

	defaults := map[string]models.ConditionDefault{}
	if len(template.ConditionDefaults) > 0 {
		if err := json.Unmarshal(template.ConditionDefaults, &defaults); err != nil {
			return nil, fmt.Errorf("failed to parse condition defaults of template %s: %w", template.ID, err)
		}
	}

	byPlugin := make(map[string]models.ConditionOverride, len(overrides))
	for _, o := range overrides {
		byPlugin[o.Plugin] = o
	}

	specs := make([]condition.Spec, 0, len(plugins))
	for _, name := range plugins {
		plugin, ok := r.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown condition plugin %q in template %s", name, template.ID)
		}

		def := defaults[name]
		status := condition.Status(def.Status)
		if status == "" {
			status = condition.StatusDisabled
		}
		upcoming := def.UpcomingTime
		payload := def.Payload

		if override, found := byPlugin[name]; found {
			if override.StatusOverridden {
				status = condition.Status(override.Status)
				upcoming = override.UpcomingTime
			}
			if override.PayloadOverridden {
				payload = json.RawMessage(override.Payload)
			}
		}

		// Disabled conditions are never evaluated, so their payload does not
		// need to decode
		var cfg condition.Config
		if status != condition.StatusDisabled && status != "" {
			decoded, err := plugin.DecodeConfig(payload)
			if err != nil {
				return nil, fmt.Errorf("invalid config for condition %q: %w", name, err)
			}
			cfg = decoded
		}

		specs = append(specs, condition.Spec{
			Plugin:       name,
			Status:       status,
			UpcomingTime: normalizeTime(upcoming),
			Config:       cfg,
		})
	}
	return specs, nil
}

// mergeActionConfig applies the overridden fields of the instance on top of
// the template's action config, key by key
func mergeActionConfig(templateConfig, override, overriddenFields []byte) (json.RawMessage, error) {
	base := map[string]json.RawMessage{}
	if len(templateConfig) > 0 {
		if err := json.Unmarshal(templateConfig, &base); err != nil {
			return nil, fmt.Errorf("failed to parse template action config: %w", err)
		}
	}

	var fields []string
	if len(overriddenFields) > 0 {
		if err := json.Unmarshal(overriddenFields, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse overridden fields: %w", err)
		}
	}

	if len(fields) > 0 {
		shadow := map[string]json.RawMessage{}
		if len(override) > 0 {
			if err := json.Unmarshal(override, &shadow); err != nil {
				return nil, fmt.Errorf("failed to parse action override: %w", err)
			}
		}
		for _, field := range fields {
			if value, ok := shadow[field]; ok {
				base[field] = value
			} else {
				// Overridden with no value: the field falls back to the
				// action's own default, not the template's
				delete(base, field)
			}
		}
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged action config: %w", err)
	}
	return merged, nil
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}
