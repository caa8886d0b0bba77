package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func testTemplate(moduleID uuid.UUID) *models.Template {
	return &models.Template{
		ID:                uuid.New(),
		Title:             "Welcome mail",
		Reference:         "welcome",
		Enabled:           true,
		TriggerConditions: datatypes.JSON(`["enrolment","activity"]`),
		TriggerOperator:   "all",
		ConditionDefaults: datatypes.JSON(fmt.Sprintf(
			`{"enrolment":{"status":"all"},"activity":{"status":"all","payload":{"module_ids":[%q]}}}`, moduleID)),
		ActionType: "notification",
		ActionConfig: datatypes.JSON(
			`{"schedule":{"interval":"once"},"subject":"Welcome","static_content":"<p>Hi</p>","footer_content":"<p>Bye</p>"}`),
	}
}

func testInstance(template *models.Template) *models.Instance {
	return &models.Instance{
		ID:         uuid.New(),
		TemplateID: template.ID,
		CourseID:   uuid.New(),
		Status:     models.InstanceEnabled,
		Template:   template,
	}
}

func TestResolveTemplateDefaults(t *testing.T) {
	moduleID := uuid.New()
	resolver := NewResolver(condition.DefaultRegistry())

	cfg, err := resolver.Resolve(testInstance(testTemplate(moduleID)))
	require.NoError(t, err)

	assert.Equal(t, condition.OperatorAll, cfg.Operator)
	assert.Equal(t, "notification", cfg.ActionType)
	require.Len(t, cfg.Conditions, 2)

	assert.Equal(t, "enrolment", cfg.Conditions[0].Plugin)
	assert.Equal(t, condition.StatusAll, cfg.Conditions[0].Status)

	assert.Equal(t, "activity", cfg.Conditions[1].Plugin)
	activity, ok := cfg.Conditions[1].Config.(condition.ActivityConfig)
	require.True(t, ok)
	assert.Equal(t, []uuid.UUID{moduleID}, activity.ModuleIDs)
}

func TestResolveConditionWithoutDefaultIsDisabled(t *testing.T) {
	template := testTemplate(uuid.New())
	template.ConditionDefaults = datatypes.JSON(`{}`)
	template.TriggerConditions = datatypes.JSON(`["enrolment"]`)
	resolver := NewResolver(condition.DefaultRegistry())

	cfg, err := resolver.Resolve(testInstance(template))
	require.NoError(t, err)
	require.Len(t, cfg.Conditions, 1)
	assert.Equal(t, condition.StatusDisabled, cfg.Conditions[0].Status)
}

func TestResolveStatusAndPayloadOverridesIndependent(t *testing.T) {
	moduleID := uuid.New()
	otherModule := uuid.New()
	upcoming := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	resolver := NewResolver(condition.DefaultRegistry())

	// Status overridden, payload untouched: the template's module list stays
	instance := testInstance(testTemplate(moduleID))
	instance.Overrides = []models.ConditionOverride{{
		InstanceID:       instance.ID,
		Plugin:           "activity",
		StatusOverridden: true,
		Status:           "upcoming",
		UpcomingTime:     &upcoming,
	}}
	cfg, err := resolver.Resolve(instance)
	require.NoError(t, err)
	assert.Equal(t, condition.StatusFuture, cfg.Conditions[1].Status)
	require.NotNil(t, cfg.Conditions[1].UpcomingTime)
	assert.True(t, upcoming.Equal(*cfg.Conditions[1].UpcomingTime))
	activity := cfg.Conditions[1].Config.(condition.ActivityConfig)
	assert.Equal(t, []uuid.UUID{moduleID}, activity.ModuleIDs)

	// Payload overridden, status untouched: the template's status stays
	instance = testInstance(testTemplate(moduleID))
	instance.Overrides = []models.ConditionOverride{{
		InstanceID:        instance.ID,
		Plugin:            "activity",
		PayloadOverridden: true,
		Payload:           datatypes.JSON(fmt.Sprintf(`{"module_ids":[%q]}`, otherModule)),
	}}
	cfg, err = resolver.Resolve(instance)
	require.NoError(t, err)
	assert.Equal(t, condition.StatusAll, cfg.Conditions[1].Status)
	activity = cfg.Conditions[1].Config.(condition.ActivityConfig)
	assert.Equal(t, []uuid.UUID{otherModule}, activity.ModuleIDs)
}

func TestResolveActionFieldOverrides(t *testing.T) {
	resolver := NewResolver(condition.DefaultRegistry())

	instance := testInstance(testTemplate(uuid.New()))
	instance.ActionOverride = datatypes.JSON(`{"subject":"Course-specific welcome"}`)
	instance.OverriddenFields = datatypes.JSON(`["subject","footer_content"]`)

	cfg, err := resolver.Resolve(instance)
	require.NoError(t, err)

	merged := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(cfg.ActionConfig, &merged))

	var subject string
	require.NoError(t, json.Unmarshal(merged["subject"], &subject))
	assert.Equal(t, "Course-specific welcome", subject)

	// Overridden with no value: the key disappears so the action's own
	// default applies, not the template's
	_, present := merged["footer_content"]
	assert.False(t, present)

	// Fields not listed as overridden keep the template value
	var static string
	require.NoError(t, json.Unmarshal(merged["static_content"], &static))
	assert.Equal(t, "<p>Hi</p>", static)
}

func TestResolveRejectsBrokenConfigs(t *testing.T) {
	resolver := NewResolver(condition.DefaultRegistry())

	template := testTemplate(uuid.New())
	template.TriggerConditions = datatypes.JSON(`["no_such_plugin"]`)
	_, err := resolver.Resolve(testInstance(template))
	assert.Error(t, err)

	template = testTemplate(uuid.New())
	instance := testInstance(template)
	instance.Overrides = []models.ConditionOverride{{
		Plugin:            "activity",
		PayloadOverridden: true,
		Payload:           datatypes.JSON(`{"module_ids":[]}`),
	}}
	_, err = resolver.Resolve(instance)
	assert.Error(t, err, "overridden payloads go through plugin validation")

	instance = testInstance(testTemplate(uuid.New()))
	instance.Template = nil
	_, err = resolver.Resolve(instance)
	assert.Error(t, err)
}
