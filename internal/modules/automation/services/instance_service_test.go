package services

import (
	"encoding/json"
	"testing"

	"github.com/coursepulse/coursepulse-be/internal/core/audit"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newInstanceService(h *harness) *InstanceService {
	return NewInstanceService(
		h.instanceRepo,
		repositories.NewTemplateRepo(h.db),
		h.scheduleRepo,
		NewResolver(condition.DefaultRegistry()),
		condition.DefaultRegistry(),
		audit.NewService(h.db),
	)
}

func seedTemplate(t *testing.T, h *harness, enabled bool) *models.Template {
	t.Helper()
	template := &models.Template{
		Title:             "Welcome mail",
		Reference:         uuid.NewString(),
		Enabled:           enabled,
		TriggerConditions: []byte(`["enrolment"]`),
		TriggerOperator:   "all",
		ConditionDefaults: []byte(`{"enrolment":{"status":"all"}}`),
		ActionType:        "notification",
		ActionConfig:      []byte(onceNotification()),
	}
	require.NoError(t, h.db.Create(template).Error)
	return template
}

func TestAttachTemplate(t *testing.T) {
	h := newHarness(t)
	svc := newInstanceService(h)
	template := seedTemplate(t, h, true)
	courseID := uuid.New()

	instance, err := svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: template.ID,
		CourseID:   courseID,
		CreatedBy:  uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InstanceEnabled, instance.Status)

	listed, err := svc.ListByCourse(courseID)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestAttachTemplateRejectsDisabled(t *testing.T) {
	h := newHarness(t)
	svc := newInstanceService(h)
	template := seedTemplate(t, h, false)

	_, err := svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: template.ID,
		CourseID:   uuid.New(),
		CreatedBy:  uuid.New(),
	})
	assert.Error(t, err)

	_, err = svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: uuid.New(),
		CourseID:   uuid.New(),
	})
	assert.Error(t, err, "unknown template")
}

func TestUpdateInstanceOverrides(t *testing.T) {
	h := newHarness(t)
	svc := newInstanceService(h)
	template := seedTemplate(t, h, true)

	instance, err := svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: template.ID,
		CourseID:   uuid.New(),
		CreatedBy:  uuid.New(),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateInstance(instance.ID, UpdateInstanceRequest{
		ActionOverride:   json.RawMessage(`{"subject":"Course-specific"}`),
		OverriddenFields: []string{"subject"},
		ConditionOverrides: []ConditionOverrideRequest{{
			Plugin:           "enrolment",
			StatusOverridden: true,
			Status:           "disabled",
		}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Overrides, 1)
	assert.Equal(t, "disabled", updated.Overrides[0].Status)

	// Clearing both flags drops the override row entirely
	updated, err = svc.UpdateInstance(instance.ID, UpdateInstanceRequest{
		ConditionOverrides: []ConditionOverrideRequest{{Plugin: "enrolment"}},
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Overrides)
}

func TestUpdateInstanceRejectsBrokenResolution(t *testing.T) {
	h := newHarness(t)
	svc := newInstanceService(h)
	template := seedTemplate(t, h, true)

	instance, err := svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: template.ID,
		CourseID:   uuid.New(),
		CreatedBy:  uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.UpdateInstance(instance.ID, UpdateInstanceRequest{
		ConditionOverrides: []ConditionOverrideRequest{{
			Plugin:           "no_such_plugin",
			StatusOverridden: true,
			Status:           "all",
		}},
	})
	assert.Error(t, err)

	_, err = svc.UpdateInstance(instance.ID, UpdateInstanceRequest{
		ConditionOverrides: []ConditionOverrideRequest{{
			Plugin:           "enrolment",
			StatusOverridden: true,
			Status:           "upcoming",
		}},
	})
	assert.Error(t, err, "upcoming override needs an upcoming time")
}

func TestUpdateInstanceOrphanedIsReadOnly(t *testing.T) {
	h := newHarness(t)
	svc := newInstanceService(h)
	template := seedTemplate(t, h, true)

	instance, err := svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: template.ID,
		CourseID:   uuid.New(),
		CreatedBy:  uuid.New(),
	})
	require.NoError(t, err)
	require.NoError(t, h.db.Model(&models.Instance{}).
		Where("id = ?", instance.ID).
		Update("status", models.InstanceOrphaned).Error)

	disabled := models.InstanceDisabled
	_, err = svc.UpdateInstance(instance.ID, UpdateInstanceRequest{Status: &disabled})
	assert.Error(t, err)
}

func TestDeleteInstanceRemovesSchedules(t *testing.T) {
	h := newHarness(t)
	svc := newInstanceService(h)
	template := seedTemplate(t, h, true)

	instance, err := svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: template.ID,
		CourseID:   uuid.New(),
		CreatedBy:  uuid.New(),
	})
	require.NoError(t, err)

	userID := uuid.New()
	_, _, err = h.scheduleRepo.EnsureActive(instance.ID, userID, instance.CourseID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInstance(instance.ID))

	_, err = svc.GetInstance(instance.ID)
	assert.Error(t, err)
	_, err = h.scheduleRepo.FindActive(instance.ID, userID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateInstanceSuppressOverride(t *testing.T) {
	h := newHarness(t)
	svc := newInstanceService(h)
	template := seedTemplate(t, h, true)
	courseID := uuid.New()

	instance, err := svc.AttachTemplate(AttachInstanceRequest{
		TemplateID: template.ID,
		CourseID:   courseID,
		CreatedBy:  uuid.New(),
	})
	require.NoError(t, err)

	overridden := true
	moduleID := uuid.New()
	updated, err := svc.UpdateInstance(instance.ID, UpdateInstanceRequest{
		SuppressOverridden: &overridden,
		SuppressModules:    []uuid.UUID{moduleID},
		SuppressOperator:   "all",
	})
	require.NoError(t, err)
	assert.True(t, updated.SuppressOverridden)
	assert.Equal(t, "all", updated.SuppressOperator)

	var ids []uuid.UUID
	require.NoError(t, json.Unmarshal(updated.SuppressModules, &ids))
	require.Len(t, ids, 1)
	assert.Equal(t, moduleID, ids[0])

	_, err = svc.UpdateInstance(instance.ID, UpdateInstanceRequest{
		SuppressOperator: "sometimes",
	})
	assert.Error(t, err, "only any and all are valid suppress operators")
}
