package services

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/action"
	"github.com/coursepulse/coursepulse-be/internal/core/audit"
	"github.com/coursepulse/coursepulse-be/internal/core/condition"
	coremodels "github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplateService(h *harness) (*TemplateService, *audit.Service) {
	auditTrail := audit.NewService(h.db)
	svc := NewTemplateService(
		repositories.NewTemplateRepo(h.db),
		h.instanceRepo,
		condition.DefaultRegistry(),
		action.DefaultRegistry(),
		auditTrail,
	)
	return svc, auditTrail
}

func TestCreateTemplateDefaults(t *testing.T) {
	h := newHarness(t)
	svc, auditTrail := newTemplateService(h)
	actorID := uuid.New()

	template, err := svc.CreateTemplate(CreateTemplateRequest{
		ActorID:      actorID,
		Title:        "Welcome mail",
		Reference:    "welcome",
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)
	assert.True(t, template.Visible)
	assert.True(t, template.Enabled)
	assert.Equal(t, "all", template.TriggerOperator)
	assert.Equal(t, "notification", template.ActionType)

	history, err := auditTrail.EntityHistory(audit.EntityTemplate, template.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, audit.ActionCreate, history[0].Action)
	assert.Equal(t, actorID, history[0].ActorID)
}

func TestCreateTemplateRejectsBrokenDefinitions(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)

	_, err := svc.CreateTemplate(CreateTemplateRequest{Reference: "r"})
	assert.Error(t, err, "title is required")

	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "r1",
		TriggerConditions: []string{"no_such_plugin"},
	})
	assert.Error(t, err)

	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "r2",
		TriggerConditions: []string{"enrolment", "enrolment"},
	})
	assert.Error(t, err, "duplicate conditions are rejected")

	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "r3",
		TriggerConditions: []string{"enrolment"},
		ConditionDefaults: map[string]models.ConditionDefault{
			"activity": {Status: "all"},
		},
	})
	assert.Error(t, err, "defaults must reference listed conditions")

	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "r4",
		TriggerConditions: []string{"activity"},
		ConditionDefaults: map[string]models.ConditionDefault{
			"activity": {Status: "upcoming"},
		},
	})
	assert.Error(t, err, "upcoming status needs an upcoming time")

	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "r5",
		ActionConfig: json.RawMessage(`{"schedule":{"interval":"hourly"}}`),
	})
	assert.Error(t, err, "action config goes through plugin validation")

	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "r6",
	})
	assert.Error(t, err, "a template that can never deliver is rejected at create")
}

func TestCreateTemplateWithFullDefinition(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)
	upcoming := time.Now().Add(48 * time.Hour)

	sessionID, moduleID := uuid.New(), uuid.New()
	template, err := svc.CreateTemplate(CreateTemplateRequest{
		ActorID:           uuid.New(),
		Title:             "Session reminder",
		Reference:         "session-reminder",
		TriggerConditions: []string{"session", "activity"},
		TriggerOperator:   "any",
		ConditionDefaults: map[string]models.ConditionDefault{
			"session": {
				Status:  "all",
				Payload: json.RawMessage(fmt.Sprintf(`{"session_ids":[%q]}`, sessionID)),
			},
			"activity": {
				Status:       "upcoming",
				UpcomingTime: &upcoming,
				Payload:      json.RawMessage(fmt.Sprintf(`{"module_ids":[%q]}`, moduleID)),
			},
		},
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)
	assert.Equal(t, "any", template.TriggerOperator)
}

func TestUpdateTemplatePartial(t *testing.T) {
	h := newHarness(t)
	svc, auditTrail := newTemplateService(h)

	template, err := svc.CreateTemplate(CreateTemplateRequest{
		Title: "Old title", Reference: "upd",
		TriggerConditions: []string{"enrolment"},
		ActionConfig:      json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)

	newTitle := "New title"
	updated, err := svc.UpdateTemplate(template.ID, UpdateTemplateRequest{
		ActorID: uuid.New(),
		Title:   &newTitle,
	})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "all", updated.TriggerOperator, "untouched fields keep their value")

	history, err := auditTrail.EntityHistory(audit.EntityTemplate, template.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestUpdateTemplateRevalidates(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)

	template, err := svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "reval",
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)

	_, err = svc.UpdateTemplate(template.ID, UpdateTemplateRequest{
		TriggerConditions: []string{"no_such_plugin"},
	})
	assert.Error(t, err)
}

func TestDeleteTemplateOrphansInstances(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)

	template, err := svc.CreateTemplate(CreateTemplateRequest{
		Title: "T", Reference: "del",
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)

	instance := &models.Instance{
		TemplateID: template.ID,
		CourseID:   uuid.New(),
		Status:     models.InstanceEnabled,
	}
	require.NoError(t, h.db.Create(instance).Error)

	require.NoError(t, svc.DeleteTemplate(template.ID, uuid.New()))

	_, err = svc.GetTemplate(template.ID)
	assert.Error(t, err)

	var orphan models.Instance
	require.NoError(t, h.db.First(&orphan, "id = ?", instance.ID).Error)
	assert.Equal(t, models.InstanceOrphaned, orphan.Status, "instances outlive their template as orphans")
}

func TestListTemplatesVisibility(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)
	hidden := false

	_, err := svc.CreateTemplate(CreateTemplateRequest{
		Title: "Shown", Reference: "shown",
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)
	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "Hidden", Reference: "hidden", Visible: &hidden,
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)

	all, err := svc.ListTemplates(false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	visible, err := svc.ListTemplates(true)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "Shown", visible[0].Title)
}

func TestCreateTemplateStoresDisabledFlags(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)
	off := false

	created, err := svc.CreateTemplate(CreateTemplateRequest{
		Title: "Quiet", Reference: "quiet",
		Visible: &off, Enabled: &off,
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)

	var stored models.Template
	require.NoError(t, h.db.First(&stored, "id = ?", created.ID).Error)
	assert.False(t, stored.Visible, "an explicit false must survive the insert")
	assert.False(t, stored.Enabled)
}

func TestCreateTemplatePersistsSuppressRule(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)
	moduleID := uuid.New()

	template, err := svc.CreateTemplate(CreateTemplateRequest{
		Title: "Nudge", Reference: "nudge",
		SuppressModules:  []uuid.UUID{moduleID},
		SuppressOperator: "all",
		ActionConfig:     json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)
	assert.Equal(t, "all", template.SuppressOperator)

	var ids []uuid.UUID
	require.NoError(t, json.Unmarshal(template.SuppressModules, &ids))
	require.Len(t, ids, 1)
	assert.Equal(t, moduleID, ids[0])

	_, err = svc.CreateTemplate(CreateTemplateRequest{
		Title: "Bad", Reference: "bad-op",
		SuppressOperator: "most",
		ActionConfig:     json.RawMessage(onceNotification()),
	})
	assert.Error(t, err, "only any and all are valid suppress operators")
}

func TestUpdateTemplateCategoriesOrphansOutsideCourses(t *testing.T) {
	h := newHarness(t)
	svc, _ := newTemplateService(h)
	keepCat, dropCat := uuid.New(), uuid.New()

	template, err := svc.CreateTemplate(CreateTemplateRequest{
		Title: "Scoped", Reference: "scoped",
		ActionConfig: json.RawMessage(onceNotification()),
	})
	require.NoError(t, err)

	inCourse := &coremodels.Course{FullName: "Inside", ShortName: "inside", CategoryID: keepCat, TenantID: uuid.New()}
	outCourse := &coremodels.Course{FullName: "Outside", ShortName: "outside", CategoryID: dropCat, TenantID: uuid.New()}
	require.NoError(t, h.db.Create(inCourse).Error)
	require.NoError(t, h.db.Create(outCourse).Error)

	inInstance := &models.Instance{TemplateID: template.ID, CourseID: inCourse.ID, Status: models.InstanceEnabled}
	outInstance := &models.Instance{TemplateID: template.ID, CourseID: outCourse.ID, Status: models.InstanceEnabled}
	require.NoError(t, h.db.Create(inInstance).Error)
	require.NoError(t, h.db.Create(outInstance).Error)

	_, err = svc.UpdateTemplate(template.ID, UpdateTemplateRequest{
		ActorID:    uuid.New(),
		Categories: []uuid.UUID{keepCat},
	})
	require.NoError(t, err)

	var kept, stranded models.Instance
	require.NoError(t, h.db.First(&kept, "id = ?", inInstance.ID).Error)
	require.NoError(t, h.db.First(&stranded, "id = ?", outInstance.ID).Error)
	assert.Equal(t, models.InstanceEnabled, kept.Status)
	assert.Equal(t, models.InstanceOrphaned, stranded.Status, "courses outside the new categories lose their instance")
}
