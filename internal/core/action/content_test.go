package action

import (
	"encoding/json"
	"testing"

	"github.com/coursepulse/coursepulse-be/internal/core/schedule"
	"github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceVariables(t *testing.T) {
	user := &models.User{FirstName: "Ana", LastName: "Silva", Email: "ana@example.com"}
	course := &models.Course{FullName: "Intro to Go", ShortName: "go101"}
	vars := placeholderData(user, course)

	out := replaceVariables("Hi {firstname}, welcome to {coursename}!", vars)
	assert.Equal(t, "Hi Ana, welcome to Intro to Go!", out)

	// Unknown placeholders pass through untouched
	out = replaceVariables("Hello {unknown}", vars)
	assert.Equal(t, "Hello {unknown}", out)
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello world", stripTags("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "plain", stripTags("plain"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "abc...", truncate("abcdefgh", 3))
	assert.Equal(t, "no limit", truncate("no limit", 0))
}

func TestNotificationDecodeConfigDefaultsExplicitSchedule(t *testing.T) {
	raw := json.RawMessage(`{"subject":"Reminder","static_content":"Hello","schedule":{"interval":"once","delay":"none"}}`)

	cfg, err := NotificationPlugin{}.DecodeConfig(raw)
	require.NoError(t, err)

	notification, ok := cfg.(NotificationConfig)
	require.True(t, ok)
	assert.Equal(t, SenderCourseTeacher, notification.SenderPolicy)
	assert.Equal(t, ExcerptFullUnlinked, notification.ExcerptPolicy)
	assert.Equal(t, defaultTeaserLength, notification.TeaserLength)
	assert.Equal(t, schedule.IntervalOnce, notification.Timing().Interval)
}

func TestNotificationConfigValidate(t *testing.T) {
	valid := NotificationConfig{
		Schedule:      schedule.Config{Interval: schedule.IntervalOnce},
		Subject:       "Reminder",
		StaticContent: "Hello",
	}
	assert.NoError(t, valid.Validate())

	missingSubject := valid
	missingSubject.Subject = ""
	assert.Error(t, missingSubject.Validate())

	customWithoutAddress := valid
	customWithoutAddress.SenderPolicy = SenderCustom
	assert.Error(t, customWithoutAddress.Validate())

	badExcerpt := valid
	badExcerpt.ExcerptPolicy = "summary"
	assert.Error(t, badExcerpt.Validate())

	badSchedule := valid
	badSchedule.Schedule.Interval = "hourly"
	assert.Error(t, badSchedule.Validate())
}

func TestActionRegistry(t *testing.T) {
	registry := DefaultRegistry()
	assert.Equal(t, []string{"notification"}, registry.Names())

	_, ok := registry.Get("notification")
	assert.True(t, ok)
	assert.Error(t, registry.Register(NotificationPlugin{}))
}
