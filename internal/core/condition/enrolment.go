package condition

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coursepulse/coursepulse-be/internal/core/events"
	"github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrolmentConfig has no tunables; the condition checks for an active
// enrolment in the instance's course
type EnrolmentConfig struct{}

func (EnrolmentConfig) Validate() error { return nil }

// EnrolmentPlugin gates on having an active course enrolment. Enrolment is an
// event in itself, so the "upcoming" mode is meaningless and not offered.
type EnrolmentPlugin struct{}

func (EnrolmentPlugin) Name() string { return "enrolment" }

func (EnrolmentPlugin) Options() []Status {
	return []Status{StatusDisabled, StatusAll}
}

func (EnrolmentPlugin) DecodeConfig(raw json.RawMessage) (Config, error) {
	if len(raw) == 0 {
		return EnrolmentConfig{}, nil
	}
	var cfg EnrolmentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode enrolment config: %w", err)
	}
	return cfg, nil
}

func (EnrolmentPlugin) IsUserCompleted(ctx context.Context, db *gorm.DB, cfg Config, courseID, userID uuid.UUID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.Enrolment{}).
		Where("course_id = ? AND user_id = ? AND active = ?", courseID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrolment: %w", err)
	}
	return count > 0, nil
}

func (EnrolmentPlugin) MatchesEvent(cfg Config, evt events.Event) bool {
	return evt.Name == events.EnrolmentCreated || evt.Name == events.EnrolmentDeleted
}
