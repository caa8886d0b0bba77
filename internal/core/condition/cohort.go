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

// CohortConfig configures the cohort membership condition
type CohortConfig struct {
	CohortIDs []uuid.UUID `json:"cohort_ids"`
}

func (c CohortConfig) Validate() error {
	if len(c.CohortIDs) == 0 {
		return fmt.Errorf("cohort condition requires at least one cohort")
	}
	return nil
}

// CohortPlugin gates on membership in any of the configured cohorts
type CohortPlugin struct{}

func (CohortPlugin) Name() string { return "cohort" }

func (CohortPlugin) Options() []Status {
	return []Status{StatusDisabled, StatusAll, StatusFuture}
}

func (CohortPlugin) DecodeConfig(raw json.RawMessage) (Config, error) {
	var cfg CohortConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode cohort config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (CohortPlugin) IsUserCompleted(ctx context.Context, db *gorm.DB, cfg Config, courseID, userID uuid.UUID) (bool, error) {
	cohort, ok := cfg.(CohortConfig)
	if !ok {
		return false, fmt.Errorf("unexpected config type %T for cohort condition", cfg)
	}

	var count int64
	err := db.WithContext(ctx).Model(&models.CohortMember{}).
		Where("user_id = ? AND cohort_id IN ?", userID, cohort.CohortIDs).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check cohort membership: %w", err)
	}
	return count > 0, nil
}

func (CohortPlugin) MatchesEvent(cfg Config, evt events.Event) bool {
	if evt.Name != events.CohortMemberAdded {
		return false
	}
	cohort, ok := cfg.(CohortConfig)
	if !ok {
		return false
	}
	for _, id := range cohort.CohortIDs {
		if id == evt.SubjectID {
			return true
		}
	}
	return false
}
