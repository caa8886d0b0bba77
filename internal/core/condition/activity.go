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

// ActivityConfig configures the activity completion condition
type ActivityConfig struct {
	ModuleIDs []uuid.UUID `json:"module_ids"`
	Require   Operator    `json:"require"` // all / any of the listed modules
}

// Validate checks the payload at decode time
func (c ActivityConfig) Validate() error {
	if len(c.ModuleIDs) == 0 {
		return fmt.Errorf("activity condition requires at least one module")
	}
	if c.Require != OperatorAll && c.Require != OperatorAny {
		return fmt.Errorf("activity condition require must be 'all' or 'any', got %q", c.Require)
	}
	return nil
}

// ActivityPlugin gates on completion of course modules
type ActivityPlugin struct{}

func (ActivityPlugin) Name() string { return "activity" }

func (ActivityPlugin) Options() []Status {
	return []Status{StatusDisabled, StatusAll, StatusFuture}
}

func (ActivityPlugin) DecodeConfig(raw json.RawMessage) (Config, error) {
	var cfg ActivityConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode activity config: %w", err)
	}
	if cfg.Require == "" {
		cfg.Require = OperatorAll
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (ActivityPlugin) IsUserCompleted(ctx context.Context, db *gorm.DB, cfg Config, courseID, userID uuid.UUID) (bool, error) {
	activity, ok := cfg.(ActivityConfig)
	if !ok {
		return false, fmt.Errorf("unexpected config type %T for activity condition", cfg)
	}

	var count int64
	err := db.WithContext(ctx).Model(&models.Completion{}).
		Where("user_id = ? AND module_id IN ?", userID, activity.ModuleIDs).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count completions: %w", err)
	}

	if activity.Require == OperatorAny {
		return count > 0, nil
	}
	return count == int64(len(activity.ModuleIDs)), nil
}

func (ActivityPlugin) MatchesEvent(cfg Config, evt events.Event) bool {
	if evt.Name != events.CompletionUpdated {
		return false
	}
	activity, ok := cfg.(ActivityConfig)
	if !ok {
		return false
	}
	for _, id := range activity.ModuleIDs {
		if id == evt.SubjectID {
			return true
		}
	}
	return false
}
